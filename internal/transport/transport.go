package transport

import (
	"context"

	"github.com/fusionbot-vk/fusionbot/internal/models"
)

// Transport connects the bot to a chat platform. Events delivers inbound
// group messages; the channel is closed when the context is cancelled.
type Transport interface {
	Events(ctx context.Context) <-chan models.InboundEvent
	Send(ctx context.Context, reply models.OutboundReply) error
}

// ChatModerator removes users from group chats. Implemented by platforms
// where the bot has moderator privileges.
type ChatModerator interface {
	RemoveChatUser(ctx context.Context, peerID, userID int64) error
}

// AdminChecker reports platform-level chat administrators.
type AdminChecker interface {
	IsPlatformAdmin(ctx context.Context, peerID, userID int64) bool
}
