package models

import (
	"time"
)

// InboundEvent is a single chat message delivered by the transport.
type InboundEvent struct {
	UserID    int64
	PeerID    int64
	Text      string
	FirstName string
	LastName  string
	Timestamp int64
}

// OutboundReply is a message the bot sends back to a conversation.
type OutboundReply struct {
	PeerID int64
	Text   string
}

// User is the persisted per-user reputation record.
type User struct {
	ID            int64      `json:"id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Experience    int        `json:"experience"`
	RankLevel     int        `json:"rank_level"`
	MessagesCount int        `json:"messages_count"`
	Warnings      int        `json:"warnings"`
	Banned        bool       `json:"banned"`
	MuteUntil     *time.Time `json:"mute_until,omitempty"`
	JoinDate      time.Time  `json:"join_date"`
	LastActivity  time.Time  `json:"last_activity"`
}

// ChatAdmin is a bot-local administrative grant for one conversation.
// (UserID, PeerID) is the natural key.
type ChatAdmin struct {
	UserID  int64
	PeerID  int64
	IsOwner bool
}

// ModerationDecision is the result of a content check. It is not persisted.
type ModerationDecision struct {
	Allowed  bool
	Category string
	Reason   string
	Response string
}

// Message represents a chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
