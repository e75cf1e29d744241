package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/i18n"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
	"github.com/fusionbot-vk/fusionbot/internal/services/reputation"
	"github.com/fusionbot-vk/fusionbot/internal/transport"
)

const (
	// Experience awarded to the acting admin per action.
	expWarn = 3
	expMute = 5
	expKick = 10
	expBan  = 20

	warnLimit        = 5
	autoMuteAt       = 3
	autoMuteDuration = 30 * time.Minute
)

// Moderator applies moderation actions to users. Every method returns the
// reply text to post in the chat; failures are reported in the reply, not
// as errors, because the chat is the only channel back to the admin.
type Moderator struct {
	store     *reputation.Manager
	chat      transport.ChatModerator
	localizer *i18n.Localizer
	metrics   *middleware.Metrics
	logger    *logrus.Logger
}

// NewModerator creates a moderator. chat may be nil when the platform
// offers no member removal; kicks then fail gracefully.
func NewModerator(store *reputation.Manager, chat transport.ChatModerator, localizer *i18n.Localizer, metrics *middleware.Metrics, logger *logrus.Logger) *Moderator {
	return &Moderator{
		store:     store,
		chat:      chat,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
	}
}

// canTarget rejects actions against chat administrators.
func (m *Moderator) canTarget(ctx context.Context, peerID, targetID int64) bool {
	return !m.store.IsAdmin(ctx, targetID, peerID)
}

// Kick removes the target from the chat.
func (m *Moderator) Kick(ctx context.Context, peerID, targetID, adminID int64) string {
	if !m.canTarget(ctx, peerID, targetID) {
		return m.localizer.Default(i18n.MsgCannotTargetAdmin, nil)
	}

	if m.chat == nil {
		return m.localizer.Default(i18n.MsgKickFailed, nil)
	}
	if err := m.chat.RemoveChatUser(ctx, peerID, targetID); err != nil {
		m.logger.WithFields(logrus.Fields{
			"peer_id":   peerID,
			"target_id": targetID,
			"error":     err,
		}).Error("Failed to kick user")
		return m.localizer.Default(i18n.MsgKickFailed, nil)
	}

	m.store.AddExperience(ctx, adminID, expKick)
	m.metrics.RecordCommandExecuted("kick")
	m.logger.WithFields(logrus.Fields{
		"peer_id":   peerID,
		"target_id": targetID,
		"admin_id":  adminID,
	}).Info("User kicked")
	return m.localizer.Default(i18n.MsgKicked, nil)
}

// Mute silences the target for the given duration.
func (m *Moderator) Mute(ctx context.Context, peerID, targetID, adminID int64, d time.Duration, reason string) string {
	if !m.canTarget(ctx, peerID, targetID) {
		return m.localizer.Default(i18n.MsgCannotTargetAdmin, nil)
	}

	if !m.store.Mute(ctx, targetID, d) {
		return m.localizer.Default(i18n.MsgActionFailed, nil)
	}

	m.store.AddExperience(ctx, adminID, expMute)
	m.metrics.RecordCommandExecuted("mute")
	m.logger.WithFields(logrus.Fields{
		"peer_id":   peerID,
		"target_id": targetID,
		"admin_id":  adminID,
		"duration":  d,
	}).Info("User muted")
	return m.localizer.Default(i18n.MsgMutedUser, map[string]interface{}{
		"Minutes": int(d.Minutes()),
		"Reason":  reason,
	})
}

// Ban bans the target and best-effort removes them from the chat.
func (m *Moderator) Ban(ctx context.Context, peerID, targetID, adminID int64, reason string) string {
	if !m.canTarget(ctx, peerID, targetID) {
		return m.localizer.Default(i18n.MsgCannotTargetAdmin, nil)
	}

	if !m.store.Ban(ctx, targetID) {
		return m.localizer.Default(i18n.MsgActionFailed, nil)
	}

	if m.chat != nil {
		if err := m.chat.RemoveChatUser(ctx, peerID, targetID); err != nil {
			m.logger.WithFields(logrus.Fields{
				"peer_id":   peerID,
				"target_id": targetID,
				"error":     err,
			}).Warn("Banned user could not be removed from chat")
		}
	}

	m.store.AddExperience(ctx, adminID, expBan)
	m.metrics.RecordCommandExecuted("ban")
	m.logger.WithFields(logrus.Fields{
		"peer_id":   peerID,
		"target_id": targetID,
		"admin_id":  adminID,
	}).Info("User banned")
	return m.localizer.Default(i18n.MsgBannedUser, map[string]interface{}{
		"Reason": reason,
	})
}

// Warn issues a warning. The third warning auto-mutes for 30 minutes and
// reaching the warning limit auto-bans.
func (m *Moderator) Warn(ctx context.Context, peerID, targetID, adminID int64, reason string) string {
	if !m.canTarget(ctx, peerID, targetID) {
		return m.localizer.Default(i18n.MsgCannotTargetAdmin, nil)
	}

	count := m.store.AddWarning(ctx, targetID)
	if count == 0 {
		return m.localizer.Default(i18n.MsgActionFailed, nil)
	}

	m.store.AddExperience(ctx, adminID, expWarn)
	m.metrics.RecordCommandExecuted("warn")
	m.logger.WithFields(logrus.Fields{
		"peer_id":   peerID,
		"target_id": targetID,
		"admin_id":  adminID,
		"warnings":  count,
	}).Info("User warned")

	data := map[string]interface{}{
		"Count":  count,
		"Limit":  warnLimit,
		"Reason": reason,
	}

	switch {
	case count >= warnLimit:
		m.store.Ban(ctx, targetID)
		if m.chat != nil {
			if err := m.chat.RemoveChatUser(ctx, peerID, targetID); err != nil {
				m.logger.WithField("target_id", targetID).Warn("Auto-banned user could not be removed from chat")
			}
		}
		return m.localizer.Default(i18n.MsgWarnedAutoBan, data)
	case count == autoMuteAt:
		m.store.Mute(ctx, targetID, autoMuteDuration)
		return m.localizer.Default(i18n.MsgWarnedAutoMute, data)
	default:
		return m.localizer.Default(i18n.MsgWarned, data)
	}
}

// Unmute lifts a mute.
func (m *Moderator) Unmute(ctx context.Context, peerID, targetID, adminID int64) string {
	if !m.store.Unmute(ctx, targetID) {
		return m.localizer.Default(i18n.MsgActionFailed, nil)
	}
	m.metrics.RecordCommandExecuted("unmute")
	m.logger.WithFields(logrus.Fields{
		"peer_id":   peerID,
		"target_id": targetID,
		"admin_id":  adminID,
	}).Info("User unmuted")
	return m.localizer.Default(i18n.MsgUnmuted, nil)
}

// Unban lifts a ban.
func (m *Moderator) Unban(ctx context.Context, peerID, targetID, adminID int64) string {
	if !m.store.Unban(ctx, targetID) {
		return m.localizer.Default(i18n.MsgActionFailed, nil)
	}
	m.metrics.RecordCommandExecuted("unban")
	m.logger.WithFields(logrus.Fields{
		"peer_id":   peerID,
		"target_id": targetID,
		"admin_id":  adminID,
	}).Info("User unbanned")
	return m.localizer.Default(i18n.MsgUnbanned, nil)
}

// FormatReason normalizes a free-form reason for the reply templates.
func FormatReason(reason string) string {
	if reason == "" {
		return ""
	}
	return fmt.Sprintf("Причина: %s", reason)
}
