package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		path := filepath.Join(cfg.Directory, lang+".json")
		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", path, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Default returns the message in the default language.
func (l *Localizer) Default(messageID string, data map[string]interface{}) string {
	return l.Get(l.defaultLanguage, messageID, data)
}

// Message IDs
const (
	MsgGreeting          = "greeting"
	MsgHelp              = "help"
	MsgTestOK            = "test_ok"
	MsgAIUnavailable     = "ai_unavailable"
	MsgBlockedLanguage   = "blocked_language"
	MsgBlockedHate       = "blocked_hate"
	MsgBlockedSpam       = "blocked_spam"
	MsgRankUp            = "rank_up"
	MsgRankInfo          = "rank_info"
	MsgRanksList         = "ranks_list"
	MsgTopHeader         = "top_header"
	MsgTopEmpty          = "top_empty"
	MsgStatus            = "status"
	MsgStatusOK          = "status_ok"
	MsgStatusBanned      = "status_banned"
	MsgStatusMuted       = "status_muted"
	MsgStats             = "stats"
	MsgNoPermission      = "no_permission"
	MsgCannotTargetAdmin = "cannot_target_admin"
	MsgUsageKick         = "usage_kick"
	MsgUsageMute         = "usage_mute"
	MsgUsageBan          = "usage_ban"
	MsgUsageWarn         = "usage_warn"
	MsgUsageUnmute       = "usage_unmute"
	MsgUsageUnban        = "usage_unban"
	MsgMentionInvalid    = "mention_invalid"
	MsgDurationInvalid   = "duration_invalid"
	MsgKicked            = "kicked"
	MsgKickFailed        = "kick_failed"
	MsgBannedUser        = "banned_user"
	MsgMutedUser         = "muted_user"
	MsgWarned            = "warned"
	MsgWarnedAutoMute    = "warned_automute"
	MsgWarnedAutoBan     = "warned_autoban"
	MsgUnmuted           = "unmuted"
	MsgUnbanned          = "unbanned"
	MsgActionFailed      = "action_failed"
	MsgError             = "error"
)
