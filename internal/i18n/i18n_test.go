package i18n

import (
	"strings"
	"testing"

	"github.com/fusionbot-vk/fusionbot/internal/config"
)

func newTestLocalizer(t *testing.T) *Localizer {
	t.Helper()
	loc, err := NewLocalizer(&config.I18nConfig{
		DefaultLanguage: "ru",
		Languages:       []string{"ru", "en"},
		Directory:       "../../configs/i18n",
	})
	if err != nil {
		t.Fatalf("failed to load localizer: %v", err)
	}
	return loc
}

func TestGetKnownMessage(t *testing.T) {
	loc := newTestLocalizer(t)

	if got := loc.Get("ru", MsgTestOK, nil); got == MsgTestOK || got == "" {
		t.Errorf("Get(ru, test_ok) = %q", got)
	}
	if got := loc.Get("en", MsgTestOK, nil); got == MsgTestOK || got == "" {
		t.Errorf("Get(en, test_ok) = %q", got)
	}
}

func TestGetTemplateData(t *testing.T) {
	loc := newTestLocalizer(t)

	got := loc.Get("ru", MsgRankUp, map[string]interface{}{"Rank": "Звезда"})
	if !strings.Contains(got, "Звезда") {
		t.Errorf("rank_up = %q, want the rank substituted", got)
	}
}

func TestGetFallsBackToDefaultLanguage(t *testing.T) {
	loc := newTestLocalizer(t)

	ru := loc.Get("ru", MsgGreeting, nil)
	if got := loc.Get("de", MsgGreeting, nil); got != ru {
		t.Errorf("unknown language returned %q, want default %q", got, ru)
	}
}

func TestGetUnknownMessageReturnsID(t *testing.T) {
	loc := newTestLocalizer(t)

	if got := loc.Get("ru", "nonexistent_message", nil); got != "nonexistent_message" {
		t.Errorf("unknown id returned %q", got)
	}
}

func TestAllMessageIDsResolve(t *testing.T) {
	loc := newTestLocalizer(t)

	ids := []string{
		MsgGreeting, MsgHelp, MsgTestOK, MsgAIUnavailable,
		MsgBlockedLanguage, MsgBlockedHate, MsgBlockedSpam,
		MsgRanksList, MsgTopHeader, MsgTopEmpty,
		MsgStatusOK, MsgStatusBanned,
		MsgCannotTargetAdmin,
		MsgUsageKick, MsgUsageMute, MsgUsageBan, MsgUsageWarn, MsgUsageUnmute, MsgUsageUnban,
		MsgMentionInvalid, MsgDurationInvalid,
		MsgKicked, MsgKickFailed, MsgUnmuted, MsgUnbanned,
		MsgActionFailed, MsgError,
	}

	for _, lang := range []string{"ru", "en"} {
		for _, id := range ids {
			if got := loc.Get(lang, id, nil); got == id {
				t.Errorf("message %q missing for language %q", id, lang)
			}
		}
	}
}
