package moderation

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/i18n"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testLocalizer(t *testing.T) *i18n.Localizer {
	t.Helper()
	loc, err := i18n.NewLocalizer(&config.I18nConfig{
		DefaultLanguage: "ru",
		Languages:       []string{"ru", "en"},
		Directory:       "../../../configs/i18n",
	})
	if err != nil {
		t.Fatalf("failed to load localizer: %v", err)
	}
	return loc
}

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	return NewFilter(&config.ModerationConfig{}, testLocalizer(t), middleware.NewMetrics(), testLogger())
}

func TestCheckBlocksByCategory(t *testing.T) {
	f := newTestFilter(t)

	cases := []struct {
		text   string
		reason string
	}{
		{"ну ты и дебил", ReasonInappropriate},
		{"я тебя ненавижу", ReasonHateSpeech},
		{"заработок без вложений, пиши в лс", ReasonSpam},
	}

	for _, tc := range cases {
		decision := f.Check(tc.text, 1, 2000000001)
		if decision.Allowed {
			t.Errorf("Check(%q) allowed, want blocked", tc.text)
			continue
		}
		if decision.Reason != tc.reason {
			t.Errorf("Check(%q) reason = %q, want %q", tc.text, decision.Reason, tc.reason)
		}
		if decision.Response == "" {
			t.Errorf("Check(%q) has no refusal text", tc.text)
		}
	}
}

func TestCheckIsCaseInsensitive(t *testing.T) {
	f := newTestFilter(t)

	if f.Check("ДЕБИЛ", 1, 1).Allowed {
		t.Error("uppercase match slipped through")
	}
}

func TestCheckFirstCategoryWins(t *testing.T) {
	f := newTestFilter(t)

	// The text matches both inappropriate language and spam; category
	// order decides the reason.
	decision := f.Check("дебил, купить слона", 1, 1)
	if decision.Allowed {
		t.Fatal("expected blocked")
	}
	if decision.Reason != ReasonInappropriate {
		t.Errorf("reason = %q, want %q", decision.Reason, ReasonInappropriate)
	}
}

func TestCheckAllowsCleanText(t *testing.T) {
	f := newTestFilter(t)

	for _, text := range []string{"", "привет, как дела?", "расскажи про космос"} {
		if d := f.Check(text, 1, 1); !d.Allowed {
			t.Errorf("Check(%q) blocked with reason %q", text, d.Reason)
		}
	}
}

func TestCheckUsesConfiguredWords(t *testing.T) {
	f := NewFilter(&config.ModerationConfig{
		Spam: []string{"криптобиржа"},
	}, testLocalizer(t), middleware.NewMetrics(), testLogger())

	if f.Check("лучшая криптобиржа", 1, 1).Allowed {
		t.Error("configured spam word not blocked")
	}
	// Defaults for spam are replaced, other categories keep theirs.
	if !f.Check("реклама", 1, 1).Allowed {
		t.Error("default spam word still active after override")
	}
	if f.Check("дебил", 1, 1).Allowed {
		t.Error("default inappropriate words lost")
	}
}
