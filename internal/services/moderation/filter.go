package moderation

import (
	"strings"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/i18n"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
	"github.com/fusionbot-vk/fusionbot/internal/models"
	"github.com/sirupsen/logrus"
)

// Reason identifiers attached to rejections.
const (
	ReasonInappropriate = "inappropriate_language"
	ReasonHateSpeech    = "hate_speech"
	ReasonSpam          = "spam"
)

var defaultInappropriate = []string{
	"хуй", "блядь", "пизда", "ебал", "сука", "мудак", "дебил", "дибил",
	"говно", "срать", "жопа", "пидор",
}

var defaultHateSpeech = []string{
	"убить", "смерть", "ненавижу", "убью", "сдохни",
	"фашист", "нацист", "расист",
}

var defaultSpam = []string{
	"реклама", "купить", "продать", "скидка", "акция",
	"заработок", "деньги легко", "без вложений",
}

type category struct {
	reason   string
	name     string
	words    []string
	response string
}

// Filter screens message text against keyword categories before any other
// processing. Checks are pure and synchronous; the only side effects of a
// rejection are a counter increment and an audit log entry.
type Filter struct {
	categories []category
	localizer  *i18n.Localizer
	metrics    *middleware.Metrics
	logger     *logrus.Logger
}

// NewFilter builds the filter. Category lists come from config and fall back
// to the built-in defaults. Priority order is fixed: inappropriate language,
// then hate speech, then spam.
func NewFilter(cfg *config.ModerationConfig, localizer *i18n.Localizer, metrics *middleware.Metrics, logger *logrus.Logger) *Filter {
	inappropriate := cfg.Inappropriate
	if len(inappropriate) == 0 {
		inappropriate = defaultInappropriate
	}
	hate := cfg.HateSpeech
	if len(hate) == 0 {
		hate = defaultHateSpeech
	}
	spam := cfg.Spam
	if len(spam) == 0 {
		spam = defaultSpam
	}

	return &Filter{
		categories: []category{
			{ReasonInappropriate, "Неподходящий язык", inappropriate, i18n.MsgBlockedLanguage},
			{ReasonHateSpeech, "Язык ненависти", hate, i18n.MsgBlockedHate},
			{ReasonSpam, "Спам/реклама", spam, i18n.MsgBlockedSpam},
		},
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
	}
}

// Check screens one message. The first matching category wins. The raw
// message text is deliberately kept out of the audit log.
func (f *Filter) Check(text string, userID, peerID int64) models.ModerationDecision {
	lower := strings.ToLower(text)

	for _, cat := range f.categories {
		for _, word := range cat.words {
			if word != "" && strings.Contains(lower, word) {
				f.metrics.RecordMessageBlocked(cat.reason)
				f.logger.WithFields(logrus.Fields{
					"category": cat.name,
					"reason":   cat.reason,
					"user_id":  userID,
					"peer_id":  peerID,
				}).Info("Message blocked")

				return models.ModerationDecision{
					Allowed:  false,
					Category: cat.name,
					Reason:   cat.reason,
					Response: f.localizer.Default(cat.response, nil),
				}
			}
		}
	}

	return models.ModerationDecision{Allowed: true}
}
