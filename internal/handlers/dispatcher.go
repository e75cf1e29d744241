package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/i18n"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
	"github.com/fusionbot-vk/fusionbot/internal/models"
	"github.com/fusionbot-vk/fusionbot/internal/services/ai"
	"github.com/fusionbot-vk/fusionbot/internal/services/moderation"
	"github.com/fusionbot-vk/fusionbot/internal/services/reputation"
	"github.com/fusionbot-vk/fusionbot/internal/transport"
)

const defaultMuteMinutes = 10

type route struct {
	name   string
	match  func(text string) bool
	handle func(ctx context.Context, ev models.InboundEvent, text string) string
}

// Dispatcher maps message text to handlers. Routes are tried in order and
// the first match wins, so specific commands shadow looser patterns.
type Dispatcher struct {
	cfg       *config.Config
	store     *reputation.Manager
	resolver  ai.Service
	moderator *moderation.Moderator
	admins    transport.AdminChecker
	localizer *i18n.Localizer
	metrics   *middleware.Metrics
	logger    *logrus.Logger
	stats     *Stats
	routes    []route
}

// NewDispatcher creates a dispatcher. admins may be nil when the platform
// cannot report chat managers.
func NewDispatcher(cfg *config.Config, store *reputation.Manager, resolver ai.Service, moderator *moderation.Moderator, admins transport.AdminChecker, localizer *i18n.Localizer, metrics *middleware.Metrics, logger *logrus.Logger, stats *Stats) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		moderator: moderator,
		admins:    admins,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
		stats:     stats,
	}
	d.routes = d.buildRoutes()
	return d
}

func exact(words ...string) func(string) bool {
	return func(text string) bool {
		for _, w := range words {
			if text == w {
				return true
			}
		}
		return false
	}
}

func prefix(words ...string) func(string) bool {
	return func(text string) bool {
		for _, w := range words {
			// The bare command word matches too so it can answer with usage.
			if text == w || strings.HasPrefix(text, w+" ") {
				return true
			}
		}
		return false
	}
}

func contains(words ...string) func(string) bool {
	return func(text string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
}

func (d *Dispatcher) buildRoutes() []route {
	return []route{
		// Utility commands come first so nothing shadows them.
		{"test", exact("тест", "test"), d.handleTest},
		{"help", exact("помощь", "команды", "help"), d.handleHelp},
		{"status", exact("статус", "status"), d.handleStatus},
		{"stats", exact("статистика", "stats"), d.handleStats},
		{"ranks", exact("ранги", "ranks"), d.handleRanks},
		{"top", exact("топ", "top"), d.handleTop},
		{"rank", exact("ранг", "rank"), d.handleRank},

		// Direct question to the AI.
		{"ask", prefix("ии", "ai"), d.handleAsk},

		// Content generators.
		{"joke", exact("шутка", "joke"), d.generator(ai.KindJoke, "Расскажи шутку")},
		{"story", exact("история", "story"), d.generator(ai.KindStory, "Расскажи историю")},
		{"compliment", exact("комплимент", "compliment"), d.generator(ai.KindCompliment, "Сделай комплимент")},
		{"smalltalk_mood", exact("как дела", "как дела?"), d.generator(ai.KindChat, "Как у тебя дела?")},
		{"smalltalk_about", exact("расскажи о себе"), d.generator(ai.KindChat, "Расскажи о себе")},

		// Moderation commands.
		{"kick", prefix("кик", "kick"), d.modCommand(reputation.PermKick, d.handleKick, i18n.MsgUsageKick)},
		{"mute", prefix("мут", "mute"), d.modCommand(reputation.PermMute, d.handleMute, i18n.MsgUsageMute)},
		{"ban", prefix("бан", "ban"), d.modCommand(reputation.PermBan, d.handleBan, i18n.MsgUsageBan)},
		{"warn", prefix("варн", "warn"), d.modCommand(reputation.PermWarn, d.handleWarn, i18n.MsgUsageWarn)},
		{"unmute", prefix("размут", "unmute"), d.modCommand(reputation.PermMute, d.handleUnmute, i18n.MsgUsageUnmute)},
		{"unban", prefix("разбан", "unban"), d.modCommand(reputation.PermBan, d.handleUnban, i18n.MsgUsageUnban)},

		// Loose matches last.
		{"greeting", contains("привет", "hello", "hi"), d.handleGreeting},
	}
}

// Dispatch routes the message and returns the reply text. An empty string
// means no reply should be sent.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.InboundEvent) string {
	text := strings.ToLower(strings.TrimSpace(ev.Text))
	if text == "" {
		return ""
	}

	for _, r := range d.routes {
		if r.match(text) {
			d.metrics.RecordCommandExecuted(r.name)
			return r.handle(ctx, ev, text)
		}
	}

	// Long enough free-form messages go to the AI as small talk.
	if utf8.RuneCountInString(text) > d.cfg.Models.SmallTalkMinLen {
		return d.resolver.Resolve(ctx, ev.Text, ai.KindChat, ev.UserID, ev.PeerID)
	}
	return ""
}

func (d *Dispatcher) handleTest(ctx context.Context, ev models.InboundEvent, text string) string {
	return d.localizer.Default(i18n.MsgTestOK, nil)
}

func (d *Dispatcher) handleHelp(ctx context.Context, ev models.InboundEvent, text string) string {
	return d.localizer.Default(i18n.MsgHelp, nil)
}

func (d *Dispatcher) handleGreeting(ctx context.Context, ev models.InboundEvent, text string) string {
	return d.localizer.Default(i18n.MsgGreeting, nil)
}

func (d *Dispatcher) handleStatus(ctx context.Context, ev models.InboundEvent, text string) string {
	state := d.localizer.Default(i18n.MsgStatusOK, nil)
	switch {
	case d.store.IsBanned(ctx, ev.UserID):
		return d.localizer.Default(i18n.MsgStatusBanned, nil)
	case d.store.IsMuted(ctx, ev.UserID):
		until := d.store.MutedUntil(ctx, ev.UserID)
		data := map[string]interface{}{"Until": ""}
		if until != nil {
			data["Until"] = until.Format("15:04")
		}
		return d.localizer.Default(i18n.MsgStatusMuted, data)
	}

	user := d.store.GetUser(ctx, ev.UserID)
	if user == nil {
		return d.localizer.Default(i18n.MsgError, nil)
	}
	rank := reputation.RankByLevel(user.RankLevel)
	return d.localizer.Default(i18n.MsgStatus, map[string]interface{}{
		"State":      state,
		"Rank":       rank.Name,
		"Experience": user.Experience,
		"Warnings":   user.Warnings,
	})
}

func (d *Dispatcher) handleStats(ctx context.Context, ev models.InboundEvent, text string) string {
	uptime := time.Since(d.stats.Start).Round(time.Second)
	return d.localizer.Default(i18n.MsgStats, map[string]interface{}{
		"Uptime":    uptime.String(),
		"Processed": d.stats.Processed(),
	})
}

func (d *Dispatcher) handleRanks(ctx context.Context, ev models.InboundEvent, text string) string {
	return d.localizer.Default(i18n.MsgRanksList, nil)
}

func (d *Dispatcher) handleRank(ctx context.Context, ev models.InboundEvent, text string) string {
	user := d.store.GetUser(ctx, ev.UserID)
	if user == nil {
		return d.localizer.Default(i18n.MsgError, nil)
	}

	rank := reputation.RankByLevel(user.RankLevel)
	toNext := rank.NextExperience() - user.Experience
	if toNext < 0 {
		toNext = 0
	}
	return d.localizer.Default(i18n.MsgRankInfo, map[string]interface{}{
		"Rank":        rank.Name,
		"Experience":  user.Experience,
		"Level":       rank.Level,
		"ToNext":      toNext,
		"Permissions": strings.Join(rank.Permissions, ", "),
	})
}

func (d *Dispatcher) handleTop(ctx context.Context, ev models.InboundEvent, text string) string {
	top := d.store.TopUsers(ctx, 10)
	if len(top) == 0 {
		return d.localizer.Default(i18n.MsgTopEmpty, nil)
	}

	var b strings.Builder
	b.WriteString(d.localizer.Default(i18n.MsgTopHeader, nil))
	for i, u := range top {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" {
			name = fmt.Sprintf("id%d", u.ID)
		}
		rank := reputation.RankByLevel(u.RankLevel)
		b.WriteString(fmt.Sprintf("\n%d. %s — %s (%d)", i+1, name, rank.Name, u.Experience))
	}
	return b.String()
}

func (d *Dispatcher) handleAsk(ctx context.Context, ev models.InboundEvent, text string) string {
	fields := strings.SplitN(text, " ", 2)
	if len(fields) < 2 {
		return ""
	}
	question := strings.TrimSpace(fields[1])
	if utf8.RuneCountInString(question) < d.cfg.Models.MinQuestionLen {
		return ""
	}
	return d.resolver.Resolve(ctx, question, ai.KindChat, ev.UserID, ev.PeerID)
}

func (d *Dispatcher) generator(kind ai.PromptKind, question string) func(context.Context, models.InboundEvent, string) string {
	return func(ctx context.Context, ev models.InboundEvent, text string) string {
		return d.resolver.Resolve(ctx, question, kind, ev.UserID, ev.PeerID)
	}
}

// effectiveRank resolves the rank used for permission checks. Platform
// managers act at the top level and bot-granted chat admins get a floor,
// regardless of earned experience.
func (d *Dispatcher) effectiveRank(ctx context.Context, ev models.InboundEvent) reputation.Rank {
	if d.admins != nil && d.admins.IsPlatformAdmin(ctx, ev.PeerID, ev.UserID) {
		return reputation.RankByLevel(reputation.MaxLevel)
	}

	level := reputation.MinLevel
	if user := d.store.GetUser(ctx, ev.UserID); user != nil {
		level = user.RankLevel
	}
	if d.store.IsAdmin(ctx, ev.UserID, ev.PeerID) && level < reputation.ChatAdminLevel {
		level = reputation.ChatAdminLevel
	}
	return reputation.RankByLevel(level)
}

type modHandler func(ctx context.Context, ev models.InboundEvent, targetID int64, args []string) string

func (d *Dispatcher) modCommand(perm string, handler modHandler, usageMsg string) func(context.Context, models.InboundEvent, string) string {
	return func(ctx context.Context, ev models.InboundEvent, text string) string {
		rank := d.effectiveRank(ctx, ev)
		if !rank.Has(perm) {
			return d.localizer.Default(i18n.MsgNoPermission, map[string]interface{}{
				"Rank": rank.Name,
			})
		}

		text = strings.TrimSpace(ev.Text)
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return d.localizer.Default(usageMsg, nil)
		}

		targetID, args := ParseTarget(text[len(fields[0]):])
		if targetID == 0 {
			return d.localizer.Default(i18n.MsgMentionInvalid, nil)
		}

		return handler(ctx, ev, targetID, args)
	}
}

func (d *Dispatcher) handleKick(ctx context.Context, ev models.InboundEvent, targetID int64, args []string) string {
	return d.moderator.Kick(ctx, ev.PeerID, targetID, ev.UserID)
}

func (d *Dispatcher) handleMute(ctx context.Context, ev models.InboundEvent, targetID int64, args []string) string {
	minutes := defaultMuteMinutes
	reasonArgs := args
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return d.localizer.Default(i18n.MsgDurationInvalid, nil)
		}
		minutes = n
		reasonArgs = args[1:]
	}
	reason := moderation.FormatReason(strings.Join(reasonArgs, " "))
	return d.moderator.Mute(ctx, ev.PeerID, targetID, ev.UserID, time.Duration(minutes)*time.Minute, reason)
}

func (d *Dispatcher) handleBan(ctx context.Context, ev models.InboundEvent, targetID int64, args []string) string {
	reason := moderation.FormatReason(strings.Join(args, " "))
	return d.moderator.Ban(ctx, ev.PeerID, targetID, ev.UserID, reason)
}

func (d *Dispatcher) handleWarn(ctx context.Context, ev models.InboundEvent, targetID int64, args []string) string {
	reason := moderation.FormatReason(strings.Join(args, " "))
	return d.moderator.Warn(ctx, ev.PeerID, targetID, ev.UserID, reason)
}

func (d *Dispatcher) handleUnmute(ctx context.Context, ev models.InboundEvent, targetID int64, args []string) string {
	return d.moderator.Unmute(ctx, ev.PeerID, targetID, ev.UserID)
}

func (d *Dispatcher) handleUnban(ctx context.Context, ev models.InboundEvent, targetID int64, args []string) string {
	return d.moderator.Unban(ctx, ev.PeerID, targetID, ev.UserID)
}
