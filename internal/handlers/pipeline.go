package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/i18n"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
	"github.com/fusionbot-vk/fusionbot/internal/models"
	"github.com/fusionbot-vk/fusionbot/internal/services/moderation"
	"github.com/fusionbot-vk/fusionbot/internal/services/reputation"
	"github.com/fusionbot-vk/fusionbot/internal/transport"
)

// Stats tracks pipeline counters exposed through the stats command.
type Stats struct {
	Start     time.Time
	processed atomic.Int64
}

// NewStats creates stats anchored at the current time.
func NewStats() *Stats {
	return &Stats{Start: time.Now()}
}

// Processed returns the number of handled messages.
func (s *Stats) Processed() int64 {
	return s.processed.Load()
}

// Pipeline drives the bot: it consumes inbound events, runs the access
// checks, awards experience, dispatches commands and sends replies through
// a global send throttle.
type Pipeline struct {
	cfg         *config.Config
	transport   transport.Transport
	dispatcher  *Dispatcher
	store       *reputation.Manager
	filter      *moderation.Filter
	limiter     *middleware.RateLimiter
	localizer   *i18n.Localizer
	metrics     *middleware.Metrics
	logger      *logrus.Logger
	stats       *Stats
	sendLimiter *rate.Limiter
}

// NewPipeline wires the pipeline together.
func NewPipeline(cfg *config.Config, tr transport.Transport, dispatcher *Dispatcher, store *reputation.Manager, filter *moderation.Filter, limiter *middleware.RateLimiter, localizer *i18n.Localizer, metrics *middleware.Metrics, logger *logrus.Logger, stats *Stats) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		transport:   tr,
		dispatcher:  dispatcher,
		store:       store,
		filter:      filter,
		limiter:     limiter,
		localizer:   localizer,
		metrics:     metrics,
		logger:      logger,
		stats:       stats,
		sendLimiter: rate.NewLimiter(rate.Every(cfg.Bot.SendInterval), 1),
	}
}

// Run processes events until the context is cancelled or the event
// channel closes.
func (p *Pipeline) Run(ctx context.Context) {
	events := p.transport.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.Handle(ctx, ev)
		}
	}
}

// Handle processes a single event. A panic in a handler is contained so
// one bad message cannot take the bot down.
func (p *Pipeline) Handle(ctx context.Context, ev models.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"panic":   r,
				"user_id": ev.UserID,
				"peer_id": ev.PeerID,
			}).Error("Recovered from panic while handling message")
		}
	}()

	p.metrics.RecordMessageReceived()

	// Banned and muted users are ignored outright.
	if p.store.IsBanned(ctx, ev.UserID) {
		p.metrics.RecordMessageProcessed("banned")
		return
	}
	if p.store.IsMuted(ctx, ev.UserID) {
		p.metrics.RecordMessageProcessed("muted")
		return
	}

	if decision := p.filter.Check(ev.Text, ev.UserID, ev.PeerID); !decision.Allowed {
		p.metrics.RecordMessageProcessed("blocked")
		p.send(ctx, ev.PeerID, decision.Response)
		return
	}

	if !p.limiter.Allow(ev.UserID) {
		p.metrics.RecordMessageProcessed("rate_limited")
		return
	}

	p.store.UpsertUser(ctx, ev.UserID, ev.FirstName, ev.LastName)
	p.store.RecordActivity(ctx, ev.UserID, 1)
	if p.store.RecomputeRank(ctx, ev.UserID) {
		p.metrics.RecordRankUp()
		p.notifyRankUp(ctx, ev)
	}

	reply := p.dispatcher.Dispatch(ctx, ev)
	p.stats.processed.Add(1)
	p.metrics.RecordMessageProcessed("ok")

	if reply != "" {
		p.send(ctx, ev.PeerID, reply)
	}
}

func (p *Pipeline) notifyRankUp(ctx context.Context, ev models.InboundEvent) {
	user := p.store.GetUser(ctx, ev.UserID)
	if user == nil {
		return
	}
	rank := reputation.RankByLevel(user.RankLevel)
	p.logger.WithFields(logrus.Fields{
		"user_id": ev.UserID,
		"rank":    rank.Name,
		"level":   rank.Level,
	}).Info("User ranked up")
	p.send(ctx, ev.PeerID, p.localizer.Default(i18n.MsgRankUp, map[string]interface{}{
		"Rank": rank.Name,
	}))
}

func (p *Pipeline) send(ctx context.Context, peerID int64, text string) {
	text = truncate(text, p.cfg.Bot.MaxMessageLength)
	if text == "" {
		return
	}

	if err := p.sendLimiter.Wait(ctx); err != nil {
		return
	}

	if err := p.transport.Send(ctx, models.OutboundReply{PeerID: peerID, Text: text}); err != nil {
		p.logger.WithFields(logrus.Fields{
			"peer_id": peerID,
			"error":   err,
		}).Error("Failed to send reply")
	}
}

// truncate shortens text to at most max runes, marking the cut.
func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
