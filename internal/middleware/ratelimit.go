package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fusionbot-vk/fusionbot/internal/config"
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a minimum interval between messages per user.
// Idle entries are evicted in the background so the map does not grow
// with every user the bot has ever seen.
type RateLimiter struct {
	users     map[int64]*userLimiter
	mu        sync.RWMutex
	interval  time.Duration
	retention time.Duration
	enabled   bool
	logger    *logrus.Logger
	metrics   *Metrics
}

// NewRateLimiter creates a per-user rate limiter from config.
func NewRateLimiter(cfg *config.RateLimitConfig, metrics *Metrics, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		users:     make(map[int64]*userLimiter),
		interval:  cfg.MinInterval,
		retention: cfg.Retention,
		enabled:   cfg.Enabled,
		logger:    logger,
		metrics:   metrics,
	}
}

// Allow reports whether the user may send a message now. A first message
// is always allowed; subsequent ones within the minimum interval are not.
func (rl *RateLimiter) Allow(userID int64) bool {
	if !rl.enabled {
		return true
	}

	now := time.Now()

	rl.mu.RLock()
	ul, exists := rl.users[userID]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Re-check: another goroutine may have created it meanwhile.
		ul, exists = rl.users[userID]
		if !exists {
			ul = &userLimiter{
				limiter: rate.NewLimiter(rate.Every(rl.interval), 1),
			}
			rl.users[userID] = ul
		}
		ul.lastSeen = now
		rl.mu.Unlock()
	} else {
		rl.mu.Lock()
		ul.lastSeen = now
		rl.mu.Unlock()
	}

	allowed := ul.limiter.Allow()
	if !allowed {
		rl.metrics.RecordRateLimitDrop()
		rl.logger.WithField("user_id", userID).Debug("Message dropped by rate limit")
	}
	return allowed
}

// Run sweeps idle entries until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.retention)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	cutoff := time.Now().Add(-rl.retention)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for id, ul := range rl.users {
		if ul.lastSeen.Before(cutoff) {
			delete(rl.users, id)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(rl.users),
		}).Debug("Rate limiter sweep finished")
	}
}

// Size returns the number of tracked users.
func (rl *RateLimiter) Size() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.users)
}
