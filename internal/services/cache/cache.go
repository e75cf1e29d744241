package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
)

// ResponseCache stores AI answers keyed by the normalized question and
// prompt kind, so repeated questions skip the provider chain entirely.
type ResponseCache struct {
	store   *gocache.Cache
	enabled bool
	logger  *logrus.Logger
	metrics *middleware.Metrics
}

// NewResponseCache creates a response cache from config.
func NewResponseCache(cfg *config.CacheConfig, metrics *middleware.Metrics, logger *logrus.Logger) *ResponseCache {
	return &ResponseCache{
		store:   gocache.New(cfg.TTL, cfg.CleanupInterval),
		enabled: cfg.Enabled,
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns a cached answer for the question, if any.
func (c *ResponseCache) Get(question, kind string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	key := cacheKey(question, kind)
	if v, found := c.store.Get(key); found {
		if answer, ok := v.(string); ok {
			c.metrics.RecordCacheHit()
			c.logger.WithField("kind", kind).Debug("Cache hit")
			return answer, true
		}
	}

	c.metrics.RecordCacheMiss()
	return "", false
}

// Set stores an answer for the question.
func (c *ResponseCache) Set(question, kind, answer string) {
	if !c.enabled || answer == "" {
		return
	}
	c.store.Set(cacheKey(question, kind), answer, gocache.DefaultExpiration)
}

// ItemCount returns the number of cached answers.
func (c *ResponseCache) ItemCount() int {
	return c.store.ItemCount()
}

func cacheKey(question, kind string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(kind + ":" + normalized))
	return hex.EncodeToString(sum[:])
}
