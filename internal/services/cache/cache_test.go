package cache

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
)

func newTestCache(enabled bool) *ResponseCache {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewResponseCache(&config.CacheConfig{
		Enabled:         enabled,
		TTL:             time.Minute,
		CleanupInterval: time.Minute,
	}, middleware.NewMetrics(), log)
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(true)

	if _, found := c.Get("вопрос", "chat"); found {
		t.Fatal("empty cache reported a hit")
	}

	c.Set("вопрос", "chat", "ответ")
	got, found := c.Get("вопрос", "chat")
	if !found || got != "ответ" {
		t.Fatalf("Get = %q/%v", got, found)
	}
}

func TestCacheKeyNormalization(t *testing.T) {
	c := newTestCache(true)
	c.Set("  Вопрос Про Космос ", "chat", "ответ")

	if _, found := c.Get("вопрос про космос", "chat"); !found {
		t.Error("normalized question missed the cache")
	}
	if _, found := c.Get("вопрос про космос", "joke"); found {
		t.Error("different kind shares a cache slot")
	}
}

func TestCacheDisabled(t *testing.T) {
	c := newTestCache(false)
	c.Set("вопрос", "chat", "ответ")

	if _, found := c.Get("вопрос", "chat"); found {
		t.Error("disabled cache returned a hit")
	}
}

func TestCacheNeverStoresEmptyAnswers(t *testing.T) {
	c := newTestCache(true)
	c.Set("вопрос", "chat", "")

	if c.ItemCount() != 0 {
		t.Error("empty answer was cached")
	}
}
