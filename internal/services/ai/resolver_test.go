package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/i18n"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
	"github.com/fusionbot-vk/fusionbot/internal/services/cache"
	"github.com/fusionbot-vk/fusionbot/internal/services/moderation"
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

// completionServer returns an OpenAI-style server answering with text, or
// failing with status when text is empty.
func completionServer(t *testing.T, text string, status int, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if text == "" {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": text}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, endpoints []config.ModelEndpoint, cacheEnabled bool) *Resolver {
	t.Helper()
	loc := testLocalizer(t)
	metrics := middleware.NewMetrics()
	log := testLogger()

	filter := moderation.NewFilter(&config.ModerationConfig{}, loc, metrics, log)
	respCache := cache.NewResponseCache(&config.CacheConfig{
		Enabled:         cacheEnabled,
		TTL:             time.Minute,
		CleanupInterval: time.Minute,
	}, metrics, log)

	return NewResolver(&config.ModelsConfig{
		Endpoints:      endpoints,
		RequestTimeout: 5 * time.Second,
		Temperature:    0.7,
		MaxTokens:      100,
	}, filter, respCache, loc, metrics, log)
}

func TestResolveFallsThroughToNextProvider(t *testing.T) {
	var firstHits, secondHits, thirdHits atomic.Int64
	failing := completionServer(t, "", http.StatusInternalServerError, &firstHits)
	working := completionServer(t, "Ответ от второго", 0, &secondHits)
	unused := completionServer(t, "Никогда", 0, &thirdHits)

	r := newTestResolver(t, []config.ModelEndpoint{
		{Name: "a", BaseURL: failing.URL, Models: []string{"m1"}},
		{Name: "b", BaseURL: working.URL, Models: []string{"m2"}},
		{Name: "c", BaseURL: unused.URL, Models: []string{"m3"}},
	}, false)

	got := r.Resolve(context.Background(), "расскажи про космос", KindChat, 1, 1)
	if got != "Ответ от второго" {
		t.Errorf("Resolve = %q, want answer from second provider", got)
	}
	if firstHits.Load() != 1 || secondHits.Load() != 1 {
		t.Errorf("provider hits = %d/%d, want 1/1", firstHits.Load(), secondHits.Load())
	}
	if thirdHits.Load() != 0 {
		t.Error("third provider was called after a success")
	}
}

func TestResolveTriesAllModelsOfAnEndpoint(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		hits.Add(1)
		if req.Model == "bad" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Ответ второй модели"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	r := newTestResolver(t, []config.ModelEndpoint{
		{Name: "a", BaseURL: srv.URL, Models: []string{"bad", "good"}},
	}, false)

	got := r.Resolve(context.Background(), "расскажи про космос", KindChat, 1, 1)
	if got != "Ответ второй модели" {
		t.Errorf("Resolve = %q", got)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestResolveIsTotal(t *testing.T) {
	failing := completionServer(t, "", http.StatusInternalServerError, nil)

	r := newTestResolver(t, []config.ModelEndpoint{
		{Name: "a", BaseURL: failing.URL, Models: []string{"m1", "m2"}},
	}, false)

	got := r.Resolve(context.Background(), "расскажи про космос", KindChat, 1, 1)
	if got == "" {
		t.Fatal("Resolve returned empty text with all providers down")
	}
	want := testLocalizer(t).Default(i18n.MsgAIUnavailable, nil)
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveSkipsEmptyAnswers(t *testing.T) {
	empty := completionServer(t, "<s></s>", 0, nil)
	working := completionServer(t, "Настоящий ответ", 0, nil)

	r := newTestResolver(t, []config.ModelEndpoint{
		{Name: "a", BaseURL: empty.URL, Models: []string{"m1"}},
		{Name: "b", BaseURL: working.URL, Models: []string{"m2"}},
	}, false)

	got := r.Resolve(context.Background(), "расскажи про космос", KindChat, 1, 1)
	if got != "Настоящий ответ" {
		t.Errorf("Resolve = %q, want fallback past the empty answer", got)
	}
}

func TestResolveBlockedQuestionSkipsProviders(t *testing.T) {
	var hits atomic.Int64
	srv := completionServer(t, "Ответ", 0, &hits)

	r := newTestResolver(t, []config.ModelEndpoint{
		{Name: "a", BaseURL: srv.URL, Models: []string{"m1"}},
	}, false)

	got := r.Resolve(context.Background(), "ненавижу всех", KindChat, 1, 1)
	if got == "" {
		t.Fatal("blocked question got no refusal")
	}
	if hits.Load() != 0 {
		t.Error("provider was called for a blocked question")
	}
}

func TestResolveCachesAnswers(t *testing.T) {
	var hits atomic.Int64
	srv := completionServer(t, "Кэшируемый ответ", 0, &hits)

	r := newTestResolver(t, []config.ModelEndpoint{
		{Name: "a", BaseURL: srv.URL, Models: []string{"m1"}},
	}, true)

	ctx := context.Background()
	first := r.Resolve(ctx, "расскажи про космос", KindChat, 1, 1)
	second := r.Resolve(ctx, "Расскажи Про Космос", KindChat, 2, 1)

	if first != second {
		t.Errorf("cached answer differs: %q vs %q", first, second)
	}
	if hits.Load() != 1 {
		t.Errorf("provider hits = %d, want 1", hits.Load())
	}
}
