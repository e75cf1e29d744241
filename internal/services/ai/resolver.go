package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/i18n"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
	"github.com/fusionbot-vk/fusionbot/internal/models"
	"github.com/fusionbot-vk/fusionbot/internal/services/cache"
	"github.com/fusionbot-vk/fusionbot/internal/services/moderation"
)

// Service resolves a user question to a reply text. It is total: the
// returned string is always non-empty and safe to send.
type Service interface {
	Resolve(ctx context.Context, question string, kind PromptKind, userID, peerID int64) string
}

// Resolver walks an ordered list of OpenAI-compatible endpoints and their
// models until one of them produces a usable answer.
type Resolver struct {
	cfg       *config.ModelsConfig
	filter    *moderation.Filter
	cache     *cache.ResponseCache
	localizer *i18n.Localizer
	metrics   *middleware.Metrics
	logger    *logrus.Logger
	client    *http.Client
}

// NewResolver creates a resolver over the configured endpoints.
func NewResolver(cfg *config.ModelsConfig, filter *moderation.Filter, respCache *cache.ResponseCache, localizer *i18n.Localizer, metrics *middleware.Metrics, logger *logrus.Logger) *Resolver {
	return &Resolver{
		cfg:       cfg,
		filter:    filter,
		cache:     respCache,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// Resolve answers the question. Blocked questions get the moderation
// refusal, cached questions skip the providers, and when every provider
// fails the caller still receives a localized apology.
func (r *Resolver) Resolve(ctx context.Context, question string, kind PromptKind, userID, peerID int64) string {
	if decision := r.filter.Check(question, userID, peerID); !decision.Allowed {
		return decision.Response
	}

	if answer, found := r.cache.Get(question, string(kind)); found {
		return answer
	}

	messages := []models.Message{
		{Role: "system", Content: SystemPrompt(kind)},
		{Role: "user", Content: question},
	}

	for _, endpoint := range r.cfg.Endpoints {
		for _, model := range endpoint.Models {
			answer, err := r.tryModel(ctx, endpoint, model, messages)
			if err != nil {
				r.logger.WithFields(logrus.Fields{
					"endpoint": endpoint.Name,
					"model":    model,
					"error":    err,
				}).Warn("AI attempt failed, trying next")
				continue
			}
			if answer == "" {
				r.logger.WithFields(logrus.Fields{
					"endpoint": endpoint.Name,
					"model":    model,
				}).Warn("AI attempt produced empty answer, trying next")
				continue
			}

			r.cache.Set(question, string(kind), answer)
			return answer
		}
	}

	r.metrics.RecordAIChainExhausted()
	r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"peer_id": peerID,
	}).Error("All AI providers failed")
	return r.localizer.Default(i18n.MsgAIUnavailable, nil)
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *Resolver) tryModel(ctx context.Context, endpoint config.ModelEndpoint, model string, messages []models.Message) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := endpoint.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if endpoint.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+endpoint.APIKey)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.metrics.RecordAIRequest(endpoint.Name, model, "error", time.Since(start))
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		r.metrics.RecordAIRequest(endpoint.Name, model, "error", time.Since(start))
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.metrics.RecordAIRequest(endpoint.Name, model, "error", time.Since(start))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateForLog(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		r.metrics.RecordAIRequest(endpoint.Name, model, "error", time.Since(start))
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		r.metrics.RecordAIRequest(endpoint.Name, model, "error", time.Since(start))
		return "", fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		r.metrics.RecordAIRequest(endpoint.Name, model, "error", time.Since(start))
		return "", fmt.Errorf("response has no choices")
	}

	r.metrics.RecordAIRequest(endpoint.Name, model, "success", time.Since(start))
	return CleanResponse(parsed.Choices[0].Message.Content), nil
}

func truncateForLog(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
