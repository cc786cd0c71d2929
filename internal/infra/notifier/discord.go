package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/observability/logging"
	"newsqueue/internal/observability/tracing"
	"newsqueue/internal/resilience/circuitbreaker"
)

// DiscordConfig contains configuration for a Discord webhook chat target.
type DiscordConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// DiscordTarget dispatches QueueItems to Discord via webhook.
type DiscordTarget struct {
	config         DiscordConfig
	httpClient     *http.Client
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewDiscordTarget builds a target with a rate limiter tuned to Discord's
// webhook budget (30 req/min) and a circuit breaker shared across calls.
func NewDiscordTarget(config DiscordConfig) *DiscordTarget {
	return &DiscordTarget{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		rateLimiter:    NewRateLimiter(0.5, 3),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ChatDispatchConfig()),
	}
}

func (d *DiscordTarget) Name() string { return "discord" }

// DiscordWebhookPayload represents the JSON payload sent to Discord webhook.
type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	URL         string             `json:"url"`
	Color       int                `json:"color"`
	Footer      DiscordEmbedFooter `json:"footer"`
	Timestamp   string             `json:"timestamp,omitempty"`
}

type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// DiscordErrorResponse represents the error response from Discord API.
type DiscordErrorResponse struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"`
}

const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	truncationSuffix     = "..."
	discordBlueColor     = 5793266
)

// buildEmbedPayload formats a QueueItem as a Discord embed, per spec section
// 6's chat message fields (title, url, content, category, platform).
func (d *DiscordTarget) buildEmbedPayload(item *entity.QueueItem) DiscordWebhookPayload {
	title := item.Title
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}

	description := truncateSummary(item.Content, maxDescriptionLength, truncationSuffix)

	footer := item.Platform
	if item.Category != "" {
		footer = fmt.Sprintf("%s · %s", item.Platform, item.Category)
	}

	embed := DiscordEmbed{
		Title:       title,
		Description: description,
		URL:         item.URL,
		Color:       discordBlueColor,
		Footer:      DiscordEmbedFooter{Text: footer},
	}
	if item.PublishedAt != nil {
		embed.Timestamp = item.PublishedAt.Format(time.RFC3339)
	}

	return DiscordWebhookPayload{Embeds: []DiscordEmbed{embed}}
}

func (d *DiscordTarget) sendWebhookRequest(ctx context.Context, item *entity.QueueItem) error {
	payload := d.buildEmbedPayload(item)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Message: "discord rate limit exceeded", RetryAfter: extractRetryAfter(resp, body)}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("discord client error: %s", string(body))}
	}
	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("discord server error: %s", string(body))}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var discordErr DiscordErrorResponse
	if err := json.Unmarshal(body, &discordErr); err == nil && discordErr.RetryAfter > 0 {
		return time.Duration(discordErr.RetryAfter * float64(time.Second))
	}
	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}

// sendWebhookRequestWithRetry retries transient failures. 4xx (non-429)
// errors are returned immediately, wrapped in entity.ErrPermanent.
func (d *DiscordTarget) sendWebhookRequestWithRetry(ctx context.Context, item *entity.QueueItem) error {
	const (
		maxAttempts = 2
		baseDelay   = 5 * time.Second
	)

	logger := logging.WithRequestID(ctx, slog.Default())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := d.sendWebhookRequest(ctx, item)
		if err == nil {
			return nil
		}
		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			logger.Warn("discord rate limit hit, backing off",
				slog.String("unique_id", item.UniqueID),
				slog.Duration("retry_after", rateLimitErr.RetryAfter))
			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("%w: context canceled during rate limit backoff: %v", entity.ErrTransient, ctx.Err())
			}
		}

		if !isRetryableError(err) {
			return fmt.Errorf("%w: %v", entity.ErrPermanent, err)
		}

		if attempt < maxAttempts {
			delay := baseDelay * time.Duration(attempt)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("%w: context canceled during retry backoff: %v", entity.ErrTransient, ctx.Err())
			}
		}
	}

	return fmt.Errorf("%w: discord dispatch failed after %d attempts: %v", entity.ErrTransient, maxAttempts, lastErr)
}

// Send implements notifier.Target. The returned error wraps entity.ErrPermanent
// or entity.ErrTransient so the Publisher Worker can classify the outcome.
func (d *DiscordTarget) Send(ctx context.Context, item *entity.QueueItem) error {
	ctx, span := tracing.GetTracer().Start(ctx, "notifier.discord.Send")
	defer span.End()
	span.SetAttributes(attribute.String("queue.unique_id", item.UniqueID))

	ctx = logging.WithRequestIDValue(ctx, uuid.New().String())

	if err := d.rateLimiter.Allow(ctx); err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		return fmt.Errorf("%w: rate limiter: %v", entity.ErrTransient, err)
	}

	result, err := d.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, d.sendWebhookRequestWithRetry(ctx, item)
	})
	_ = result
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("%w: discord circuit breaker open", entity.ErrTransient)
		}
		return err
	}
	return nil
}
