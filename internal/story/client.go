package story

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fablecast/fablecast/internal/observe"
	"github.com/fablecast/fablecast/internal/resilience"
	"github.com/fablecast/fablecast/pkg/provider/textgen"
)

// Default retry tuning for the text client.
const (
	defaultMaxRetries     = 3
	defaultAttemptTimeout = 90 * time.Second
)

// GenerationError is returned by [Client.Generate] when every attempt
// failed. It carries the last underlying cause and the full attempt trail so
// the orchestrator can persist text provenance even for failed requests.
type GenerationError struct {
	// Attempts is the per-attempt trail, one entry per completion try.
	Attempts []Attempt

	// Kind classifies the final failure.
	Kind textgen.ErrorKind

	// Err is the last underlying cause.
	Err error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("story: text generation failed after %d attempt(s): %v", len(e.Attempts), e.Err)
}

// Unwrap returns the last underlying cause.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// TextResult is the successful output of [Client.Generate].
type TextResult struct {
	// Content is the generated story text.
	Content string

	// Model is the model that served the final, successful attempt.
	Model string

	// Usage is the raw token accounting.
	Usage textgen.Usage

	// UsageMetadata is Usage plus computed cost, in persistable form.
	UsageMetadata map[string]any

	// Attempts is the per-attempt trail, including the successful one.
	Attempts []Attempt
}

// ClientConfig tunes the retrying text client. The zero value is usable.
type ClientConfig struct {
	// MaxRetries is the total number of attempts (not additional retries).
	// Default: 3.
	MaxRetries int

	// Backoff computes the wait between attempts.
	Backoff resilience.Backoff

	// AttemptTimeout bounds each individual completion call. A timed-out
	// attempt counts as a transient failure. Default: 90s.
	AttemptTimeout time.Duration

	// Prices computes completion cost. Default: [DefaultPrices].
	Prices PriceTable

	// Metrics receives per-attempt instrumentation. May be nil.
	Metrics *observe.Metrics
}

// Client wraps a [textgen.Provider] with bounded retries, backoff and
// cost/usage extraction. Only transient failures are retried; permanent and
// configuration failures propagate after the first attempt.
//
// Client is safe for concurrent use.
type Client struct {
	provider       textgen.Provider
	maxRetries     int
	backoff        resilience.Backoff
	attemptTimeout time.Duration
	prices         PriceTable
	metrics        *observe.Metrics
}

// NewClient creates a retrying text client over provider.
func NewClient(provider textgen.Provider, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.Prices == nil {
		cfg.Prices = DefaultPrices
	}
	return &Client{
		provider:       provider,
		maxRetries:     cfg.MaxRetries,
		backoff:        cfg.Backoff,
		attemptTimeout: cfg.AttemptTimeout,
		prices:         cfg.Prices,
		metrics:        cfg.Metrics,
	}
}

// Generate runs req against the backend with bounded retries. On success the
// result carries usage metadata with computed cost; on exhaustion (or a
// non-retryable failure) it returns a [*GenerationError] wrapping the last
// cause.
func (c *Client) Generate(ctx context.Context, req textgen.Request) (*TextResult, error) {
	model := req.Model
	if model == "" {
		model = c.provider.Model()
	}

	var (
		attempts []Attempt
		lastErr  error
	)
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, latency, err := c.attempt(ctx, req)
		if err == nil {
			attempts = append(attempts, Attempt{
				Provider:  resp.Model,
				Succeeded: true,
				LatencyMs: latency.Milliseconds(),
			})
			c.recordAttempt(ctx, resp.Model, latency, "ok")
			return &TextResult{
				Content:       resp.Content,
				Model:         resp.Model,
				Usage:         resp.Usage,
				UsageMetadata: c.prices.UsageMetadata(resp.Model, resp.Usage),
				Attempts:      attempts,
			}, nil
		}

		kind := textgen.Classify(err)
		lastErr = err
		attempts = append(attempts, Attempt{
			Provider:  model,
			Succeeded: false,
			ErrorKind: kind.String(),
			LatencyMs: latency.Milliseconds(),
		})
		c.recordAttempt(ctx, model, latency, kind.String())

		if kind != textgen.KindTransient {
			observe.Logger(ctx).Warn("text generation failed permanently",
				"model", model, "kind", kind.String(), "error", err)
			return nil, &GenerationError{Attempts: attempts, Kind: kind, Err: err}
		}
		if attempt == c.maxRetries {
			break
		}

		observe.Logger(ctx).Warn("text generation attempt failed, retrying",
			"model", model, "attempt", attempt, "of", c.maxRetries, "error", err)
		if werr := c.backoff.Wait(ctx, attempt); werr != nil {
			// The caller gave up while we were waiting; report what we had.
			return nil, &GenerationError{Attempts: attempts, Kind: textgen.KindTransient, Err: lastErr}
		}
	}

	return nil, &GenerationError{
		Attempts: attempts,
		Kind:     textgen.Classify(lastErr),
		Err:      lastErr,
	}
}

// attempt performs one bounded completion call and measures its latency.
func (c *Client) attempt(ctx context.Context, req textgen.Request) (*textgen.Response, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Complete(ctx, req)
	return resp, time.Since(start), err
}

// recordAttempt emits per-attempt metrics when a meter is wired.
func (c *Client) recordAttempt(ctx context.Context, model string, latency time.Duration, status string) {
	if c.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", "textgen"),
		attribute.String("model", model),
		attribute.String("status", status),
	)
	c.metrics.TextGenDuration.Record(ctx, latency.Seconds(), attrs)
	c.metrics.ProviderRequests.Add(ctx, 1, attrs)
	if status != "ok" {
		c.metrics.ProviderErrors.Add(ctx, 1, attrs)
	}
}
