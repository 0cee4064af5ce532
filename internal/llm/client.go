// Package llm wraps Genkit generation behind a small typed client.
//
// Every pipeline stage that talks to the model goes through Client: it owns
// the model name, the per-call timeout, rate limiting and retry with
// exponential backoff. Structured output is requested with Generate[T], which
// constrains the model to T's JSON schema and decodes the response.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// Config configures a Client.
type Config struct {
	// ModelName is the provider-qualified model, e.g. "googleai/gemini-2.5-flash".
	ModelName string

	// Timeout bounds each individual model call (per attempt, not per request).
	Timeout time.Duration

	// Retry controls backoff on transient failures.
	// Zero value means DefaultRetryConfig.
	Retry RetryConfig

	// RequestsPerMinute throttles outgoing calls. Zero disables throttling.
	RequestsPerMinute int
}

// validate checks required fields and applies defaults.
func (c *Config) validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name must not be empty")
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.Retry.MaxRetries == 0 && c.Retry.InitialInterval == 0 {
		c.Retry = DefaultRetryConfig()
	}
	return nil
}

// Client executes model calls with retry, rate limiting and per-attempt
// timeouts. Client is safe for concurrent use by multiple goroutines.
type Client struct {
	modelName string
	timeout   time.Duration
	retry     RetryConfig
	limiter   *rate.Limiter
	logger    *slog.Logger

	// generate is the call seam; tests replace it with a stub.
	generate func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// NewClient creates a Client bound to an initialized Genkit instance.
// A nil logger falls back to slog.Default().
func NewClient(g *genkit.Genkit, cfg Config, logger *slog.Logger) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		modelName: cfg.ModelName,
		timeout:   cfg.Timeout,
		retry:     cfg.Retry,
		limiter:   newLimiter(cfg.RequestsPerMinute),
		logger:    logger,
		generate: func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
			return genkit.Generate(ctx, g, opts...)
		},
	}, nil
}

// newLimiter builds the outgoing call limiter, spreading rpm calls evenly
// over the minute with a burst of one. Zero or negative rpm disables it.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// Request is one model call: an optional system prompt, optional prior
// conversation turns and the current prompt.
type Request struct {
	System  string
	History []*ai.Message
	Prompt  string
}

// Generate executes the request with structured output constrained to T's
// JSON schema and decodes the response into T.
func Generate[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T

	resp, err := c.execute(ctx, req, ai.WithOutputType(out))
	if err != nil {
		return out, err
	}
	if err := resp.Output(&out); err != nil {
		return out, fmt.Errorf("failed to decode structured output: %w", err)
	}
	return out, nil
}

// GenerateText executes the request and returns the plain text response.
func GenerateText(ctx context.Context, c *Client, req Request) (string, error) {
	resp, err := c.execute(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// execute assembles generation options and runs the retry loop.
func (c *Client) execute(ctx context.Context, req Request, extra ...ai.GenerateOption) (*ai.ModelResponse, error) {
	opts := make([]ai.GenerateOption, 0, 4+len(extra))
	opts = append(opts, ai.WithModelName(c.modelName))
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if len(req.History) > 0 {
		opts = append(opts, ai.WithMessages(req.History...))
	}
	opts = append(opts, ai.WithPrompt(req.Prompt))
	opts = append(opts, extra...)

	return c.executeWithRetry(ctx, opts)
}

// executeWithRetry executes a generation with exponential backoff retry.
// Each attempt is rate limited and bounded by the per-call timeout.
func (c *Client) executeWithRetry(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := c.attempt(ctx, opts)
		if err == nil {
			if attempt > 0 {
				c.logger.Debug("generation succeeded after retry",
					"attempts", attempt+1,
					"elapsed", time.Since(start))
			}
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying generation after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		c.retry.MaxRetries, time.Since(start), lastErr)
}

// attempt runs a single generation bounded by the per-call timeout.
func (c *Client) attempt(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.generate(attemptCtx, opts...)
}
