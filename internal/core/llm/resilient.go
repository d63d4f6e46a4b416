package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/metrics"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var log = logger.NewLogger("llm")

type ResilienceOptions struct {
	Timeout       time.Duration
	MaxAttempts   int
	RatePerSecond float64
	Backoff       time.Duration
}

// ResilientProvider bounds every call with a timeout, paces calls with a
// token bucket and retries transient failures. Each call waits on its own,
// so one slow file never blocks another.
type ResilientProvider struct {
	next     core.LLMProvider
	limiter  *rate.Limiter
	timeout  time.Duration
	attempts int
	backoff  time.Duration
}

func NewResilientProvider(next core.LLMProvider, opts ResilienceOptions) *ResilientProvider {
	limit := rate.Inf
	burst := 1
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		burst = max(1, int(opts.RatePerSecond))
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &ResilientProvider{
		next:     next,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  opts.Timeout,
		attempts: opts.MaxAttempts,
		backoff:  opts.Backoff,
	}
}

// Close releases the wrapped provider when it holds a connection.
func (r *ResilientProvider) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *ResilientProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return r.do(ctx, "generate", func(ctx context.Context) (string, error) {
		return r.next.Generate(ctx, systemPrompt, userPrompt)
	})
}

func (r *ResilientProvider) DescribeImage(ctx context.Context, image []byte, mimeType, instruction string) (string, error) {
	return r.do(ctx, "vision", func(ctx context.Context) (string, error) {
		return r.next.DescribeImage(ctx, image, mimeType, instruction)
	})
}

func (r *ResilientProvider) do(ctx context.Context, op string, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm %s: %w", op, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		start := time.Now()
		out, err := fn(callCtx)
		metrics.CaptureExecutionMetrics("llm_"+op, time.Since(start))
		cancel()

		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", fmt.Errorf("llm %s: %w", op, ctx.Err())
		}
		if permanent(err) {
			break
		}
		log.Warn("llm call failed", "op", op, "attempt", attempt, "max_attempts", r.attempts, "err", err)

		if attempt < r.attempts && r.backoff > 0 {
			select {
			case <-time.After(r.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return "", fmt.Errorf("llm %s: %w", op, ctx.Err())
			}
		}
	}
	return "", fmt.Errorf("llm %s failed: %w", op, lastErr)
}

// permanent reports client errors that a retry cannot fix.
func permanent(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
			apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode != http.StatusRequestTimeout
	}
	return false
}

var _ core.LLMProvider = (*ResilientProvider)(nil)
