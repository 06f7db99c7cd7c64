package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/influencer-lens/backend/internal/metrics"
	"github.com/influencer-lens/backend/pkg/circuitbreaker"
	"github.com/influencer-lens/backend/pkg/logger"
	"github.com/influencer-lens/backend/pkg/retry"
)

// Client is the handle every batch component receives. It wraps a Provider
// with a circuit breaker, a rate limiter and retries for read-only calls.
type Client struct {
	provider    Provider
	model       string
	pricing     Pricing
	timeout     time.Duration
	limiter     *rate.Limiter
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type ClientOptions struct {
	Model             string
	Pricing           Pricing
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	RetryDelay        time.Duration
}

func NewClient(provider Provider, opts ClientOptions) *Client {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	notFound := func(err error) bool { return errors.Is(err, ErrBatchNotFound) }

	cb := circuitbreaker.NewCircuitBreaker("llm-"+provider.Name(), circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		IsFailure:        func(err error) bool { return !notFound(err) },
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    opts.MaxRetries,
		InitialDelay:   opts.RetryDelay,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable: func(err error) bool {
			return !notFound(err) && !errors.Is(err, circuitbreaker.ErrCircuitOpen)
		},
		Logger: logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("provider", provider.Name()),
		zap.String("model", opts.Model),
	)

	return &Client{
		provider:    provider,
		model:       opts.Model,
		pricing:     opts.Pricing,
		timeout:     opts.Timeout,
		limiter:     rate.NewLimiter(limit, 1),
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) ProviderName() string { return c.provider.Name() }

func (c *Client) Model() string { return c.model }

func (c *Client) Pricing() Pricing { return c.pricing }

func (c *Client) Breaker() circuitbreaker.Snapshot { return c.cb.Snapshot() }

// Submit is never retried: a timed-out submission may still have created a
// batch and resubmitting would double-bill every request.
func (c *Client) Submit(ctx context.Context, requests []Request) (*Batch, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("no requests to submit")
	}
	return call(ctx, c, "submit", false, c.bulkTimeout(), func(ctx context.Context) (*Batch, error) {
		return c.provider.Submit(ctx, requests)
	})
}

func (c *Client) Status(ctx context.Context, batchID string) (*Batch, error) {
	return call(ctx, c, "status", true, c.timeout, func(ctx context.Context) (*Batch, error) {
		return c.provider.Status(ctx, batchID)
	})
}

func (c *Client) Results(ctx context.Context, batchID string) ([]Outcome, error) {
	return call(ctx, c, "results", true, c.bulkTimeout(), func(ctx context.Context) ([]Outcome, error) {
		return c.provider.Results(ctx, batchID)
	})
}

func (c *Client) Cancel(ctx context.Context, batchID string) (*Batch, error) {
	return call(ctx, c, "cancel", true, c.timeout, func(ctx context.Context) (*Batch, error) {
		return c.provider.Cancel(ctx, batchID)
	})
}

func (c *Client) List(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	return call(ctx, c, "list", true, c.timeout, func(ctx context.Context) ([]Batch, error) {
		return c.provider.List(ctx, limit)
	})
}

func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	resp, err := call(ctx, c, "complete", true, c.timeout, func(ctx context.Context) (*Completion, error) {
		return c.provider.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	c.RecordUsage(resp.Usage)
	logger.Debug("LLM completion generated",
		zap.String("custom_id", req.CustomID),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return resp, nil
}

// RecordUsage publishes token and cost metrics and returns the estimated cost.
func (c *Client) RecordUsage(u Usage) float64 {
	cost := c.pricing.Cost(u)
	metrics.LLMTokensUsed.WithLabelValues(c.model, "input").Add(float64(u.InputTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.model, "output").Add(float64(u.OutputTokens))
	metrics.LLMCost.WithLabelValues(c.model).Add(cost)
	return cost
}

// bulkTimeout bounds calls that move a whole batch over the wire.
func (c *Client) bulkTimeout() time.Duration {
	return 10 * c.timeout
}

func call[T any](ctx context.Context, c *Client, op string, retryable bool, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	attempt := func() (T, error) {
		var result T
		if err := c.limiter.Wait(ctx); err != nil {
			return result, retry.Permanent(err)
		}
		err := c.cb.Execute(ctx, func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			var err error
			result, err = fn(callCtx)
			return err
		})
		return result, err
	}

	var (
		result T
		err    error
	)
	if retryable {
		result, err = retry.DoWithResult(ctx, c.retryConfig, attempt)
	} else {
		result, err = attempt()
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ProviderRequestDuration.WithLabelValues(c.provider.Name(), op, status).Observe(time.Since(start).Seconds())

	if err != nil {
		return result, fmt.Errorf("failed to %s via %s: %w", op, c.provider.Name(), err)
	}
	return result, nil
}
