package completion

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the retry policy.
type RetryConfig struct {
	MaxRetries      int
	AttemptTimeout  time.Duration // 0 means no per-attempt timeout
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Retrying repeats transient failures of the wrapped Completer with
// jittered exponential backoff.
type Retrying struct {
	next   Completer
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetrying wraps next with the given policy.
func NewRetrying(next Completer, cfg RetryConfig, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	return &Retrying{next: next, cfg: cfg, logger: logger}
}

// Complete calls the wrapped Completer until it succeeds, fails permanently,
// the retry budget is spent or ctx is done.
func (r *Retrying) Complete(ctx context.Context, req Request) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = 0

	var (
		resp    *Response
		attempt int
	)
	op := func() error {
		attempt++
		attemptCtx, cancel := r.attemptContext(ctx)
		defer cancel()

		out, err := r.next.Complete(attemptCtx, req)
		if err != nil {
			if ctx.Err() != nil || !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = out
		return nil
	}
	notify := func(err error, delay time.Duration) {
		r.logger.Warn("completion attempt failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *Retrying) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.AttemptTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	}
	return context.WithCancel(ctx)
}
