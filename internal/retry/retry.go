package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/repository"
)

const initialInterval = 50 * time.Millisecond

// Retrier re-runs idempotent writes that failed in the store.
type Retrier struct {
	logger     *log.Logger
	maxElapsed time.Duration
}

// New returns a Retrier that gives up after maxElapsed. A non-positive
// maxElapsed disables retries.
func New(logger *log.Logger, maxElapsed time.Duration) *Retrier {
	return &Retrier{logger: logger, maxElapsed: maxElapsed}
}

// Do runs fn until it succeeds, returns a non-retryable error, ctx ends or
// the time budget is spent.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if r.maxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = initialInterval
		exp.MaxElapsedTime = r.maxElapsed
		policy = exp
	}

	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			err := fn(ctx)
			if err != nil && !Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(policy, ctx),
		func(err error, wait time.Duration) {
			r.logger.Warn("write failed, retrying", "op", op, "attempt", attempt, "wait", wait, "error", err)
		},
	)
	if err != nil && Retryable(err) {
		r.logger.Error("write failed", "op", op, "attempts", attempt, "error", err)
	}
	return err
}

// Retryable reports whether err is a store write failure worth repeating.
// Missing documents are final.
func Retryable(err error) bool {
	var writeErr *apperrors.WriteError
	if !errors.As(err, &writeErr) {
		return false
	}
	return !errors.Is(err, repository.ErrNotFound)
}
