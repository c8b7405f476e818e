package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
)

// RetryPolicy bounds how transient database failures are retried
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy is used by WithRetry, Operation and RunInTx
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      5,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxElapsedTime:  30 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(p.MaxElapsedTime),
		backoff.WithInitialInterval(p.InitialInterval),
		backoff.WithMaxInterval(p.MaxInterval),
	), p.MaxRetries)
	return backoff.WithContext(b, ctx)
}

// IsRetryableError reports whether err is a transient PostgreSQL or network failure
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection_exception
			"53", // insufficient_resources
			"57": // operator_intervention: admin shutdown, crash recovery, cannot connect now
			return true
		}
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55006", // object_in_use
			"55P03": // lock_not_available
			return true
		}
		return false
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "connection reset by peer") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "i/o timeout")
}

// Operation runs a database read or write, retrying transient failures.
// Non-retryable errors are returned unchanged.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	err := backoff.Retry(func() error {
		var err error
		result, err = operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, DefaultRetryPolicy.backOff(ctx))
	if err == nil {
		return result, nil
	}
	if lastErr == nil {
		return result, err
	}
	if IsRetryableError(lastErr) {
		return result, fmt.Errorf("database operation failed after retries: %w", lastErr)
	}
	return result, lastErr
}

// WithRetry is Operation for calls without a result
func WithRetry(ctx context.Context, operation func(context.Context) error) error {
	_, err := Operation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// RunInTx runs fn inside a transaction, committing on success and rolling back on error.
// The whole transaction is retried on transient failures, so fn must be safe to re-run.
func RunInTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return WithRetry(ctx, func(ctx context.Context) (err error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
				}
			}
		}()

		if err = fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}
