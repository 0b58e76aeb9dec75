package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = time.Second
)

// IsRetryableError reports whether err is a transient database fault:
// connection exceptions (class 08), transaction rollbacks such as
// serialization failures and deadlocks (40), insufficient resources (53)
// and operator intervention (57).
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57":
			return true
		}
	}
	return false
}

// withRetry runs op until it succeeds, fails permanently, or the attempt or
// time budget is spent. The last database error is returned unchanged.
func (s *Service) withRetry(ctx context.Context, op func(context.Context) error) error {
	maxRetries := uint64(0)
	if s.retry.MaxAttempts > 1 {
		maxRetries = s.retry.MaxAttempts - 1
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(retryInitialInterval),
		backoff.WithMaxInterval(retryMaxInterval),
		backoff.WithMaxElapsedTime(s.retry.MaxElapsed),
	), maxRetries)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		s.logger.Warn("transient database error, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}, backoff.WithContext(b, ctx))
}
