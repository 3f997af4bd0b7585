package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Retry reintenta fallas transitorias (conexión, serialización, deadlock).
// Los errores de datos (no rows, unique violation) nunca se reintentan.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

func (r Retry) normalized() Retry {
	if r.Attempts <= 0 {
		r.Attempts = 3
	}
	if r.Backoff < 0 {
		r.Backoff = 0
	}
	return r
}

func (r Retry) do(ctx context.Context, fn func(ctx context.Context) error) error {
	r = r.normalized()

	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !isTransient(err) || attempt == r.Attempts {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		wait := time.Duration(attempt) * r.Backoff
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization / deadlock
			return true
		case pgErr.Code == "57P01": // admin shutdown
			return true
		default:
			return false
		}
	}

	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
