package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prepboard/examengine/internal/errs"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	retryAttempts = 3
	retryBaseWait = 50 * time.Millisecond
)

// withRetry retries transient store errors with bounded backoff. Logical
// errors (not found, conflicts, closed sessions, constraint violations)
// surface immediately.
func withRetry(name string, op func() error) error {
	wait := retryBaseWait
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = op()
		if err == nil || !transient(err) {
			return err
		}
		log.Warn().Err(err).Str("op", name).Int("attempt", attempt).Msg("Transient store error, retrying")
		time.Sleep(wait)
		wait *= 2
	}
	return err
}

func transient(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errs.KindOf(err) != errs.KindUnknown {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Connection failures (class 08) and serialization/deadlock aborts
		// (40001, 40P01) are worth a retry; everything else is a real error.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return true
		}
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
