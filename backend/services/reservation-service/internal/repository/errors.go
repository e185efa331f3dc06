package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrOverlap is returned when the reservations exclusion constraint rejects a write.
	ErrOverlap = errors.New("repository: overlapping reservation")
	// ErrStaleState is returned when a conditional status update matched no row.
	ErrStaleState = errors.New("repository: status changed concurrently")
)

const exclusionViolation = "23P01"

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return ErrOverlap
	}
	return err
}
