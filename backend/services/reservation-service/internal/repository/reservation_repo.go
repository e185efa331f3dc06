package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	libdb "evslot/backend/libs/db"
	"evslot/backend/services/reservation-service/internal/models"
)

const reservationColumns = `id::text, user_id, charger_id, station_id, reserved_from, reserved_to, status, created_at, updated_at`

// blockingStatusList renders models.BlockingStatuses as a SQL IN list.
var blockingStatusList = sqlStringList(models.BlockingStatuses)

func sqlStringList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}

// parseReservationID returns the canonical form of a reservation id so lookups compare against
// the uuid primary key directly. ok is false when id cannot name any row.
func parseReservationID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// LockedReservations is the part of the reservations table that is usable while a charger
// lock is held.
type LockedReservations interface {
	FindOverlapping(ctx context.Context, chargerID string, from, to time.Time) ([]models.Reservation, error)
	Insert(ctx context.Context, reservation *models.Reservation) error
}

// ReservationRepository persists reservations.
type ReservationRepository struct {
	db *sql.DB
}

// NewReservationRepository returns repository.
func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// WithChargerLock runs fn in a transaction that holds the advisory lock of chargerID. Writers
// for the same charger are serialized until the transaction ends.
func (r *ReservationRepository) WithChargerLock(ctx context.Context, chargerID string, fn func(LockedReservations) error) error {
	return libdb.InTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "charger:"+chargerID); err != nil {
			return fmt.Errorf("acquire charger lock: %w", err)
		}
		return fn(&lockedReservations{q: tx})
	})
}

type lockedReservations struct {
	q querier
}

func (l *lockedReservations) FindOverlapping(ctx context.Context, chargerID string, from, to time.Time) ([]models.Reservation, error) {
	return findOverlapping(ctx, l.q, chargerID, from, to)
}

func (l *lockedReservations) Insert(ctx context.Context, reservation *models.Reservation) error {
	const query = `
		INSERT INTO reservations (id, user_id, charger_id, station_id, reserved_from, reserved_to, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := l.q.QueryRowContext(ctx, query,
		reservation.ID,
		reservation.UserID,
		reservation.ChargerID,
		reservation.StationID,
		reservation.ReservedFrom,
		reservation.ReservedTo,
		reservation.Status,
	).Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// FindOverlapping returns blocking reservations of chargerID that intersect [from, to).
func (r *ReservationRepository) FindOverlapping(ctx context.Context, chargerID string, from, to time.Time) ([]models.Reservation, error) {
	return findOverlapping(ctx, r.db, chargerID, from, to)
}

func findOverlapping(ctx context.Context, q querier, chargerID string, from, to time.Time) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE charger_id = $1
		  AND status IN (` + blockingStatusList + `)
		  AND reserved_from < $3
		  AND reserved_to > $2
		ORDER BY reserved_from ASC
	`
	return queryReservations(ctx, q, query, chargerID, from, to)
}

// GetByID returns a reservation or ErrNotFound.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	key, ok := parseReservationID(id)
	if !ok {
		return nil, ErrNotFound
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListByUser returns every reservation of userID, newest first.
func (r *ReservationRepository) ListByUser(ctx context.Context, userID int64) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return queryReservations(ctx, r.db, query, userID)
}

// Cancel moves a blocking reservation to CANCELLED. ErrStaleState means the row was no longer
// PENDING or CONFIRMED when the update ran.
func (r *ReservationRepository) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	key, ok := parseReservationID(id)
	if !ok {
		return nil, ErrNotFound
	}
	query := `
		UPDATE reservations
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status IN (` + blockingStatusList + `)
		RETURNING ` + reservationColumns
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStaleState
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExpireEnded marks up to limit blocking reservations whose end is at or before now as EXPIRED
// and returns them.
func (r *ReservationRepository) ExpireEnded(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		UPDATE reservations
		SET status = 'EXPIRED', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM reservations
			WHERE status IN (` + blockingStatusList + `) AND reserved_to <= $1
			ORDER BY reserved_to ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + reservationColumns
	return queryReservations(ctx, r.db, query, now, limit)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var res models.Reservation
	if err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.ChargerID,
		&res.StationID,
		&res.ReservedFrom,
		&res.ReservedTo,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	res.ReservedFrom = res.ReservedFrom.UTC()
	res.ReservedTo = res.ReservedTo.UTC()
	return &res, nil
}

func queryReservations(ctx context.Context, q querier, query string, args ...interface{}) ([]models.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]models.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}
