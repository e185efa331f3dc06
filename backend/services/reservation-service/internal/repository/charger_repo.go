package repository

import (
	"context"
	"database/sql"
	"errors"

	"evslot/backend/services/reservation-service/internal/models"
)

const chargerColumns = `id, station_id, connector_type, power_kw, status, updated_at`

// ChargerRepository reads chargers and writes their status column.
type ChargerRepository struct {
	db *sql.DB
}

// NewChargerRepository returns repository.
func NewChargerRepository(db *sql.DB) *ChargerRepository {
	return &ChargerRepository{db: db}
}

// GetByID returns a charger or ErrNotFound.
func (r *ChargerRepository) GetByID(ctx context.Context, id string) (*models.Charger, error) {
	query := `SELECT ` + chargerColumns + ` FROM chargers WHERE id = $1`
	ch, err := scanCharger(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// UpdateStatus sets the status of a charger and returns the updated row.
func (r *ChargerRepository) UpdateStatus(ctx context.Context, id, status string) (*models.Charger, error) {
	query := `
		UPDATE chargers
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + chargerColumns
	ch, err := scanCharger(r.db.QueryRowContext(ctx, query, id, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ListByStations returns the chargers of the given stations grouped by station id.
func (r *ChargerRepository) ListByStations(ctx context.Context, stationIDs []string) (map[string][]models.Charger, error) {
	out := make(map[string][]models.Charger, len(stationIDs))
	if len(stationIDs) == 0 {
		return out, nil
	}
	query := `SELECT ` + chargerColumns + ` FROM chargers WHERE station_id = ANY($1) ORDER BY station_id, id`
	rows, err := r.db.QueryContext(ctx, query, stationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ch, err := scanCharger(rows)
		if err != nil {
			return nil, err
		}
		out[ch.StationID] = append(out[ch.StationID], *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanCharger(row rowScanner) (*models.Charger, error) {
	var ch models.Charger
	if err := row.Scan(
		&ch.ID,
		&ch.StationID,
		&ch.ConnectorType,
		&ch.PowerKW,
		&ch.Status,
		&ch.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ch, nil
}
