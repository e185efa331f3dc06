package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"evslot/backend/libs/geo"
	"evslot/backend/services/reservation-service/internal/models"
)

const stationColumns = `s.id, s.name, s.city, s.address, s.operator_id, s.operator_name, s.latitude, s.longitude, s.status, s.created_at, s.updated_at`

// StationRepository reads stations and their chargers.
type StationRepository struct {
	db       *sql.DB
	chargers *ChargerRepository
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db, chargers: NewChargerRepository(db)}
}

// GetByID returns a station with its chargers or ErrNotFound.
func (r *StationRepository) GetByID(ctx context.Context, id string) (*models.Station, error) {
	stations, err := r.Hydrate(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, ErrNotFound
	}
	return &stations[0], nil
}

// Availability counts the chargers of a station by status.
func (r *StationRepository) Availability(ctx context.Context, stationID string) (*models.StationAvailability, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM stations WHERE id = $1)`, stationID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM chargers WHERE station_id = $1 GROUP BY status`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	availability := &models.StationAvailability{StationID: stationID, UpdatedAt: time.Now().UTC()}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		availability.Total += count
		switch status {
		case models.ChargerStatusAvailable:
			availability.Available += count
		case models.ChargerStatusOccupied:
			availability.Occupied += count
		case models.ChargerStatusOffline:
			availability.Offline += count
		case models.ChargerStatusMaintenance:
			availability.Maintenance += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return availability, nil
}

// Search returns one page of stations matching the non-geographic filters, newest first, and
// the total number of matches.
func (r *StationRepository) Search(ctx context.Context, filter models.StationFilter) ([]models.Station, int, error) {
	where := buildStationWhere(filter)

	var total int
	countSQL := `SELECT COUNT(*) FROM stations s WHERE ` + where.cond()
	if err := r.db.QueryRowContext(ctx, countSQL, where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]interface{}{}, where.args...), filter.Limit, filter.Offset())
	dataSQL := fmt.Sprintf(`
		SELECT %s
		FROM stations s
		WHERE %s
		ORDER BY s.created_at DESC, s.id ASC
		LIMIT $%d OFFSET $%d`, stationColumns, where.cond(), len(args)-1, len(args))

	stations, err := r.queryStations(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachChargers(ctx, stations); err != nil {
		return nil, 0, err
	}
	return stations, total, nil
}

// Candidates returns the locations of stations inside box that match the other filters.
func (r *StationRepository) Candidates(ctx context.Context, filter models.StationFilter, box geo.BoundingBox) ([]models.StationLocation, error) {
	where := buildStationWhere(filter)
	where.add("s.latitude >= $%d", box.MinLatitude)
	where.add("s.latitude <= $%d", box.MaxLatitude)
	if box.CrossesAntimeridian() {
		where.addPair("(s.longitude >= $%d OR s.longitude <= $%d)", box.MinLongitude, box.MaxLongitude)
	} else {
		where.add("s.longitude >= $%d", box.MinLongitude)
		where.add("s.longitude <= $%d", box.MaxLongitude)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT s.id, s.latitude, s.longitude FROM stations s WHERE `+where.cond(), where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StationLocation
	for rows.Next() {
		var loc models.StationLocation
		if err := rows.Scan(&loc.ID, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Hydrate loads the stations with the given ids, with chargers, in the order of ids. Unknown
// ids are skipped.
func (r *StationRepository) Hydrate(ctx context.Context, ids []string) ([]models.Station, error) {
	if len(ids) == 0 {
		return []models.Station{}, nil
	}
	stations, err := r.queryStations(ctx, `SELECT `+stationColumns+` FROM stations s WHERE s.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	if err := r.attachChargers(ctx, stations); err != nil {
		return nil, err
	}

	byID := make(map[string]models.Station, len(stations))
	for _, st := range stations {
		byID[st.ID] = st
	}
	ordered := make([]models.Station, 0, len(ids))
	for _, id := range ids {
		if st, ok := byID[id]; ok {
			ordered = append(ordered, st)
		}
	}
	return ordered, nil
}

func (r *StationRepository) queryStations(ctx context.Context, query string, args ...interface{}) ([]models.Station, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]models.Station, 0)
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(
			&st.ID,
			&st.Name,
			&st.City,
			&st.Address,
			&st.OperatorID,
			&st.OperatorName,
			&st.Latitude,
			&st.Longitude,
			&st.Status,
			&st.CreatedAt,
			&st.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stations, nil
}

func (r *StationRepository) attachChargers(ctx context.Context, stations []models.Station) error {
	ids := make([]string, len(stations))
	for i, st := range stations {
		ids[i] = st.ID
	}
	byStation, err := r.chargers.ListByStations(ctx, ids)
	if err != nil {
		return err
	}
	for i := range stations {
		stations[i].Chargers = byStation[stations[i].ID]
		if stations[i].Chargers == nil {
			stations[i].Chargers = []models.Charger{}
		}
	}
	return nil
}

type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(format string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)))
}

func (w *whereClause) addPair(format string, a, b interface{}) {
	w.args = append(w.args, a, b)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)-1, len(w.args)))
}

func (w *whereClause) cond() string {
	if len(w.conds) == 0 {
		return "1=1"
	}
	return strings.Join(w.conds, " AND ")
}

func buildStationWhere(filter models.StationFilter) *whereClause {
	w := &whereClause{}
	if s := strings.TrimSpace(filter.Status); s != "" {
		w.add("s.status = UPPER($%d)", s)
	}
	if s := strings.TrimSpace(filter.City); s != "" {
		w.add("POSITION(LOWER($%d) IN LOWER(s.city)) > 0", s)
	}
	if s := strings.TrimSpace(filter.Operator); s != "" {
		w.add("POSITION(LOWER($%d) IN LOWER(s.operator_name)) > 0", s)
	}
	if s := strings.TrimSpace(filter.ChargerType); s != "" {
		w.add("EXISTS (SELECT 1 FROM chargers c WHERE c.station_id = s.id AND UPPER(c.connector_type) = UPPER($%d))", s)
	}
	return w
}
