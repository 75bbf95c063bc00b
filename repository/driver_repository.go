package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"ambulanceDispatch/models"
)

const driverColumns = `driver_id, status, current_lat, current_lon, speed, origin, destination, active_mission_id, COALESCE(clearance_status, '') AS clearance_status, selected_route_id, last_seen`

// DriverRepository stores the live telemetry row of each unit.
// The clearance_status column is written only by the clearance methods, never by Upsert
// once the row exists.
type DriverRepository struct {
	db *sqlx.DB
}

func NewDriverRepository(db *sqlx.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// Upsert records a heartbeat. The row is created on first contact; afterwards the
// reported fields replace the stored ones, a missing position keeps the last fix,
// and last_seen never moves backwards.
func (r *DriverRepository) Upsert(ctx context.Context, d *models.Driver) error {
	if d == nil {
		return errors.New("driver is nil")
	}
	if d.Status == "" {
		d.Status = models.DriverStatusIdle
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var clearance any
	if d.Clearance != models.ClearanceNone {
		clearance = string(d.Clearance)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO drivers (driver_id, status, current_lat, current_lon, speed, origin, destination, active_mission_id, clearance_status, selected_route_id, last_seen)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(driver_id) DO UPDATE SET
    status = excluded.status,
    current_lat = COALESCE(excluded.current_lat, drivers.current_lat),
    current_lon = COALESCE(excluded.current_lon, drivers.current_lon),
    speed = excluded.speed,
    origin = excluded.origin,
    destination = excluded.destination,
    active_mission_id = excluded.active_mission_id,
    selected_route_id = excluded.selected_route_id,
    last_seen = CASE WHEN excluded.last_seen > drivers.last_seen THEN excluded.last_seen ELSE drivers.last_seen END`,
		d.DriverID, string(d.Status), d.Lat, d.Lon, d.Speed, d.Origin, d.Destination, d.ActiveMissionID, clearance, d.SelectedRouteID, d.LastSeen.UTC())
	return err
}

// GetByID returns the driver row, or nil, nil if the unit never reported.
func (r *DriverRepository) GetByID(ctx context.Context, driverID string) (*models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var d models.Driver
	err := r.db.GetContext(ctx, &d, `SELECT `+driverColumns+` FROM drivers WHERE driver_id = ?`, driverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// List returns every driver row, most recently seen first.
func (r *DriverRepository) List(ctx context.Context) ([]models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.Driver{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+driverColumns+` FROM drivers ORDER BY last_seen DESC, driver_id ASC`)
	return out, err
}

// ListAvailable returns registered drivers with a position fix, in a dispatchable
// status, seen after cutoff. Rows come back most recently seen first; ranking by
// distance is left to the caller.
func (r *DriverRepository) ListAvailable(ctx context.Context, cutoff time.Time) ([]models.AvailableDriver, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.AvailableDriver{}
	err := r.db.SelectContext(ctx, &out, `
SELECT d.driver_id, d.status, d.current_lat, d.current_lon, d.speed, d.origin, d.destination, d.active_mission_id,
       COALESCE(d.clearance_status, '') AS clearance_status, d.selected_route_id, d.last_seen,
       a.full_name, a.vehicle_id
FROM drivers d
JOIN driver_accounts a ON a.driver_id = d.driver_id
WHERE d.current_lat IS NOT NULL AND d.current_lon IS NOT NULL
  AND d.status NOT IN ('BREAK', 'INACTIVE')
  AND d.last_seen >= ?
ORDER BY d.last_seen DESC, d.driver_id ASC`, cutoff.UTC())
	return out, err
}

// SetAssignment refreshes the status and mission fields of an existing row
// without touching last_seen. It reports false when the unit has no row yet.
func (r *DriverRepository) SetAssignment(ctx context.Context, driverID string, status models.DriverStatus, missionID *string, origin, destination string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET status = ?, active_mission_id = ?, origin = ?, destination = ? WHERE driver_id = ?`,
		string(status), missionID, origin, destination, driverID)
	return applied(res, err)
}

// RequestClearance moves NONE to PENDING.
func (r *DriverRepository) RequestClearance(ctx context.Context, driverID string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET clearance_status = 'PENDING', clearance_updated_at = ? WHERE driver_id = ? AND clearance_status IS NULL`, at.UTC(), driverID)
	return applied(res, err)
}

// ResolveClearance moves PENDING to decision (GRANTED or DENIED).
func (r *DriverRepository) ResolveClearance(ctx context.Context, driverID string, decision models.ClearanceStatus, at time.Time) (bool, error) {
	if !decision.Resolved() {
		return false, errors.New("decision must be GRANTED or DENIED")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET clearance_status = ?, clearance_updated_at = ? WHERE driver_id = ? AND clearance_status = 'PENDING'`,
		string(decision), at.UTC(), driverID)
	return applied(res, err)
}

// ConsumeClearance resets a resolved decision to NONE if it still equals seen.
// Only one caller can consume a given decision.
func (r *DriverRepository) ConsumeClearance(ctx context.Context, driverID string, seen models.ClearanceStatus, at time.Time) (bool, error) {
	if !seen.Resolved() {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET clearance_status = NULL, clearance_updated_at = ? WHERE driver_id = ? AND clearance_status = ?`,
		at.UTC(), driverID, string(seen))
	return applied(res, err)
}

// PendingClearances returns drivers waiting for an HQ decision, oldest request first.
func (r *DriverRepository) PendingClearances(ctx context.Context) ([]models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.Driver{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+driverColumns+` FROM drivers WHERE clearance_status = 'PENDING' ORDER BY clearance_updated_at ASC, driver_id ASC`)
	return out, err
}
