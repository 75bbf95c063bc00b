package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"ambulanceDispatch/models"
)

// TelemetryRepository stores the ghost trail and field hazard reports.
type TelemetryRepository struct {
	db *sqlx.DB
}

func NewTelemetryRepository(db *sqlx.DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// AppendTrail inserts p unless the driver already has a trail point newer than
// p.RecordedAt-minGap. The check and the insert are one statement, so concurrent
// writers for the same driver cannot both pass it.
func (r *TelemetryRepository) AppendTrail(ctx context.Context, p models.TrailPoint, minGap time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	at := p.RecordedAt.UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO driver_trail (driver_id, origin, destination, lat, lon, speed, status, recorded_at)
SELECT ?, ?, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (SELECT 1 FROM driver_trail WHERE driver_id = ? AND recorded_at > ?)`,
		p.DriverID, p.Origin, p.Destination, p.Lat, p.Lon, p.Speed, string(p.Status), at,
		p.DriverID, at.Add(-minGap))
	return applied(res, err)
}

// Trail returns up to limit trail points of a driver, oldest first.
func (r *TelemetryRepository) Trail(ctx context.Context, driverID string, limit int) ([]models.TrailPoint, error) {
	if limit <= 0 {
		limit = 500
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.TrailPoint{}
	if err := r.db.SelectContext(ctx, &out, `SELECT id, driver_id, origin, destination, lat, lon, speed, status, recorded_at FROM driver_trail WHERE driver_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`, driverID, limit); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PruneTrail deletes trail points recorded before cutoff.
func (r *TelemetryRepository) PruneTrail(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM driver_trail WHERE recorded_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReportHazard stores a hazard and returns it with its id.
func (r *TelemetryRepository) ReportHazard(ctx context.Context, h models.Hazard) (*models.Hazard, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	h.CreatedAt = h.CreatedAt.UTC()
	res, err := r.db.ExecContext(ctx, `INSERT INTO hazards (lat, lon, kind, reported_by, created_at) VALUES (?,?,?,?,?)`,
		h.Lat, h.Lon, h.Kind, h.ReportedBy, h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if h.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &h, nil
}

// Hazards returns the most recent hazard reports.
func (r *TelemetryRepository) Hazards(ctx context.Context, limit int) ([]models.Hazard, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.Hazard{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, lat, lon, kind, reported_by, created_at FROM hazards ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	return out, err
}
