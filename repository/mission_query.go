package repository

import (
	"context"
	"strings"
	"time"

	"ambulanceDispatch/models"
)

// ListMissionsParams represents filters and pagination for List.
type ListMissionsParams struct {
	Statuses []models.MissionStatus
	DriverID *string
	PageSize int
	AfterID  int64 // keyset cursor: row id of the last mission on the previous page
}

// List returns missions matching filters, newest first, with keyset pagination.
func (r *MissionRepository) List(ctx context.Context, p ListMissionsParams) ([]models.Mission, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var where []string
	var args []any

	if len(p.Statuses) > 0 {
		placeholders := make([]string, len(p.Statuses))
		for i, s := range p.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if p.DriverID != nil {
		where = append(where, "assigned_driver_id = ?")
		args = append(args, *p.DriverID)
	}
	if p.AfterID > 0 {
		where = append(where, "id < ?")
		args = append(args, p.AfterID)
	}

	query := `SELECT ` + missionColumns + ` FROM missions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, p.PageSize)

	out := []models.Mission{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// CompletedCount returns how many missions driverID has completed.
func (r *MissionRepository) CompletedCount(ctx context.Context, driverID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM missions WHERE assigned_driver_id = ? AND status = 'COMPLETED'`, driverID)
	return n, err
}

// Leaderboard ranks registered drivers by completed missions.
func (r *MissionRepository) Leaderboard(ctx context.Context, limit int) ([]models.DriverScore, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.DriverScore{}
	err := r.db.SelectContext(ctx, &out, `
SELECT a.driver_id, a.full_name, COUNT(m.id) AS completed
FROM driver_accounts a
LEFT JOIN missions m ON m.assigned_driver_id = a.driver_id AND m.status = 'COMPLETED'
GROUP BY a.driver_id, a.full_name
ORDER BY completed DESC, a.driver_id ASC
LIMIT ?`, limit)
	return out, err
}

// OfflineAlerts lists accepted missions whose driver has not reported since cutoff.
func (r *MissionRepository) OfflineAlerts(ctx context.Context, cutoff time.Time) ([]models.OfflineAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.OfflineAlert{}
	err := r.db.SelectContext(ctx, &out, `
SELECT m.mission_id, m.assigned_driver_id AS driver_id, d.last_seen
FROM missions m
LEFT JOIN drivers d ON d.driver_id = m.assigned_driver_id
WHERE m.status = 'ACCEPTED' AND (d.last_seen IS NULL OR d.last_seen < ?)
ORDER BY m.accepted_at ASC, m.id ASC`, cutoff.UTC())
	return out, err
}

// RecordLog stores the analytics record of a completed mission.
func (r *MissionRepository) RecordLog(ctx context.Context, l *models.MissionLog) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO mission_logs (created_at, mission_id, origin, destination, priority, distance_km, time_saved_min, co2_saved_kg, avg_speed_kmh)
VALUES (:created_at, :mission_id, :origin, :destination, :priority, :distance_km, :time_saved_min, :co2_saved_kg, :avg_speed_kmh)`, l)
	return err
}

// Logs returns the most recent mission log rows.
func (r *MissionRepository) Logs(ctx context.Context, limit int) ([]models.MissionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out := []models.MissionLog{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, created_at, mission_id, origin, destination, priority, distance_km, time_saved_min, co2_saved_kg, avg_speed_kmh FROM mission_logs ORDER BY id DESC LIMIT ?`, limit)
	return out, err
}
