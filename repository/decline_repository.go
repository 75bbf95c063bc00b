package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"ambulanceDispatch/models"
)

// DeclineRepository is the durable decline ledger. A row excludes its driver
// from being offered the mission for the rest of the mission's life.
type DeclineRepository struct {
	db *sqlx.DB
}

// NewDeclineRepository creates a new DeclineRepository.
func NewDeclineRepository(db *sqlx.DB) *DeclineRepository {
	return &DeclineRepository{db: db}
}

// Record writes the ledger row and, in the same transaction, releases the
// mission if it was pinned to the declining driver. Recording twice is a no-op
// apart from refreshing the reason; an empty reason keeps the stored one.
// released reports whether a pin was cleared.
func (r *DeclineRepository) Record(ctx context.Context, d models.MissionDecline) (released bool, err error) {
	if d.MissionID == "" || d.DriverID == "" {
		return false, errors.New("mission and driver are required")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO mission_declines (mission_id, driver_id, declined_at, reason) VALUES (?,?,?,?)
ON CONFLICT(mission_id, driver_id) DO UPDATE SET reason = CASE WHEN excluded.reason = '' THEN mission_declines.reason ELSE excluded.reason END`,
		d.MissionID, d.DriverID, d.DeclinedAt.UTC(), d.Reason); err != nil {
		return false, err
	}
	if d.Reason != "" {
		if _, err = tx.ExecContext(ctx, `UPDATE missions SET decline_reason = ? WHERE mission_id = ?`, d.Reason, d.MissionID); err != nil {
			return false, err
		}
	}
	res, err := tx.ExecContext(ctx, `UPDATE missions SET assigned_driver_id = NULL WHERE mission_id = ? AND status = 'DISPATCHED' AND assigned_driver_id = ?`, d.MissionID, d.DriverID)
	if released, err = applied(res, err); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return released, nil
}

// IsDeclined reports whether driverID declined missionID.
func (r *DeclineRepository) IsDeclined(ctx context.Context, missionID, driverID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM mission_declines WHERE mission_id = ? AND driver_id = ?`, missionID, driverID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListForMission returns the ledger rows of one mission, oldest first.
func (r *DeclineRepository) ListForMission(ctx context.Context, missionID string) ([]models.MissionDecline, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out := []models.MissionDecline{}
	err := r.db.SelectContext(ctx, &out, `SELECT mission_id, driver_id, declined_at, reason FROM mission_declines WHERE mission_id = ? ORDER BY declined_at ASC, driver_id ASC`, missionID)
	return out, err
}
