package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"ambulanceDispatch/models"
)

const missionColumns = `id, mission_id, origin, destination, priority, assigned_driver_id, status, created_at, accepted_at, completed_at, cancelled_at, notes, decline_reason`

// MissionRepository stores missions. Every state transition is a single
// conditional UPDATE; callers learn whether it applied from the returned bool.
type MissionRepository struct {
	db *sqlx.DB
}

// NewMissionRepository creates a new MissionRepository.
func NewMissionRepository(db *sqlx.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// Create inserts a new DISPATCHED mission. A mission_id collision returns ErrDuplicate.
func (r *MissionRepository) Create(ctx context.Context, m *models.Mission) (*models.Mission, error) {
	if m == nil {
		return nil, errors.New("mission is nil")
	}
	if m.Status == "" {
		m.Status = models.MissionStatusDispatched
	}
	if m.Priority == "" {
		m.Priority = models.PriorityStandard
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO missions (mission_id, origin, destination, priority, assigned_driver_id, status, created_at, notes) VALUES (?,?,?,?,?,?,?,?)`,
		m.MissionID, m.Origin, m.Destination, string(m.Priority), m.AssignedDriverID, string(m.Status), m.CreatedAt.UTC(), m.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("mission %s: %w", m.MissionID, ErrDuplicate)
		}
		return nil, err
	}
	created, err := r.GetByMissionID(ctx, m.MissionID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("created mission not found: %s", m.MissionID)
	}
	return created, nil
}

// Exists reports whether a mission with the given id is stored.
func (r *MissionRepository) Exists(ctx context.Context, missionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM missions WHERE mission_id = ?`, missionID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByMissionID fetches a mission; it returns nil, nil when absent.
func (r *MissionRepository) GetByMissionID(ctx context.Context, missionID string) (*models.Mission, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var m models.Mission
	err := r.db.GetContext(ctx, &m, `SELECT `+missionColumns+` FROM missions WHERE mission_id = ?`, missionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Accept moves a mission from DISPATCHED to ACCEPTED for driverID in one statement.
// It applies only while the mission is unassigned or pinned to driverID, the
// driver has not declined it, and the driver holds no other accepted mission.
// Missions created at or before cutoff are past their offer window and cannot
// be accepted. accepted_at never precedes created_at.
func (r *MissionRepository) Accept(ctx context.Context, missionID, driverID string, at, cutoff time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	at = at.UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE missions
SET status = 'ACCEPTED',
    assigned_driver_id = ?,
    accepted_at = CASE WHEN created_at > ? THEN created_at ELSE ? END
WHERE mission_id = ?
  AND status = 'DISPATCHED'
  AND created_at > ?
  AND (assigned_driver_id IS NULL OR assigned_driver_id = ?)
  AND NOT EXISTS (SELECT 1 FROM mission_declines d WHERE d.mission_id = missions.mission_id AND d.driver_id = ?)
  AND NOT EXISTS (SELECT 1 FROM missions busy WHERE busy.assigned_driver_id = ? AND busy.status = 'ACCEPTED')`,
		driverID, at, at, missionID, cutoff.UTC(), driverID, driverID, driverID)
	return applied(res, err)
}

// Complete moves an ACCEPTED mission held by driverID to COMPLETED.
func (r *MissionRepository) Complete(ctx context.Context, missionID, driverID string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	at = at.UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE missions
SET status = 'COMPLETED',
    completed_at = CASE WHEN accepted_at > ? THEN accepted_at ELSE ? END
WHERE mission_id = ? AND status = 'ACCEPTED' AND assigned_driver_id = ?`,
		at, at, missionID, driverID)
	return applied(res, err)
}

// Cancel moves a DISPATCHED or ACCEPTED mission to CANCELLED and returns the
// driver it was assigned to, if any. ok is false when no transition applied.
func (r *MissionRepository) Cancel(ctx context.Context, missionID string, at time.Time) (assigned *string, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var driver sql.NullString
	err = r.db.QueryRowxContext(ctx, `
UPDATE missions
SET status = 'CANCELLED', cancelled_at = ?
WHERE mission_id = ? AND status IN ('DISPATCHED', 'ACCEPTED')
RETURNING assigned_driver_id`, at.UTC(), missionID).Scan(&driver)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if driver.Valid {
		v := driver.String
		assigned = &v
	}
	return assigned, true, nil
}

// Reassign swaps the pinned driver of a DISPATCHED mission from `from` to `to`
// (either may be nil). It is a compare-and-swap: it applies only if the current
// assignee still equals `from`, and never pins a driver who declined the mission.
func (r *MissionRepository) Reassign(ctx context.Context, missionID string, from, to *string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `
UPDATE missions
SET assigned_driver_id = ?
WHERE mission_id = ?
  AND status = 'DISPATCHED'
  AND assigned_driver_id IS ?
  AND NOT EXISTS (SELECT 1 FROM mission_declines d WHERE d.mission_id = missions.mission_id AND d.driver_id = ?)`,
		to, missionID, from, to)
	return applied(res, err)
}

// Expire marks every DISPATCHED mission created at or before cutoff as EXPIRED.
func (r *MissionRepository) Expire(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE missions SET status = 'EXPIRED' WHERE status = 'DISPATCHED' AND created_at <= ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindOffer returns the newest mission driverID may be offered: DISPATCHED,
// unassigned or pinned to the driver, not declined by the driver, and created
// after cutoff. It returns nil, nil when nothing is on offer.
func (r *MissionRepository) FindOffer(ctx context.Context, driverID string, cutoff time.Time) (*models.Mission, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var m models.Mission
	err := r.db.GetContext(ctx, &m, `
SELECT `+missionColumns+`
FROM missions m
WHERE m.status = 'DISPATCHED'
  AND (m.assigned_driver_id IS NULL OR m.assigned_driver_id = ?)
  AND m.created_at > ?
  AND NOT EXISTS (SELECT 1 FROM mission_declines d WHERE d.mission_id = m.mission_id AND d.driver_id = ?)
ORDER BY m.created_at DESC, m.id DESC
LIMIT 1`, driverID, cutoff.UTC(), driverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ActiveForDriver returns the mission driverID currently holds as ACCEPTED, or nil.
func (r *MissionRepository) ActiveForDriver(ctx context.Context, driverID string) (*models.Mission, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var m models.Mission
	err := r.db.GetContext(ctx, &m, `SELECT `+missionColumns+` FROM missions WHERE assigned_driver_id = ? AND status = 'ACCEPTED' ORDER BY accepted_at DESC LIMIT 1`, driverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// applied converts an Exec result into "did the conditional update match a row".
func applied(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
