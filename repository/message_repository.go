package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"ambulanceDispatch/models"
)

// MessageRepository is the append-only communication log (driver_comms) and
// the audit activity log.
type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append stores a message and returns its id.
func (r *MessageRepository) Append(ctx context.Context, m models.Message) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `INSERT INTO driver_comms (created_at, driver_id, kind, message) VALUES (?,?,?,?)`,
		m.CreatedAt.UTC(), m.DriverID, string(m.Kind), m.Text)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Inbox returns HQ messages addressed to driverID or broadcast to everyone,
// with id greater than afterID, oldest first.
func (r *MessageRepository) Inbox(ctx context.Context, driverID string, afterID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out := []models.Message{}
	err := r.db.SelectContext(ctx, &out, `
SELECT id, created_at, driver_id, kind, message
FROM driver_comms
WHERE id > ? AND driver_id IN (?, ?) AND substr(kind, 1, 3) = 'HQ_'
ORDER BY id ASC
LIMIT ?`, afterID, driverID, models.BroadcastTarget, limit)
	return out, err
}

// Recent returns the newest messages of every kind, newest first.
func (r *MessageRepository) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out := []models.Message{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, created_at, driver_id, kind, message FROM driver_comms ORDER BY id DESC LIMIT ?`, limit)
	return out, err
}

// LogActivity appends an audit entry.
func (r *MessageRepository) LogActivity(ctx context.Context, a models.Activity) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO activity_log (created_at, action, actor, details) VALUES (?,?,?,?)`,
		a.CreatedAt.UTC(), a.Action, a.Actor, a.Details)
	return err
}

// Activity returns the newest audit entries, newest first.
func (r *MessageRepository) Activity(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out := []models.Activity{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, created_at, action, actor, details FROM activity_log ORDER BY id DESC LIMIT ?`, limit)
	return out, err
}
