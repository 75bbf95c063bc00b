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

const accountColumns = `driver_id, username, password_digest, full_name, phone, vehicle_id, base_location, created_at`

// AccountRepository stores driver accounts and HQ operators.
type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateDriver inserts a driver account. A driver_id or username collision returns ErrDuplicate.
func (r *AccountRepository) CreateDriver(ctx context.Context, a *models.DriverAccount) error {
	if a == nil {
		return errors.New("account is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	a.CreatedAt = a.CreatedAt.UTC()
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO driver_accounts (`+accountColumns+`)
VALUES (:driver_id, :username, :password_digest, :full_name, :phone, :vehicle_id, :base_location, :created_at)`, a)
	if isUniqueViolation(err) {
		return fmt.Errorf("driver account %s/%s: %w", a.DriverID, a.Username, ErrDuplicate)
	}
	return err
}

func (r *AccountRepository) getDriver(ctx context.Context, where string, arg any) (*models.DriverAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var a models.DriverAccount
	err := r.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM driver_accounts WHERE `+where+` = ?`, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// GetDriverByID returns the account of a unit, or nil, nil.
func (r *AccountRepository) GetDriverByID(ctx context.Context, driverID string) (*models.DriverAccount, error) {
	return r.getDriver(ctx, "driver_id", driverID)
}

// GetDriverByUsername returns the account with the given login name, or nil, nil.
func (r *AccountRepository) GetDriverByUsername(ctx context.Context, username string) (*models.DriverAccount, error) {
	return r.getDriver(ctx, "username", username)
}

// DriverIDExists reports whether driverID is taken.
func (r *AccountRepository) DriverIDExists(ctx context.Context, driverID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM driver_accounts WHERE driver_id = ?`, driverID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateDriverDigest replaces the stored password digest, e.g. after a legacy hash upgrade.
func (r *AccountRepository) UpdateDriverDigest(ctx context.Context, driverID, digest string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE driver_accounts SET password_digest = ? WHERE driver_id = ?`, digest, driverID)
	return err
}

// CreateOperator inserts an HQ operator. An existing username returns ErrDuplicate.
func (r *AccountRepository) CreateOperator(ctx context.Context, o *models.Operator) error {
	if o == nil {
		return errors.New("operator is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO operators (username, password_digest, display_name, created_at) VALUES (?,?,?,?)`,
		o.Username, o.PasswordDigest, o.DisplayName, o.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("operator %s: %w", o.Username, ErrDuplicate)
	}
	return err
}

// GetOperator returns the operator with the given username, or nil, nil.
func (r *AccountRepository) GetOperator(ctx context.Context, username string) (*models.Operator, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var o models.Operator
	err := r.db.GetContext(ctx, &o, `SELECT username, password_digest, display_name, created_at FROM operators WHERE username = ?`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// UpdateOperatorDigest replaces an operator's password digest.
func (r *AccountRepository) UpdateOperatorDigest(ctx context.Context, username, digest string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE operators SET password_digest = ? WHERE username = ?`, digest, username)
	return err
}
