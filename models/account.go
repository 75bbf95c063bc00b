package models

import "time"

// DriverAccount is the registered identity behind a driver unit.
// Only units with an account can be dispatched to.
type DriverAccount struct {
	DriverID       string    `db:"driver_id" json:"driver_id"`
	Username       string    `db:"username" json:"username"`
	PasswordDigest string    `db:"password_digest" json:"-"`
	FullName       string    `db:"full_name" json:"full_name"`
	Phone          string    `db:"phone" json:"phone,omitempty"`
	VehicleID      string    `db:"vehicle_id" json:"vehicle_id,omitempty"`
	BaseLocation   string    `db:"base_location" json:"base_location,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Operator is an HQ console account.
type Operator struct {
	Username       string    `db:"username" json:"username"`
	PasswordDigest string    `db:"password_digest" json:"-"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
