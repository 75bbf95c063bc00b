package models

import "time"

// DriverStatus is the self-reported state of a driver unit.
type DriverStatus string

const (
	DriverStatusIdle     DriverStatus = "IDLE"
	DriverStatusEnRoute  DriverStatus = "EN_ROUTE"
	DriverStatusBreak    DriverStatus = "BREAK"
	DriverStatusInactive DriverStatus = "INACTIVE"
	DriverStatusOffline  DriverStatus = "OFFLINE"
)

// Valid reports whether s is a known driver status.
func (s DriverStatus) Valid() bool {
	switch s {
	case DriverStatusIdle, DriverStatusEnRoute, DriverStatusBreak, DriverStatusInactive, DriverStatusOffline:
		return true
	}
	return false
}

// Dispatchable reports whether a driver in this status may be offered work.
func (s DriverStatus) Dispatchable() bool {
	return s != DriverStatusBreak && s != DriverStatusInactive
}

// ClearanceStatus is the signal-priority handshake state. The zero value is NONE.
type ClearanceStatus string

const (
	ClearanceNone    ClearanceStatus = ""
	ClearancePending ClearanceStatus = "PENDING"
	ClearanceGranted ClearanceStatus = "GRANTED"
	ClearanceDenied  ClearanceStatus = "DENIED"
)

// Resolved reports whether HQ has decided the request.
func (c ClearanceStatus) Resolved() bool {
	return c == ClearanceGranted || c == ClearanceDenied
}

func (c ClearanceStatus) String() string {
	if c == ClearanceNone {
		return "NONE"
	}
	return string(c)
}

// Driver is the live telemetry row of a unit, created by its first heartbeat.
// Lat/Lon are nullable: a unit without a fix is never offered work.
type Driver struct {
	DriverID        string          `db:"driver_id" json:"driver_id"`
	Status          DriverStatus    `db:"status" json:"status"`
	Lat             *float64        `db:"current_lat" json:"lat,omitempty"`
	Lon             *float64        `db:"current_lon" json:"lon,omitempty"`
	Speed           float64         `db:"speed" json:"speed"`
	Origin          string          `db:"origin" json:"origin,omitempty"`
	Destination     string          `db:"destination" json:"destination,omitempty"`
	ActiveMissionID *string         `db:"active_mission_id" json:"active_mission_id,omitempty"`
	Clearance       ClearanceStatus `db:"clearance_status" json:"clearance_status,omitempty"`
	SelectedRouteID *int            `db:"selected_route_id" json:"selected_route_id,omitempty"`
	LastSeen        time.Time       `db:"last_seen" json:"last_seen"`
	// Online is derived from LastSeen when the row is read for HQ; it is not stored.
	Online bool `db:"-" json:"online"`
}

// HasFix reports whether the driver has reported a position.
func (d *Driver) HasFix() bool {
	return d.Lat != nil && d.Lon != nil
}

// OnlineAt reports whether the driver has been seen within threshold of now.
func (d *Driver) OnlineAt(now time.Time, threshold time.Duration) bool {
	return now.Sub(d.LastSeen) <= threshold
}

// AvailableDriver is a Driver joined with its account profile, as shown to HQ.
type AvailableDriver struct {
	Driver
	FullName   string   `db:"full_name" json:"full_name"`
	VehicleID  string   `db:"vehicle_id" json:"vehicle_id"`
	DistanceKm *float64 `db:"-" json:"distance_km,omitempty"`
}

// TrailPoint is one sample of a driver's ghost trail.
type TrailPoint struct {
	ID          int64        `db:"id" json:"id"`
	DriverID    string       `db:"driver_id" json:"driver_id"`
	Origin      string       `db:"origin" json:"origin"`
	Destination string       `db:"destination" json:"destination"`
	Lat         float64      `db:"lat" json:"lat"`
	Lon         float64      `db:"lon" json:"lon"`
	Speed       float64      `db:"speed" json:"speed"`
	Status      DriverStatus `db:"status" json:"status"`
	RecordedAt  time.Time    `db:"recorded_at" json:"recorded_at"`
}

// Hazard is a road hazard reported from the field.
type Hazard struct {
	ID         int64     `db:"id" json:"id"`
	Lat        float64   `db:"lat" json:"lat"`
	Lon        float64   `db:"lon" json:"lon"`
	Kind       string    `db:"kind" json:"kind"`
	ReportedBy string    `db:"reported_by" json:"reported_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
