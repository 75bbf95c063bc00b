package models

import (
	"fmt"
	"strings"
	"time"
)

// MissionStatus represents the lifecycle state of a mission.
type MissionStatus string

const (
	MissionStatusDispatched MissionStatus = "DISPATCHED"
	MissionStatusAccepted   MissionStatus = "ACCEPTED"
	MissionStatusCompleted  MissionStatus = "COMPLETED"
	MissionStatusCancelled  MissionStatus = "CANCELLED"
	MissionStatusExpired    MissionStatus = "EXPIRED"
)

// Terminal reports whether no further transition is possible from s.
func (s MissionStatus) Terminal() bool {
	switch s {
	case MissionStatusCompleted, MissionStatusCancelled, MissionStatusExpired:
		return true
	}
	return false
}

// Valid reports whether s is a known mission status.
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionStatusDispatched, MissionStatusAccepted, MissionStatusCompleted, MissionStatusCancelled, MissionStatusExpired:
		return true
	}
	return false
}

// Priority is the urgency class of a mission. It only affects the displayed ETA.
type Priority string

const (
	PriorityStandard Priority = "STANDARD"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

var priorityFactors = map[Priority]float64{
	PriorityStandard: 1.0,
	PriorityMedium:   0.85,
	PriorityHigh:     0.75,
	PriorityCritical: 0.65,
}

// ParsePriority normalises s into a Priority. An empty value means STANDARD.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return PriorityStandard, nil
	}
	p := Priority(s)
	if _, ok := priorityFactors[p]; !ok {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Factor returns the ETA multiplier for p; unknown priorities use 1.0.
func (p Priority) Factor() float64 {
	if f, ok := priorityFactors[p]; ok {
		return f
	}
	return 1.0
}

// AdjustETA scales a raw routing ETA (minutes) for display.
func (p Priority) AdjustETA(rawMinutes float64) float64 {
	return rawMinutes * p.Factor()
}

// DisplayETA is AdjustETA truncated to whole minutes, e.g. 20 at CRITICAL shows 13.
func (p Priority) DisplayETA(rawMinutes float64) int {
	return int(p.AdjustETA(rawMinutes))
}

// Mission is one dispatch request from origin to destination.
// AssignedDriverID is nullable: nil means any eligible driver may take it.
type Mission struct {
	ID               int64         `db:"id" json:"-"`
	MissionID        string        `db:"mission_id" json:"mission_id"`
	Origin           string        `db:"origin" json:"origin"`
	Destination      string        `db:"destination" json:"destination"`
	Priority         Priority      `db:"priority" json:"priority"`
	AssignedDriverID *string       `db:"assigned_driver_id" json:"assigned_driver_id,omitempty"`
	Status           MissionStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	AcceptedAt       *time.Time    `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt      *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt      *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Notes            string        `db:"notes" json:"notes,omitempty"`
	DeclineReason    *string       `db:"decline_reason" json:"decline_reason,omitempty"`
}

// AssignedTo reports whether the mission is pinned to driverID.
func (m *Mission) AssignedTo(driverID string) bool {
	return m.AssignedDriverID != nil && *m.AssignedDriverID == driverID
}

// OfferableTo reports whether driverID could be offered m, ignoring the decline ledger and age.
func (m *Mission) OfferableTo(driverID string) bool {
	return m.Status == MissionStatusDispatched && (m.AssignedDriverID == nil || *m.AssignedDriverID == driverID)
}

// MissionLog is the analytics record written when a mission completes.
type MissionLog struct {
	ID           int64     `db:"id" json:"id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	MissionID    string    `db:"mission_id" json:"mission_id"`
	Origin       string    `db:"origin" json:"origin"`
	Destination  string    `db:"destination" json:"destination"`
	Priority     Priority  `db:"priority" json:"priority"`
	DistanceKm   float64   `db:"distance_km" json:"distance_km"`
	TimeSavedMin float64   `db:"time_saved_min" json:"time_saved_min"`
	CO2SavedKg   float64   `db:"co2_saved_kg" json:"co2_saved_kg"`
	AvgSpeedKmh  float64   `db:"avg_speed_kmh" json:"avg_speed_kmh"`
}

// EstimateCO2Saved returns kilograms of CO2 saved by a faster clearance-assisted run.
func EstimateCO2Saved(distanceKm, timeSavedMin float64) float64 {
	ratio := timeSavedMin / 10
	if ratio < 0.1 {
		ratio = 0.1
	}
	if ratio > 1.0 {
		ratio = 1.0
	}
	return distanceKm * 0.12 * ratio
}

// MissionDecline is one row of the decline ledger. The pair (MissionID, DriverID) is unique.
type MissionDecline struct {
	MissionID  string    `db:"mission_id" json:"mission_id"`
	DriverID   string    `db:"driver_id" json:"driver_id"`
	DeclinedAt time.Time `db:"declined_at" json:"declined_at"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
}

// DriverScore is a leaderboard row.
type DriverScore struct {
	DriverID  string `db:"driver_id" json:"driver_id"`
	FullName  string `db:"full_name" json:"full_name"`
	Completed int    `db:"completed" json:"completed"`
}

// OfflineAlert flags an accepted mission whose driver stopped reporting.
type OfflineAlert struct {
	MissionID string     `db:"mission_id" json:"mission_id"`
	DriverID  string     `db:"driver_id" json:"driver_id"`
	LastSeen  *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}
