// Package agent runs a simulated driver unit against the shared store: it polls
// for offers, accepts or declines them, drives the route, asks for signal
// priority and reports heartbeats.
package agent

import (
	"time"

	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/internal/routing"
	"ambulanceDispatch/models"
)

// Session is the client-side state of one driver. Nothing in the store depends
// on it; it can be rebuilt from scratch at any time.
type Session struct {
	// DriverID identifies the unit. Required.
	DriverID string
	// Status is reported on every heartbeat. Default IDLE.
	Status models.DriverStatus
	// Position is the simulated fix. Default nil (no fix) until a mission starts
	// or a base location is given to NewSession.
	Position *geo.Point
	// Offer is the mission last offered and not yet answered. Default nil.
	Offer *models.Mission
	// Mission is the accepted mission being driven. Default nil.
	Mission *models.Mission
	// Route is the selected alternative of Mission. Default nil.
	Route *routing.Route
	// Waypoint is the index in Route.Polyline the unit is heading to. Default 0.
	Waypoint int
	// Clearance is the last clearance state seen by the driver. Default NONE.
	Clearance models.ClearanceStatus
	// TravelledKm accumulates the distance of the current mission. Default 0.
	TravelledKm float64
	// StartedAt is when the current mission was accepted. Default zero.
	StartedAt time.Time
	// LastMessageID is the inbox cursor. Default 0 (read everything).
	LastMessageID int64
	// LastHeartbeat is when the last heartbeat was written. Default zero, which
	// forces a heartbeat on the first tick.
	LastHeartbeat time.Time
}

// NewSession returns a Session with every default applied. base may be nil.
func NewSession(driverID string, base *geo.Point) *Session {
	s := &Session{DriverID: driverID, Status: models.DriverStatusIdle, Clearance: models.ClearanceNone}
	if base != nil {
		p := *base
		s.Position = &p
	}
	return s
}

// OnMission reports whether the unit is driving an accepted mission.
func (s *Session) OnMission() bool { return s.Mission != nil }

// clearMission drops all per-mission state and returns the unit to IDLE.
func (s *Session) clearMission() {
	s.Mission = nil
	s.Route = nil
	s.Waypoint = 0
	s.Clearance = models.ClearanceNone
	s.TravelledKm = 0
	s.StartedAt = time.Time{}
	s.Status = models.DriverStatusIdle
}

// startMission installs an accepted mission. The unit starts at the first
// point of the route when it has no fix of its own.
func (s *Session) startMission(m *models.Mission, routes []routing.Route, at time.Time) {
	s.clearMission()
	s.Offer = nil
	s.Mission = m
	s.Status = models.DriverStatusEnRoute
	s.StartedAt = at
	if len(routes) > 0 {
		r := routes[0]
		s.Route = &r
		if len(r.Polyline) > 0 && s.Position == nil {
			p := r.Polyline[0]
			s.Position = &p
		}
	}
}

// selectedRouteID returns the id of the selected route, or nil.
func (s *Session) selectedRouteID() *int {
	if s.Route == nil {
		return nil
	}
	id := s.Route.RouteID
	return &id
}
