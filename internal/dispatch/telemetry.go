package dispatch

import (
	"context"
	"sort"
	"strings"

	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/internal/routing"
	"ambulanceDispatch/models"
)

// Heartbeat is one telemetry report of a driver unit. Position is nil while the
// unit has no fix; the stored position is then kept.
type Heartbeat struct {
	DriverID        string
	Status          models.DriverStatus
	Position        *geo.Point
	Speed           float64
	Origin          string
	Destination     string
	ActiveMissionID string
	// Clearance seeds the clearance column only when the driver row is created.
	Clearance       models.ClearanceStatus
	SelectedRouteID *int
}

// Heartbeat upserts the driver row and, while en route, appends a throttled
// trail point. Repeating a heartbeat leaves one row with the latest last_seen.
func (c *Coordinator) Heartbeat(ctx context.Context, hb Heartbeat) error {
	id := strings.TrimSpace(hb.DriverID)
	if id == "" {
		return invalid("driver id is required")
	}
	if hb.Status == "" {
		hb.Status = models.DriverStatusIdle
	}
	if !hb.Status.Valid() {
		return invalid("unknown driver status %q", hb.Status)
	}
	if hb.Clearance != models.ClearanceNone && hb.Clearance != models.ClearancePending && !hb.Clearance.Resolved() {
		return invalid("unknown clearance status %q", hb.Clearance)
	}
	now := c.now()
	d := &models.Driver{
		DriverID:        id,
		Status:          hb.Status,
		Speed:           hb.Speed,
		Origin:          hb.Origin,
		Destination:     hb.Destination,
		Clearance:       hb.Clearance,
		SelectedRouteID: hb.SelectedRouteID,
		LastSeen:        now,
	}
	if hb.Position != nil {
		lat, lon := hb.Position.Lat, hb.Position.Lon
		d.Lat, d.Lon = &lat, &lon
	}
	if hb.ActiveMissionID != "" {
		mid := hb.ActiveMissionID
		d.ActiveMissionID = &mid
	}
	if err := c.stores.Drivers.Upsert(ctx, d); err != nil {
		return storeErr("heartbeat", err)
	}

	if hb.Status == models.DriverStatusEnRoute && hb.Position != nil && hb.Origin != "" && hb.Destination != "" {
		_, err := c.stores.Telemetry.AppendTrail(ctx, models.TrailPoint{
			DriverID:    id,
			Origin:      hb.Origin,
			Destination: hb.Destination,
			Lat:         hb.Position.Lat,
			Lon:         hb.Position.Lon,
			Speed:       hb.Speed,
			Status:      hb.Status,
			RecordedAt:  now,
		}, c.opts.TrailInterval)
		if err != nil {
			c.log.Warn().Err(err).Str("driver_id", id).Msg("trail point not recorded")
		}
	}
	return nil
}

// Driver returns the telemetry row of one unit.
func (c *Coordinator) Driver(ctx context.Context, driverID string) (*models.Driver, error) {
	d, err := c.stores.Drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, storeErr("get driver", err)
	}
	if d == nil {
		return nil, notFound("driver", driverID)
	}
	d.Online = d.OnlineAt(c.now(), c.opts.OnlineThreshold)
	return d, nil
}

// Drivers returns every telemetry row, most recently seen first, flagged online
// or offline against the online threshold.
func (c *Coordinator) Drivers(ctx context.Context) ([]models.Driver, error) {
	out, err := c.stores.Drivers.List(ctx)
	if err != nil {
		return nil, storeErr("list drivers", err)
	}
	now := c.now()
	for i := range out {
		out[i].Online = out[i].OnlineAt(now, c.opts.OnlineThreshold)
	}
	return out, nil
}

// ListAvailableDrivers returns online, dispatchable drivers with a fix. IDLE units
// come first; within each group units closer to origin rank higher when origin is
// a known location, otherwise the most recently seen rank higher.
func (c *Coordinator) ListAvailableDrivers(ctx context.Context, origin string) ([]models.AvailableDriver, error) {
	c.expireBeforeRead(ctx)
	out, err := c.stores.Drivers.ListAvailable(ctx, c.now().Add(-c.opts.OnlineThreshold))
	if err != nil {
		return nil, storeErr("list available drivers", err)
	}
	now := c.now()
	from, known := c.opts.Locations.Lookup(origin)
	for i := range out {
		out[i].Online = out[i].OnlineAt(now, c.opts.OnlineThreshold)
		if known {
			km := geo.HaversineKm(from, geo.Point{Lat: *out[i].Lat, Lon: *out[i].Lon})
			out[i].DistanceKm = &km
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ai, bi := a.Status == models.DriverStatusIdle, b.Status == models.DriverStatusIdle
		if ai != bi {
			return ai
		}
		if a.DistanceKm != nil && b.DistanceKm != nil {
			return *a.DistanceKm < *b.DistanceKm
		}
		return false
	})
	return out, nil
}

// Trail returns the ghost trail of a driver, oldest first.
func (c *Coordinator) Trail(ctx context.Context, driverID string, limit int) ([]models.TrailPoint, error) {
	out, err := c.stores.Telemetry.Trail(ctx, driverID, limit)
	if err != nil {
		return nil, storeErr("trail", err)
	}
	return out, nil
}

// PruneTrail drops trail points older than the retention window.
func (c *Coordinator) PruneTrail(ctx context.Context) (int64, error) {
	n, err := c.stores.Telemetry.PruneTrail(ctx, c.now().Add(-c.opts.TrailRetention))
	if err != nil {
		return 0, storeErr("prune trail", err)
	}
	if n > 0 {
		c.log.Info().Int64("count", n).Msg("trail points pruned")
	}
	return n, nil
}

// ReportHazard stores a road hazard reported by a driver and raises a WARNING
// entry on the HQ log.
func (c *Coordinator) ReportHazard(ctx context.Context, driverID string, at geo.Point, kind string) (*models.Hazard, error) {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	if driverID == "" || kind == "" {
		return nil, invalid("driver id and hazard kind are required")
	}
	if at.Lat < -90 || at.Lat > 90 || at.Lon < -180 || at.Lon > 180 {
		return nil, invalid("position out of range")
	}
	h, err := c.stores.Telemetry.ReportHazard(ctx, models.Hazard{Lat: at.Lat, Lon: at.Lon, Kind: kind, ReportedBy: driverID, CreatedAt: c.now()})
	if err != nil {
		return nil, storeErr("report hazard", err)
	}
	if _, err := c.stores.Messages.Append(ctx, models.Message{CreatedAt: c.now(), DriverID: driverID, Kind: models.MessageWarning, Text: "HAZARD " + kind}); err != nil {
		c.log.Warn().Err(err).Str("driver_id", driverID).Msg("hazard message not logged")
	}
	return h, nil
}

// Hazards returns recent hazard reports, newest first.
func (c *Coordinator) Hazards(ctx context.Context, limit int) ([]models.Hazard, error) {
	out, err := c.stores.Telemetry.Hazards(ctx, limit)
	if err != nil {
		return nil, storeErr("hazards", err)
	}
	return out, nil
}

// PreviewRoutes returns route alternatives between two known locations without
// creating a mission.
func (c *Coordinator) PreviewRoutes(ctx context.Context, origin, destination string) ([]routing.Route, error) {
	from, ok := c.opts.Locations.Lookup(origin)
	if !ok {
		return nil, invalid("unknown location %q", origin)
	}
	to, ok := c.opts.Locations.Lookup(destination)
	if !ok {
		return nil, invalid("unknown location %q", destination)
	}
	return c.opts.Routes.Alternatives(ctx, from, to), nil
}

// routesFor returns alternatives for an accepted mission, or nil when either
// endpoint is not in the location directory.
func (c *Coordinator) routesFor(ctx context.Context, m *models.Mission) []routing.Route {
	routes, err := c.PreviewRoutes(ctx, m.Origin, m.Destination)
	if err != nil {
		c.log.Debug().Err(err).Str("mission_id", m.MissionID).Msg("no routes for mission")
		return nil
	}
	return routes
}
