package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/models"
)

func TestHeartbeatIsIdempotent(t *testing.T) {
	f := newFixture(t, "telemetry_idempotent")
	ctx := context.Background()
	pos := &geo.Point{Lat: 9.97, Lon: 76.28}

	for i := 0; i < 3; i++ {
		if err := f.c.Heartbeat(ctx, Heartbeat{DriverID: "D1", Status: models.DriverStatusIdle, Position: pos}); err != nil {
			t.Fatalf("heartbeat %d: %v", i, err)
		}
		f.clock.Advance(2 * time.Second)
	}
	drivers, err := f.c.Drivers(ctx)
	if err != nil {
		t.Fatalf("drivers: %v", err)
	}
	if len(drivers) != 1 {
		t.Fatalf("expected one row, got %d", len(drivers))
	}
	want := f.clock.Now().Add(-2 * time.Second)
	if !drivers[0].LastSeen.Equal(want) {
		t.Fatalf("last_seen = %v, want %v", drivers[0].LastSeen, want)
	}

	// A heartbeat without a fix keeps the last position.
	if err := f.c.Heartbeat(ctx, Heartbeat{DriverID: "D1", Status: models.DriverStatusBreak}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	d, err := f.c.Driver(ctx, "D1")
	if err != nil {
		t.Fatalf("driver: %v", err)
	}
	if !d.HasFix() || *d.Lat != pos.Lat || d.Status != models.DriverStatusBreak {
		t.Fatalf("unexpected row: %+v", d)
	}
}

func TestDriversAreFlaggedOnline(t *testing.T) {
	f := newFixture(t, "telemetry_online")
	ctx := context.Background()
	if err := f.c.Heartbeat(ctx, Heartbeat{DriverID: "D1", Status: models.DriverStatusIdle}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	f.clock.Advance(DefaultOnlineThreshold)
	if d, err := f.c.Driver(ctx, "D1"); err != nil || !d.Online {
		t.Fatalf("driver seen exactly at the threshold should be online: %+v %v", d, err)
	}
	f.clock.Advance(time.Second)
	drivers, err := f.c.Drivers(ctx)
	if err != nil || len(drivers) != 1 || drivers[0].Online {
		t.Fatalf("driver silent past the threshold should be offline: %+v %v", drivers, err)
	}
}

func TestHeartbeatValidation(t *testing.T) {
	f := newFixture(t, "telemetry_validation")
	ctx := context.Background()
	if err := f.c.Heartbeat(ctx, Heartbeat{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty driver: %v", err)
	}
	if err := f.c.Heartbeat(ctx, Heartbeat{DriverID: "D1", Status: "FLYING"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad status: %v", err)
	}
}

func TestHeartbeatDoesNotOverwriteClearance(t *testing.T) {
	f := newFixture(t, "telemetry_clearance")
	ctx := context.Background()
	if err := f.c.Heartbeat(ctx, Heartbeat{DriverID: "D1"}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if _, err := f.c.RequestClearance(ctx, "D1"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.c.Heartbeat(ctx, Heartbeat{DriverID: "D1", Clearance: models.ClearanceNone}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	d, _ := f.c.Driver(ctx, "D1")
	if d.Clearance != models.ClearancePending {
		t.Fatalf("clearance = %s, want PENDING", d.Clearance)
	}
}

func TestTrailIsThrottled(t *testing.T) {
	f := newFixture(t, "telemetry_trail")
	ctx := context.Background()
	hb := Heartbeat{
		DriverID:    "D1",
		Status:      models.DriverStatusEnRoute,
		Position:    &geo.Point{Lat: 9.97, Lon: 76.28},
		Origin:      "General Hospital (Ernakulam)",
		Destination: "Lisie Hospital (Kaloor)",
	}
	for _, step := range []time.Duration{0, 2 * time.Second, 2 * time.Second, 2 * time.Second} {
		f.clock.Advance(step)
		if err := f.c.Heartbeat(ctx, hb); err != nil {
			t.Fatalf("heartbeat: %v", err)
		}
	}
	trail, err := f.c.Trail(ctx, "D1", 0)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	// Points at t=0 and t=6s; t=2s and t=4s fall inside the interval.
	if len(trail) != 2 {
		t.Fatalf("expected 2 trail points, got %d", len(trail))
	}
	if !trail[0].RecordedAt.Before(trail[1].RecordedAt) {
		t.Fatalf("trail not oldest first: %+v", trail)
	}

	f.clock.Advance(DefaultTrailRetention + time.Second)
	n, err := f.c.PruneTrail(ctx)
	if err != nil || n != 2 {
		t.Fatalf("prune: n=%d err=%v", n, err)
	}
}

func TestListAvailableDrivers(t *testing.T) {
	f := newFixture(t, "telemetry_available")
	ctx := context.Background()
	for _, id := range []string{"NEAR", "FAR", "BUSY", "STALE", "BREAK", "NOFIX"} {
		f.addAccount(t, id)
	}
	origin := "General Hospital (Ernakulam)"
	at, _ := f.c.Locations().Lookup(origin)
	far, _ := f.c.Locations().Lookup("Samaritan Hospital")

	beat := func(id string, status models.DriverStatus, p *geo.Point) {
		t.Helper()
		if err := f.c.Heartbeat(ctx, Heartbeat{DriverID: id, Status: status, Position: p}); err != nil {
			t.Fatalf("heartbeat %s: %v", id, err)
		}
	}
	beat("STALE", models.DriverStatusIdle, &at)
	f.clock.Advance(DefaultOnlineThreshold + time.Second)
	beat("FAR", models.DriverStatusIdle, &far)
	beat("BUSY", models.DriverStatusEnRoute, &at)
	beat("NEAR", models.DriverStatusIdle, &at)
	beat("BREAK", models.DriverStatusBreak, &at)
	beat("NOFIX", models.DriverStatusIdle, nil)
	beat("GHOST", models.DriverStatusIdle, &at) // no account

	out, err := f.c.ListAvailableDrivers(ctx, origin)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, d := range out {
		ids = append(ids, d.DriverID)
	}
	want := []string{"NEAR", "FAR", "BUSY"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	if out[0].DistanceKm == nil || *out[0].DistanceKm > 0.001 {
		t.Fatalf("distance not computed: %+v", out[0].DistanceKm)
	}
}

func TestReportHazard(t *testing.T) {
	f := newFixture(t, "telemetry_hazard")
	ctx := context.Background()
	h, err := f.c.ReportHazard(ctx, "D1", geo.Point{Lat: 10, Lon: 76.3}, "flooding")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if h.ID == 0 || h.Kind != "FLOODING" {
		t.Fatalf("unexpected hazard: %+v", h)
	}
	if _, err := f.c.ReportHazard(ctx, "D1", geo.Point{Lat: 100}, "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("out of range: %v", err)
	}
	list, err := f.c.Hazards(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("hazards: %v %v", list, err)
	}
	msgs, _ := f.c.Messages(ctx, 10)
	if len(msgs) != 1 || msgs[0].Kind != models.MessageWarning {
		t.Fatalf("warning not logged: %+v", msgs)
	}
}

func TestPreviewRoutesFallsBackToDirectLine(t *testing.T) {
	f := newFixture(t, "telemetry_routes")
	ctx := context.Background()
	routes, err := f.c.PreviewRoutes(ctx, "General Hospital (Ernakulam)", "Lisie Hospital (Kaloor)")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(routes) != 1 || !routes[0].Fallback {
		t.Fatalf("expected one direct route, got %+v", routes)
	}
	if _, err := f.c.PreviewRoutes(ctx, "Nowhere", "Lisie Hospital (Kaloor)"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown location: %v", err)
	}
}
