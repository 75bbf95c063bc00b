package repository

import (
	"context"
	"testing"
	"time"

	"ambulanceDispatch/internal/testutil"
	"ambulanceDispatch/models"
)

func f64(v float64) *float64 { return &v }

func TestDriverUpsertKeepsNewestState(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "repo_driver_upsert")
	repo := NewDriverRepository(d)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &models.Driver{DriverID: "D1", Lat: f64(10), Lon: f64(76), Clearance: models.ClearancePending, LastSeen: t0.Add(time.Minute)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// An older, fix-less heartbeat arriving late.
	if err := repo.Upsert(ctx, &models.Driver{DriverID: "D1", Status: models.DriverStatusEnRoute, Clearance: models.ClearanceGranted, LastSeen: t0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := repo.GetByID(ctx, "D1")
	if err != nil || got == nil {
		t.Fatalf("get: %+v %v", got, err)
	}
	if !got.LastSeen.Equal(t0.Add(time.Minute)) {
		t.Fatalf("last_seen moved backwards: %v", got.LastSeen)
	}
	if !got.HasFix() || *got.Lat != 10 {
		t.Fatalf("position lost: %+v", got)
	}
	if got.Clearance != models.ClearancePending {
		t.Fatalf("clearance overwritten by heartbeat: %s", got.Clearance)
	}
	if got.Status != models.DriverStatusEnRoute {
		t.Fatalf("status = %s", got.Status)
	}
	if missing, err := repo.GetByID(ctx, "D2"); err != nil || missing != nil {
		t.Fatalf("absent driver: %+v %v", missing, err)
	}
}

func TestDriverClearanceTransitions(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "repo_driver_clearance")
	repo := NewDriverRepository(d)
	ctx := context.Background()
	if err := repo.Upsert(ctx, &models.Driver{DriverID: "D1", LastSeen: t0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if ok, _ := repo.ResolveClearance(ctx, "D1", models.ClearanceGranted, t0); ok {
		t.Fatalf("resolved without a request")
	}
	if ok, err := repo.RequestClearance(ctx, "D1", t0); err != nil || !ok {
		t.Fatalf("request: %v %v", ok, err)
	}
	if ok, _ := repo.RequestClearance(ctx, "D1", t0); ok {
		t.Fatalf("request applied twice")
	}
	pending, err := repo.PendingClearances(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending: %+v %v", pending, err)
	}
	if ok, err := repo.ResolveClearance(ctx, "D1", models.ClearanceGranted, t0); err != nil || !ok {
		t.Fatalf("resolve: %v %v", ok, err)
	}
	if ok, _ := repo.ConsumeClearance(ctx, "D1", models.ClearanceDenied, t0); ok {
		t.Fatalf("consumed a decision that was not made")
	}
	if ok, err := repo.ConsumeClearance(ctx, "D1", models.ClearanceGranted, t0); err != nil || !ok {
		t.Fatalf("consume: %v %v", ok, err)
	}
	if ok, _ := repo.ConsumeClearance(ctx, "D1", models.ClearanceGranted, t0); ok {
		t.Fatalf("consumed twice")
	}
	got, _ := repo.GetByID(ctx, "D1")
	if got.Clearance != models.ClearanceNone {
		t.Fatalf("clearance = %s", got.Clearance)
	}
}

func TestDriverAssignmentAndAvailability(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "repo_driver_available")
	repo := NewDriverRepository(d)
	accounts := NewAccountRepository(d)
	ctx := context.Background()

	if ok, err := repo.SetAssignment(ctx, "D1", models.DriverStatusIdle, nil, "", ""); err != nil || ok {
		t.Fatalf("assignment without a row: %v %v", ok, err)
	}
	if err := accounts.CreateDriver(ctx, &models.DriverAccount{DriverID: "D1", Username: "d1", PasswordDigest: "x", FullName: "One", VehicleID: "V1", CreatedAt: t0}); err != nil {
		t.Fatalf("account: %v", err)
	}
	if err := repo.Upsert(ctx, &models.Driver{DriverID: "D1", Lat: f64(10), Lon: f64(76), LastSeen: t0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ok, err := repo.SetAssignment(ctx, "D1", models.DriverStatusEnRoute, strp("M1"), "A", "B")
	if err != nil || !ok {
		t.Fatalf("assignment: %v %v", ok, err)
	}

	avail, err := repo.ListAvailable(ctx, t0.Add(-time.Second))
	if err != nil || len(avail) != 1 {
		t.Fatalf("available: %+v %v", avail, err)
	}
	if avail[0].FullName != "One" || avail[0].VehicleID != "V1" || avail[0].ActiveMissionID == nil || *avail[0].ActiveMissionID != "M1" {
		t.Fatalf("unexpected row: %+v", avail[0])
	}
	if avail, _ := repo.ListAvailable(ctx, t0.Add(time.Second)); len(avail) != 0 {
		t.Fatalf("stale driver listed: %+v", avail)
	}
}
