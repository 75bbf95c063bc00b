package repository

import (
	"context"
	"testing"
	"time"

	"ambulanceDispatch/internal/testutil"
	"ambulanceDispatch/models"
)

func TestDeclineRecordIsIdempotentAndReleasesPin(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "repo_decline")
	missions := NewMissionRepository(d)
	declines := NewDeclineRepository(d)
	ctx := context.Background()

	if _, err := missions.Create(ctx, newMission("M1", strp("D1"), t0)); err != nil {
		t.Fatalf("create: %v", err)
	}
	released, err := declines.Record(ctx, models.MissionDecline{MissionID: "M1", DriverID: "D1", DeclinedAt: t0, Reason: "Too far"})
	if err != nil || !released {
		t.Fatalf("record: released=%v err=%v", released, err)
	}
	released, err = declines.Record(ctx, models.MissionDecline{MissionID: "M1", DriverID: "D1", DeclinedAt: t0.Add(time.Minute), Reason: "Still too far"})
	if err != nil || released {
		t.Fatalf("repeat record: released=%v err=%v", released, err)
	}

	rows, err := declines.ListForMission(ctx, "M1")
	if err != nil || len(rows) != 1 {
		t.Fatalf("ledger: %+v %v", rows, err)
	}
	if rows[0].Reason != "Still too far" || !rows[0].DeclinedAt.Equal(t0) {
		t.Fatalf("unexpected ledger row: %+v", rows[0])
	}
	m, _ := missions.GetByMissionID(ctx, "M1")
	if m.AssignedDriverID != nil || m.Status != models.MissionStatusDispatched {
		t.Fatalf("mission not released: %+v", m)
	}
	if m.DeclineReason == nil || *m.DeclineReason != "Still too far" {
		t.Fatalf("decline reason: %v", m.DeclineReason)
	}

	// A repeat without a reason keeps the ledger and the mission in agreement.
	if _, err := declines.Record(ctx, models.MissionDecline{MissionID: "M1", DriverID: "D1", DeclinedAt: t0.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("record without reason: %v", err)
	}
	rows, _ = declines.ListForMission(ctx, "M1")
	m, _ = missions.GetByMissionID(ctx, "M1")
	if len(rows) != 1 || rows[0].Reason != "Still too far" || m.DeclineReason == nil || *m.DeclineReason != rows[0].Reason {
		t.Fatalf("reason lost: ledger=%+v mission=%v", rows, m.DeclineReason)
	}

	ok, err := declines.IsDeclined(ctx, "M1", "D1")
	if err != nil || !ok {
		t.Fatalf("is declined: %v %v", ok, err)
	}
	if ok, _ := declines.IsDeclined(ctx, "M1", "D2"); ok {
		t.Fatalf("D2 never declined")
	}
}

func TestDeclineRequiresExistingMission(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "repo_decline_fk")
	declines := NewDeclineRepository(d)
	if _, err := declines.Record(context.Background(), models.MissionDecline{MissionID: "GHOST", DriverID: "D1", DeclinedAt: t0}); err == nil {
		t.Fatalf("expected foreign key failure")
	}
	if ok, _ := declines.IsDeclined(context.Background(), "GHOST", "D1"); ok {
		t.Fatalf("rolled back decline is visible")
	}
}
