package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"ambulanceDispatch/internal/logger"
	"ambulanceDispatch/internal/testutil"
	"ambulanceDispatch/models"
	"ambulanceDispatch/repository"
)

type fixture struct {
	c     *Coordinator
	clock *testutil.Clock
	repos *repository.Set
	db    *sqlx.DB
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.OpenInMemoryDB(t, name))
}

func newFixtureOn(t *testing.T, d *sqlx.DB) *fixture {
	t.Helper()
	clock := testutil.NewClock()
	repos := repository.NewSet(d)
	c := New(StoresFrom(repos), Options{Now: clock.Now, Log: logger.Discard()})
	return &fixture{c: c, clock: clock, repos: repos, db: d}
}

func (f *fixture) addAccount(t *testing.T, driverID string) {
	t.Helper()
	err := f.repos.Accounts.CreateDriver(context.Background(), &models.DriverAccount{
		DriverID:       driverID,
		Username:       "user-" + driverID,
		PasswordDigest: "x",
		FullName:       "Driver " + driverID,
		CreatedAt:      f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", driverID, err)
	}
}

func (f *fixture) create(t *testing.T, origin, destination, priority, pinned string) *models.Mission {
	t.Helper()
	m, err := f.c.CreateMission(context.Background(), NewMission{
		Origin: origin, Destination: destination, Priority: priority, AssignedDriverID: pinned, Actor: "COMMANDER",
	})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	return m
}

type recordingNotifier struct {
	sent []models.Message
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, target, text string, kind models.MessageKind) error {
	n.sent = append(n.sent, models.Message{DriverID: target, Text: text, Kind: kind})
	return n.err
}

func TestNewAppliesDefaults(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "coord_defaults")
	c := New(StoresFrom(repository.NewSet(d)), Options{Log: logger.Discard()})
	if c.opts.MissionExpiry != DefaultMissionExpiry || c.opts.OnlineThreshold != DefaultOnlineThreshold {
		t.Fatalf("unexpected defaults: %+v", c.opts)
	}
	if c.opts.Notifier == nil || c.opts.Routes == nil || c.opts.Locations == nil || c.opts.Rand == nil {
		t.Fatalf("collaborators not defaulted")
	}
	if c.now().Location() != time.UTC {
		t.Fatalf("coordinator time must be UTC")
	}
}

func TestStoreOutageIsTyped(t *testing.T) {
	f := newFixture(t, "coord_outage")
	if err := f.db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	ctx := context.Background()

	if _, err := f.c.PollForOffer(ctx, "D1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("poll: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := f.c.Accept(ctx, "CMD-1-100", "D1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("accept: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := f.c.CreateMission(ctx, NewMission{Origin: "A", Destination: "B"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("create: expected ErrStoreUnavailable, got %v", err)
	}
	if err := f.c.Heartbeat(ctx, Heartbeat{DriverID: "D1"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("heartbeat: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := f.c.RequestClearance(ctx, "D1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("clearance: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestInboxNotifierDefaultsToBroadcast(t *testing.T) {
	f := newFixture(t, "coord_notifier")
	ctx := context.Background()
	n := NewInboxNotifier(f.repos.Messages, f.clock.Now)
	if err := n.Notify(ctx, "", "all units", models.MessageHQBroadcast); err != nil {
		t.Fatalf("notify: %v", err)
	}
	got, err := f.c.Inbox(ctx, "D9", 0, 10)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if len(got) != 1 || got[0].DriverID != models.BroadcastTarget {
		t.Fatalf("expected one broadcast, got %+v", got)
	}
}

func TestNotificationFailureDoesNotFailOperation(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "coord_notify_fail")
	clock := testutil.NewClock()
	n := &recordingNotifier{err: errors.New("down")}
	c := New(StoresFrom(repository.NewSet(d)), Options{Now: clock.Now, Notifier: n, Log: logger.Discard()})

	m, err := c.CreateMission(context.Background(), NewMission{Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("create with failing notifier: %v", err)
	}
	if len(n.sent) != 1 || n.sent[0].Kind != models.MessageHQDispatch || n.sent[0].DriverID != models.BroadcastTarget {
		t.Fatalf("unexpected notifications: %+v", n.sent)
	}
	if m.Status != models.MissionStatusDispatched {
		t.Fatalf("status = %s", m.Status)
	}
}
