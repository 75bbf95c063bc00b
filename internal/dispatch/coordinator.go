// Package dispatch coordinates missions between HQ and driver units. Nothing
// here talks to another process: every decision is a conditional write to the
// shared store, and every observer learns about it by reading the store.
package dispatch

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/internal/routing"
	"ambulanceDispatch/models"
	"ambulanceDispatch/repository"
)

// Default timings.
const (
	DefaultMissionExpiry     = 1800 * time.Second
	DefaultOnlineThreshold   = 60 * time.Second
	DefaultOfflineAlertAfter = 150 * time.Second
	DefaultTrailInterval     = 5 * time.Second
	DefaultTrailRetention    = 7 * 24 * time.Hour
)

// Stores is the set of repositories the coordinator works through.
type Stores struct {
	Missions  repository.MissionRepositoryI
	Declines  repository.DeclineRepositoryI
	Drivers   repository.DriverRepositoryI
	Accounts  repository.AccountRepositoryI
	Telemetry repository.TelemetryRepositoryI
	Messages  repository.MessageRepositoryI
}

// StoresFrom adapts a repository.Set.
func StoresFrom(set *repository.Set) Stores {
	return Stores{
		Missions:  set.Missions,
		Declines:  set.Declines,
		Drivers:   set.Drivers,
		Accounts:  set.Accounts,
		Telemetry: set.Telemetry,
		Messages:  set.Messages,
	}
}

// RouteFinder returns route alternatives; it never fails.
type RouteFinder interface {
	Alternatives(ctx context.Context, origin, destination geo.Point) []routing.Route
}

// Options tune a Coordinator. Zero values take the defaults above.
type Options struct {
	MissionExpiry     time.Duration
	OnlineThreshold   time.Duration
	OfflineAlertAfter time.Duration
	TrailInterval     time.Duration
	TrailRetention    time.Duration

	Now       func() time.Time
	Rand      func(n int) int // uniform in [0, n)
	Notifier  Notifier        // defaults to the durable inbox
	Routes    RouteFinder     // defaults to direct-line only
	Locations *geo.Directory  // defaults to the Kochi hospital directory
	Log       zerolog.Logger
}

// Coordinator is the composition root of mission coordination. It is safe for
// concurrent use; it keeps no state of its own besides configuration.
type Coordinator struct {
	stores Stores
	opts   Options
	log    zerolog.Logger
}

// New builds a Coordinator over stores.
func New(stores Stores, opts Options) *Coordinator {
	if opts.MissionExpiry <= 0 {
		opts.MissionExpiry = DefaultMissionExpiry
	}
	if opts.OnlineThreshold <= 0 {
		opts.OnlineThreshold = DefaultOnlineThreshold
	}
	if opts.OfflineAlertAfter <= 0 {
		opts.OfflineAlertAfter = DefaultOfflineAlertAfter
	}
	if opts.TrailInterval <= 0 {
		opts.TrailInterval = DefaultTrailInterval
	}
	if opts.TrailRetention <= 0 {
		opts.TrailRetention = DefaultTrailRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.IntN
	}
	if opts.Notifier == nil {
		opts.Notifier = NewInboxNotifier(stores.Messages, opts.Now)
	}
	if opts.Routes == nil {
		opts.Routes = routing.NewService(nil, opts.Log)
	}
	if opts.Locations == nil {
		opts.Locations = geo.DefaultDirectory()
	}
	return &Coordinator{
		stores: stores,
		opts:   opts,
		log:    opts.Log.With().Str("component", "dispatch").Logger(),
	}
}

func (c *Coordinator) now() time.Time { return c.opts.Now().UTC() }

// expiryCutoff is the creation time at or before which a DISPATCHED mission is expired.
func (c *Coordinator) expiryCutoff() time.Time { return c.now().Add(-c.opts.MissionExpiry) }

// Locations exposes the location directory used for distances and routing.
func (c *Coordinator) Locations() *geo.Directory { return c.opts.Locations }

// notify sends a best-effort notification; failures are logged, never returned.
func (c *Coordinator) notify(ctx context.Context, target, text string, kind models.MessageKind) {
	if err := c.opts.Notifier.Notify(ctx, target, text, kind); err != nil {
		c.log.Warn().Err(err).Str("target", target).Str("kind", string(kind)).Msg("notification not delivered")
	}
}

// audit appends to the activity log; failures are logged, never returned.
func (c *Coordinator) audit(ctx context.Context, action, actor, details string) {
	err := c.stores.Messages.LogActivity(ctx, models.Activity{CreatedAt: c.now(), Action: action, Actor: actor, Details: details})
	if err != nil {
		c.log.Warn().Err(err).Str("action", action).Msg("activity not logged")
	}
}
