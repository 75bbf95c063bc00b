package agent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ambulanceDispatch/internal/dispatch"
	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/models"
)

// Default agent timings.
const (
	DefaultPollInterval      = 3 * time.Second
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultSpeedKmh          = 45.0

	// greenWaveBoost multiplies the cruise speed while signals are cleared.
	greenWaveBoost = 1.3
)

// Coordinator is the part of *dispatch.Coordinator a driver unit uses.
type Coordinator interface {
	PollForOffer(ctx context.Context, driverID string) (*models.Mission, error)
	Accept(ctx context.Context, missionID, driverID string) (*dispatch.AcceptResult, error)
	Decline(ctx context.Context, missionID, driverID, reason string) error
	Complete(ctx context.Context, missionID, driverID string, report dispatch.CompletionReport) (*models.Mission, error)
	MissionStatus(ctx context.Context, missionID string) (models.MissionStatus, error)
	ActiveMission(ctx context.Context, driverID string) (*models.Mission, error)
	Heartbeat(ctx context.Context, hb dispatch.Heartbeat) error
	RequestClearance(ctx context.Context, driverID string) (models.ClearanceStatus, error)
	ObserveClearance(ctx context.Context, driverID string) (models.ClearanceStatus, error)
	Inbox(ctx context.Context, driverID string, afterID int64, limit int) ([]models.Message, error)
	Locations() *geo.Directory
}

// Waiter pauses the loop between ticks. It returns early when woken.
type Waiter interface {
	Wait(ctx context.Context, timeout time.Duration) bool
}

type timerWaiter struct{}

func (timerWaiter) Wait(ctx context.Context, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return false
}

// Options tune an Agent. Zero values take the defaults above.
type Options struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	SpeedKmh          float64
	AutoAccept        bool // accept every offer; otherwise offers wait in Session.Offer
	RequestClearance  bool // ask for signal priority when a mission starts
	Now               func() time.Time
	Waiter            Waiter // defaults to plain polling
	Log               zerolog.Logger
}

// Agent drives one Session. It is not safe for concurrent use.
type Agent struct {
	coord   Coordinator
	session *Session
	opts    Options
	log     zerolog.Logger
}

func New(coord Coordinator, session *Session, opts Options) *Agent {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.SpeedKmh <= 0 {
		opts.SpeedKmh = DefaultSpeedKmh
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Waiter == nil {
		opts.Waiter = timerWaiter{}
	}
	return &Agent{
		coord:   coord,
		session: session,
		opts:    opts,
		log:     opts.Log.With().Str("component", "agent").Str("driver_id", session.DriverID).Logger(),
	}
}

// Session exposes the driver state.
func (a *Agent) Session() *Session { return a.session }

// Run ticks until ctx is cancelled. Store outages are retried on the next tick.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Resume(ctx); err != nil {
		a.log.Warn().Err(err).Msg("could not resume active mission")
	}
	for {
		if err := a.Tick(ctx); err != nil {
			ev := a.log.Error()
			if errors.Is(err, dispatch.ErrStoreUnavailable) {
				ev = a.log.Warn()
			}
			ev.Err(err).Msg("tick failed")
		}
		if ctx.Err() != nil {
			return nil
		}
		if a.opts.Waiter.Wait(ctx, a.opts.PollInterval) {
			a.log.Debug().Msg("woken")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Resume reattaches to a mission this unit accepted before a restart.
func (a *Agent) Resume(ctx context.Context) error {
	m, err := a.coord.ActiveMission(ctx, a.session.DriverID)
	if err != nil || m == nil {
		return err
	}
	a.session.startMission(m, nil, a.opts.Now())
	st, err := a.coord.ObserveClearance(ctx, a.session.DriverID)
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
	case err != nil:
		return err
	default:
		a.session.Clearance = st
	}
	a.log.Info().Str("mission_id", m.MissionID).Str("clearance", a.session.Clearance.String()).Msg("resumed mission")
	return nil
}

// Tick runs one cycle: read the inbox, then either advance the current
// mission or look for an offer, then heartbeat when due.
func (a *Agent) Tick(ctx context.Context) error {
	if err := a.readInbox(ctx); err != nil {
		return err
	}
	var err error
	if a.session.OnMission() {
		err = a.drive(ctx)
	} else {
		err = a.lookForWork(ctx)
	}
	if hbErr := a.heartbeatIfDue(ctx, false); err == nil {
		err = hbErr
	}
	return err
}

func (a *Agent) readInbox(ctx context.Context) error {
	msgs, err := a.coord.Inbox(ctx, a.session.DriverID, a.session.LastMessageID, 50)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		a.session.LastMessageID = m.ID
		a.log.Info().Str("kind", string(m.Kind)).Str("text", m.Text).Msg("hq message")
	}
	return nil
}

func (a *Agent) lookForWork(ctx context.Context) error {
	if !a.session.Status.Dispatchable() {
		return nil
	}
	offer, err := a.coord.PollForOffer(ctx, a.session.DriverID)
	if err != nil {
		return err
	}
	a.session.Offer = offer
	if offer == nil || !a.opts.AutoAccept {
		return nil
	}
	return a.AcceptOffer(ctx)
}

// AcceptOffer accepts Session.Offer. Losing the race clears the offer and is not an error.
func (a *Agent) AcceptOffer(ctx context.Context) error {
	offer := a.session.Offer
	if offer == nil {
		return nil
	}
	res, err := a.coord.Accept(ctx, offer.MissionID, a.session.DriverID)
	switch {
	case errors.Is(err, dispatch.ErrMissionAlreadyTaken), errors.Is(err, dispatch.ErrInvalidTransition), errors.Is(err, dispatch.ErrNotFound):
		a.log.Info().Str("mission_id", offer.MissionID).Err(err).Msg("offer gone")
		a.session.Offer = nil
		return nil
	case err != nil:
		return err
	}
	a.session.startMission(res.Mission, res.Routes, a.opts.Now())
	a.log.Info().Str("mission_id", res.Mission.MissionID).Int("routes", len(res.Routes)).Msg("mission accepted")
	if err := a.heartbeatIfDue(ctx, true); err != nil {
		return err
	}
	if a.opts.RequestClearance {
		a.requestClearance(ctx)
	}
	return nil
}

// DeclineOffer declines Session.Offer with an optional reason.
func (a *Agent) DeclineOffer(ctx context.Context, reason string) error {
	offer := a.session.Offer
	if offer == nil {
		return nil
	}
	if err := a.coord.Decline(ctx, offer.MissionID, a.session.DriverID, reason); err != nil && !errors.Is(err, dispatch.ErrInvalidTransition) {
		return err
	}
	a.session.Offer = nil
	return nil
}

// requestClearance asks for signal priority. A decision left over from an
// earlier mission is consumed first so it cannot block the new request.
func (a *Agent) requestClearance(ctx context.Context) {
	st, err := a.coord.RequestClearance(ctx, a.session.DriverID)
	if errors.Is(err, dispatch.ErrInvalidTransition) {
		stale, obsErr := a.coord.ObserveClearance(ctx, a.session.DriverID)
		if obsErr != nil {
			a.log.Warn().Err(obsErr).Msg("stale clearance not consumed")
			return
		}
		a.log.Info().Str("clearance", stale.String()).Msg("discarded decision from a previous mission")
		st, err = a.coord.RequestClearance(ctx, a.session.DriverID)
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("clearance request failed")
		return
	}
	a.session.Clearance = st
}

// drive checks that the mission is still live, picks up clearance decisions
// and moves the unit one poll interval along its route.
func (a *Agent) drive(ctx context.Context) error {
	m := a.session.Mission
	st, err := a.coord.MissionStatus(ctx, m.MissionID)
	if err != nil {
		return err
	}
	if st != models.MissionStatusAccepted {
		a.log.Warn().Str("mission_id", m.MissionID).Str("status", string(st)).Msg("mission withdrawn, aborting navigation")
		a.session.clearMission()
		return a.heartbeatIfDue(ctx, true)
	}

	if a.session.Clearance == models.ClearancePending {
		seen, err := a.coord.ObserveClearance(ctx, a.session.DriverID)
		if err != nil {
			return err
		}
		if seen.Resolved() {
			a.session.Clearance = seen
			a.log.Info().Str("clearance", seen.String()).Msg("clearance decided")
		}
	}

	if a.advance() {
		return a.finish(ctx)
	}
	return nil
}

// advance moves the unit and reports arrival.
func (a *Agent) advance() bool {
	s := a.session
	path := a.path()
	if len(path) == 0 || s.Position == nil {
		return true
	}
	speed := a.opts.SpeedKmh
	if s.Clearance == models.ClearanceGranted {
		speed *= greenWaveBoost
	}
	budget := speed * a.opts.PollInterval.Hours()
	for budget > 0 && s.Waypoint < len(path) {
		target := path[s.Waypoint]
		before := *s.Position
		next, reached := geo.MoveToward(before, target, budget)
		step := geo.HaversineKm(before, next)
		s.TravelledKm += step
		budget -= step
		s.Position = &next
		if !reached {
			break
		}
		s.Waypoint++
	}
	return s.Waypoint >= len(path)
}

// path is the route polyline, or the straight line between the mission's
// endpoints when no route was selected.
func (a *Agent) path() []geo.Point {
	s := a.session
	if s.Route != nil && len(s.Route.Polyline) > 0 {
		return s.Route.Polyline
	}
	locs := a.coord.Locations()
	from, ok1 := locs.Lookup(s.Mission.Origin)
	to, ok2 := locs.Lookup(s.Mission.Destination)
	if !ok1 || !ok2 {
		return nil
	}
	if s.Position == nil {
		p := from
		s.Position = &p
	}
	return []geo.Point{from, to}
}

func (a *Agent) finish(ctx context.Context) error {
	s := a.session
	m := s.Mission
	report := dispatch.CompletionReport{DistanceKm: s.TravelledKm}
	if elapsed := a.opts.Now().Sub(s.StartedAt); elapsed > 0 && s.TravelledKm > 0 {
		report.AvgSpeedKmh = s.TravelledKm / elapsed.Hours()
	}
	if s.Route != nil && s.Clearance == models.ClearanceGranted {
		report.TimeSavedMin = s.Route.ETAMinutes - m.Priority.AdjustETA(s.Route.ETAMinutes)
	}
	if _, err := a.coord.Complete(ctx, m.MissionID, s.DriverID, report); err != nil {
		if errors.Is(err, dispatch.ErrInvalidTransition) {
			a.log.Warn().Err(err).Str("mission_id", m.MissionID).Msg("mission closed elsewhere")
			s.clearMission()
			return nil
		}
		return err
	}
	a.log.Info().Str("mission_id", m.MissionID).Float64("km", s.TravelledKm).Msg("mission completed")
	s.clearMission()
	return a.heartbeatIfDue(ctx, true)
}

func (a *Agent) heartbeatIfDue(ctx context.Context, force bool) error {
	s := a.session
	now := a.opts.Now()
	if !force && !s.LastHeartbeat.IsZero() && now.Sub(s.LastHeartbeat) < a.opts.HeartbeatInterval && !s.OnMission() {
		return nil
	}
	hb := dispatch.Heartbeat{
		DriverID:        s.DriverID,
		Status:          s.Status,
		Position:        s.Position,
		SelectedRouteID: s.selectedRouteID(),
	}
	if s.Mission != nil {
		hb.Origin = s.Mission.Origin
		hb.Destination = s.Mission.Destination
		hb.ActiveMissionID = s.Mission.MissionID
		if s.Status == models.DriverStatusEnRoute {
			hb.Speed = a.opts.SpeedKmh
		}
	}
	if err := a.coord.Heartbeat(ctx, hb); err != nil {
		return err
	}
	s.LastHeartbeat = now
	return nil
}
