package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ambulanceDispatch/internal/routing"
	"ambulanceDispatch/models"
	"ambulanceDispatch/repository"
)

// NewMission is the HQ input for CreateMission.
type NewMission struct {
	Origin           string
	Destination      string
	Priority         string // empty means STANDARD
	AssignedDriverID string // empty leaves the mission open to any eligible driver
	Notes            string
	Actor            string
}

// AcceptResult is a successfully accepted mission and its route alternatives.
type AcceptResult struct {
	Mission *models.Mission
	Routes  []routing.Route
}

// CompletionReport carries optional trip figures from the driver. A zero
// DistanceKm is replaced by the straight-line distance between the endpoints.
type CompletionReport struct {
	DistanceKm   float64
	TimeSavedMin float64
	AvgSpeedKmh  float64
}

// CreateMission validates and stores a new DISPATCHED mission, then announces it
// to the pinned driver or to every driver.
func (c *Coordinator) CreateMission(ctx context.Context, in NewMission) (*models.Mission, error) {
	origin := strings.TrimSpace(in.Origin)
	destination := strings.TrimSpace(in.Destination)
	if origin == "" || destination == "" {
		return nil, invalid("origin and destination are required")
	}
	if origin == destination {
		return nil, invalid("origin and destination must differ")
	}
	priority, err := models.ParsePriority(in.Priority)
	if err != nil {
		return nil, invalid("%v", err)
	}
	var assigned *string
	if id := strings.TrimSpace(in.AssignedDriverID); id != "" {
		acct, err := c.stores.Accounts.GetDriverByID(ctx, id)
		if err != nil {
			return nil, storeErr("create mission", err)
		}
		if acct == nil {
			return nil, invalid("unknown driver %s", id)
		}
		assigned = &id
	}

	now := c.now()
	id, err := shortID(ctx, "CMD", now, c.opts.Rand, c.stores.Missions.Exists)
	if err != nil {
		return nil, storeErr("create mission", err)
	}
	m := &models.Mission{
		MissionID:        id,
		Origin:           origin,
		Destination:      destination,
		Priority:         priority,
		AssignedDriverID: assigned,
		Status:           models.MissionStatusDispatched,
		CreatedAt:        now,
		Notes:            strings.TrimSpace(in.Notes),
	}
	created, err := c.stores.Missions.Create(ctx, m)
	if errors.Is(err, repository.ErrDuplicate) {
		// Another process stored the same short id between the check and the insert.
		m.MissionID = fallbackID("CMD", now)
		created, err = c.stores.Missions.Create(ctx, m)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("create mission %s: %w", m.MissionID, ErrDuplicateMissionID)
		}
	}
	if err != nil {
		return nil, storeErr("create mission", err)
	}

	target := models.BroadcastTarget
	if assigned != nil {
		target = *assigned
	}
	text := fmt.Sprintf("MISSION %s: %s -> %s [%s]", created.MissionID, created.Origin, created.Destination, created.Priority)
	if created.Notes != "" {
		text += " " + created.Notes
	}
	c.notify(ctx, target, text, models.MessageHQDispatch)
	c.audit(ctx, "DISPATCH", in.Actor, fmt.Sprintf("%s %s -> %s target=%s", created.MissionID, created.Origin, created.Destination, target))
	c.log.Info().Str("mission_id", created.MissionID).Str("priority", string(created.Priority)).Str("target", target).Msg("mission dispatched")
	return created, nil
}

// PollForOffer returns the newest mission driverID may accept, or nil.
func (c *Coordinator) PollForOffer(ctx context.Context, driverID string) (*models.Mission, error) {
	if driverID == "" {
		return nil, invalid("driver id is required")
	}
	m, err := c.stores.Missions.FindOffer(ctx, driverID, c.expiryCutoff())
	if err != nil {
		return nil, storeErr("poll offer", err)
	}
	return m, nil
}

// Accept claims a mission for driverID. Exactly one of any number of concurrent
// callers succeeds; the rest get ErrMissionAlreadyTaken.
func (c *Coordinator) Accept(ctx context.Context, missionID, driverID string) (*AcceptResult, error) {
	if missionID == "" || driverID == "" {
		return nil, invalid("mission id and driver id are required")
	}
	ok, err := c.stores.Missions.Accept(ctx, missionID, driverID, c.now(), c.expiryCutoff())
	if err != nil {
		return nil, storeErr("accept", err)
	}
	if !ok {
		return nil, c.acceptRefusal(ctx, missionID, driverID)
	}
	m, err := c.stores.Missions.GetByMissionID(ctx, missionID)
	if err != nil || m == nil {
		if err == nil {
			err = errors.New("accepted mission vanished")
		}
		return nil, storeErr("accept", err)
	}

	if _, err := c.stores.Drivers.SetAssignment(ctx, driverID, models.DriverStatusEnRoute, &m.MissionID, m.Origin, m.Destination); err != nil {
		c.log.Warn().Err(err).Str("driver_id", driverID).Msg("driver row not refreshed after accept")
	}
	c.audit(ctx, "ACCEPT", driverID, m.MissionID)
	c.log.Info().Str("mission_id", m.MissionID).Str("driver_id", driverID).Msg("mission accepted")
	return &AcceptResult{Mission: m, Routes: c.routesFor(ctx, m)}, nil
}

// acceptRefusal explains why the conditional accept matched no row. The read is
// advisory; the write already decided the outcome.
func (c *Coordinator) acceptRefusal(ctx context.Context, missionID, driverID string) error {
	m, err := c.stores.Missions.GetByMissionID(ctx, missionID)
	if err != nil {
		return storeErr("accept", err)
	}
	if m == nil {
		return notFound("mission", missionID)
	}
	if m.Status.Terminal() || !m.OfferableTo(driverID) {
		return fmt.Errorf("accept %s: %w", missionID, ErrMissionAlreadyTaken)
	}
	if !m.CreatedAt.After(c.expiryCutoff()) {
		c.expireBeforeRead(ctx)
		return fmt.Errorf("accept %s: %w: offer window closed", missionID, ErrMissionAlreadyTaken)
	}
	declined, err := c.stores.Declines.IsDeclined(ctx, missionID, driverID)
	if err != nil {
		return storeErr("accept", err)
	}
	if declined {
		return &TransitionError{Op: "accept", MissionID: missionID, From: m.Status, Reason: "declined by this driver"}
	}
	active, err := c.stores.Missions.ActiveForDriver(ctx, driverID)
	if err != nil {
		return storeErr("accept", err)
	}
	if active != nil {
		return fmt.Errorf("accept %s: %w (%s)", missionID, ErrDriverBusy, active.MissionID)
	}
	return fmt.Errorf("accept %s: %w", missionID, ErrMissionAlreadyTaken)
}

// Decline records that driverID will not take missionID and releases the
// mission if it was pinned to that driver. Repeating a decline is harmless.
func (c *Coordinator) Decline(ctx context.Context, missionID, driverID, reason string) error {
	if missionID == "" || driverID == "" {
		return invalid("mission id and driver id are required")
	}
	m, err := c.stores.Missions.GetByMissionID(ctx, missionID)
	if err != nil {
		return storeErr("decline", err)
	}
	if m == nil {
		return notFound("mission", missionID)
	}
	if m.Status.Terminal() {
		return &TransitionError{Op: "decline", MissionID: missionID, From: m.Status, Reason: "mission is closed"}
	}
	if m.Status != models.MissionStatusDispatched {
		return &TransitionError{Op: "decline", MissionID: missionID, From: m.Status}
	}
	if !m.OfferableTo(driverID) {
		return &TransitionError{Op: "decline", MissionID: missionID, From: m.Status, Reason: "assigned to another driver"}
	}
	released, err := c.stores.Declines.Record(ctx, models.MissionDecline{
		MissionID:  missionID,
		DriverID:   driverID,
		DeclinedAt: c.now(),
		Reason:     strings.TrimSpace(reason),
	})
	if err != nil {
		return storeErr("decline", err)
	}
	c.audit(ctx, "DECLINE", driverID, fmt.Sprintf("%s reason=%q", missionID, reason))
	c.log.Info().Str("mission_id", missionID).Str("driver_id", driverID).Bool("released", released).Msg("mission declined")
	return nil
}

// Complete closes an ACCEPTED mission held by driverID and writes its mission log.
func (c *Coordinator) Complete(ctx context.Context, missionID, driverID string, report CompletionReport) (*models.Mission, error) {
	if missionID == "" || driverID == "" {
		return nil, invalid("mission id and driver id are required")
	}
	ok, err := c.stores.Missions.Complete(ctx, missionID, driverID, c.now())
	if err != nil {
		return nil, storeErr("complete", err)
	}
	m, err := c.stores.Missions.GetByMissionID(ctx, missionID)
	if err != nil {
		return nil, storeErr("complete", err)
	}
	if m == nil {
		return nil, notFound("mission", missionID)
	}
	if !ok {
		reason := ""
		if m.Status == models.MissionStatusAccepted {
			reason = "held by another driver"
		}
		return nil, &TransitionError{Op: "complete", MissionID: missionID, From: m.Status, Reason: reason}
	}

	if _, err := c.stores.Drivers.SetAssignment(ctx, driverID, models.DriverStatusIdle, nil, "", ""); err != nil {
		c.log.Warn().Err(err).Str("driver_id", driverID).Msg("driver row not reset after completion")
	}
	c.recordMissionLog(ctx, m, report)
	c.audit(ctx, "COMPLETE", driverID, m.MissionID)
	c.log.Info().Str("mission_id", m.MissionID).Str("driver_id", driverID).Msg("mission completed")
	return m, nil
}

func (c *Coordinator) recordMissionLog(ctx context.Context, m *models.Mission, report CompletionReport) {
	distance := report.DistanceKm
	if distance <= 0 {
		distance, _ = c.opts.Locations.DistanceKm(m.Origin, m.Destination)
	}
	entry := &models.MissionLog{
		CreatedAt:    c.now(),
		MissionID:    m.MissionID,
		Origin:       m.Origin,
		Destination:  m.Destination,
		Priority:     m.Priority,
		DistanceKm:   distance,
		TimeSavedMin: report.TimeSavedMin,
		CO2SavedKg:   models.EstimateCO2Saved(distance, report.TimeSavedMin),
		AvgSpeedKmh:  report.AvgSpeedKmh,
	}
	if err := c.stores.Missions.RecordLog(ctx, entry); err != nil {
		c.log.Warn().Err(err).Str("mission_id", m.MissionID).Msg("mission log not written")
	}
}

// CancelMission stops a DISPATCHED or ACCEPTED mission. The assigned driver is
// told through its inbox and notices on its next poll.
func (c *Coordinator) CancelMission(ctx context.Context, missionID, actor string) (*models.Mission, error) {
	if missionID == "" {
		return nil, invalid("mission id is required")
	}
	assigned, ok, err := c.stores.Missions.Cancel(ctx, missionID, c.now())
	if err != nil {
		return nil, storeErr("cancel", err)
	}
	m, err := c.stores.Missions.GetByMissionID(ctx, missionID)
	if err != nil {
		return nil, storeErr("cancel", err)
	}
	if m == nil {
		return nil, notFound("mission", missionID)
	}
	if !ok {
		return nil, &TransitionError{Op: "cancel", MissionID: missionID, From: m.Status}
	}

	target := models.BroadcastTarget
	if assigned != nil {
		target = *assigned
	}
	c.notify(ctx, target, fmt.Sprintf("MISSION %s CANCELLED BY HQ", missionID), models.MessageHQAlert)
	c.audit(ctx, "CANCEL", actor, missionID)
	c.log.Info().Str("mission_id", missionID).Str("notified", target).Msg("mission cancelled")
	return m, nil
}

// ReassignMission pins a DISPATCHED mission to driverID, or unpins it when
// driverID is empty. Both the previous and the new assignee are told.
func (c *Coordinator) ReassignMission(ctx context.Context, missionID, driverID, actor string) (*models.Mission, error) {
	if missionID == "" {
		return nil, invalid("mission id is required")
	}
	var to *string
	if id := strings.TrimSpace(driverID); id != "" {
		acct, err := c.stores.Accounts.GetDriverByID(ctx, id)
		if err != nil {
			return nil, storeErr("reassign", err)
		}
		if acct == nil {
			return nil, invalid("unknown driver %s", id)
		}
		to = &id
	}

	m, err := c.stores.Missions.GetByMissionID(ctx, missionID)
	if err != nil {
		return nil, storeErr("reassign", err)
	}
	if m == nil {
		return nil, notFound("mission", missionID)
	}
	if m.Status != models.MissionStatusDispatched {
		return nil, &TransitionError{Op: "reassign", MissionID: missionID, From: m.Status}
	}
	if to != nil {
		declined, err := c.stores.Declines.IsDeclined(ctx, missionID, *to)
		if err != nil {
			return nil, storeErr("reassign", err)
		}
		if declined {
			return nil, &TransitionError{Op: "reassign", MissionID: missionID, From: m.Status, Reason: *to + " declined this mission"}
		}
	}

	from := m.AssignedDriverID
	ok, err := c.stores.Missions.Reassign(ctx, missionID, from, to)
	if err != nil {
		return nil, storeErr("reassign", err)
	}
	if !ok {
		latest, err := c.stores.Missions.GetByMissionID(ctx, missionID)
		if err != nil {
			return nil, storeErr("reassign", err)
		}
		if latest != nil && latest.Status != models.MissionStatusDispatched {
			return nil, &TransitionError{Op: "reassign", MissionID: missionID, From: latest.Status}
		}
		return nil, fmt.Errorf("reassign %s: %w", missionID, ErrConflict)
	}

	if from != nil && (to == nil || *from != *to) {
		c.notify(ctx, *from, fmt.Sprintf("MISSION %s REASSIGNED BY HQ", missionID), models.MessageHQReassign)
	}
	target := models.BroadcastTarget
	if to != nil {
		target = *to
	}
	c.notify(ctx, target, fmt.Sprintf("MISSION %s: %s -> %s [%s] ASSIGNED", missionID, m.Origin, m.Destination, m.Priority), models.MessageHQReassign)
	c.audit(ctx, "REASSIGN", actor, fmt.Sprintf("%s target=%s", missionID, target))

	m.AssignedDriverID = to
	return m, nil
}

// ExpireStale expires DISPATCHED missions older than the mission expiry.
func (c *Coordinator) ExpireStale(ctx context.Context) (int64, error) {
	n, err := c.stores.Missions.Expire(ctx, c.expiryCutoff())
	if err != nil {
		return 0, storeErr("expire", err)
	}
	if n > 0 {
		c.log.Info().Int64("count", n).Msg("missions expired")
	}
	return n, nil
}

// expireBeforeRead runs expiry ahead of an HQ listing; a failure only degrades
// freshness, so it is logged.
func (c *Coordinator) expireBeforeRead(ctx context.Context) {
	if _, err := c.ExpireStale(ctx); err != nil {
		c.log.Warn().Err(err).Msg("expiry sweep failed")
	}
}

// Mission returns one mission by id.
func (c *Coordinator) Mission(ctx context.Context, missionID string) (*models.Mission, error) {
	m, err := c.stores.Missions.GetByMissionID(ctx, missionID)
	if err != nil {
		return nil, storeErr("get mission", err)
	}
	if m == nil {
		return nil, notFound("mission", missionID)
	}
	return m, nil
}

// ActiveMission returns the mission driverID currently holds, or nil.
func (c *Coordinator) ActiveMission(ctx context.Context, driverID string) (*models.Mission, error) {
	m, err := c.stores.Missions.ActiveForDriver(ctx, driverID)
	if err != nil {
		return nil, storeErr("active mission", err)
	}
	return m, nil
}

// ListMissions returns missions for the HQ board after expiring stale ones.
func (c *Coordinator) ListMissions(ctx context.Context, p repository.ListMissionsParams) ([]models.Mission, error) {
	c.expireBeforeRead(ctx)
	out, err := c.stores.Missions.List(ctx, p)
	if err != nil {
		return nil, storeErr("list missions", err)
	}
	return out, nil
}

// OfflineAlerts lists accepted missions whose driver went silent.
func (c *Coordinator) OfflineAlerts(ctx context.Context) ([]models.OfflineAlert, error) {
	out, err := c.stores.Missions.OfflineAlerts(ctx, c.now().Add(-c.opts.OfflineAlertAfter))
	if err != nil {
		return nil, storeErr("offline alerts", err)
	}
	return out, nil
}

// CompletedCount returns the number of missions driverID completed.
func (c *Coordinator) CompletedCount(ctx context.Context, driverID string) (int, error) {
	n, err := c.stores.Missions.CompletedCount(ctx, driverID)
	if err != nil {
		return 0, storeErr("completed count", err)
	}
	return n, nil
}

// Leaderboard ranks drivers by completed missions.
func (c *Coordinator) Leaderboard(ctx context.Context, limit int) ([]models.DriverScore, error) {
	out, err := c.stores.Missions.Leaderboard(ctx, limit)
	if err != nil {
		return nil, storeErr("leaderboard", err)
	}
	return out, nil
}

// MissionLogs returns recent completion records.
func (c *Coordinator) MissionLogs(ctx context.Context, limit int) ([]models.MissionLog, error) {
	out, err := c.stores.Missions.Logs(ctx, limit)
	if err != nil {
		return nil, storeErr("mission logs", err)
	}
	return out, nil
}

// MissionStatus is how a driver learns about a cancellation: it reads the
// current status of the mission it is executing on every poll.
func (c *Coordinator) MissionStatus(ctx context.Context, missionID string) (models.MissionStatus, error) {
	m, err := c.Mission(ctx, missionID)
	if err != nil {
		return "", err
	}
	return m.Status, nil
}
