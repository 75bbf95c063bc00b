package dispatch

import (
	"context"
	"fmt"

	"ambulanceDispatch/models"
)

// RequestClearance asks HQ for signal priority. NONE moves to PENDING; asking
// again while PENDING is a no-op. A decision the driver has not observed yet
// must be observed before a new request.
func (c *Coordinator) RequestClearance(ctx context.Context, driverID string) (models.ClearanceStatus, error) {
	if driverID == "" {
		return models.ClearanceNone, invalid("driver id is required")
	}
	// Two rounds: a concurrent observer may reset a decision between the
	// conditional update and the read.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := c.stores.Drivers.RequestClearance(ctx, driverID, c.now())
		if err != nil {
			return models.ClearanceNone, storeErr("request clearance", err)
		}
		if ok {
			if _, err := c.stores.Messages.Append(ctx, models.Message{
				CreatedAt: c.now(), DriverID: driverID, Kind: models.MessageRequest, Text: "SIGNAL PRIORITY REQUESTED",
			}); err != nil {
				c.log.Warn().Err(err).Str("driver_id", driverID).Msg("clearance request not logged")
			}
			c.log.Info().Str("driver_id", driverID).Msg("clearance requested")
			return models.ClearancePending, nil
		}
		d, err := c.stores.Drivers.GetByID(ctx, driverID)
		if err != nil {
			return models.ClearanceNone, storeErr("request clearance", err)
		}
		if d == nil {
			return models.ClearanceNone, notFound("driver", driverID)
		}
		switch d.Clearance {
		case models.ClearancePending:
			return models.ClearancePending, nil
		case models.ClearanceGranted, models.ClearanceDenied:
			return d.Clearance, fmt.Errorf("request clearance %s: %w: %s not yet observed", driverID, ErrInvalidTransition, d.Clearance)
		}
	}
	return models.ClearanceNone, fmt.Errorf("request clearance %s: %w", driverID, ErrConflict)
}

// ResolveClearance records the HQ decision on a PENDING request and tells the driver.
func (c *Coordinator) ResolveClearance(ctx context.Context, driverID string, decision models.ClearanceStatus, actor string) error {
	if driverID == "" {
		return invalid("driver id is required")
	}
	if !decision.Resolved() {
		return invalid("decision must be GRANTED or DENIED, got %s", decision)
	}
	ok, err := c.stores.Drivers.ResolveClearance(ctx, driverID, decision, c.now())
	if err != nil {
		return storeErr("resolve clearance", err)
	}
	if !ok {
		d, err := c.stores.Drivers.GetByID(ctx, driverID)
		if err != nil {
			return storeErr("resolve clearance", err)
		}
		if d == nil {
			return notFound("driver", driverID)
		}
		return fmt.Errorf("resolve clearance %s: %w: from %s", driverID, ErrInvalidTransition, d.Clearance)
	}

	if decision == models.ClearanceGranted {
		c.notify(ctx, driverID, "GREEN WAVE ACTIVE: SIGNALS CLEARED", models.MessageHQGreenwave)
	} else {
		c.notify(ctx, driverID, "SIGNAL PRIORITY DENIED", models.MessageHQAlert)
	}
	c.audit(ctx, "CLEARANCE_"+string(decision), actor, driverID)
	c.log.Info().Str("driver_id", driverID).Str("decision", string(decision)).Msg("clearance resolved")
	return nil
}

// ObserveClearance returns the driver's clearance state. A GRANTED or DENIED
// decision is consumed, so it is returned to exactly one observer; the rest see NONE.
func (c *Coordinator) ObserveClearance(ctx context.Context, driverID string) (models.ClearanceStatus, error) {
	d, err := c.stores.Drivers.GetByID(ctx, driverID)
	if err != nil {
		return models.ClearanceNone, storeErr("observe clearance", err)
	}
	if d == nil {
		return models.ClearanceNone, notFound("driver", driverID)
	}
	if !d.Clearance.Resolved() {
		return d.Clearance, nil
	}
	ok, err := c.stores.Drivers.ConsumeClearance(ctx, driverID, d.Clearance, c.now())
	if err != nil {
		return models.ClearanceNone, storeErr("observe clearance", err)
	}
	if !ok {
		return models.ClearanceNone, nil
	}
	return d.Clearance, nil
}

// PendingClearances is the HQ queue of unanswered requests, oldest first.
func (c *Coordinator) PendingClearances(ctx context.Context) ([]models.Driver, error) {
	out, err := c.stores.Drivers.PendingClearances(ctx)
	if err != nil {
		return nil, storeErr("pending clearances", err)
	}
	return out, nil
}
