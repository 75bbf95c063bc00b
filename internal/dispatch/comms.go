package dispatch

import (
	"context"
	"strings"

	"ambulanceDispatch/models"
)

// SendMessage is a free-text HQ message to one driver, or to every driver when
// target is empty or ALL.
func (c *Coordinator) SendMessage(ctx context.Context, target, text, actor string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid("message text is required")
	}
	target = strings.TrimSpace(target)
	if target == "" {
		target = models.BroadcastTarget
	}
	if err := c.opts.Notifier.Notify(ctx, target, text, models.MessageHQBroadcast); err != nil {
		return storeErr("send message", err)
	}
	c.audit(ctx, "MESSAGE", actor, "to="+target)
	return nil
}

// SendStatus logs a driver-originated message (status, SOS, warning) for HQ.
func (c *Coordinator) SendStatus(ctx context.Context, driverID string, kind models.MessageKind, text string) (int64, error) {
	text = strings.TrimSpace(text)
	if driverID == "" || text == "" {
		return 0, invalid("driver id and text are required")
	}
	switch kind {
	case models.MessageStatus, models.MessageCritical, models.MessageWarning, models.MessageRequest:
	case "":
		kind = models.MessageStatus
	default:
		return 0, invalid("drivers cannot send %s messages", kind)
	}
	id, err := c.stores.Messages.Append(ctx, models.Message{CreatedAt: c.now(), DriverID: driverID, Kind: kind, Text: text})
	if err != nil {
		return 0, storeErr("send status", err)
	}
	if kind == models.MessageCritical {
		c.log.Warn().Str("driver_id", driverID).Str("text", text).Msg("critical message from unit")
	}
	return id, nil
}

// Inbox returns HQ messages for driverID (including broadcasts) newer than afterID.
func (c *Coordinator) Inbox(ctx context.Context, driverID string, afterID int64, limit int) ([]models.Message, error) {
	if driverID == "" {
		return nil, invalid("driver id is required")
	}
	out, err := c.stores.Messages.Inbox(ctx, driverID, afterID, limit)
	if err != nil {
		return nil, storeErr("inbox", err)
	}
	return out, nil
}

// Messages returns the newest communication log entries for the HQ console.
func (c *Coordinator) Messages(ctx context.Context, limit int) ([]models.Message, error) {
	out, err := c.stores.Messages.Recent(ctx, limit)
	if err != nil {
		return nil, storeErr("messages", err)
	}
	return out, nil
}

// Activity returns the newest audit entries.
func (c *Coordinator) Activity(ctx context.Context, limit int) ([]models.Activity, error) {
	out, err := c.stores.Messages.Activity(ctx, limit)
	if err != nil {
		return nil, storeErr("activity", err)
	}
	return out, nil
}
