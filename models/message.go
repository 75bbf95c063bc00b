package models

import "time"

// MessageKind classifies an entry of the communication log.
type MessageKind string

const (
	// Driver originated.
	MessageRequest  MessageKind = "REQUEST"
	MessageStatus   MessageKind = "STATUS"
	MessageCritical MessageKind = "CRITICAL"
	MessageWarning  MessageKind = "WARNING"

	// HQ originated.
	MessageHQDispatch  MessageKind = "HQ_DISPATCH"
	MessageHQReassign  MessageKind = "HQ_REASSIGN"
	MessageHQAlert     MessageKind = "HQ_ALERT"
	MessageHQGreenwave MessageKind = "HQ_GREENWAVE"
	MessageHQBroadcast MessageKind = "HQ_BROADCAST"
)

// BroadcastTarget addresses every driver.
const BroadcastTarget = "ALL"

// FromHQ reports whether the kind is sent by HQ to drivers.
func (k MessageKind) FromHQ() bool {
	switch k {
	case MessageHQDispatch, MessageHQReassign, MessageHQAlert, MessageHQGreenwave, MessageHQBroadcast:
		return true
	}
	return false
}

// Message is an append-only communication log entry. For HQ kinds DriverID is
// the recipient (or ALL); for driver kinds it is the sender.
type Message struct {
	ID        int64       `db:"id" json:"id"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	DriverID  string      `db:"driver_id" json:"driver_id"`
	Kind      MessageKind `db:"kind" json:"kind"`
	Text      string      `db:"message" json:"message"`
}

// Activity is an audit log entry.
type Activity struct {
	ID        int64     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Action    string    `db:"action" json:"action"`
	Actor     string    `db:"actor" json:"actor"`
	Details   string    `db:"details" json:"details"`
}
