package dispatch

import (
	"errors"
	"fmt"

	"ambulanceDispatch/models"
)

var (
	// ErrMissionAlreadyTaken is returned when another driver won the accept race
	// or the mission is no longer on offer.
	ErrMissionAlreadyTaken = errors.New("mission already taken")
	// ErrDuplicateMissionID is returned when no unique mission id could be stored.
	ErrDuplicateMissionID = errors.New("duplicate mission id")
	// ErrInvalidTransition is returned for a state change the current state forbids.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrStoreUnavailable wraps every failure of the shared store.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	// ErrConflict is returned when a concurrent writer changed the row first; retrying is safe.
	ErrConflict = errors.New("conflict")
	// ErrDriverBusy is returned when a driver already holds an accepted mission.
	ErrDriverBusy = errors.New("driver already on a mission")
)

// TransitionError describes a refused mission transition.
type TransitionError struct {
	Op        string
	MissionID string
	From      models.MissionStatus
	Reason    string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s %s: %s from %s", e.Op, e.MissionID, ErrInvalidTransition, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
