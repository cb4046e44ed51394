package appointment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no appointment matches the given id.
	ErrNotFound = errors.New("appointment: not found")
	// ErrInvalidTransition is returned when a status change is not in the
	// transition table.
	ErrInvalidTransition = errors.New("appointment: invalid status transition")
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// transitions is the full adjacency table. Self-loops are allowed so a
// no-op save never trips the guard; terminal states only loop.
var transitions = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusScheduled: true, StatusConfirmed: true,
		StatusCancelled: true, StatusNoShow: true,
	},
	StatusConfirmed: {
		StatusConfirmed: true, StatusInProgress: true,
		StatusCancelled: true, StatusNoShow: true,
	},
	StatusInProgress: {
		StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
	},
	StatusCompleted: {StatusCompleted: true},
	StatusCancelled: {StatusCancelled: true},
	StatusNoShow:    {StatusNoShow: true},
}

// CanTransition reports whether from may move to to. Pure function over the
// table; unknown statuses never transition.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Appointment is the plaintext representation handed to and from callers.
// The visit reason is PHI; everything else is scheduling metadata.
type Appointment struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	ProviderID         uuid.UUID  `json:"provider_id"`
	StartsAt           time.Time  `json:"starts_at"`
	EndsAt             time.Time  `json:"ends_at"`
	Status             Status     `json:"status"`
	Reason             *string    `json:"reason,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	ReminderSentAt     *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// reminderWindow is how far ahead of the start time a reminder becomes due.
const reminderWindow = 24 * time.Hour

// ShouldSendReminder reports whether a reminder is due at now: none has been
// sent yet, the appointment is still in the future, and it starts strictly
// within the window. The scheduler polls this; the predicate lives here
// because it depends on appointment state.
func (a *Appointment) ShouldSendReminder(now time.Time) bool {
	if a.ReminderSentAt != nil {
		return false
	}
	if a.Status == StatusCancelled || a.Status == StatusNoShow || a.Status == StatusCompleted {
		return false
	}
	return a.StartsAt.After(now) && a.StartsAt.Before(now.Add(reminderWindow))
}

// Record maps to the appointment table. The reason column is a ciphertext
// blob; the rest is plaintext.
type Record struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	ProviderID         uuid.UUID
	StartsAt           time.Time
	EndsAt             time.Time
	Status             Status
	Reason             *string
	CancelledBy        *uuid.UUID
	CancelledAt        *time.Time
	CancellationReason *string
	ReminderSentAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
