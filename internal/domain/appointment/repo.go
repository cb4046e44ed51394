package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage port for appointments. Status changes carry the
// expected current status so the guard holds in the UPDATE itself.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// UpdateStatus moves from to to; returns ErrInvalidTransition if the row
	// is no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	// Cancel is UpdateStatus plus the cancellation stamp.
	Cancel(ctx context.Context, id uuid.UUID, from Status, cancelledBy uuid.UUID, cancelledAt time.Time, reason string) error
	Reschedule(ctx context.Context, id uuid.UUID, startsAt, endsAt time.Time) error
	MarkReminderSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*Record, error)
	// ListReminderCandidates returns rows with no reminder sent that start
	// inside [now, now+window), restricted to live statuses.
	ListReminderCandidates(ctx context.Context, now time.Time, window time.Duration) ([]*Record, error)
}
