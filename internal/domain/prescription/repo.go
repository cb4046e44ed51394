package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage port for prescriptions.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// UpdateContent rewrites the clinical columns of an active prescription;
	// returns ErrAlreadyDiscontinued if the row is no longer active.
	UpdateContent(ctx context.Context, rec *Record) error
	// Discontinue flips active off and stamps who and when; returns
	// ErrAlreadyDiscontinued if the row is already inactive.
	Discontinue(ctx context.Context, id, discontinuedBy uuid.UUID, discontinuedAt time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Record, int, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Record, error)
}
