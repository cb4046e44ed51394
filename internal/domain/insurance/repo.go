package insurance

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the storage port for patient insurance coverages.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Record, error)
}
