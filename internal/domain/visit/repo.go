package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage port for visits. Status changes go through
// MarkSigned/MarkLocked, which re-check the current status in the same
// statement so a race cannot skip a state.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// UpdateContent writes clinical fields only while the row is still in
	// Draft; returns ErrNotEditable if the visit has moved on.
	UpdateContent(ctx context.Context, rec *Record) error
	// MarkSigned moves Draft to Signed, stamping signer, time and content
	// digest; returns ErrInvalidTransition if the row is not in Draft.
	MarkSigned(ctx context.Context, id, signedBy uuid.UUID, signedAt time.Time, signatureHash string) error
	// MarkLocked moves Signed to Locked; returns ErrInvalidTransition if the
	// row is not in Signed.
	MarkLocked(ctx context.Context, id uuid.UUID, lockedAt time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	AddStatusHistory(ctx context.Context, h *StatusHistory) error
	GetStatusHistory(ctx context.Context, visitID uuid.UUID) ([]*StatusHistory, error)
}
