package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)

	// ListAll streams every row visible to the bound session context.
	// Exists for the decrypt-and-compare paths (duplicate detection, name
	// search): ciphertext is non-deterministic, so the database cannot do
	// this comparison.
	ListAll(ctx context.Context) ([]*Record, error)
}
