package prescription

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no prescription matches the given id.
	ErrNotFound = errors.New("prescription: not found")
	// ErrVisitLocked is returned when a mutation targets a prescription whose
	// originating visit has been locked.
	ErrVisitLocked = errors.New("prescription: originating visit is locked")
	// ErrAlreadyDiscontinued is returned when discontinuing twice.
	ErrAlreadyDiscontinued = errors.New("prescription: already discontinued")
)

// Prescription is the plaintext representation handed to and from callers.
// Medication, dosage, instructions and pharmacy notes are PHI.
type Prescription struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	VisitID         uuid.UUID  `json:"visit_id"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	Medication      string     `json:"medication"`
	Dosage          string     `json:"dosage"`
	Instructions    *string    `json:"instructions,omitempty"`
	PharmacyNotes   *string    `json:"pharmacy_notes,omitempty"`
	Active          bool       `json:"active"`
	DiscontinuedBy  *uuid.UUID `json:"discontinued_by,omitempty"`
	DiscontinuedAt  *time.Time `json:"discontinued_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Record maps to the prescription table. Clinical columns are ciphertext
// blobs; lifecycle columns are plaintext.
type Record struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	VisitID         uuid.UUID
	ProviderID      uuid.UUID
	Medication      string
	Dosage          string
	Instructions    *string
	PharmacyNotes   *string
	Active          bool
	DiscontinuedBy  *uuid.UUID
	DiscontinuedAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
