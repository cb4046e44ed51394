package insurance

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no coverage matches the given id.
var ErrNotFound = errors.New("insurance: not found")

// PatientInsurance is the plaintext representation of one coverage. Carrier,
// policy number, group number and subscriber name are PHI.
type PatientInsurance struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	Carrier        string     `json:"carrier"`
	PolicyNumber   string     `json:"policy_number"`
	GroupNumber    *string    `json:"group_number,omitempty"`
	SubscriberName *string    `json:"subscriber_name,omitempty"`
	Priority       int        `json:"priority"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Record maps to the patient_insurance table. Coverage identity columns are
// ciphertext blobs; ordering and validity columns are plaintext.
type Record struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	Carrier        string
	PolicyNumber   string
	GroupNumber    *string
	SubscriberName *string
	Priority       int
	ValidFrom      *time.Time
	ValidTo        *time.Time
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
