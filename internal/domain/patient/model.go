package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no patient matches the given id.
	ErrNotFound = errors.New("patient: not found")
	// ErrDuplicatePatient is returned when a create collides with a
	// high-confidence duplicate, either from the pre-insert scan or from the
	// storage layer's uniqueness backstop.
	ErrDuplicatePatient = errors.New("patient: probable duplicate")
)

// dateLayout is the canonical encoding for the date of birth inside its
// ciphertext blob.
const dateLayout = "2006-01-02"

// Patient is the plaintext representation handed to and from callers. It must
// never reach a persistence call: the codec turns it into a Record first.
type Patient struct {
	ID          uuid.UUID  `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth time.Time  `json:"date_of_birth"`
	FiscalCode  *string    `json:"fiscal_code,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Address     *Address   `json:"address,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Address is a structured PHI value stored as a single encrypted JSON blob.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Province   string `json:"province,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Record maps to the patient table. Identifier, flag and timestamp columns
// are plaintext; every demographic field is a ciphertext blob. A Record must
// never be serialized to an external response without passing through the
// codec.
type Record struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	DateOfBirth string
	FiscalCode  *string
	Phone       *string
	Email       *string
	Address     *string
	Notes       *string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
