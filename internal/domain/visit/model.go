package visit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no visit matches the given id.
	ErrNotFound = errors.New("visit: not found")
	// ErrInvalidTransition is returned when a status change is not in the
	// transition table.
	ErrInvalidTransition = errors.New("visit: invalid status transition")
	// ErrNotEditable is returned when clinical content is modified after the
	// visit left Draft.
	ErrNotEditable = errors.New("visit: clinical content is frozen")
)

// Status is the visit workflow state.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusSigned Status = "signed"
	StatusLocked Status = "locked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSigned, StatusLocked:
		return true
	}
	return false
}

// transitions is the full adjacency table. Self-loops are allowed so a
// no-op save never trips the guard; Locked is terminal.
var transitions = map[Status]map[Status]bool{
	StatusDraft:  {StatusDraft: true, StatusSigned: true},
	StatusSigned: {StatusSigned: true, StatusLocked: true},
	StatusLocked: {StatusLocked: true},
}

// CanTransition reports whether from may move to to. Pure function over the
// table; unknown statuses never transition.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Visit is the plaintext representation handed to and from callers. SOAP
// fields, vitals and review of systems are PHI; the rest is workflow
// metadata.
type Visit struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	ProviderID      uuid.UUID         `json:"provider_id"`
	VisitDate       time.Time         `json:"visit_date"`
	Status          Status            `json:"status"`
	Subjective      *string           `json:"subjective,omitempty"`
	Objective       *string           `json:"objective,omitempty"`
	Assessment      *string           `json:"assessment,omitempty"`
	Plan            *string           `json:"plan,omitempty"`
	Vitals          *Vitals           `json:"vitals,omitempty"`
	ReviewOfSystems map[string]string `json:"review_of_systems,omitempty"`
	SignedBy        *uuid.UUID        `json:"signed_by,omitempty"`
	SignedAt        *time.Time        `json:"signed_at,omitempty"`
	SignatureHash   *string           `json:"signature_hash,omitempty"`
	LockedAt        *time.Time        `json:"locked_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Vitals is a structured PHI value stored as a single encrypted JSON blob.
type Vitals struct {
	SystolicBP      *int     `json:"systolic_bp,omitempty"`
	DiastolicBP     *int     `json:"diastolic_bp,omitempty"`
	HeartRate       *int     `json:"heart_rate,omitempty"`
	RespiratoryRate *int     `json:"respiratory_rate,omitempty"`
	TemperatureC    *float64 `json:"temperature_c,omitempty"`
	WeightKg        *float64 `json:"weight_kg,omitempty"`
	HeightCm        *float64 `json:"height_cm,omitempty"`
	SpO2            *int     `json:"spo2,omitempty"`
}

// IsEditable reports whether clinical content may still change.
func (v *Visit) IsEditable() bool {
	return v.Status == StatusDraft
}

// ContentDigest returns a hex sha256 over the clinical content. Stamped on
// the visit at signing so later tampering with stored ciphertext is
// detectable against the signed snapshot.
func (v *Visit) ContentDigest() string {
	h := sha256.New()
	writeField := func(s *string) {
		if s != nil {
			h.Write([]byte{1})
			h.Write([]byte(*s))
		}
		h.Write([]byte{0})
	}
	writeField(v.Subjective)
	writeField(v.Objective)
	writeField(v.Assessment)
	writeField(v.Plan)
	if v.Vitals != nil {
		b, _ := json.Marshal(v.Vitals)
		h.Write(b)
	}
	h.Write([]byte{0})
	if v.ReviewOfSystems != nil {
		b, _ := json.Marshal(v.ReviewOfSystems)
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Record maps to the visit table. Workflow columns are plaintext; every
// clinical field is a ciphertext blob.
type Record struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ProviderID      uuid.UUID
	VisitDate       time.Time
	Status          Status
	Subjective      *string
	Objective       *string
	Assessment      *string
	Plan            *string
	Vitals          *string
	ReviewOfSystems *string
	SignedBy        *uuid.UUID
	SignedAt        *time.Time
	SignatureHash   *string
	LockedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusHistory maps to the visit_status_history table. One row is appended
// per transition.
type StatusHistory struct {
	ID        uuid.UUID  `json:"id"`
	VisitID   uuid.UUID  `json:"visit_id"`
	Status    Status     `json:"status"`
	ChangedBy *uuid.UUID `json:"changed_by,omitempty"`
	ChangedAt time.Time  `json:"changed_at"`
}
