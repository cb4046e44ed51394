package appointment

import (
	"fmt"

	"github.com/praxisoft/backoffice/internal/platform/phi"
)

// Codec owns the mapping between Appointment and Record. Only the visit
// reason is encrypted; scheduling metadata stays queryable in plaintext.
type Codec struct {
	cipher *phi.Cipher
}

func NewCodec(cipher *phi.Cipher) *Codec {
	return &Codec{cipher: cipher}
}

func (c *Codec) ToRecord(a *Appointment) (*Record, error) {
	rec := &Record{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		ProviderID:         a.ProviderID,
		StartsAt:           a.StartsAt,
		EndsAt:             a.EndsAt,
		Status:             a.Status,
		CancelledBy:        a.CancelledBy,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		ReminderSentAt:     a.ReminderSentAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}

	var err error
	if rec.Reason, err = c.cipher.EncryptOptional(a.Reason); err != nil {
		return nil, fmt.Errorf("appointment codec: reason: %w", err)
	}
	return rec, nil
}

func (c *Codec) FromRecord(rec *Record) (*Appointment, error) {
	a := &Appointment{
		ID:                 rec.ID,
		PatientID:          rec.PatientID,
		ProviderID:         rec.ProviderID,
		StartsAt:           rec.StartsAt,
		EndsAt:             rec.EndsAt,
		Status:             rec.Status,
		CancelledBy:        rec.CancelledBy,
		CancelledAt:        rec.CancelledAt,
		CancellationReason: rec.CancellationReason,
		ReminderSentAt:     rec.ReminderSentAt,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}

	var err error
	if a.Reason, err = c.cipher.DecryptOptional(rec.Reason); err != nil {
		return nil, fmt.Errorf("appointment codec: reason: %w", err)
	}
	return a, nil
}
