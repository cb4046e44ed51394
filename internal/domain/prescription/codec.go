package prescription

import (
	"fmt"

	"github.com/praxisoft/backoffice/internal/platform/phi"
)

// Codec owns the mapping between Prescription and Record in both directions.
type Codec struct {
	cipher *phi.Cipher
}

func NewCodec(cipher *phi.Cipher) *Codec {
	return &Codec{cipher: cipher}
}

func (c *Codec) ToRecord(p *Prescription) (*Record, error) {
	rec := &Record{
		ID:             p.ID,
		PatientID:      p.PatientID,
		VisitID:        p.VisitID,
		ProviderID:     p.ProviderID,
		Active:         p.Active,
		DiscontinuedBy: p.DiscontinuedBy,
		DiscontinuedAt: p.DiscontinuedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}

	var err error
	if rec.Medication, err = c.cipher.Encrypt(p.Medication); err != nil {
		return nil, fmt.Errorf("prescription codec: medication: %w", err)
	}
	if rec.Dosage, err = c.cipher.Encrypt(p.Dosage); err != nil {
		return nil, fmt.Errorf("prescription codec: dosage: %w", err)
	}
	if rec.Instructions, err = c.cipher.EncryptOptional(p.Instructions); err != nil {
		return nil, fmt.Errorf("prescription codec: instructions: %w", err)
	}
	if rec.PharmacyNotes, err = c.cipher.EncryptOptional(p.PharmacyNotes); err != nil {
		return nil, fmt.Errorf("prescription codec: pharmacy notes: %w", err)
	}
	return rec, nil
}

func (c *Codec) FromRecord(rec *Record) (*Prescription, error) {
	p := &Prescription{
		ID:             rec.ID,
		PatientID:      rec.PatientID,
		VisitID:        rec.VisitID,
		ProviderID:     rec.ProviderID,
		Active:         rec.Active,
		DiscontinuedBy: rec.DiscontinuedBy,
		DiscontinuedAt: rec.DiscontinuedAt,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}

	var err error
	if p.Medication, err = c.cipher.Decrypt(rec.Medication); err != nil {
		return nil, fmt.Errorf("prescription codec: medication: %w", err)
	}
	if p.Dosage, err = c.cipher.Decrypt(rec.Dosage); err != nil {
		return nil, fmt.Errorf("prescription codec: dosage: %w", err)
	}
	if p.Instructions, err = c.cipher.DecryptOptional(rec.Instructions); err != nil {
		return nil, fmt.Errorf("prescription codec: instructions: %w", err)
	}
	if p.PharmacyNotes, err = c.cipher.DecryptOptional(rec.PharmacyNotes); err != nil {
		return nil, fmt.Errorf("prescription codec: pharmacy notes: %w", err)
	}
	return p, nil
}
