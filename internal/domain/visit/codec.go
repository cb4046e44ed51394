package visit

import (
	"fmt"

	"github.com/praxisoft/backoffice/internal/platform/phi"
)

// Codec owns the mapping between Visit (plaintext DTO) and Record (storage
// row) in both directions. No other component encrypts or decrypts visit
// fields.
type Codec struct {
	cipher *phi.Cipher
}

func NewCodec(cipher *phi.Cipher) *Codec {
	return &Codec{cipher: cipher}
}

// ToRecord encrypts every clinical field of v and copies workflow metadata
// verbatim.
func (c *Codec) ToRecord(v *Visit) (*Record, error) {
	rec := &Record{
		ID:            v.ID,
		PatientID:     v.PatientID,
		ProviderID:    v.ProviderID,
		VisitDate:     v.VisitDate,
		Status:        v.Status,
		SignedBy:      v.SignedBy,
		SignedAt:      v.SignedAt,
		SignatureHash: v.SignatureHash,
		LockedAt:      v.LockedAt,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}

	var err error
	if rec.Subjective, err = c.cipher.EncryptOptional(v.Subjective); err != nil {
		return nil, fmt.Errorf("visit codec: subjective: %w", err)
	}
	if rec.Objective, err = c.cipher.EncryptOptional(v.Objective); err != nil {
		return nil, fmt.Errorf("visit codec: objective: %w", err)
	}
	if rec.Assessment, err = c.cipher.EncryptOptional(v.Assessment); err != nil {
		return nil, fmt.Errorf("visit codec: assessment: %w", err)
	}
	if rec.Plan, err = c.cipher.EncryptOptional(v.Plan); err != nil {
		return nil, fmt.Errorf("visit codec: plan: %w", err)
	}
	if v.Vitals != nil {
		blob, err := c.cipher.EncryptJSON(v.Vitals)
		if err != nil {
			return nil, fmt.Errorf("visit codec: vitals: %w", err)
		}
		rec.Vitals = &blob
	}
	if v.ReviewOfSystems != nil {
		blob, err := c.cipher.EncryptJSON(v.ReviewOfSystems)
		if err != nil {
			return nil, fmt.Errorf("visit codec: review of systems: %w", err)
		}
		rec.ReviewOfSystems = &blob
	}

	return rec, nil
}

// FromRecord decrypts every clinical field of rec. If any field fails
// authentication the whole decode fails.
func (c *Codec) FromRecord(rec *Record) (*Visit, error) {
	v := &Visit{
		ID:            rec.ID,
		PatientID:     rec.PatientID,
		ProviderID:    rec.ProviderID,
		VisitDate:     rec.VisitDate,
		Status:        rec.Status,
		SignedBy:      rec.SignedBy,
		SignedAt:      rec.SignedAt,
		SignatureHash: rec.SignatureHash,
		LockedAt:      rec.LockedAt,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}

	var err error
	if v.Subjective, err = c.cipher.DecryptOptional(rec.Subjective); err != nil {
		return nil, fmt.Errorf("visit codec: subjective: %w", err)
	}
	if v.Objective, err = c.cipher.DecryptOptional(rec.Objective); err != nil {
		return nil, fmt.Errorf("visit codec: objective: %w", err)
	}
	if v.Assessment, err = c.cipher.DecryptOptional(rec.Assessment); err != nil {
		return nil, fmt.Errorf("visit codec: assessment: %w", err)
	}
	if v.Plan, err = c.cipher.DecryptOptional(rec.Plan); err != nil {
		return nil, fmt.Errorf("visit codec: plan: %w", err)
	}
	if rec.Vitals != nil {
		var vit Vitals
		if err := c.cipher.DecryptJSON(*rec.Vitals, &vit); err != nil {
			return nil, fmt.Errorf("visit codec: vitals: %w", err)
		}
		v.Vitals = &vit
	}
	if rec.ReviewOfSystems != nil {
		ros := make(map[string]string)
		if err := c.cipher.DecryptJSON(*rec.ReviewOfSystems, &ros); err != nil {
			return nil, fmt.Errorf("visit codec: review of systems: %w", err)
		}
		v.ReviewOfSystems = ros
	}

	return v, nil
}
