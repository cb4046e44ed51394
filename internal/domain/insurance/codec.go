package insurance

import (
	"fmt"

	"github.com/praxisoft/backoffice/internal/platform/phi"
)

// Codec owns the mapping between PatientInsurance and Record in both
// directions.
type Codec struct {
	cipher *phi.Cipher
}

func NewCodec(cipher *phi.Cipher) *Codec {
	return &Codec{cipher: cipher}
}

func (c *Codec) ToRecord(pi *PatientInsurance) (*Record, error) {
	rec := &Record{
		ID:        pi.ID,
		PatientID: pi.PatientID,
		Priority:  pi.Priority,
		ValidFrom: pi.ValidFrom,
		ValidTo:   pi.ValidTo,
		Active:    pi.Active,
		CreatedAt: pi.CreatedAt,
		UpdatedAt: pi.UpdatedAt,
	}

	var err error
	if rec.Carrier, err = c.cipher.Encrypt(pi.Carrier); err != nil {
		return nil, fmt.Errorf("insurance codec: carrier: %w", err)
	}
	if rec.PolicyNumber, err = c.cipher.Encrypt(pi.PolicyNumber); err != nil {
		return nil, fmt.Errorf("insurance codec: policy number: %w", err)
	}
	if rec.GroupNumber, err = c.cipher.EncryptOptional(pi.GroupNumber); err != nil {
		return nil, fmt.Errorf("insurance codec: group number: %w", err)
	}
	if rec.SubscriberName, err = c.cipher.EncryptOptional(pi.SubscriberName); err != nil {
		return nil, fmt.Errorf("insurance codec: subscriber name: %w", err)
	}
	return rec, nil
}

func (c *Codec) FromRecord(rec *Record) (*PatientInsurance, error) {
	pi := &PatientInsurance{
		ID:        rec.ID,
		PatientID: rec.PatientID,
		Priority:  rec.Priority,
		ValidFrom: rec.ValidFrom,
		ValidTo:   rec.ValidTo,
		Active:    rec.Active,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}

	var err error
	if pi.Carrier, err = c.cipher.Decrypt(rec.Carrier); err != nil {
		return nil, fmt.Errorf("insurance codec: carrier: %w", err)
	}
	if pi.PolicyNumber, err = c.cipher.Decrypt(rec.PolicyNumber); err != nil {
		return nil, fmt.Errorf("insurance codec: policy number: %w", err)
	}
	if pi.GroupNumber, err = c.cipher.DecryptOptional(rec.GroupNumber); err != nil {
		return nil, fmt.Errorf("insurance codec: group number: %w", err)
	}
	if pi.SubscriberName, err = c.cipher.DecryptOptional(rec.SubscriberName); err != nil {
		return nil, fmt.Errorf("insurance codec: subscriber name: %w", err)
	}
	return pi, nil
}
