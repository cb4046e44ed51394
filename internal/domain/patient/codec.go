package patient

import (
	"fmt"
	"time"

	"github.com/praxisoft/backoffice/internal/platform/phi"
)

// Codec owns the mapping between Patient (plaintext DTO) and Record (storage
// row) in both directions. No other component encrypts or decrypts patient
// fields.
type Codec struct {
	cipher *phi.Cipher
}

// NewCodec creates a Codec over the given cipher.
func NewCodec(cipher *phi.Cipher) *Codec {
	return &Codec{cipher: cipher}
}

// ToRecord encrypts every PHI field of p and copies the rest verbatim.
func (c *Codec) ToRecord(p *Patient) (*Record, error) {
	rec := &Record{
		ID:        p.ID,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}

	var err error
	if rec.FirstName, err = c.cipher.Encrypt(p.FirstName); err != nil {
		return nil, fmt.Errorf("patient codec: first name: %w", err)
	}
	if rec.LastName, err = c.cipher.Encrypt(p.LastName); err != nil {
		return nil, fmt.Errorf("patient codec: last name: %w", err)
	}
	if rec.DateOfBirth, err = c.cipher.Encrypt(p.DateOfBirth.Format(dateLayout)); err != nil {
		return nil, fmt.Errorf("patient codec: date of birth: %w", err)
	}
	if rec.FiscalCode, err = c.cipher.EncryptOptional(p.FiscalCode); err != nil {
		return nil, fmt.Errorf("patient codec: fiscal code: %w", err)
	}
	if rec.Phone, err = c.cipher.EncryptOptional(p.Phone); err != nil {
		return nil, fmt.Errorf("patient codec: phone: %w", err)
	}
	if rec.Email, err = c.cipher.EncryptOptional(p.Email); err != nil {
		return nil, fmt.Errorf("patient codec: email: %w", err)
	}
	if p.Address != nil {
		blob, err := c.cipher.EncryptJSON(p.Address)
		if err != nil {
			return nil, fmt.Errorf("patient codec: address: %w", err)
		}
		rec.Address = &blob
	}
	if rec.Notes, err = c.cipher.EncryptOptional(p.Notes); err != nil {
		return nil, fmt.Errorf("patient codec: notes: %w", err)
	}

	return rec, nil
}

// FromRecord decrypts every PHI field of rec. If any field fails
// authentication the whole decode fails: a half-decrypted patient is never
// returned.
func (c *Codec) FromRecord(rec *Record) (*Patient, error) {
	p := &Patient{
		ID:        rec.ID,
		Active:    rec.Active,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}

	var err error
	if p.FirstName, err = c.cipher.Decrypt(rec.FirstName); err != nil {
		return nil, fmt.Errorf("patient codec: first name: %w", err)
	}
	if p.LastName, err = c.cipher.Decrypt(rec.LastName); err != nil {
		return nil, fmt.Errorf("patient codec: last name: %w", err)
	}
	dob, err := c.cipher.Decrypt(rec.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("patient codec: date of birth: %w", err)
	}
	if p.DateOfBirth, err = time.Parse(dateLayout, dob); err != nil {
		return nil, fmt.Errorf("patient codec: parse date of birth: %w", err)
	}
	if p.FiscalCode, err = c.cipher.DecryptOptional(rec.FiscalCode); err != nil {
		return nil, fmt.Errorf("patient codec: fiscal code: %w", err)
	}
	if p.Phone, err = c.cipher.DecryptOptional(rec.Phone); err != nil {
		return nil, fmt.Errorf("patient codec: phone: %w", err)
	}
	if p.Email, err = c.cipher.DecryptOptional(rec.Email); err != nil {
		return nil, fmt.Errorf("patient codec: email: %w", err)
	}
	if rec.Address != nil {
		var addr Address
		if err := c.cipher.DecryptJSON(*rec.Address, &addr); err != nil {
			return nil, fmt.Errorf("patient codec: address: %w", err)
		}
		p.Address = &addr
	}
	if p.Notes, err = c.cipher.DecryptOptional(rec.Notes); err != nil {
		return nil, fmt.Errorf("patient codec: notes: %w", err)
	}

	return p, nil
}
