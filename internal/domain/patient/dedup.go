package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/praxisoft/backoffice/internal/platform/phi"
)

// Confidence grades a potential duplicate match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PotentialDuplicate is a transient detector result; it is never persisted.
type PotentialDuplicate struct {
	PatientID   uuid.UUID
	MatchReason string
	Confidence  Confidence
}

// Detector finds probable duplicates of a patient about to be created.
// Because field encryption is non-deterministic, no index can compare the
// candidate against stored rows: the detector decrypts each row in memory.
// It must run inside the same bound transaction as the pending insert, so
// the row visibility established there applies to the scan too.
type Detector struct {
	repo   Repository
	cipher *phi.Cipher
	logger zerolog.Logger
}

// NewDetector creates a Detector.
func NewDetector(repo Repository, cipher *phi.Cipher, logger zerolog.Logger) *Detector {
	return &Detector{
		repo:   repo,
		cipher: cipher,
		logger: logger.With().Str("component", "patient_dedup").Logger(),
	}
}

// FindDuplicates scans existing patients against the draft. A fiscal code
// match is High confidence; matching first name, last name and date of birth
// without a fiscal match is Medium. A row whose fields fail to decrypt
// (legacy bad data) is skipped with a warning, never aborting the scan.
func (d *Detector) FindDuplicates(ctx context.Context, draft *Patient) ([]PotentialDuplicate, error) {
	recs, err := d.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []PotentialDuplicate
	flagged := make(map[uuid.UUID]bool)

	if draft.FiscalCode != nil && *draft.FiscalCode != "" {
		for _, rec := range recs {
			if rec.FiscalCode == nil {
				continue
			}
			code, err := d.cipher.Decrypt(*rec.FiscalCode)
			if err != nil {
				d.skip(rec.ID, "fiscal_code", err)
				continue
			}
			if code == *draft.FiscalCode {
				out = append(out, PotentialDuplicate{
					PatientID:   rec.ID,
					MatchReason: "fiscal code match",
					Confidence:  ConfidenceHigh,
				})
				flagged[rec.ID] = true
			}
		}
	}

	draftDOB := draft.DateOfBirth.Format(dateLayout)
	for _, rec := range recs {
		if flagged[rec.ID] {
			continue
		}
		first, err := d.cipher.Decrypt(rec.FirstName)
		if err != nil {
			d.skip(rec.ID, "first_name", err)
			continue
		}
		last, err := d.cipher.Decrypt(rec.LastName)
		if err != nil {
			d.skip(rec.ID, "last_name", err)
			continue
		}
		dob, err := d.cipher.Decrypt(rec.DateOfBirth)
		if err != nil {
			d.skip(rec.ID, "date_of_birth", err)
			continue
		}
		if first == draft.FirstName && last == draft.LastName && dob == draftDOB {
			out = append(out, PotentialDuplicate{
				PatientID:   rec.ID,
				MatchReason: "name and date of birth match",
				Confidence:  ConfidenceMedium,
			})
		}
	}

	return out, nil
}

func (d *Detector) skip(id uuid.UUID, field string, err error) {
	d.logger.Warn().
		Err(err).
		Str("patient_id", id.String()).
		Str("field", field).
		Msg("skipping undecryptable row in duplicate scan")
}
