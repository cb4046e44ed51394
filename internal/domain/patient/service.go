package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/praxisoft/backoffice/internal/platform/audit"
	"github.com/praxisoft/backoffice/internal/platform/db"
)

// txRunner runs a unit of work in an identity-bound transaction.
type txRunner interface {
	RunInTx(ctx context.Context, sc db.SessionContext, fn func(ctx context.Context) error) error
}

// auditor records audit entries after commit; it never fails the caller.
type auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo     Repository
	codec    *Codec
	detector *Detector
	tx       txRunner
	audit    auditor
	logger   zerolog.Logger
}

func NewService(repo Repository, codec *Codec, detector *Detector, tx txRunner, aud auditor, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		codec:    codec,
		detector: detector,
		tx:       tx,
		audit:    aud,
		logger:   logger.With().Str("component", "patient").Logger(),
	}
}

// CreatePatient runs the full guarded create in one transaction: bind
// identity, scan for duplicates, encrypt, insert. A High-confidence
// duplicate blocks with ErrDuplicatePatient; Medium matches are logged and
// creation proceeds. The audit entry is written only after commit.
func (s *Service) CreatePatient(ctx context.Context, sc db.SessionContext, p *Patient, meta audit.RequestMeta) (*Patient, error) {
	if p.FirstName == "" {
		return nil, fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return nil, fmt.Errorf("last_name is required")
	}
	if p.DateOfBirth.IsZero() {
		return nil, fmt.Errorf("date_of_birth is required")
	}
	p.Active = true

	var rec *Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		dups, err := s.detector.FindDuplicates(txCtx, p)
		if err != nil {
			return fmt.Errorf("duplicate scan: %w", err)
		}
		for _, d := range dups {
			if d.Confidence == ConfidenceHigh {
				return fmt.Errorf("%w: patient %s (%s)", ErrDuplicatePatient, d.PatientID, d.MatchReason)
			}
			s.logger.Warn().
				Str("candidate_id", d.PatientID.String()).
				Str("reason", d.MatchReason).
				Str("confidence", string(d.Confidence)).
				Msg("possible duplicate patient, proceeding")
		}

		rec, err = s.codec.ToRecord(p)
		if err != nil {
			return err
		}
		return s.repo.Create(txCtx, rec)
	})
	if err != nil {
		return nil, err
	}

	p.ID = rec.ID
	p.CreatedAt = rec.CreatedAt
	p.UpdatedAt = rec.UpdatedAt

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionCreate,
		EntityType: "patient",
		EntityID:   &rec.ID,
		Changes:    map[string]any{"fields": populatedFields(p)},
		Meta:       meta,
	})
	return p, nil
}

// GetPatient fetches and decrypts one patient.
func (s *Service) GetPatient(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Patient, error) {
	var rec *Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		rec, err = s.repo.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	p, err := s.codec.FromRecord(rec)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionRead,
		EntityType: "patient",
		EntityID:   &id,
		Meta:       meta,
	})
	return p, nil
}

// UpdatePatient re-encrypts the full demographic set and writes it back.
func (s *Service) UpdatePatient(ctx context.Context, sc db.SessionContext, p *Patient, meta audit.RequestMeta) (*Patient, error) {
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("id is required")
	}
	if p.FirstName == "" || p.LastName == "" {
		return nil, fmt.Errorf("first_name and last_name are required")
	}
	if p.DateOfBirth.IsZero() {
		return nil, fmt.Errorf("date_of_birth is required")
	}

	rec, err := s.codec.ToRecord(p)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		return s.repo.Update(txCtx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionUpdate,
		EntityType: "patient",
		EntityID:   &p.ID,
		Changes:    map[string]any{"fields": populatedFields(p)},
		Meta:       meta,
	})
	return p, nil
}

// ListPatients returns one decrypted page. Any row failing decryption fails
// the whole page; storage corruption is not papered over on list paths.
func (s *Service) ListPatients(ctx context.Context, sc db.SessionContext, limit, offset int) ([]*Patient, int, error) {
	var recs []*Record
	var total int
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		recs, total, err = s.repo.List(txCtx, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	patients := make([]*Patient, 0, len(recs))
	for _, rec := range recs {
		p, err := s.codec.FromRecord(rec)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, nil
}

// SearchByName performs the decrypt-then-filter scan: ciphertext cannot be
// matched in the database, so every row is decrypted and compared in memory.
// Rows that fail to decrypt are skipped with a warning, like the duplicate
// scan.
func (s *Service) SearchByName(ctx context.Context, sc db.SessionContext, query string) ([]*Patient, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	var recs []*Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		recs, err = s.repo.ListAll(txCtx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var matches []*Patient
	for _, rec := range recs {
		p, err := s.codec.FromRecord(rec)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("patient_id", rec.ID.String()).
				Msg("skipping undecryptable row in name search")
			continue
		}
		name := strings.ToLower(p.FirstName + " " + p.LastName)
		if strings.Contains(name, query) {
			matches = append(matches, p)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].LastName != matches[j].LastName {
			return matches[i].LastName < matches[j].LastName
		}
		return matches[i].FirstName < matches[j].FirstName
	})
	return matches, nil
}

// populatedFields lists the names of the fields present on the DTO. Only
// names reach the audit trail, never values.
func populatedFields(p *Patient) []string {
	fields := []string{"first_name", "last_name", "date_of_birth"}
	if p.FiscalCode != nil {
		fields = append(fields, "fiscal_code")
	}
	if p.Phone != nil {
		fields = append(fields, "phone")
	}
	if p.Email != nil {
		fields = append(fields, "email")
	}
	if p.Address != nil {
		fields = append(fields, "address")
	}
	if p.Notes != nil {
		fields = append(fields, "notes")
	}
	return fields
}
