package insurance

import (
	"context"
	"fmt"

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
	repo   Repository
	codec  *Codec
	tx     txRunner
	audit  auditor
	logger zerolog.Logger
}

func NewService(repo Repository, codec *Codec, tx txRunner, aud auditor, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		codec:  codec,
		tx:     tx,
		audit:  aud,
		logger: logger.With().Str("component", "insurance").Logger(),
	}
}

// AddCoverage attaches a new insurance coverage to a patient.
func (s *Service) AddCoverage(ctx context.Context, sc db.SessionContext, pi *PatientInsurance, meta audit.RequestMeta) (*PatientInsurance, error) {
	if pi.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if pi.Carrier == "" {
		return nil, fmt.Errorf("carrier is required")
	}
	if pi.PolicyNumber == "" {
		return nil, fmt.Errorf("policy_number is required")
	}
	if pi.Priority == 0 {
		pi.Priority = 1
	}
	pi.Active = true

	rec, err := s.codec.ToRecord(pi)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, rec)
	})
	if err != nil {
		return nil, err
	}

	pi.ID = rec.ID
	pi.CreatedAt = rec.CreatedAt
	pi.UpdatedAt = rec.UpdatedAt

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionCreate,
		EntityType: "patient_insurance",
		EntityID:   &rec.ID,
		Changes:    map[string]any{"priority": pi.Priority},
		Meta:       meta,
	})
	return pi, nil
}

// GetCoverage fetches and decrypts one coverage.
func (s *Service) GetCoverage(ctx context.Context, sc db.SessionContext, id uuid.UUID) (*PatientInsurance, error) {
	var rec *Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		rec, err = s.repo.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.codec.FromRecord(rec)
}

// UpdateCoverage re-encrypts the full coverage and writes it back.
func (s *Service) UpdateCoverage(ctx context.Context, sc db.SessionContext, pi *PatientInsurance, meta audit.RequestMeta) (*PatientInsurance, error) {
	if pi.ID == uuid.Nil {
		return nil, fmt.Errorf("id is required")
	}
	if pi.Carrier == "" || pi.PolicyNumber == "" {
		return nil, fmt.Errorf("carrier and policy_number are required")
	}

	rec, err := s.codec.ToRecord(pi)
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
		EntityType: "patient_insurance",
		EntityID:   &pi.ID,
		Meta:       meta,
	})
	return pi, nil
}

// RemoveCoverage deactivates a coverage. Rows are never deleted; billing
// history keeps pointing at them.
func (s *Service) RemoveCoverage(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) error {
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		return s.repo.Deactivate(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionDelete,
		EntityType: "patient_insurance",
		EntityID:   &id,
		Changes:    map[string]any{"active": false},
		Meta:       meta,
	})
	return nil
}

// ListByPatient returns a patient's coverages ordered by priority.
func (s *Service) ListByPatient(ctx context.Context, sc db.SessionContext, patientID uuid.UUID, activeOnly bool) ([]*PatientInsurance, error) {
	var recs []*Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		recs, err = s.repo.ListByPatient(txCtx, patientID, activeOnly)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]*PatientInsurance, 0, len(recs))
	for _, rec := range recs {
		pi, err := s.codec.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, pi)
	}
	return out, nil
}
