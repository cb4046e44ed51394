package prescription

import (
	"context"
	"fmt"
	"time"

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

// visitChecker answers whether the originating visit has been locked.
// Satisfied by the visit service.
type visitChecker interface {
	IsLocked(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo   Repository
	codec  *Codec
	visits visitChecker
	tx     txRunner
	audit  auditor
	logger zerolog.Logger
}

func NewService(repo Repository, codec *Codec, visits visitChecker, tx txRunner, aud auditor, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		codec:  codec,
		visits: visits,
		tx:     tx,
		audit:  aud,
		logger: logger.With().Str("component", "prescription").Logger(),
	}
}

// CreatePrescription issues a new active prescription against a visit. Only
// providers prescribe, and only while the visit's chart is still open.
func (s *Service) CreatePrescription(ctx context.Context, sc db.SessionContext, p *Prescription, meta audit.RequestMeta) (*Prescription, error) {
	if sc.Role != db.RoleProvider {
		return nil, fmt.Errorf("only providers may prescribe")
	}
	if p.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if p.VisitID == uuid.Nil {
		return nil, fmt.Errorf("visit_id is required")
	}
	if p.Medication == "" {
		return nil, fmt.Errorf("medication is required")
	}
	if p.Dosage == "" {
		return nil, fmt.Errorf("dosage is required")
	}
	p.ProviderID = sc.UserID
	p.Active = true
	p.DiscontinuedBy = nil
	p.DiscontinuedAt = nil

	rec, err := s.codec.ToRecord(p)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		if err := s.checkVisitOpen(txCtx, p.VisitID); err != nil {
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
		EntityType: "prescription",
		EntityID:   &rec.ID,
		Changes:    map[string]any{"visit_id": p.VisitID.String()},
		Meta:       meta,
	})
	return p, nil
}

// GetPrescription fetches and decrypts one prescription.
func (s *Service) GetPrescription(ctx context.Context, sc db.SessionContext, id uuid.UUID) (*Prescription, error) {
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

// UpdatePrescription rewrites the clinical content of an active
// prescription. Rejected once the originating visit is locked.
func (s *Service) UpdatePrescription(ctx context.Context, sc db.SessionContext, p *Prescription, meta audit.RequestMeta) (*Prescription, error) {
	if sc.Role != db.RoleProvider {
		return nil, fmt.Errorf("only providers may modify prescriptions")
	}
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("id is required")
	}
	if p.Medication == "" || p.Dosage == "" {
		return nil, fmt.Errorf("medication and dosage are required")
	}

	var updated *Prescription
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		current, err := s.repo.GetByID(txCtx, p.ID)
		if err != nil {
			return err
		}
		if !current.Active {
			return ErrAlreadyDiscontinued
		}
		if err := s.checkVisitOpen(txCtx, current.VisitID); err != nil {
			return err
		}

		rec, err := s.codec.ToRecord(p)
		if err != nil {
			return err
		}
		rec.ID = current.ID
		if err := s.repo.UpdateContent(txCtx, rec); err != nil {
			return err
		}
		updated, err = s.reload(txCtx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionUpdate,
		EntityType: "prescription",
		EntityID:   &p.ID,
		Meta:       meta,
	})
	return updated, nil
}

// Discontinue retires an active prescription, stamping who and when. Like
// content edits, it is rejected once the chart is locked.
func (s *Service) Discontinue(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Prescription, error) {
	if sc.Role != db.RoleProvider {
		return nil, fmt.Errorf("only providers may discontinue prescriptions")
	}

	now := time.Now().UTC()
	var updated *Prescription
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		current, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !current.Active {
			return ErrAlreadyDiscontinued
		}
		if err := s.checkVisitOpen(txCtx, current.VisitID); err != nil {
			return err
		}
		if err := s.repo.Discontinue(txCtx, id, sc.UserID, now); err != nil {
			return err
		}
		updated, err = s.reload(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionUpdate,
		EntityType: "prescription",
		EntityID:   &id,
		Changes:    map[string]any{"active": false},
		Meta:       meta,
	})
	return updated, nil
}

// ListByPatient returns one decrypted page of a patient's prescriptions.
func (s *Service) ListByPatient(ctx context.Context, sc db.SessionContext, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Prescription, int, error) {
	var recs []*Record
	var total int
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		recs, total, err = s.repo.ListByPatient(txCtx, patientID, activeOnly, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]*Prescription, 0, len(recs))
	for _, rec := range recs {
		p, err := s.codec.FromRecord(rec)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, nil
}

// ListByVisit returns all prescriptions issued during one visit.
func (s *Service) ListByVisit(ctx context.Context, sc db.SessionContext, visitID uuid.UUID) ([]*Prescription, error) {
	var recs []*Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		recs, err = s.repo.ListByVisit(txCtx, visitID)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Prescription, 0, len(recs))
	for _, rec := range recs {
		p, err := s.codec.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) checkVisitOpen(ctx context.Context, visitID uuid.UUID) error {
	locked, err := s.visits.IsLocked(ctx, visitID)
	if err != nil {
		return fmt.Errorf("check visit: %w", err)
	}
	if locked {
		return ErrVisitLocked
	}
	return nil
}

func (s *Service) reload(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.codec.FromRecord(rec)
}
