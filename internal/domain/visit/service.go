package visit

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
		logger: logger.With().Str("component", "visit").Logger(),
	}
}

// CreateVisit opens a new visit in Draft. Only providers author visits.
func (s *Service) CreateVisit(ctx context.Context, sc db.SessionContext, v *Visit, meta audit.RequestMeta) (*Visit, error) {
	if sc.Role != db.RoleProvider {
		return nil, fmt.Errorf("only providers may create visits")
	}
	if v.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if v.VisitDate.IsZero() {
		v.VisitDate = time.Now().UTC()
	}
	v.Status = StatusDraft
	v.ProviderID = sc.UserID
	v.SignedBy = nil
	v.SignedAt = nil
	v.SignatureHash = nil
	v.LockedAt = nil

	rec, err := s.codec.ToRecord(v)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, rec); err != nil {
			return err
		}
		return s.repo.AddStatusHistory(txCtx, &StatusHistory{
			VisitID:   rec.ID,
			Status:    StatusDraft,
			ChangedBy: &sc.UserID,
			ChangedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	v.ID = rec.ID
	v.CreatedAt = rec.CreatedAt
	v.UpdatedAt = rec.UpdatedAt

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionCreate,
		EntityType: "visit",
		EntityID:   &rec.ID,
		Changes:    map[string]any{"status": string(StatusDraft)},
		Meta:       meta,
	})
	return v, nil
}

// GetVisit fetches and decrypts one visit.
func (s *Service) GetVisit(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Visit, error) {
	var rec *Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		rec, err = s.repo.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	v, err := s.codec.FromRecord(rec)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionRead,
		EntityType: "visit",
		EntityID:   &id,
		Meta:       meta,
	})
	return v, nil
}

// UpdateVisit rewrites clinical content. Allowed only while the visit is in
// Draft; the repository re-checks the status in the UPDATE itself.
func (s *Service) UpdateVisit(ctx context.Context, sc db.SessionContext, v *Visit, meta audit.RequestMeta) (*Visit, error) {
	if v.ID == uuid.Nil {
		return nil, fmt.Errorf("id is required")
	}

	var updated *Visit
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		current, err := s.repo.GetByID(txCtx, v.ID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: visit is %s", ErrNotEditable, current.Status)
		}
		// A DTO that omits the visit date keeps the stored one.
		if v.VisitDate.IsZero() {
			v.VisitDate = current.VisitDate
		}

		rec, err := s.codec.ToRecord(v)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateContent(txCtx, rec); err != nil {
			return err
		}
		updated, err = s.reload(txCtx, v.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionUpdate,
		EntityType: "visit",
		EntityID:   &v.ID,
		Meta:       meta,
	})
	return updated, nil
}

// reload fetches and decodes the row inside the caller's transaction.
func (s *Service) reload(ctx context.Context, id uuid.UUID) (*Visit, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.codec.FromRecord(rec)
}

// SignVisit moves a Draft visit to Signed. The signature hash is computed
// over the decrypted clinical content at signing time, so the signed snapshot
// can later be compared against what storage returns.
func (s *Service) SignVisit(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Visit, error) {
	if sc.Role != db.RoleProvider {
		return nil, fmt.Errorf("only providers may sign visits")
	}

	now := time.Now().UTC()
	var signed *Visit
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		rec, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !CanTransition(rec.Status, StatusSigned) || rec.Status != StatusDraft {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusSigned)
		}

		v, err := s.codec.FromRecord(rec)
		if err != nil {
			return err
		}
		if err := s.repo.MarkSigned(txCtx, id, sc.UserID, now, v.ContentDigest()); err != nil {
			return err
		}
		if err := s.repo.AddStatusHistory(txCtx, &StatusHistory{
			VisitID:   id,
			Status:    StatusSigned,
			ChangedBy: &sc.UserID,
			ChangedAt: now,
		}); err != nil {
			return err
		}
		signed, err = s.reload(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionSign,
		EntityType: "visit",
		EntityID:   &id,
		Changes:    map[string]any{"status": string(StatusSigned)},
		Meta:       meta,
	})
	return signed, nil
}

// LockVisit moves a Signed visit to Locked, after which the row is fully
// immutable.
func (s *Service) LockVisit(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Visit, error) {
	if sc.Role != db.RoleProvider {
		return nil, fmt.Errorf("only providers may lock visits")
	}

	now := time.Now().UTC()
	var locked *Visit
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		rec, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !CanTransition(rec.Status, StatusLocked) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusLocked)
		}
		if err := s.repo.MarkLocked(txCtx, id, now); err != nil {
			return err
		}
		if err := s.repo.AddStatusHistory(txCtx, &StatusHistory{
			VisitID:   id,
			Status:    StatusLocked,
			ChangedBy: &sc.UserID,
			ChangedAt: now,
		}); err != nil {
			return err
		}
		locked, err = s.reload(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionLock,
		EntityType: "visit",
		EntityID:   &id,
		Changes:    map[string]any{"status": string(StatusLocked)},
		Meta:       meta,
	})
	return locked, nil
}

// ListVisitsByPatient returns one decrypted page of a patient's visits.
func (s *Service) ListVisitsByPatient(ctx context.Context, sc db.SessionContext, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var recs []*Record
	var total int
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		recs, total, err = s.repo.ListByPatient(txCtx, patientID, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	visits := make([]*Visit, 0, len(recs))
	for _, rec := range recs {
		v, err := s.codec.FromRecord(rec)
		if err != nil {
			return nil, 0, err
		}
		visits = append(visits, v)
	}
	return visits, total, nil
}

// GetStatusHistory returns the full transition trail for one visit.
func (s *Service) GetStatusHistory(ctx context.Context, sc db.SessionContext, visitID uuid.UUID) ([]*StatusHistory, error) {
	var out []*StatusHistory
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		out, err = s.repo.GetStatusHistory(txCtx, visitID)
		return err
	})
	return out, err
}

// IsLocked reports whether the visit exists and is Locked. Other domains use
// this to gate their own mutations on a closed chart.
func (s *Service) IsLocked(ctx context.Context, id uuid.UUID) (bool, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.Status == StatusLocked, nil
}
