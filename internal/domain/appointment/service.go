package appointment

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
		logger: logger.With().Str("component", "appointment").Logger(),
	}
}

// CreateAppointment books a new slot in Scheduled.
func (s *Service) CreateAppointment(ctx context.Context, sc db.SessionContext, a *Appointment, meta audit.RequestMeta) (*Appointment, error) {
	if a.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if a.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("provider_id is required")
	}
	if a.StartsAt.IsZero() || a.EndsAt.IsZero() {
		return nil, fmt.Errorf("starts_at and ends_at are required")
	}
	if !a.EndsAt.After(a.StartsAt) {
		return nil, fmt.Errorf("ends_at must be after starts_at")
	}
	a.Status = StatusScheduled
	a.CancelledBy = nil
	a.CancelledAt = nil
	a.CancellationReason = nil
	a.ReminderSentAt = nil

	rec, err := s.codec.ToRecord(a)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, rec)
	})
	if err != nil {
		return nil, err
	}

	a.ID = rec.ID
	a.CreatedAt = rec.CreatedAt
	a.UpdatedAt = rec.UpdatedAt

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionCreate,
		EntityType: "appointment",
		EntityID:   &rec.ID,
		Changes:    map[string]any{"status": string(StatusScheduled)},
		Meta:       meta,
	})
	return a, nil
}

// GetAppointment fetches and decrypts one appointment.
func (s *Service) GetAppointment(ctx context.Context, sc db.SessionContext, id uuid.UUID) (*Appointment, error) {
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

// Confirm moves Scheduled to Confirmed.
func (s *Service) Confirm(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Appointment, error) {
	return s.transition(ctx, sc, id, StatusConfirmed, meta)
}

// Begin moves Confirmed to InProgress when the patient is taken in.
func (s *Service) Begin(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Appointment, error) {
	return s.transition(ctx, sc, id, StatusInProgress, meta)
}

// Complete moves InProgress to Completed.
func (s *Service) Complete(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Appointment, error) {
	return s.transition(ctx, sc, id, StatusCompleted, meta)
}

// MarkNoShow records that the patient did not arrive.
func (s *Service) MarkNoShow(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Appointment, error) {
	return s.transition(ctx, sc, id, StatusNoShow, meta)
}

func (s *Service) transition(ctx context.Context, sc db.SessionContext, id uuid.UUID, to Status, meta audit.RequestMeta) (*Appointment, error) {
	var updated *Appointment
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		rec, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !CanTransition(rec.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, to)
		}
		if err := s.repo.UpdateStatus(txCtx, id, rec.Status, to); err != nil {
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
		EntityType: "appointment",
		EntityID:   &id,
		Changes:    map[string]any{"status": string(to)},
		Meta:       meta,
	})
	return updated, nil
}

// Cancel moves a live appointment to Cancelled. A non-empty reason is
// mandatory; the acting user and time are stamped on the row.
func (s *Service) Cancel(ctx context.Context, sc db.SessionContext, id uuid.UUID, reason string, meta audit.RequestMeta) (*Appointment, error) {
	if reason == "" {
		return nil, fmt.Errorf("cancellation reason is required")
	}

	now := time.Now().UTC()
	var cancelled *Appointment
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		rec, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !CanTransition(rec.Status, StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusCancelled)
		}
		if err := s.repo.Cancel(txCtx, id, rec.Status, sc.UserID, now, reason); err != nil {
			return err
		}
		cancelled, err = s.reload(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionCancel,
		EntityType: "appointment",
		EntityID:   &id,
		Changes:    map[string]any{"status": string(StatusCancelled)},
		Meta:       meta,
	})
	return cancelled, nil
}

// Reschedule moves the slot of a Scheduled or Confirmed appointment and
// clears the reminder flag so a fresh reminder goes out for the new time.
func (s *Service) Reschedule(ctx context.Context, sc db.SessionContext, id uuid.UUID, startsAt, endsAt time.Time, meta audit.RequestMeta) (*Appointment, error) {
	if !endsAt.After(startsAt) {
		return nil, fmt.Errorf("ends_at must be after starts_at")
	}

	var updated *Appointment
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		if err := s.repo.Reschedule(txCtx, id, startsAt, endsAt); err != nil {
			return err
		}
		var err error
		updated, err = s.reload(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    &sc.UserID,
		Action:     audit.ActionUpdate,
		EntityType: "appointment",
		EntityID:   &id,
		Changes:    map[string]any{"fields": []string{"starts_at", "ends_at"}},
		Meta:       meta,
	})
	return updated, nil
}

// ListByPatient returns one decrypted page of a patient's appointments.
func (s *Service) ListByPatient(ctx context.Context, sc db.SessionContext, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
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
	out, err := s.decodeAll(recs)
	return out, total, err
}

// ProviderDay returns a provider's appointments for one calendar day.
func (s *Service) ProviderDay(ctx context.Context, sc db.SessionContext, providerID uuid.UUID, day time.Time) ([]*Appointment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var recs []*Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		recs, err = s.repo.ListByProvider(txCtx, providerID, start, start.Add(24*time.Hour))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.decodeAll(recs)
}

// DueReminders returns appointments whose reminder should go out now. The
// database narrows the window; ShouldSendReminder re-checks each row so the
// predicate stays authoritative.
func (s *Service) DueReminders(ctx context.Context, sc db.SessionContext, now time.Time) ([]*Appointment, error) {
	var recs []*Record
	err := s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		var err error
		recs, err = s.repo.ListReminderCandidates(txCtx, now, reminderWindow)
		return err
	})
	if err != nil {
		return nil, err
	}

	var due []*Appointment
	for _, rec := range recs {
		a, err := s.codec.FromRecord(rec)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("appointment_id", rec.ID.String()).
				Msg("skipping undecryptable row in reminder scan")
			continue
		}
		if a.ShouldSendReminder(now) {
			due = append(due, a)
		}
	}
	return due, nil
}

// MarkReminderSent stamps the reminder time once the scheduler has delivered
// it.
func (s *Service) MarkReminderSent(ctx context.Context, sc db.SessionContext, id uuid.UUID, sentAt time.Time) error {
	return s.tx.RunInTx(ctx, sc, func(txCtx context.Context) error {
		return s.repo.MarkReminderSent(txCtx, id, sentAt)
	})
}

func (s *Service) reload(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.codec.FromRecord(rec)
}

func (s *Service) decodeAll(recs []*Record) ([]*Appointment, error) {
	out := make([]*Appointment, 0, len(recs))
	for _, rec := range recs {
		a, err := s.codec.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
