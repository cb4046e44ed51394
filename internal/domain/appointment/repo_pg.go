package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxisoft/backoffice/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const appointmentCols = `id, patient_id, provider_id, starts_at, ends_at, status,
	reason, cancelled_by, cancelled_at, cancellation_reason, reminder_sent_at,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (
			id, patient_id, provider_id, starts_at, ends_at, status, reason
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.ProviderID, rec.StartsAt, rec.EndsAt,
		rec.Status, rec.Reason,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	return translateErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status=$2, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, to, from,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

func (r *repoPG) Cancel(ctx context.Context, id uuid.UUID, from Status, cancelledBy uuid.UUID, cancelledAt time.Time, reason string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET
			status=$2, cancelled_by=$3, cancelled_at=$4, cancellation_reason=$5,
			updated_at=NOW()
		WHERE id = $1 AND status = $6`,
		id, StatusCancelled, cancelledBy, cancelledAt, reason, from,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

func (r *repoPG) Reschedule(ctx context.Context, id uuid.UUID, startsAt, endsAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET starts_at=$2, ends_at=$3, reminder_sent_at=NULL, updated_at=NOW()
		WHERE id = $1 AND status IN ($4, $5)`,
		id, startsAt, endsAt, StatusScheduled, StatusConfirmed,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

func (r *repoPG) MarkReminderSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET reminder_sent_at=$2, updated_at=NOW()
		WHERE id = $1 AND reminder_sent_at IS NULL`,
		id, sentAt,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment
		WHERE patient_id = $1 ORDER BY starts_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recs, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (r *repoPG) ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment
		WHERE provider_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at`,
		providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *repoPG) ListReminderCandidates(ctx context.Context, now time.Time, window time.Duration) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment
		WHERE reminder_sent_at IS NULL
		  AND status IN ($1, $2)
		  AND starts_at > $3 AND starts_at < $4
		ORDER BY starts_at`,
		StatusScheduled, StatusConfirmed, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// guardFailure distinguishes a missing row from a status guard that did not
// match.
func (r *repoPG) guardFailure(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func scanAppointment(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.ProviderID, &rec.StartsAt, &rec.EndsAt,
		&rec.Status, &rec.Reason, &rec.CancelledBy, &rec.CancelledAt,
		&rec.CancellationReason, &rec.ReminderSentAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func collectAppointments(rows pgx.Rows) ([]*Record, error) {
	var recs []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.PatientID, &rec.ProviderID, &rec.StartsAt, &rec.EndsAt,
			&rec.Status, &rec.Reason, &rec.CancelledBy, &rec.CancelledAt,
			&rec.CancellationReason, &rec.ReminderSentAt,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
