package visit

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

const visitCols = `id, patient_id, provider_id, visit_date, status,
	subjective, objective, assessment, plan, vitals, review_of_systems,
	signed_by, signed_at, signature_hash, locked_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit (
			id, patient_id, provider_id, visit_date, status,
			subjective, objective, assessment, plan, vitals, review_of_systems
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.ProviderID, rec.VisitDate, rec.Status,
		rec.Subjective, rec.Objective, rec.Assessment, rec.Plan,
		rec.Vitals, rec.ReviewOfSystems,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	return translateErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx,
		`SELECT `+visitCols+` FROM visit WHERE id = $1`, id))
}

// UpdateContent carries the Draft guard in the statement itself. The status
// check inside the service is advisory; this WHERE clause is what actually
// holds under concurrency.
func (r *repoPG) UpdateContent(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit SET
			visit_date=$2, subjective=$3, objective=$4, assessment=$5, plan=$6,
			vitals=$7, review_of_systems=$8, updated_at=NOW()
		WHERE id = $1 AND status = $9`,
		rec.ID, rec.VisitDate, rec.Subjective, rec.Objective, rec.Assessment,
		rec.Plan, rec.Vitals, rec.ReviewOfSystems, StatusDraft,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, rec.ID, ErrNotEditable)
	}
	return nil
}

func (r *repoPG) MarkSigned(ctx context.Context, id, signedBy uuid.UUID, signedAt time.Time, signatureHash string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit SET
			status=$2, signed_by=$3, signed_at=$4, signature_hash=$5, updated_at=NOW()
		WHERE id = $1 AND status = $6`,
		id, StatusSigned, signedBy, signedAt, signatureHash, StatusDraft,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, id, ErrInvalidTransition)
	}
	return nil
}

func (r *repoPG) MarkLocked(ctx context.Context, id uuid.UUID, lockedAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit SET status=$2, locked_at=$3, updated_at=NOW()
		WHERE id = $1 AND status = $4`,
		id, StatusLocked, lockedAt, StatusSigned,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, id, ErrInvalidTransition)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visit WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visit
		WHERE patient_id = $1 ORDER BY visit_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var rec Record
		if err := scanVisitRow(rows, &rec); err != nil {
			return nil, 0, err
		}
		recs = append(recs, &rec)
	}
	return recs, total, rows.Err()
}

func (r *repoPG) AddStatusHistory(ctx context.Context, h *StatusHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_status_history (id, visit_id, status, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5)`,
		h.ID, h.VisitID, h.Status, h.ChangedBy, h.ChangedAt,
	)
	return translateErr(err)
}

func (r *repoPG) GetStatusHistory(ctx context.Context, visitID uuid.UUID) ([]*StatusHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, visit_id, status, changed_by, changed_at
		FROM visit_status_history WHERE visit_id = $1 ORDER BY changed_at`,
		visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StatusHistory
	for rows.Next() {
		var h StatusHistory
		if err := rows.Scan(&h.ID, &h.VisitID, &h.Status, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// guardFailure distinguishes a missing row from a status guard that did not
// match.
func (r *repoPG) guardFailure(ctx context.Context, id uuid.UUID, guardErr error) error {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM visit WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return guardErr
}

func scanVisit(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.ProviderID, &rec.VisitDate, &rec.Status,
		&rec.Subjective, &rec.Objective, &rec.Assessment, &rec.Plan,
		&rec.Vitals, &rec.ReviewOfSystems,
		&rec.SignedBy, &rec.SignedAt, &rec.SignatureHash, &rec.LockedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func scanVisitRow(rows pgx.Rows, rec *Record) error {
	return rows.Scan(
		&rec.ID, &rec.PatientID, &rec.ProviderID, &rec.VisitDate, &rec.Status,
		&rec.Subjective, &rec.Objective, &rec.Assessment, &rec.Plan,
		&rec.Vitals, &rec.ReviewOfSystems,
		&rec.SignedBy, &rec.SignedAt, &rec.SignatureHash, &rec.LockedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
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
