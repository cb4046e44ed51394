package prescription

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

const prescriptionCols = `id, patient_id, visit_id, provider_id, medication,
	dosage, instructions, pharmacy_notes, active, discontinued_by,
	discontinued_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (
			id, patient_id, visit_id, provider_id, medication,
			dosage, instructions, pharmacy_notes, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.VisitID, rec.ProviderID, rec.Medication,
		rec.Dosage, rec.Instructions, rec.PharmacyNotes, rec.Active,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	return translateErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescription WHERE id = $1`, id))
}

func (r *repoPG) UpdateContent(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET
			medication=$2, dosage=$3, instructions=$4, pharmacy_notes=$5,
			updated_at=NOW()
		WHERE id = $1 AND active`,
		rec.ID, rec.Medication, rec.Dosage, rec.Instructions, rec.PharmacyNotes,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, rec.ID)
	}
	return nil
}

func (r *repoPG) Discontinue(ctx context.Context, id, discontinuedBy uuid.UUID, discontinuedAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET
			active=FALSE, discontinued_by=$2, discontinued_at=$3, updated_at=NOW()
		WHERE id = $1 AND active`,
		id, discontinuedBy, discontinuedAt,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Record, int, error) {
	filter := ``
	if activeOnly {
		filter = ` AND active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescription WHERE patient_id = $1`+filter,
		patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+prescriptionCols+` FROM prescription
		WHERE patient_id = $1`+filter+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recs, err := collectPrescriptions(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (r *repoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+prescriptionCols+` FROM prescription
		WHERE visit_id = $1 ORDER BY created_at`,
		visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrescriptions(rows)
}

// guardFailure distinguishes a missing row from an active guard that did not
// match.
func (r *repoPG) guardFailure(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM prescription WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyDiscontinued
}

func scanPrescription(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.VisitID, &rec.ProviderID, &rec.Medication,
		&rec.Dosage, &rec.Instructions, &rec.PharmacyNotes, &rec.Active,
		&rec.DiscontinuedBy, &rec.DiscontinuedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func collectPrescriptions(rows pgx.Rows) ([]*Record, error) {
	var recs []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.PatientID, &rec.VisitID, &rec.ProviderID, &rec.Medication,
			&rec.Dosage, &rec.Instructions, &rec.PharmacyNotes, &rec.Active,
			&rec.DiscontinuedBy, &rec.DiscontinuedAt, &rec.CreatedAt, &rec.UpdatedAt,
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
