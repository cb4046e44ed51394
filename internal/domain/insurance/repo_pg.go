package insurance

import (
	"context"
	"errors"

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

const insuranceCols = `id, patient_id, carrier, policy_number, group_number,
	subscriber_name, priority, valid_from, valid_to, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_insurance (
			id, patient_id, carrier, policy_number, group_number,
			subscriber_name, priority, valid_from, valid_to, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.Carrier, rec.PolicyNumber, rec.GroupNumber,
		rec.SubscriberName, rec.Priority, rec.ValidFrom, rec.ValidTo, rec.Active,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	return translateErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanInsurance(r.conn(ctx).QueryRow(ctx,
		`SELECT `+insuranceCols+` FROM patient_insurance WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_insurance SET
			carrier=$2, policy_number=$3, group_number=$4, subscriber_name=$5,
			priority=$6, valid_from=$7, valid_to=$8, active=$9, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.Carrier, rec.PolicyNumber, rec.GroupNumber, rec.SubscriberName,
		rec.Priority, rec.ValidFrom, rec.ValidTo, rec.Active,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient_insurance SET active=FALSE, updated_at=NOW() WHERE id = $1`, id)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Record, error) {
	filter := ``
	if activeOnly {
		filter = ` AND active`
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+insuranceCols+` FROM patient_insurance
		WHERE patient_id = $1`+filter+` ORDER BY priority, created_at`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.PatientID, &rec.Carrier, &rec.PolicyNumber, &rec.GroupNumber,
			&rec.SubscriberName, &rec.Priority, &rec.ValidFrom, &rec.ValidTo,
			&rec.Active, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

func scanInsurance(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.Carrier, &rec.PolicyNumber, &rec.GroupNumber,
		&rec.SubscriberName, &rec.Priority, &rec.ValidFrom, &rec.ValidTo,
		&rec.Active, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
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
