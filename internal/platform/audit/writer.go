// Package audit appends tamper-evident records of who did what to which
// entity. Entries are written after the primary transaction commits and a
// write failure never propagates to the caller: the primary operation has
// already succeeded and must stay succeeded.
//
// Entries must never contain PHI plaintext. The Changes map carries field
// names, enum values, ids and counts only; the audit table is not
// field-level access controlled, so anything written here is readable by
// every audit reviewer.
package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Action names for Entry.Action.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionSign   = "sign"
	ActionLock   = "lock"
	ActionCancel = "cancel"
)

// RequestMeta carries request-scoped metadata captured by the HTTP layer.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

// Entry is one append-only audit record.
type Entry struct {
	ActorID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	Changes    map[string]any
	Meta       RequestMeta
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Writer appends audit entries using the pool directly, never the caller's
// transaction: the entry must survive independently of any enclosing unit of
// work, and must only be recorded for work that committed.
type Writer struct {
	db       execer
	logger   zerolog.Logger
	failures atomic.Int64
}

// NewWriter creates a Writer over the given pool.
func NewWriter(pool *pgxpool.Pool, logger zerolog.Logger) *Writer {
	return newWriter(pool, logger)
}

func newWriter(db execer, logger zerolog.Logger) *Writer {
	return &Writer{db: db, logger: logger.With().Str("component", "audit").Logger()}
}

// Record appends one entry. It never returns an error: failures are logged
// with a running failure count so repeated breakage is observable, and the
// primary operation is unaffected.
func (w *Writer) Record(ctx context.Context, e Entry) {
	var changes []byte
	if e.Changes != nil {
		var err error
		changes, err = json.Marshal(e.Changes)
		if err != nil {
			w.logFailure(e, err)
			changes = nil
		}
	}

	_, err := w.db.Exec(ctx, `
		INSERT INTO audit_log (
			actor_user_id, action, entity_type, entity_id,
			changes, ip_address, user_agent, request_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ActorID, e.Action, e.EntityType, e.EntityID,
		changes, e.Meta.IP, e.Meta.UserAgent, e.Meta.RequestID, time.Now().UTC(),
	)
	if err != nil {
		w.logFailure(e, err)
	}
}

// Failures returns the number of entries that could not be written.
func (w *Writer) Failures() int64 {
	return w.failures.Load()
}

func (w *Writer) logFailure(e Entry, err error) {
	n := w.failures.Add(1)
	w.logger.Error().
		Err(err).
		Str("action", e.Action).
		Str("entity_type", e.EntityType).
		Int64("total_failures", n).
		Msg("audit write failed")
}
