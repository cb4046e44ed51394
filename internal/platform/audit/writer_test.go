package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type fakeExec struct {
	err     error
	calls   int
	lastSQL string
	args    []any
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.calls++
	f.lastSQL = sql
	f.args = args
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestRecord_Success(t *testing.T) {
	fake := &fakeExec{}
	w := newWriter(fake, zerolog.Nop())

	actor := uuid.New()
	entity := uuid.New()
	w.Record(context.Background(), Entry{
		ActorID:    &actor,
		Action:     ActionCreate,
		EntityType: "patient",
		EntityID:   &entity,
		Changes:    map[string]any{"fields": []string{"first_name", "last_name"}},
		Meta:       RequestMeta{IP: "10.0.0.1", UserAgent: "test", RequestID: "req-1"},
	})

	if fake.calls != 1 {
		t.Fatalf("exec calls = %d, want 1", fake.calls)
	}
	if w.Failures() != 0 {
		t.Errorf("failures = %d, want 0", w.Failures())
	}
}

func TestRecord_FailureIsSwallowed(t *testing.T) {
	fake := &fakeExec{err: errors.New("audit table unavailable")}
	w := newWriter(fake, zerolog.Nop())

	// Must not panic and must not propagate: Record has no error return.
	w.Record(context.Background(), Entry{Action: ActionUpdate, EntityType: "visit"})
	w.Record(context.Background(), Entry{Action: ActionUpdate, EntityType: "visit"})

	if w.Failures() != 2 {
		t.Errorf("failures = %d, want 2", w.Failures())
	}
}

func TestRecord_NilOptionalColumns(t *testing.T) {
	fake := &fakeExec{}
	w := newWriter(fake, zerolog.Nop())

	w.Record(context.Background(), Entry{Action: ActionRead, EntityType: "patient"})

	if fake.calls != 1 {
		t.Fatalf("exec calls = %d, want 1", fake.calls)
	}
	// actor_user_id, entity_id and changes all nullable.
	if fake.args[0] != (*uuid.UUID)(nil) {
		t.Errorf("actor arg = %v, want nil", fake.args[0])
	}
	if fake.args[4] != nil {
		if b, ok := fake.args[4].([]byte); !ok || b != nil {
			t.Errorf("changes arg = %v, want nil", fake.args[4])
		}
	}
}
