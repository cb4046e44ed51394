package prescription

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/praxisoft/backoffice/internal/platform/audit"
	"github.com/praxisoft/backoffice/internal/platform/db"
	"github.com/praxisoft/backoffice/internal/platform/phi"
)

func testCipher(t *testing.T) *phi.Cipher {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	c, err := phi.NewCipher(key)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	return c
}

func strPtr(s string) *string { return &s }

// -- Mock Repository --

type mockRepo struct {
	records map[uuid.UUID]*Record
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Create(_ context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = time.Now()
	m.records[rec.ID] = rec
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepo) UpdateContent(_ context.Context, rec *Record) error {
	cur, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if !cur.Active {
		return ErrAlreadyDiscontinued
	}
	cur.Medication = rec.Medication
	cur.Dosage = rec.Dosage
	cur.Instructions = rec.Instructions
	cur.PharmacyNotes = rec.PharmacyNotes
	return nil
}

func (m *mockRepo) Discontinue(_ context.Context, id, discontinuedBy uuid.UUID, discontinuedAt time.Time) error {
	cur, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if !cur.Active {
		return ErrAlreadyDiscontinued
	}
	cur.Active = false
	cur.DiscontinuedBy = &discontinuedBy
	cur.DiscontinuedAt = &discontinuedAt
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Record, int, error) {
	var out []*Record
	for _, rec := range m.records {
		if rec.PatientID != patientID {
			continue
		}
		if activeOnly && !rec.Active {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*Record, error) {
	var out []*Record
	for _, rec := range m.records {
		if rec.VisitID == visitID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeVisits reports lock state per visit id.
type fakeVisits struct {
	locked map[uuid.UUID]bool
	err    error
}

func (f *fakeVisits) IsLocked(_ context.Context, id uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.locked[id], nil
}

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, _ db.SessionContext, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeAudit struct {
	entries []audit.Entry
}

func (f *fakeAudit) Record(_ context.Context, e audit.Entry) {
	f.entries = append(f.entries, e)
}

func providerActor() db.SessionContext {
	return db.SessionContext{UserID: uuid.New(), Role: db.RoleProvider}
}

func newTestService(t *testing.T) (*Service, *mockRepo, *fakeVisits, *fakeAudit) {
	t.Helper()
	repo := newMockRepo()
	visits := &fakeVisits{locked: make(map[uuid.UUID]bool)}
	aud := &fakeAudit{}
	svc := NewService(repo, NewCodec(testCipher(t)), visits, fakeTx{}, aud, zerolog.Nop())
	return svc, repo, visits, aud
}

func samplePrescription() *Prescription {
	return &Prescription{
		PatientID:     uuid.New(),
		VisitID:       uuid.New(),
		Medication:    "Amoxicillin 500mg",
		Dosage:        "1 capsule three times daily",
		Instructions:  strPtr("Take with food, complete the full course"),
		PharmacyNotes: strPtr("Generic substitution allowed"),
	}
}

func TestCreatePrescription(t *testing.T) {
	svc, repo, _, aud := newTestService(t)
	actor := providerActor()

	created, err := svc.CreatePrescription(context.Background(), actor, samplePrescription(), audit.RequestMeta{})
	if err != nil {
		t.Fatalf("CreatePrescription: %v", err)
	}
	if !created.Active {
		t.Error("new prescription must be active")
	}
	if created.ProviderID != actor.UserID {
		t.Error("provider id not stamped from the acting user")
	}

	rec := repo.records[created.ID]
	if rec.Medication == "Amoxicillin 500mg" {
		t.Error("medication stored in plaintext")
	}

	if len(aud.entries) != 1 || aud.entries[0].Action != audit.ActionCreate {
		t.Errorf("audit = %+v", aud.entries)
	}
}

func TestCreatePrescription_StaffForbidden(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	staff := db.SessionContext{UserID: uuid.New(), Role: db.RoleStaff}

	if _, err := svc.CreatePrescription(context.Background(), staff, samplePrescription(), audit.RequestMeta{}); err == nil {
		t.Fatal("staff must not prescribe")
	}
}

func TestCreatePrescription_LockedVisit(t *testing.T) {
	svc, _, visits, _ := newTestService(t)

	p := samplePrescription()
	visits.locked[p.VisitID] = true

	_, err := svc.CreatePrescription(context.Background(), providerActor(), p, audit.RequestMeta{})
	if !errors.Is(err, ErrVisitLocked) {
		t.Fatalf("expected ErrVisitLocked, got %v", err)
	}
}

func TestUpdatePrescription(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	actor := providerActor()

	created, err := svc.CreatePrescription(context.Background(), actor, samplePrescription(), audit.RequestMeta{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	created.Dosage = "1 capsule twice daily"
	updated, err := svc.UpdatePrescription(context.Background(), actor, created, audit.RequestMeta{})
	if err != nil {
		t.Fatalf("UpdatePrescription: %v", err)
	}
	if updated.Dosage != "1 capsule twice daily" {
		t.Errorf("dosage = %q", updated.Dosage)
	}
}

func TestUpdatePrescription_LockedVisit(t *testing.T) {
	svc, _, visits, _ := newTestService(t)
	actor := providerActor()

	created, err := svc.CreatePrescription(context.Background(), actor, samplePrescription(), audit.RequestMeta{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	visits.locked[created.VisitID] = true

	created.Dosage = "changed"
	_, err = svc.UpdatePrescription(context.Background(), actor, created, audit.RequestMeta{})
	if !errors.Is(err, ErrVisitLocked) {
		t.Fatalf("expected ErrVisitLocked, got %v", err)
	}
}

func TestDiscontinue(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	actor := providerActor()

	created, err := svc.CreatePrescription(context.Background(), actor, samplePrescription(), audit.RequestMeta{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Discontinue(context.Background(), actor, created.ID, audit.RequestMeta{})
	if err != nil {
		t.Fatalf("Discontinue: %v", err)
	}
	if updated.Active {
		t.Error("prescription still active after discontinue")
	}
	if updated.DiscontinuedBy == nil || *updated.DiscontinuedBy != actor.UserID {
		t.Error("discontinued_by not stamped")
	}
	if updated.DiscontinuedAt == nil {
		t.Error("discontinued_at not stamped")
	}

	_, err = svc.Discontinue(context.Background(), actor, created.ID, audit.RequestMeta{})
	if !errors.Is(err, ErrAlreadyDiscontinued) {
		t.Fatalf("expected ErrAlreadyDiscontinued, got %v", err)
	}
}

func TestListByPatient_ActiveFilter(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	actor := providerActor()

	first := samplePrescription()
	created, err := svc.CreatePrescription(context.Background(), actor, first, audit.RequestMeta{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	second := samplePrescription()
	second.PatientID = first.PatientID
	second.Medication = "Ibuprofen 400mg"
	if _, err := svc.CreatePrescription(context.Background(), actor, second, audit.RequestMeta{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Discontinue(context.Background(), actor, created.ID, audit.RequestMeta{}); err != nil {
		t.Fatalf("discontinue: %v", err)
	}

	active, total, err := svc.ListByPatient(context.Background(), actor, first.PatientID, true, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(active) != 1 {
		t.Fatalf("active list: total = %d, len = %d", total, len(active))
	}
	if active[0].Medication != "Ibuprofen 400mg" {
		t.Errorf("active medication = %q", active[0].Medication)
	}

	all, total, err := svc.ListByPatient(context.Background(), actor, first.PatientID, false, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("full list: total = %d, len = %d", total, len(all))
	}
}

func TestListByVisit(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	actor := providerActor()

	p := samplePrescription()
	if _, err := svc.CreatePrescription(context.Background(), actor, p, audit.RequestMeta{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, err := svc.ListByVisit(context.Background(), actor, p.VisitID)
	if err != nil {
		t.Fatalf("ListByVisit: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].Medication != "Amoxicillin 500mg" {
		t.Error("list did not decrypt medication")
	}
}
