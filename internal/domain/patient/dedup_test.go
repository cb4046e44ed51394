package patient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockRepo struct {
	records map[uuid.UUID]*Record
	err     error
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Create(_ context.Context, rec *Record) error {
	if m.err != nil {
		return m.err
	}
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
	return rec, nil
}

func (m *mockRepo) Update(_ context.Context, rec *Record) error {
	if _, ok := m.records[rec.ID]; !ok {
		return ErrNotFound
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Record, int, error) {
	var out []*Record
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListAll(_ context.Context) ([]*Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*Record
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func seedPatient(t *testing.T, repo *mockRepo, codec *Codec, p *Patient) uuid.UUID {
	t.Helper()
	rec, err := codec.ToRecord(p)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed create: %v", err)
	}
	return rec.ID
}

func TestFindDuplicates_FiscalCodeMatchIsHigh(t *testing.T) {
	cipher := testCipher(t)
	codec := NewCodec(cipher)
	repo := newMockRepo()
	existingID := seedPatient(t, repo, codec, samplePatient())

	det := NewDetector(repo, cipher, zerolog.Nop())

	draft := &Patient{
		FirstName:   "Maria", // different name, same fiscal code
		LastName:    "Verdi",
		DateOfBirth: time.Date(1990, 2, 2, 0, 0, 0, 0, time.UTC),
		FiscalCode:  strPtr("RSSMRA85M01H501U"),
	}

	dups, err := det.FindDuplicates(context.Background(), draft)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(dups) != 1 {
		t.Fatalf("got %d duplicates, want 1", len(dups))
	}
	if dups[0].PatientID != existingID {
		t.Errorf("candidate = %s, want %s", dups[0].PatientID, existingID)
	}
	if dups[0].Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want high", dups[0].Confidence)
	}
}

func TestFindDuplicates_NameDOBMatchIsMedium(t *testing.T) {
	cipher := testCipher(t)
	codec := NewCodec(cipher)
	repo := newMockRepo()
	existingID := seedPatient(t, repo, codec, samplePatient())

	det := NewDetector(repo, cipher, zerolog.Nop())

	draft := &Patient{
		FirstName:   "Mario",
		LastName:    "Rossi",
		DateOfBirth: time.Date(1985, 8, 1, 0, 0, 0, 0, time.UTC),
		FiscalCode:  strPtr("VRDLGU80A01H501X"), // different fiscal code
	}

	dups, err := det.FindDuplicates(context.Background(), draft)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(dups) != 1 {
		t.Fatalf("got %d duplicates, want 1", len(dups))
	}
	if dups[0].PatientID != existingID || dups[0].Confidence != ConfidenceMedium {
		t.Errorf("got %+v, want medium match on %s", dups[0], existingID)
	}
}

func TestFindDuplicates_HighNotDoubleCountedAsMedium(t *testing.T) {
	cipher := testCipher(t)
	codec := NewCodec(cipher)
	repo := newMockRepo()
	seedPatient(t, repo, codec, samplePatient())

	det := NewDetector(repo, cipher, zerolog.Nop())

	// Same fiscal code AND same name+dob: exactly one High result.
	dups, err := det.FindDuplicates(context.Background(), samplePatient())
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(dups) != 1 {
		t.Fatalf("got %d duplicates, want 1", len(dups))
	}
	if dups[0].Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want high", dups[0].Confidence)
	}
}

func TestFindDuplicates_NoMatch(t *testing.T) {
	cipher := testCipher(t)
	codec := NewCodec(cipher)
	repo := newMockRepo()
	seedPatient(t, repo, codec, samplePatient())

	det := NewDetector(repo, cipher, zerolog.Nop())

	draft := &Patient{
		FirstName:   "Luigi",
		LastName:    "Verdi",
		DateOfBirth: time.Date(1970, 3, 3, 0, 0, 0, 0, time.UTC),
		FiscalCode:  strPtr("VRDLGU70C03H501Y"),
	}
	dups, err := det.FindDuplicates(context.Background(), draft)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(dups) != 0 {
		t.Fatalf("got %d duplicates, want 0", len(dups))
	}
}

func TestFindDuplicates_SkipsUndecryptableRows(t *testing.T) {
	cipher := testCipher(t)
	codec := NewCodec(cipher)
	repo := newMockRepo()

	// One healthy row and one row encrypted under a different key (legacy
	// bad data). The scan must skip the bad row and still find the match.
	goodID := seedPatient(t, repo, codec, samplePatient())

	otherCodec := NewCodec(testCipher(t))
	badRec, err := otherCodec.ToRecord(&Patient{
		FirstName:   "Corrupt",
		LastName:    "Row",
		DateOfBirth: time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
		FiscalCode:  strPtr("XXXXXX60A01H501Z"),
	})
	if err != nil {
		t.Fatalf("bad seed: %v", err)
	}
	if err := repo.Create(context.Background(), badRec); err != nil {
		t.Fatalf("bad create: %v", err)
	}

	det := NewDetector(repo, cipher, zerolog.Nop())
	dups, err := det.FindDuplicates(context.Background(), samplePatient())
	if err != nil {
		t.Fatalf("scan must not abort on a bad row: %v", err)
	}
	if len(dups) != 1 || dups[0].PatientID != goodID {
		t.Fatalf("got %+v, want single match on %s", dups, goodID)
	}
}

func TestFindDuplicates_RepoErrorPropagates(t *testing.T) {
	cipher := testCipher(t)
	repo := newMockRepo()
	repo.err = fmt.Errorf("connection reset")

	det := NewDetector(repo, cipher, zerolog.Nop())
	if _, err := det.FindDuplicates(context.Background(), samplePatient()); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}
