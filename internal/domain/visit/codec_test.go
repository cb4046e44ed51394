package visit

import (
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

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
func intPtr(i int) *int       { return &i }

func sampleVisit() *Visit {
	return &Visit{
		ID:         uuid.New(),
		PatientID:  uuid.New(),
		ProviderID: uuid.New(),
		VisitDate:  time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC),
		Status:     StatusDraft,
		Subjective: strPtr("Patient reports persistent cough for two weeks"),
		Objective:  strPtr("Lungs clear to auscultation, no wheezing"),
		Assessment: strPtr("Post-viral cough, no sign of bacterial infection"),
		Plan:       strPtr("Supportive care, follow up in two weeks if no improvement"),
		Vitals: &Vitals{
			SystolicBP:  intPtr(120),
			DiastolicBP: intPtr(78),
			HeartRate:   intPtr(66),
		},
		ReviewOfSystems: map[string]string{
			"respiratory":    "cough, no dyspnea",
			"cardiovascular": "negative",
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec(testCipher(t))
	v := sampleVisit()

	rec, err := codec.ToRecord(v)
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}

	// No clinical plaintext may survive in the record.
	for name, field := range map[string]*string{
		"subjective":        rec.Subjective,
		"objective":         rec.Objective,
		"assessment":        rec.Assessment,
		"plan":              rec.Plan,
		"vitals":            rec.Vitals,
		"review_of_systems": rec.ReviewOfSystems,
	} {
		if field == nil {
			t.Fatalf("%s missing from record", name)
		}
		if strings.Contains(*field, "cough") || strings.Contains(*field, "120") {
			t.Errorf("%s contains plaintext", name)
		}
	}
	if rec.Status != StatusDraft || rec.PatientID != v.PatientID {
		t.Error("workflow metadata not copied")
	}

	got, err := codec.FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if *got.Subjective != *v.Subjective || *got.Plan != *v.Plan {
		t.Error("SOAP fields did not round trip")
	}
	if got.Vitals == nil || *got.Vitals.SystolicBP != 120 {
		t.Errorf("vitals did not round trip: %+v", got.Vitals)
	}
	if got.ReviewOfSystems["respiratory"] != "cough, no dyspnea" {
		t.Errorf("review of systems did not round trip: %+v", got.ReviewOfSystems)
	}
}

func TestCodecAbsentFieldsStayAbsent(t *testing.T) {
	codec := NewCodec(testCipher(t))
	v := &Visit{
		ID:         uuid.New(),
		PatientID:  uuid.New(),
		ProviderID: uuid.New(),
		VisitDate:  time.Now().UTC(),
		Status:     StatusDraft,
	}

	rec, err := codec.ToRecord(v)
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	if rec.Subjective != nil || rec.Vitals != nil || rec.ReviewOfSystems != nil {
		t.Error("absent fields must stay nil in the record")
	}

	got, err := codec.FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if got.Subjective != nil || got.Vitals != nil || got.ReviewOfSystems != nil {
		t.Error("absent fields must stay nil after decode")
	}
}

func TestCodecWholeDecodeFailsOnBadField(t *testing.T) {
	codec := NewCodec(testCipher(t))
	rec, err := codec.ToRecord(sampleVisit())
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}

	bad := "not-a-ciphertext"
	rec.Assessment = &bad
	if _, err := codec.FromRecord(rec); err == nil {
		t.Fatal("expected decode failure on corrupted field")
	}
}

func TestCodecWrongKey(t *testing.T) {
	rec, err := NewCodec(testCipher(t)).ToRecord(sampleVisit())
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}

	if _, err := NewCodec(testCipher(t)).FromRecord(rec); err == nil {
		t.Fatal("expected decode failure under a different key")
	}
}
