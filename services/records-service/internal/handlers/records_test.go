package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
)

type fakeResolver struct {
	known map[string]bool
	calls []string
}

func (f *fakeResolver) Exists(_ context.Context, patientID string) bool {
	f.calls = append(f.calls, patientID)
	return f.known[patientID]
}

func newTestRecordHandler(resolver *fakeResolver) *RecordHandler {
	h := NewRecordHandler(nil, resolver)
	h.now = func() time.Time { return time.Date(2029, 6, 15, 12, 0, 0, 0, time.UTC) }
	return h
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var busErr *busx.Error
	if !errors.As(err, &busErr) {
		t.Fatalf("want *busx.Error with code %q, got %v", code, err)
	}
	if busErr.Code != code {
		t.Fatalf("code = %q, want %q", busErr.Code, code)
	}
}

func TestCreateRejectsFutureDate(t *testing.T) {
	resolver := &fakeResolver{known: map[string]bool{"p1": true}}
	h := newTestRecordHandler(resolver)

	payload := `{"patient_id":"p1","doctor_id":"d1","date":"2029-06-15T12:00:01Z","diagnosis":"flu"}`
	_, err := h.Create(context.Background(), json.RawMessage(payload))
	assertCode(t, err, "invalid_input")
	if len(resolver.calls) != 0 {
		t.Fatalf("patient lookup should not run for a rejected date, got %v", resolver.calls)
	}
}

func TestCreateRejectsUnknownPatient(t *testing.T) {
	resolver := &fakeResolver{known: map[string]bool{}}
	h := newTestRecordHandler(resolver)

	payload := `{"patient_id":"p9","doctor_id":"d1","date":"2029-06-14T09:00:00Z"}`
	_, err := h.Create(context.Background(), json.RawMessage(payload))
	assertCode(t, err, "patient_not_found")
	if len(resolver.calls) != 1 || resolver.calls[0] != "p9" {
		t.Fatalf("resolver calls = %v", resolver.calls)
	}
}

func TestCreateRequiresCoreFields(t *testing.T) {
	h := newTestRecordHandler(&fakeResolver{})
	for label, payload := range map[string]string{
		"missing patient": `{"doctor_id":"d1","date":"2029-06-14T09:00:00Z"}`,
		"missing doctor":  `{"patient_id":"p1","date":"2029-06-14T09:00:00Z"}`,
		"missing date":    `{"patient_id":"p1","doctor_id":"d1"}`,
		"bad date":        `{"patient_id":"p1","doctor_id":"d1","date":"14/06/2029"}`,
	} {
		_, err := h.Create(context.Background(), json.RawMessage(payload))
		if err == nil {
			t.Fatalf("%s: expected error", label)
		}
		assertCode(t, err, "invalid_input")
	}
}

func TestFindByPatientRequiresID(t *testing.T) {
	h := newTestRecordHandler(&fakeResolver{})
	_, err := h.FindByPatient(context.Background(), json.RawMessage(`""`))
	assertCode(t, err, "invalid_input")
}
