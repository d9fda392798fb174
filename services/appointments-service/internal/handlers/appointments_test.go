package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
	"github.com/clinsys/clinic-services/services/appointments-service/internal/model"
	"github.com/clinsys/clinic-services/services/appointments-service/internal/workflow"
)

type stubRepo struct {
	inserted model.Appointment
}

func (s *stubRepo) Insert(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	appt.ID = "a1"
	appt.CreatedAt = time.Date(2029, 6, 1, 0, 0, 0, 0, time.UTC)
	s.inserted = appt
	return appt, nil
}

func (s *stubRepo) FindByID(context.Context, string) (model.Appointment, error) {
	return model.Appointment{}, workflow.ErrNotFound
}

func (s *stubRepo) FindByPatient(context.Context, string) ([]model.Appointment, error) {
	return nil, nil
}

func (s *stubRepo) FindByDateRange(context.Context, time.Time, time.Time) ([]model.Appointment, error) {
	return nil, nil
}

func (s *stubRepo) Update(context.Context, string, func(*model.Appointment)) (model.Appointment, error) {
	return model.Appointment{}, workflow.ErrNotFound
}

type stubLookup struct{}

func (stubLookup) Lookup(_ context.Context, operation string, _ string) (json.RawMessage, bool) {
	if operation == "doctors.findById" {
		return json.RawMessage(`{"id":"d1","active":true}`), true
	}
	return json.RawMessage(`{"id":"p1"}`), true
}

func newTestHandler(t *testing.T) (*AppointmentHandler, *stubRepo) {
	t.Helper()
	repo := &stubRepo{}
	return NewAppointmentHandler(workflow.New(repo, stubLookup{})), repo
}

func TestCreateRejectsMalformedPayload(t *testing.T) {
	h, _ := newTestHandler(t)
	cases := []struct {
		name    string
		payload string
	}{
		{"invalid json", `{`},
		{"missing patient", `{"doctor_id":"d1","date":"2030-01-01T10:00:00Z"}`},
		{"missing date", `{"patient_id":"p1","doctor_id":"d1"}`},
		{"bad date format", `{"patient_id":"p1","doctor_id":"d1","date":"01-01-2030"}`},
	}
	for _, tc := range cases {
		_, err := h.Create(context.Background(), json.RawMessage(tc.payload))
		var busErr *busx.Error
		if !errors.As(err, &busErr) {
			t.Fatalf("%s: want *busx.Error, got %v", tc.name, err)
		}
		if busErr.Code != "invalid_input" {
			t.Fatalf("%s: code = %q, want invalid_input", tc.name, busErr.Code)
		}
	}
}

func TestCreateReturnsWireItem(t *testing.T) {
	h, repo := newTestHandler(t)
	payload := `{"patient_id":"p1","doctor_id":"d1","date":"2030-01-01T10:00:00Z","specialty":"cardiology"}`
	out, err := h.Create(context.Background(), json.RawMessage(payload))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	item, ok := out.(appointmentItem)
	if !ok {
		t.Fatalf("result type = %T", out)
	}
	if item.ID != "a1" || item.Status != "scheduled" {
		t.Fatalf("item = %+v", item)
	}
	if item.Date != "2030-01-01T10:00:00Z" {
		t.Fatalf("date = %q", item.Date)
	}
	if repo.inserted.Specialty != "cardiology" {
		t.Fatalf("stored specialty = %q", repo.inserted.Specialty)
	}
}

func TestFindByDateRejectsBadDay(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, payload := range []string{`""`, `"2030-13-40"`, `"2030-01-01T10:00:00Z"`} {
		_, err := h.FindByDate(context.Background(), json.RawMessage(payload))
		var busErr *busx.Error
		if !errors.As(err, &busErr) || busErr.Code != "invalid_input" {
			t.Fatalf("payload %s: got %v", payload, err)
		}
	}
}

func TestCancelRequiresID(t *testing.T) {
	h, _ := newTestHandler(t)
	_, err := h.Cancel(context.Background(), json.RawMessage(`"  "`))
	var busErr *busx.Error
	if !errors.As(err, &busErr) || busErr.Code != "invalid_input" {
		t.Fatalf("got %v", err)
	}
}

func TestToBusErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{workflow.ErrInvalidInput, "invalid_input"},
		{workflow.ErrPatientNotFound, "patient_not_found"},
		{workflow.ErrDoctorNotFound, "doctor_not_found"},
		{workflow.ErrDoctorInactive, "doctor_inactive"},
		{workflow.ErrDuplicate, "duplicate_appointment"},
		{workflow.ErrNotFound, "not_found"},
	}
	for _, tc := range cases {
		var busErr *busx.Error
		if !errors.As(toBusError(tc.err), &busErr) {
			t.Fatalf("%v: want *busx.Error", tc.err)
		}
		if busErr.Code != tc.code {
			t.Fatalf("%v: code = %q, want %q", tc.err, busErr.Code, tc.code)
		}
	}

	plain := errors.New("connection reset")
	if got := toBusError(plain); got != plain {
		t.Fatalf("unmapped error should pass through, got %v", got)
	}
}
