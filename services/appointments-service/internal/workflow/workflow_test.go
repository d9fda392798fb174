package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/clinsys/clinic-services/services/appointments-service/internal/model"
)

// memRepo is an in-memory Repository honoring the storage contract,
// including the (patient, doctor, date) uniqueness constraint.
type memRepo struct {
	appts []model.Appointment
	seq   int
}

func (r *memRepo) Insert(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	for _, existing := range r.appts {
		if existing.PatientID == appt.PatientID && existing.DoctorID == appt.DoctorID && existing.Date.Equal(appt.Date) {
			return model.Appointment{}, fmt.Errorf("insert: %w", ErrDuplicate)
		}
	}
	r.seq++
	appt.ID = fmt.Sprintf("appt-%d", r.seq)
	appt.CreatedAt = time.Now()
	r.appts = append(r.appts, appt)
	return appt, nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (model.Appointment, error) {
	for _, appt := range r.appts {
		if appt.ID == id {
			return appt, nil
		}
	}
	return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
}

func (r *memRepo) FindByPatient(_ context.Context, patientID string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, appt := range r.appts {
		if appt.PatientID == patientID {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (r *memRepo) FindByDateRange(_ context.Context, start, end time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, appt := range r.appts {
		if !appt.Date.Before(start) && !appt.Date.After(end) {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, id string, mutate func(*model.Appointment)) (model.Appointment, error) {
	for i := range r.appts {
		if r.appts[i].ID == id {
			mutate(&r.appts[i])
			return r.appts[i], nil
		}
	}
	return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
}

// fakeLookup answers by operation; missing entries are absent.
type fakeLookup struct {
	entities map[string]string // "patients.findById/p1" -> json
	calls    []string
}

func (l *fakeLookup) Lookup(_ context.Context, operation, key string) (json.RawMessage, bool) {
	l.calls = append(l.calls, operation+"/"+key)
	raw, ok := l.entities[operation+"/"+key]
	if !ok {
		return nil, false
	}
	return json.RawMessage(raw), true
}

var testNow = time.Date(2029, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestWorkflow(repo Repository, lk RemoteLookup) *Workflow {
	wf := New(repo, lk)
	wf.now = func() time.Time { return testNow }
	return wf
}

func activeDoctorWorld() *fakeLookup {
	return &fakeLookup{entities: map[string]string{
		"patients.findById/p1": `{"id":"p1","full_name":"Ana Torres"}`,
		"doctors.findById/d1":  `{"id":"d1","full_name":"Luis Vega","active":true}`,
		"doctors.findById/d2":  `{"id":"d2","full_name":"Eva Ruiz","active":false}`,
	}}
}

func futureDate() time.Time {
	return time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
}

func TestCreateRejectsNonFutureDate(t *testing.T) {
	wf := newTestWorkflow(&memRepo{}, activeDoctorWorld())

	for _, date := range []time.Time{testNow, testNow.Add(-time.Hour), testNow.Add(-24 * time.Hour)} {
		_, err := wf.Create(context.Background(), CreateParams{
			PatientID: "p1", DoctorID: "d1", Date: date, Specialty: "cardiology",
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("date %s: expected ErrInvalidInput, got %v", date, err)
		}
	}
}

func TestCreateRejectsAbsentPatientBeforeDoctorCheck(t *testing.T) {
	lk := activeDoctorWorld()
	delete(lk.entities, "patients.findById/p1")
	wf := newTestWorkflow(&memRepo{}, lk)

	_, err := wf.Create(context.Background(), CreateParams{
		PatientID: "p1", DoctorID: "d1", Date: futureDate(), Specialty: "cardiology",
	})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	// The doctor must not have been consulted at all.
	for _, call := range lk.calls {
		if call == "doctors.findById/d1" {
			t.Fatal("doctor lookup should not run when the patient is absent")
		}
	}
}

func TestCreateRejectsAbsentDoctor(t *testing.T) {
	lk := activeDoctorWorld()
	delete(lk.entities, "doctors.findById/d1")
	wf := newTestWorkflow(&memRepo{}, lk)

	_, err := wf.Create(context.Background(), CreateParams{
		PatientID: "p1", DoctorID: "d1", Date: futureDate(), Specialty: "cardiology",
	})
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestCreateRejectsInactiveDoctor(t *testing.T) {
	wf := newTestWorkflow(&memRepo{}, activeDoctorWorld())

	_, err := wf.Create(context.Background(), CreateParams{
		PatientID: "p1", DoctorID: "d2", Date: futureDate(), Specialty: "cardiology",
	})
	if !errors.Is(err, ErrDoctorInactive) {
		t.Fatalf("expected ErrDoctorInactive, got %v", err)
	}
}

func TestCreateRejectsDuplicateTuple(t *testing.T) {
	wf := newTestWorkflow(&memRepo{}, activeDoctorWorld())
	params := CreateParams{PatientID: "p1", DoctorID: "d1", Date: futureDate(), Specialty: "cardiology"}

	first, err := wf.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if first.Status != model.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", first.Status)
	}

	if _, err := wf.Create(context.Background(), params); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A different time is a different booking.
	params.Date = futureDate().Add(time.Hour)
	if _, err := wf.Create(context.Background(), params); err != nil {
		t.Fatalf("create at different time failed: %v", err)
	}
}

func TestFindByPatient(t *testing.T) {
	repo := &memRepo{}
	wf := newTestWorkflow(repo, activeDoctorWorld())

	if _, err := wf.FindByPatient(context.Background(), "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty result, got %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err := wf.Create(context.Background(), CreateParams{
			PatientID: "p1", DoctorID: "d1",
			Date: futureDate().Add(time.Duration(i) * time.Hour), Specialty: "cardiology",
		})
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}

	appts, err := wf.FindByPatient(context.Background(), "p1")
	if err != nil {
		t.Fatalf("findByPatient failed: %v", err)
	}
	if len(appts) != 3 {
		t.Fatalf("expected 3 appointments, got %d", len(appts))
	}
	for i := 1; i < len(appts); i++ {
		if appts[i].ID <= appts[i-1].ID {
			t.Fatal("expected insertion order")
		}
	}
}

func TestFindByDateMatchesWholeDayInclusive(t *testing.T) {
	repo := &memRepo{}
	wf := newTestWorkflow(repo, activeDoctorWorld())

	day := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	inside := []time.Time{
		day,
		day.Add(10 * time.Hour),
		day.Add(24*time.Hour - time.Millisecond),
	}
	outside := []time.Time{
		day.Add(-time.Millisecond),
		day.Add(24 * time.Hour),
	}

	for i, ts := range append(inside, outside...) {
		repo.appts = append(repo.appts, model.Appointment{
			ID: fmt.Sprintf("seed-%d", i), PatientID: "p1", DoctorID: "d1",
			Date: ts, Status: model.StatusScheduled,
		})
	}

	appts, err := wf.FindByDate(context.Background(), day)
	if err != nil {
		t.Fatalf("findByDate failed: %v", err)
	}
	if len(appts) != len(inside) {
		t.Fatalf("expected %d appointments, got %d", len(inside), len(appts))
	}
	for _, appt := range appts {
		if appt.Date.Before(day) || appt.Date.After(day.Add(24*time.Hour-time.Millisecond)) {
			t.Fatalf("appointment at %s is outside the day window", appt.Date)
		}
	}

	if _, err := wf.FindByDate(context.Background(), day.AddDate(0, 0, 5)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty day, got %v", err)
	}
}

func TestCancelIsIdempotentInEffect(t *testing.T) {
	wf := newTestWorkflow(&memRepo{}, activeDoctorWorld())
	appt, err := wf.Create(context.Background(), CreateParams{
		PatientID: "p1", DoctorID: "d1", Date: futureDate(), Specialty: "cardiology",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		cancelled, err := wf.Cancel(context.Background(), appt.ID)
		if err != nil {
			t.Fatalf("cancel #%d failed: %v", i+1, err)
		}
		if cancelled.Status != model.StatusCancelled {
			t.Fatalf("cancel #%d: expected cancelled, got %s", i+1, cancelled.Status)
		}
	}

	if _, err := wf.Cancel(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestRescheduleRejectsPastDateAndLeavesRecordUnchanged(t *testing.T) {
	repo := &memRepo{}
	wf := newTestWorkflow(repo, activeDoctorWorld())
	appt, err := wf.Create(context.Background(), CreateParams{
		PatientID: "p1", DoctorID: "d1", Date: futureDate(), Specialty: "cardiology",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := wf.Reschedule(context.Background(), appt.ID, testNow.Add(-time.Hour)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	stored, err := repo.FindByID(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("findByID failed: %v", err)
	}
	if stored.Status != model.StatusScheduled || !stored.Date.Equal(appt.Date) {
		t.Fatalf("record changed after rejected reschedule: %+v", stored)
	}

	if _, err := wf.Reschedule(context.Background(), "missing", futureDate()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

// Full scenario: create, duplicate, reschedule, cancel.
func TestAppointmentLifecycle(t *testing.T) {
	ctx := context.Background()

	date := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	params := CreateParams{PatientID: "P1", DoctorID: "d1", Date: date, Specialty: "general"}
	// The fake world only knows p1/d1; alias P1 to the same patient entity.
	lk := activeDoctorWorld()
	lk.entities["patients.findById/P1"] = lk.entities["patients.findById/p1"]
	wf := newTestWorkflow(&memRepo{}, lk)

	appt, err := wf.Create(ctx, params)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if appt.Status != model.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", appt.Status)
	}

	if _, err := wf.Create(ctx, params); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on repeat, got %v", err)
	}

	newDate := time.Date(2030, 2, 1, 10, 0, 0, 0, time.UTC)
	moved, err := wf.Reschedule(ctx, appt.ID, newDate)
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if moved.Status != model.StatusRescheduled || !moved.Date.Equal(newDate) {
		t.Fatalf("unexpected state after reschedule: %+v", moved)
	}

	cancelled, err := wf.Cancel(ctx, appt.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestDayWindowBounds(t *testing.T) {
	start, end := DayWindow(time.Date(2030, 1, 1, 15, 30, 0, 0, time.UTC))
	if !start.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start: %s", start)
	}
	if !end.Equal(time.Date(2030, 1, 1, 23, 59, 59, 999000000, time.UTC)) {
		t.Fatalf("unexpected window end: %s", end)
	}
}
