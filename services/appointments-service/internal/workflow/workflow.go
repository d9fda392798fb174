package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinsys/clinic-services/services/appointments-service/internal/model"
)

// RemoteLookup resolves an entity owned by another service. The boolean is
// false when the entity is absent for any reason: a true not-found, a
// timeout, or a transport fault. Callers cannot tell these apart.
type RemoteLookup interface {
	Lookup(ctx context.Context, operation string, key string) (json.RawMessage, bool)
}

// Repository owns persisted appointments. Implementations report a missing
// id with an error satisfying errors.Is(err, ErrNotFound), and a violated
// (patient, doctor, date) uniqueness constraint with ErrDuplicate.
type Repository interface {
	Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	FindByID(ctx context.Context, id string) (model.Appointment, error)
	FindByPatient(ctx context.Context, patientID string) ([]model.Appointment, error)
	FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Appointment, error)
	Update(ctx context.Context, id string, mutate func(*model.Appointment)) (model.Appointment, error)
}

const (
	opPatientFindByID = "patients.findById"
	opDoctorFindByID  = "doctors.findById"
)

// Workflow drives the appointment state machine: it enforces the booking
// rules and coordinates remote existence checks with local persistence.
type Workflow struct {
	repo   Repository
	lookup RemoteLookup
	now    func() time.Time
}

func New(repo Repository, lookup RemoteLookup) *Workflow {
	return &Workflow{
		repo:   repo,
		lookup: lookup,
		now:    time.Now,
	}
}

type CreateParams struct {
	PatientID string
	DoctorID  string
	Date      time.Time
	Specialty string
}

// Create books a new appointment. Checks run in fixed order: future date,
// patient existence, doctor existence, doctor active, duplicate tuple.
// The first failing check decides the error.
func (w *Workflow) Create(ctx context.Context, p CreateParams) (model.Appointment, error) {
	if !p.Date.After(w.now()) {
		return model.Appointment{}, fmt.Errorf("%w: date must be in the future", ErrInvalidInput)
	}

	if _, ok := w.lookup.Lookup(ctx, opPatientFindByID, p.PatientID); !ok {
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrPatientNotFound, p.PatientID)
	}

	rawDoctor, ok := w.lookup.Lookup(ctx, opDoctorFindByID, p.DoctorID)
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrDoctorNotFound, p.DoctorID)
	}
	var doctor struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal(rawDoctor, &doctor); err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrDoctorNotFound, p.DoctorID)
	}
	if !doctor.Active {
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrDoctorInactive, p.DoctorID)
	}

	// Pre-check keeps the error precedence stable; the storage uniqueness
	// constraint is what actually closes the concurrent-create race.
	sameDate, err := w.repo.FindByDateRange(ctx, p.Date, p.Date)
	if err != nil {
		return model.Appointment{}, err
	}
	for _, existing := range sameDate {
		if existing.PatientID == p.PatientID && existing.DoctorID == p.DoctorID {
			return model.Appointment{}, fmt.Errorf("%w: patient %s with doctor %s at %s",
				ErrDuplicate, p.PatientID, p.DoctorID, p.Date.Format(time.RFC3339))
		}
	}

	return w.repo.Insert(ctx, model.Appointment{
		PatientID: p.PatientID,
		DoctorID:  p.DoctorID,
		Date:      p.Date,
		Specialty: p.Specialty,
		Status:    model.StatusScheduled,
	})
}

// FindByPatient returns the patient's appointments in insertion order. An
// empty result is reported as ErrNotFound; whether the patient itself
// exists is not checked here.
func (w *Workflow) FindByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	appts, err := w.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, fmt.Errorf("%w: no appointments for patient %s", ErrNotFound, patientID)
	}
	return appts, nil
}

// FindByDate returns every appointment falling on the given calendar day.
func (w *Workflow) FindByDate(ctx context.Context, day time.Time) ([]model.Appointment, error) {
	start, end := DayWindow(day)
	appts, err := w.repo.FindByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, fmt.Errorf("%w: no appointments on %s", ErrNotFound, start.Format("2006-01-02"))
	}
	return appts, nil
}

// Cancel marks the appointment cancelled. There is deliberately no guard on
// the prior status: repeating the call leaves the record cancelled.
func (w *Workflow) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	return w.repo.Update(ctx, id, func(appt *model.Appointment) {
		appt.Status = model.StatusCancelled
	})
}

// Reschedule moves the appointment to newDate. The record is loaded before
// the date rule so a missing id reports ErrNotFound rather than
// ErrInvalidInput.
func (w *Workflow) Reschedule(ctx context.Context, id string, newDate time.Time) (model.Appointment, error) {
	if _, err := w.repo.FindByID(ctx, id); err != nil {
		return model.Appointment{}, err
	}
	if !newDate.After(w.now()) {
		return model.Appointment{}, fmt.Errorf("%w: new date must be in the future", ErrInvalidInput)
	}
	return w.repo.Update(ctx, id, func(appt *model.Appointment) {
		appt.Date = newDate
		appt.Status = model.StatusRescheduled
	})
}

// DayWindow expands a calendar day to its inclusive timestamp range,
// 00:00:00.000 through 23:59:59.999 UTC.
func DayWindow(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Millisecond)
	return start, end
}
