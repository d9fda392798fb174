package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinsys/clinic-services/libs/db"
	"github.com/clinsys/clinic-services/services/appointments-service/internal/model"
	"github.com/clinsys/clinic-services/services/appointments-service/internal/outbox"
	"github.com/clinsys/clinic-services/services/appointments-service/internal/workflow"
)

const (
	eventCreated     = "appointments.appointment.created.v1"
	eventCancelled   = "appointments.appointment.cancelled.v1"
	eventRescheduled = "appointments.appointment.rescheduled.v1"
)

// AppointmentRepository persists appointments in Postgres. The appointments
// table carries a unique index over (patient_id, doctor_id, date), so a
// concurrent create racing past the workflow's duplicate pre-check still
// loses here. Mutations stage their domain event in the same transaction.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

func (r *AppointmentRepository) Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	appt.ID = uuid.NewString()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, date, specialty, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.Date, appt.Specialty, string(appt.Status)).Scan(&appt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Appointment{}, fmt.Errorf("insert appointment: %w", workflow.ErrDuplicate)
		}
		return model.Appointment{}, err
	}

	if err := r.stageEvent(ctx, tx, eventCreated, appt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, date, specialty, status, created_at
		FROM appointments
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, workflow.ErrNotFound)
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) FindByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, date, specialty, status, created_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at, id
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, date, specialty, status, created_at
		FROM appointments
		WHERE date >= $1 AND date <= $2
		ORDER BY date, created_at
	`, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// Update loads the row under a row lock, applies mutate, and writes back
// date and status. The new state decides which domain event is staged.
func (r *AppointmentRepository) Update(ctx context.Context, id string, mutate func(*model.Appointment)) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, date, specialty, status, created_at
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, workflow.ErrNotFound)
		}
		return model.Appointment{}, err
	}

	mutate(&appt)

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET date = $2, status = $3
		WHERE id = $1
	`, appt.ID, appt.Date, string(appt.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Appointment{}, fmt.Errorf("update appointment: %w", workflow.ErrDuplicate)
		}
		return model.Appointment{}, err
	}

	var eventType string
	switch appt.Status {
	case model.StatusCancelled:
		eventType = eventCancelled
	case model.StatusRescheduled:
		eventType = eventRescheduled
	}
	if eventType != "" {
		if err := r.stageEvent(ctx, tx, eventType, appt); err != nil {
			return model.Appointment{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) stageEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"id":          appt.ID,
		"patient_id":  appt.PatientID,
		"doctor_id":   appt.DoctorID,
		"date":        appt.Date.UTC().Format(time.RFC3339),
		"specialty":   appt.Specialty,
		"status":      string(appt.Status),
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateID: appt.ID,
		EventType:   eventType,
		Payload:     payload,
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(&appt.ID, &appt.PatientID, &appt.DoctorID, &appt.Date, &appt.Specialty, &status, &appt.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
