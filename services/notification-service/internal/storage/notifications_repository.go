package storage

import (
	"context"
	"time"

	"github.com/clinsys/clinic-services/libs/db"
)

// Notification is one message owed to a patient about an appointment
// change. Delivery is out of scope; the row is the record of the fact.
type Notification struct {
	AppointmentID string
	PatientID     string
	DoctorID      string
	Kind          string // created | cancelled | rescheduled
	Message       string
	Date          time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, patient_id, doctor_id, kind, message, appointment_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AppointmentID, n.PatientID, n.DoctorID, n.Kind, n.Message, n.Date)
	return err
}

func (r *Repository) ListByPatient(ctx context.Context, patientID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_id, patient_id, doctor_id, kind, message, appointment_date
		FROM notifications
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.AppointmentID, &n.PatientID, &n.DoctorID, &n.Kind, &n.Message, &n.Date); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
