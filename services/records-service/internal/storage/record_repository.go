package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinsys/clinic-services/libs/db"
	"github.com/clinsys/clinic-services/services/records-service/internal/model"
)

type RecordRepository struct {
	pool *db.Pool
}

func NewRecordRepository(pool *db.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

func (r *RecordRepository) Create(ctx context.Context, rec model.MedicalRecord) (model.MedicalRecord, error) {
	rec.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, date, diagnosis, treatment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, rec.ID, rec.PatientID, rec.DoctorID, rec.Date, rec.Diagnosis, rec.Treatment).Scan(&rec.CreatedAt)
	if err != nil {
		return model.MedicalRecord{}, err
	}
	return rec, nil
}

// FindByPatient returns the patient's full history, newest first.
func (r *RecordRepository) FindByPatient(ctx context.Context, patientID string) ([]model.MedicalRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, date, diagnosis, treatment, created_at
		FROM medical_records
		WHERE patient_id = $1
		ORDER BY date DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MedicalRecord
	for rows.Next() {
		var rec model.MedicalRecord
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.Date, &rec.Diagnosis, &rec.Treatment, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
