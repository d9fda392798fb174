package model

import "time"

// MedicalRecord is append-only: once written it is never updated or
// deleted.
type MedicalRecord struct {
	ID        string
	PatientID string
	DoctorID  string
	Date      time.Time
	Diagnosis string
	Treatment string
	CreatedAt time.Time
}
