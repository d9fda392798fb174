package model

import "time"

// Status is the appointment lifecycle tag. Scheduled is the only initial
// state; cancelled and rescheduled are terminal.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string
	Date      time.Time
	Specialty string
	Status    Status
	CreatedAt time.Time
}
