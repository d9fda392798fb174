package workflow

import "errors"

var (
	// ErrInvalidInput covers rule-violating requests: a create or
	// reschedule date that is not strictly in the future.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPatientNotFound and ErrDoctorNotFound cover the collapsed remote
	// lookup outcome: the entity does not exist, or its service could not
	// answer in time. The two cases are indistinguishable by contract.
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")

	// ErrDoctorInactive is a business rejection distinct from absence: the
	// doctor resolved but no longer accepts bookings.
	ErrDoctorInactive = errors.New("doctor is inactive")

	// ErrDuplicate means an appointment for the same patient, doctor and
	// date already exists.
	ErrDuplicate = errors.New("appointment already exists")

	// ErrNotFound covers a missing local appointment, or an empty query
	// result where the operation treats emptiness as absence.
	ErrNotFound = errors.New("not found")
)
