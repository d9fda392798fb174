package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
	"github.com/clinsys/clinic-services/services/appointments-service/internal/model"
	"github.com/clinsys/clinic-services/services/appointments-service/internal/workflow"
)

// AppointmentHandler adapts bus commands to workflow calls.
type AppointmentHandler struct {
	wf *workflow.Workflow
}

func NewAppointmentHandler(wf *workflow.Workflow) *AppointmentHandler {
	return &AppointmentHandler{wf: wf}
}

func (h *AppointmentHandler) Register(s *busx.Server) {
	s.Handle("appointments.create", h.Create)
	s.Handle("appointments.findByPatient", h.FindByPatient)
	s.Handle("appointments.findByDate", h.FindByDate)
	s.Handle("appointments.cancel", h.Cancel)
	s.Handle("appointments.reschedule", h.Reschedule)
}

type createRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Specialty string `json:"specialty"`
}

type rescheduleRequest struct {
	ID      string `json:"id"`
	NewDate string `json:"new_date"`
}

type appointmentItem struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Specialty string `json:"specialty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (h *AppointmentHandler) Create(ctx context.Context, payload json.RawMessage) (any, error) {
	var req createRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, busx.NewError("invalid_input", "invalid json payload")
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.Specialty = strings.TrimSpace(req.Specialty)
	if req.PatientID == "" || req.DoctorID == "" || req.Date == "" {
		return nil, busx.NewError("invalid_input", "patient_id, doctor_id and date are required")
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return nil, busx.NewError("invalid_input", "date must be RFC3339")
	}

	appt, err := h.wf.Create(ctx, workflow.CreateParams{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Specialty: req.Specialty,
	})
	if err != nil {
		return nil, toBusError(err)
	}
	return toItem(appt), nil
}

func (h *AppointmentHandler) FindByPatient(ctx context.Context, payload json.RawMessage) (any, error) {
	patientID, err := decodeID(payload)
	if err != nil {
		return nil, err
	}
	appts, err := h.wf.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, toBusError(err)
	}
	return toItems(appts), nil
}

func (h *AppointmentHandler) FindByDate(ctx context.Context, payload json.RawMessage) (any, error) {
	var raw string
	if err := json.Unmarshal(payload, &raw); err != nil || strings.TrimSpace(raw) == "" {
		return nil, busx.NewError("invalid_input", "date is required")
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return nil, busx.NewError("invalid_input", "date must be YYYY-MM-DD")
	}
	appts, err := h.wf.FindByDate(ctx, day)
	if err != nil {
		return nil, toBusError(err)
	}
	return toItems(appts), nil
}

func (h *AppointmentHandler) Cancel(ctx context.Context, payload json.RawMessage) (any, error) {
	id, err := decodeID(payload)
	if err != nil {
		return nil, err
	}
	appt, err := h.wf.Cancel(ctx, id)
	if err != nil {
		return nil, toBusError(err)
	}
	return toItem(appt), nil
}

func (h *AppointmentHandler) Reschedule(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rescheduleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, busx.NewError("invalid_input", "invalid json payload")
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.NewDate == "" {
		return nil, busx.NewError("invalid_input", "id and new_date are required")
	}
	newDate, err := time.Parse(time.RFC3339, req.NewDate)
	if err != nil {
		return nil, busx.NewError("invalid_input", "new_date must be RFC3339")
	}

	appt, err := h.wf.Reschedule(ctx, req.ID, newDate)
	if err != nil {
		return nil, toBusError(err)
	}
	return toItem(appt), nil
}

func decodeID(payload json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(payload, &id); err != nil || strings.TrimSpace(id) == "" {
		return "", busx.NewError("invalid_input", "id is required")
	}
	return strings.TrimSpace(id), nil
}

func toItem(appt model.Appointment) appointmentItem {
	return appointmentItem{
		ID:        appt.ID,
		PatientID: appt.PatientID,
		DoctorID:  appt.DoctorID,
		Date:      appt.Date.UTC().Format(time.RFC3339),
		Specialty: appt.Specialty,
		Status:    string(appt.Status),
		CreatedAt: appt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toItems(appts []model.Appointment) []appointmentItem {
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toItem(appt))
	}
	return items
}

func toBusError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrInvalidInput):
		return busx.NewError("invalid_input", err.Error())
	case errors.Is(err, workflow.ErrPatientNotFound):
		return busx.NewError("patient_not_found", err.Error())
	case errors.Is(err, workflow.ErrDoctorNotFound):
		return busx.NewError("doctor_not_found", err.Error())
	case errors.Is(err, workflow.ErrDoctorInactive):
		return busx.NewError("doctor_inactive", err.Error())
	case errors.Is(err, workflow.ErrDuplicate):
		return busx.NewError("duplicate_appointment", err.Error())
	case errors.Is(err, workflow.ErrNotFound):
		return busx.NewError("not_found", err.Error())
	default:
		return err
	}
}
