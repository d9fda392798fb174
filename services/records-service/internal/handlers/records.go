package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
	"github.com/clinsys/clinic-services/services/records-service/internal/model"
	"github.com/clinsys/clinic-services/services/records-service/internal/storage"
)

// PatientResolver reports whether a patient currently resolves in the
// patient registry.
type PatientResolver interface {
	Exists(ctx context.Context, patientID string) bool
}

type RecordHandler struct {
	repo     *storage.RecordRepository
	patients PatientResolver
	now      func() time.Time
}

func NewRecordHandler(repo *storage.RecordRepository, patients PatientResolver) *RecordHandler {
	return &RecordHandler{repo: repo, patients: patients, now: time.Now}
}

func (h *RecordHandler) Register(s *busx.Server) {
	s.Handle("records.create", h.Create)
	s.Handle("records.findByPatient", h.FindByPatient)
}

type createRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
}

type recordItem struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
	CreatedAt string `json:"created_at"`
}

func (h *RecordHandler) Create(ctx context.Context, payload json.RawMessage) (any, error) {
	var req createRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, busx.NewError("invalid_input", "invalid json payload")
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.PatientID == "" || req.DoctorID == "" || req.Date == "" {
		return nil, busx.NewError("invalid_input", "patient_id, doctor_id and date are required")
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return nil, busx.NewError("invalid_input", "date must be RFC3339")
	}
	// A clinical entry documents something that already happened.
	if date.After(h.now()) {
		return nil, busx.NewError("invalid_input", "record date cannot be in the future")
	}

	if !h.patients.Exists(ctx, req.PatientID) {
		return nil, busx.NewError("patient_not_found", "patient does not exist")
	}

	rec, err := h.repo.Create(ctx, model.MedicalRecord{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Diagnosis: strings.TrimSpace(req.Diagnosis),
		Treatment: strings.TrimSpace(req.Treatment),
	})
	if err != nil {
		return nil, err
	}
	return toItem(rec), nil
}

func (h *RecordHandler) FindByPatient(ctx context.Context, payload json.RawMessage) (any, error) {
	var patientID string
	if err := json.Unmarshal(payload, &patientID); err != nil || strings.TrimSpace(patientID) == "" {
		return nil, busx.NewError("invalid_input", "patient_id is required")
	}
	records, err := h.repo.FindByPatient(ctx, strings.TrimSpace(patientID))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, busx.NewError("not_found", "no medical records for this patient")
	}
	items := make([]recordItem, 0, len(records))
	for _, rec := range records {
		items = append(items, toItem(rec))
	}
	return items, nil
}

func toItem(rec model.MedicalRecord) recordItem {
	return recordItem{
		ID:        rec.ID,
		PatientID: rec.PatientID,
		DoctorID:  rec.DoctorID,
		Date:      rec.Date.UTC().Format(time.RFC3339),
		Diagnosis: rec.Diagnosis,
		Treatment: rec.Treatment,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
