package handlers

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
	"github.com/clinsys/clinic-services/services/patients-service/internal/model"
	"github.com/clinsys/clinic-services/services/patients-service/internal/storage"
)

// dniPattern: national identity numbers are exactly eight digits.
var dniPattern = regexp.MustCompile(`^[0-9]{8}$`)

type PatientHandler struct {
	repo *storage.PatientRepository
}

func NewPatientHandler(repo *storage.PatientRepository) *PatientHandler {
	return &PatientHandler{repo: repo}
}

func (h *PatientHandler) Register(s *busx.Server) {
	s.Handle("patients.create", h.Create)
	s.Handle("patients.findById", h.FindByID)
	s.Handle("patients.findAll", h.FindAll)
	s.Handle("patients.update", h.Update)
	s.Handle("patients.deactivate", h.Deactivate)
}

type createRequest struct {
	DNI      string `json:"dni"`
	FullName string `json:"full_name"`
	Sex      string `json:"sex"`
	Email    string `json:"email"`
}

type updateRequest struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Sex      string `json:"sex"`
	Email    string `json:"email"`
}

type patientItem struct {
	ID        string `json:"id"`
	DNI       string `json:"dni"`
	FullName  string `json:"full_name"`
	Sex       string `json:"sex"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func (h *PatientHandler) Create(ctx context.Context, payload json.RawMessage) (any, error) {
	var req createRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, busx.NewError("invalid_input", "invalid json payload")
	}
	req.DNI = strings.TrimSpace(req.DNI)
	req.FullName = strings.TrimSpace(req.FullName)
	if !dniPattern.MatchString(req.DNI) {
		return nil, busx.NewError("invalid_input", "dni must be exactly 8 digits")
	}
	if req.FullName == "" {
		return nil, busx.NewError("invalid_input", "full_name is required")
	}

	p, err := h.repo.Create(ctx, model.Patient{
		DNI:      req.DNI,
		FullName: req.FullName,
		Sex:      strings.TrimSpace(req.Sex),
		Email:    strings.TrimSpace(req.Email),
	})
	if err != nil {
		if storage.IsDuplicateDNI(err) {
			return nil, busx.NewError("invalid_input", "dni already registered")
		}
		return nil, err
	}
	return toItem(p), nil
}

func (h *PatientHandler) FindByID(ctx context.Context, payload json.RawMessage) (any, error) {
	id, busErr := decodeID(payload)
	if busErr != nil {
		return nil, busErr
	}
	p, err := h.repo.FindByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, busx.NewError("not_found", "patient not found")
		}
		return nil, err
	}
	return toItem(p), nil
}

func (h *PatientHandler) FindAll(ctx context.Context, _ json.RawMessage) (any, error) {
	patients, err := h.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]patientItem, 0, len(patients))
	for _, p := range patients {
		items = append(items, toItem(p))
	}
	return items, nil
}

func (h *PatientHandler) Update(ctx context.Context, payload json.RawMessage) (any, error) {
	var req updateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, busx.NewError("invalid_input", "invalid json payload")
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return nil, busx.NewError("invalid_input", "id is required")
	}

	p, err := h.repo.Update(ctx, req.ID, strings.TrimSpace(req.FullName), strings.TrimSpace(req.Sex), strings.TrimSpace(req.Email))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, busx.NewError("not_found", "patient not found")
		}
		return nil, err
	}
	return toItem(p), nil
}

func (h *PatientHandler) Deactivate(ctx context.Context, payload json.RawMessage) (any, error) {
	id, busErr := decodeID(payload)
	if busErr != nil {
		return nil, busErr
	}
	p, err := h.repo.Deactivate(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, busx.NewError("not_found", "patient not found")
		}
		return nil, err
	}
	return toItem(p), nil
}

func decodeID(payload json.RawMessage) (string, *busx.Error) {
	var id string
	if err := json.Unmarshal(payload, &id); err != nil || strings.TrimSpace(id) == "" {
		return "", busx.NewError("invalid_input", "id is required")
	}
	return strings.TrimSpace(id), nil
}

func toItem(p model.Patient) patientItem {
	return patientItem{
		ID:        p.ID,
		DNI:       p.DNI,
		FullName:  p.FullName,
		Sex:       p.Sex,
		Email:     p.Email,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
