package handlers

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
	"github.com/clinsys/clinic-services/services/doctors-service/internal/model"
	"github.com/clinsys/clinic-services/services/doctors-service/internal/storage"
)

var dniPattern = regexp.MustCompile(`^[0-9]{8}$`)

type DoctorHandler struct {
	repo *storage.DoctorRepository
}

func NewDoctorHandler(repo *storage.DoctorRepository) *DoctorHandler {
	return &DoctorHandler{repo: repo}
}

func (h *DoctorHandler) Register(s *busx.Server) {
	s.Handle("doctors.create", h.Create)
	s.Handle("doctors.findById", h.FindByID)
	s.Handle("doctors.findBySpecialty", h.FindBySpecialty)
	s.Handle("doctors.update", h.Update)
	s.Handle("doctors.deactivate", h.Deactivate)
}

type createRequest struct {
	DNI       string `json:"dni"`
	FullName  string `json:"full_name"`
	Specialty string `json:"specialty"`
	Email     string `json:"email"`
}

type updateRequest struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Specialty string `json:"specialty"`
	Email     string `json:"email"`
}

type doctorItem struct {
	ID        string `json:"id"`
	DNI       string `json:"dni"`
	FullName  string `json:"full_name"`
	Specialty string `json:"specialty"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func (h *DoctorHandler) Create(ctx context.Context, payload json.RawMessage) (any, error) {
	var req createRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, busx.NewError("invalid_input", "invalid json payload")
	}
	req.DNI = strings.TrimSpace(req.DNI)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Specialty = strings.TrimSpace(req.Specialty)
	if !dniPattern.MatchString(req.DNI) {
		return nil, busx.NewError("invalid_input", "dni must be exactly 8 digits")
	}
	if req.FullName == "" || req.Specialty == "" {
		return nil, busx.NewError("invalid_input", "full_name and specialty are required")
	}

	d, err := h.repo.Create(ctx, model.Doctor{
		DNI:       req.DNI,
		FullName:  req.FullName,
		Specialty: req.Specialty,
		Email:     strings.TrimSpace(req.Email),
	})
	if err != nil {
		if storage.IsDuplicateDNI(err) {
			return nil, busx.NewError("invalid_input", "dni already registered")
		}
		return nil, err
	}
	return toItem(d), nil
}

func (h *DoctorHandler) FindByID(ctx context.Context, payload json.RawMessage) (any, error) {
	id, busErr := decodeID(payload)
	if busErr != nil {
		return nil, busErr
	}
	d, err := h.repo.FindByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, busx.NewError("not_found", "doctor not found")
		}
		return nil, err
	}
	return toItem(d), nil
}

func (h *DoctorHandler) FindBySpecialty(ctx context.Context, payload json.RawMessage) (any, error) {
	var specialty string
	if err := json.Unmarshal(payload, &specialty); err != nil || strings.TrimSpace(specialty) == "" {
		return nil, busx.NewError("invalid_input", "specialty is required")
	}
	doctors, err := h.repo.FindBySpecialty(ctx, strings.TrimSpace(specialty))
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, busx.NewError("not_found", "no active doctors for this specialty")
	}
	items := make([]doctorItem, 0, len(doctors))
	for _, d := range doctors {
		items = append(items, toItem(d))
	}
	return items, nil
}

func (h *DoctorHandler) Update(ctx context.Context, payload json.RawMessage) (any, error) {
	var req updateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, busx.NewError("invalid_input", "invalid json payload")
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return nil, busx.NewError("invalid_input", "id is required")
	}

	d, err := h.repo.Update(ctx, req.ID, strings.TrimSpace(req.FullName), strings.TrimSpace(req.Specialty), strings.TrimSpace(req.Email))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, busx.NewError("not_found", "doctor not found")
		}
		return nil, err
	}
	return toItem(d), nil
}

func (h *DoctorHandler) Deactivate(ctx context.Context, payload json.RawMessage) (any, error) {
	id, busErr := decodeID(payload)
	if busErr != nil {
		return nil, busErr
	}
	d, err := h.repo.Deactivate(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, busx.NewError("not_found", "doctor not found")
		}
		return nil, err
	}
	return toItem(d), nil
}

func decodeID(payload json.RawMessage) (string, *busx.Error) {
	var id string
	if err := json.Unmarshal(payload, &id); err != nil || strings.TrimSpace(id) == "" {
		return "", busx.NewError("invalid_input", "id is required")
	}
	return strings.TrimSpace(id), nil
}

func toItem(d model.Doctor) doctorItem {
	return doctorItem{
		ID:        d.ID,
		DNI:       d.DNI,
		FullName:  d.FullName,
		Specialty: d.Specialty,
		Email:     d.Email,
		Active:    d.Active,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
	}
}
