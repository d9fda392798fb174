package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
)

// commandBus is the slice of busx.Client the gateway uses; an interface so
// handlers are testable without a broker.
type commandBus interface {
	Request(ctx context.Context, operation string, payload any) (json.RawMessage, error)
}

type gateway struct {
	bus            commandBus
	logger         *slog.Logger
	commandTimeout time.Duration
}

func registerRoutes(mux *http.ServeMux, g *gateway) {
	mux.HandleFunc("POST /api/v1/patients", g.bodyCommand("patients.create"))
	mux.HandleFunc("GET /api/v1/patients", g.plainCommand("patients.findAll", nil))
	mux.HandleFunc("GET /api/v1/patients/{id}", g.idCommand("patients.findById"))
	mux.HandleFunc("PATCH /api/v1/patients/{id}", g.bodyWithIDCommand("patients.update"))
	mux.HandleFunc("DELETE /api/v1/patients/{id}", g.idCommand("patients.deactivate"))
	mux.HandleFunc("GET /api/v1/patients/{id}/records", g.idCommand("records.findByPatient"))

	mux.HandleFunc("POST /api/v1/doctors", g.bodyCommand("doctors.create"))
	mux.HandleFunc("GET /api/v1/doctors", g.doctorsBySpecialty)
	mux.HandleFunc("GET /api/v1/doctors/{id}", g.idCommand("doctors.findById"))
	mux.HandleFunc("PATCH /api/v1/doctors/{id}", g.bodyWithIDCommand("doctors.update"))
	mux.HandleFunc("DELETE /api/v1/doctors/{id}", g.idCommand("doctors.deactivate"))

	mux.HandleFunc("POST /api/v1/records", g.bodyCommand("records.create"))

	mux.HandleFunc("POST /api/v1/appointments", g.bodyCommand("appointments.create"))
	mux.HandleFunc("GET /api/v1/appointments", g.appointmentsQuery)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", g.idCommand("appointments.cancel"))
	mux.HandleFunc("POST /api/v1/appointments/{id}/reschedule", g.bodyWithIDCommand("appointments.reschedule"))
}

// bodyCommand forwards the JSON request body as the command payload.
func (g *gateway) bodyCommand(operation string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := decodeBody(w, r)
		if !ok {
			return
		}
		g.forward(w, r, operation, payload)
	}
}

// idCommand forwards the path id as a bare JSON string payload.
func (g *gateway) idCommand(operation string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.forward(w, r, operation, r.PathValue("id"))
	}
}

// bodyWithIDCommand merges the path id into the JSON body under "id".
func (g *gateway) bodyWithIDCommand(operation string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := decodeBody(w, r)
		if !ok {
			return
		}
		payload["id"] = r.PathValue("id")
		g.forward(w, r, operation, payload)
	}
}

// plainCommand forwards a fixed payload, ignoring the request body.
func (g *gateway) plainCommand(operation string, payload any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.forward(w, r, operation, payload)
	}
}

func (g *gateway) doctorsBySpecialty(w http.ResponseWriter, r *http.Request) {
	specialty := strings.TrimSpace(r.URL.Query().Get("specialty"))
	if specialty == "" {
		http.Error(w, "specialty query parameter required", http.StatusBadRequest)
		return
	}
	g.forward(w, r, "doctors.findBySpecialty", specialty)
}

func (g *gateway) appointmentsQuery(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	switch {
	case patientID != "":
		g.forward(w, r, "appointments.findByPatient", patientID)
	case date != "":
		g.forward(w, r, "appointments.findByDate", date)
	default:
		http.Error(w, "patient_id or date query parameter required", http.StatusBadRequest)
	}
}

func (g *gateway) forward(w http.ResponseWriter, r *http.Request, operation string, payload any) {
	ctx, cancel := context.WithTimeout(r.Context(), g.commandTimeout)
	defer cancel()

	data, err := g.bus.Request(ctx, operation, payload)
	if err != nil {
		g.writeError(w, operation, err)
		return
	}
	status := http.StatusOK
	if r.Method == http.MethodPost && strings.HasSuffix(operation, ".create") {
		status = http.StatusCreated
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (g *gateway) writeError(w http.ResponseWriter, operation string, err error) {
	var busErr *busx.Error
	if errors.As(err, &busErr) {
		writeJSONError(w, statusForCode(busErr.Code), busErr.Code, busErr.Message)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		g.logger.Warn("command timed out", "operation", operation)
		writeJSONError(w, http.StatusGatewayTimeout, "timeout", "service did not answer in time")
		return
	}
	g.logger.Error("command failed", "operation", operation, "err", err)
	writeJSONError(w, http.StatusBadGateway, "unavailable", "service unavailable")
}

// statusForCode maps bus error kinds to HTTP statuses. Business-rule
// rejections (duplicates, inactive doctor) are client errors, matching the
// API's historical behavior.
func statusForCode(code string) int {
	switch code {
	case "invalid_input", "duplicate_appointment", "doctor_inactive":
		return http.StatusBadRequest
	case "not_found", "patient_not_found", "doctor_not_found":
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return nil, false
	}
	return payload, true
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  code,
		"error": message,
	})
}
