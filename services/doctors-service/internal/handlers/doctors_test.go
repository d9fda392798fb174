package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/clinsys/clinic-services/libs/busx"
)

func assertInvalidInput(t *testing.T, err error, label string) {
	t.Helper()
	var busErr *busx.Error
	if !errors.As(err, &busErr) {
		t.Fatalf("%s: want *busx.Error, got %v", label, err)
	}
	if busErr.Code != "invalid_input" {
		t.Fatalf("%s: code = %q, want invalid_input", label, busErr.Code)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	h := NewDoctorHandler(nil)
	cases := map[string]string{
		"bad dni":           `{"dni":"12a45678","full_name":"Luis Soto","specialty":"cardiology"}`,
		"missing specialty": `{"dni":"12345678","full_name":"Luis Soto"}`,
		"blank full_name":   `{"dni":"12345678","full_name":" ","specialty":"cardiology"}`,
	}
	for label, payload := range cases {
		_, err := h.Create(context.Background(), json.RawMessage(payload))
		assertInvalidInput(t, err, label)
	}
}

func TestFindBySpecialtyRequiresValue(t *testing.T) {
	h := NewDoctorHandler(nil)
	for label, payload := range map[string]string{
		"empty":        `""`,
		"blank":        `"   "`,
		"not a string": `["cardiology"]`,
	} {
		_, err := h.FindBySpecialty(context.Background(), json.RawMessage(payload))
		assertInvalidInput(t, err, label)
	}
}
