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

func TestCreateRejectsBadDNI(t *testing.T) {
	h := NewPatientHandler(nil)
	cases := map[string]string{
		"too short":    `{"dni":"1234567","full_name":"Ana Torres"}`,
		"too long":     `{"dni":"123456789","full_name":"Ana Torres"}`,
		"letters":      `{"dni":"1234567a","full_name":"Ana Torres"}`,
		"empty":        `{"dni":"","full_name":"Ana Torres"}`,
		"inner spaces": `{"dni":"1234 678","full_name":"Ana Torres"}`,
	}
	for label, payload := range cases {
		_, err := h.Create(context.Background(), json.RawMessage(payload))
		assertInvalidInput(t, err, label)
	}
}

func TestCreateRequiresFullName(t *testing.T) {
	h := NewPatientHandler(nil)
	_, err := h.Create(context.Background(), json.RawMessage(`{"dni":"12345678","full_name":"   "}`))
	assertInvalidInput(t, err, "blank full_name")
}

func TestFindByIDRequiresID(t *testing.T) {
	h := NewPatientHandler(nil)
	for label, payload := range map[string]string{
		"empty string": `""`,
		"blank string": `"   "`,
		"not a string": `{"id":"p1"}`,
	} {
		_, err := h.FindByID(context.Background(), json.RawMessage(payload))
		assertInvalidInput(t, err, label)
	}
}

func TestUpdateRequiresID(t *testing.T) {
	h := NewPatientHandler(nil)
	_, err := h.Update(context.Background(), json.RawMessage(`{"full_name":"Ana Torres"}`))
	assertInvalidInput(t, err, "missing id")
}
