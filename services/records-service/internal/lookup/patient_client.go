package lookup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
)

// PatientClient answers one question: does this patient resolve right now.
// A lookup that fails for any reason — timeout, transport fault, remote
// error — counts as not resolving, same as a true not-found.
type PatientClient struct {
	bus     *busx.Client
	logger  *slog.Logger
	timeout time.Duration
}

func NewPatientClient(bus *busx.Client, logger *slog.Logger, timeout time.Duration) *PatientClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PatientClient{bus: bus, logger: logger, timeout: timeout}
}

func (c *PatientClient) Exists(ctx context.Context, patientID string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.bus.Request(reqCtx, "patients.findById", patientID)
	if err == nil {
		return true
	}
	var busErr *busx.Error
	if !errors.As(err, &busErr) || busErr.Code != "not_found" {
		c.logger.Warn("patient lookup failed; treating as absent", "patient_id", patientID, "err", err)
	}
	return false
}
