package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
)

// Client resolves entities owned by other services with a single bounded
// request-reply exchange per lookup. Any failure — timeout, transport
// fault, remote error, or an explicit not-found reply — collapses into the
// absent outcome. Infrastructure faults are logged so operators can still
// tell them apart, even though callers cannot.
type Client struct {
	bus     *busx.Client
	logger  *slog.Logger
	timeout time.Duration
}

func NewClient(bus *busx.Client, logger *slog.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{bus: bus, logger: logger, timeout: timeout}
}

func (c *Client) Lookup(ctx context.Context, operation string, key string) (json.RawMessage, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.bus.Request(reqCtx, operation, key)
	if err == nil {
		return data, true
	}

	var busErr *busx.Error
	if errors.As(err, &busErr) && busErr.Code == "not_found" {
		return nil, false
	}
	c.logger.Warn("remote lookup failed; treating as absent",
		"operation", operation, "key", key, "err", err)
	return nil, false
}
