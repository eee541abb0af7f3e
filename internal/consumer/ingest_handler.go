package consumer

import (
	"context"
	"errors"

	"example.com/sitetracker/internal/tracker"
)

type streamIngester interface {
	IngestStream(ctx context.Context, source, text string) (tracker.ImportResult, error)
}

// IngestHandler merges streamed rows into the working set.
type IngestHandler struct {
	service streamIngester
}

// NewIngestHandler constructs a handler backed by the provided service.
func NewIngestHandler(service streamIngester) *IngestHandler {
	return &IngestHandler{service: service}
}

// Handle ingests the message rows. A message without valid rows is consumed
// like any other; retrying it could never succeed.
func (h *IngestHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.service.IngestStream(ctx, msg.Source, msg.Rows)
	if errors.Is(err, tracker.ErrNothingImported) {
		return nil
	}
	return err
}
