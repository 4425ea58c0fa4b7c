package storage

import (
	"context"
	"errors"

	"github.com/simshield/simshield-server/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Store defines the event archive interface. The simulation core itself
// has no persistence; the archive only backs the dashboard's event log.
type Store interface {
	InsertEvent(ctx context.Context, event *models.SimulationEvent) error
	// ListEvents returns archived events newest first, plus the total count
	ListEvents(ctx context.Context, limit, offset int) ([]*models.SimulationEvent, int64, error)
	Close() error
}
