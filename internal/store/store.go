// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/campusloop/loopd/internal/models"
)

// ErrNotFound marks a missing room document.
var ErrNotFound = errors.New("room not found")

// RoomStore is the keyed document store the engine persists rooms through.
// Reads and writes are atomic at single-document granularity; no
// multi-document transaction support is assumed.
type RoomStore interface {
	// Get loads one room, or ErrNotFound.
	Get(ctx context.Context, roomID string) (*models.Room, error)
	// Set writes one room's full state.
	Set(ctx context.Context, roomID string, room *models.Room) error
	// All returns every stored room, keyed by id. Used by the scanning
	// cross-room index and the user loop listing.
	All(ctx context.Context) (map[string]*models.Room, error)
	// Close releases backend resources.
	Close() error
}
