// internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/campusloop/loopd/internal/models"
)

// MemoryStore keeps room documents in process memory. Documents are held as
// marshaled JSON so every Get hands the caller its own copy; a failed action
// that mutated a loaded room can never corrupt the stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string][]byte
}

// NewMemoryStore returns an empty in-memory room store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.RLock()
	data, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRoom(data)
}

func (s *MemoryStore) Set(_ context.Context, roomID string, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", roomID, err)
	}
	s.mu.Lock()
	s.rooms[roomID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) All(_ context.Context) (map[string]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.Room, len(s.rooms))
	for id, data := range s.rooms {
		room, err := decodeRoom(data)
		if err != nil {
			return nil, err
		}
		out[id] = room
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func decodeRoom(data []byte) (*models.Room, error) {
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	if room.Profiles == nil {
		room.Profiles = make(map[string]models.Profile)
	}
	if room.Locations == nil {
		room.Locations = make(map[string]models.Location)
	}
	return &room, nil
}
