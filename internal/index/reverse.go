// internal/index/reverse.go
package index

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/campusloop/loopd/internal/models"
	"github.com/campusloop/loopd/internal/store"
)

// activeRef points at one active loop.
type activeRef struct {
	RoomID string
	LoopID string
}

// ReverseIndex maintains a userID -> active loop reference map, updated on
// every room persist. Lookups are O(1) instead of a full store scan. The
// map is rebuilt from the store at startup so restarts do not lose state.
type ReverseIndex struct {
	mu     sync.RWMutex
	active map[string][]activeRef
}

// NewReverseIndex builds the reverse map by scanning the store once.
func NewReverseIndex(ctx context.Context, s store.RoomStore) (*ReverseIndex, error) {
	idx := &ReverseIndex{active: make(map[string][]activeRef)}
	rooms, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, room := range rooms {
		idx.RoomPersisted(room)
	}
	return idx, nil
}

func (idx *ReverseIndex) HasActiveLoop(_ context.Context, userID string, exempt Exemption) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, ref := range idx.active[userID] {
		if ref.RoomID == exempt.RoomID && ref.LoopID == exempt.LoopID {
			continue
		}
		return true, nil
	}
	return false, nil
}

// RoomPersisted replaces every reference into the given room with the room's
// current active loop membership.
func (idx *ReverseIndex) RoomPersisted(room *models.Room) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Drop stale refs into this room.
	for userID, refs := range idx.active {
		kept := lo.Filter(refs, func(ref activeRef, _ int) bool {
			return ref.RoomID != room.ID
		})
		if len(kept) == 0 {
			delete(idx.active, userID)
		} else {
			idx.active[userID] = kept
		}
	}

	for _, l := range room.Loops {
		if l.Status != models.LoopActive {
			continue
		}
		ref := activeRef{RoomID: room.ID, LoopID: l.ID}
		holders := l.ParticipantIDs
		if l.OwnerID != "" && !l.HasParticipant(l.OwnerID) {
			holders = append(append([]string{}, holders...), l.OwnerID)
		}
		for _, userID := range holders {
			idx.active[userID] = append(idx.active[userID], ref)
		}
	}
}
