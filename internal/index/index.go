// internal/index/index.go
package index

import (
	"context"

	"github.com/campusloop/loopd/internal/models"
	"github.com/campusloop/loopd/internal/store"
)

// Exemption names one loop to ignore during an active-loop lookup, typically
// the loop the caller is about to promote or join in its own room.
type Exemption struct {
	RoomID string
	LoopID string
}

// CrossRoomIndex answers whether a user currently holds an active loop
// anywhere in the system. The check is best-effort: two concurrent
// startLoop/join calls in different rooms can both pass it before either
// persists (a documented race, see DESIGN.md).
type CrossRoomIndex interface {
	// HasActiveLoop reports whether userID is owner or participant of any
	// active-status loop in any room, excluding the exempted loop.
	HasActiveLoop(ctx context.Context, userID string, exempt Exemption) (bool, error)
	// RoomPersisted is invoked by the engine after every successful persist
	// so maintained indexes can track loop state changes.
	RoomPersisted(room *models.Room)
}

// loopHolds reports whether userID holds the loop as owner or participant.
func loopHolds(l *models.Loop, userID string) bool {
	return l.OwnerID == userID || l.HasParticipant(userID)
}

// ScanIndex implements the lookup as an O(rooms x loops) scan over the room
// store. Fine at pilot scale; larger deployments use ReverseIndex.
type ScanIndex struct {
	Store store.RoomStore
}

// NewScanIndex returns a scanning index over the given store.
func NewScanIndex(s store.RoomStore) *ScanIndex {
	return &ScanIndex{Store: s}
}

func (idx *ScanIndex) HasActiveLoop(ctx context.Context, userID string, exempt Exemption) (bool, error) {
	rooms, err := idx.Store.All(ctx)
	if err != nil {
		return false, err
	}
	for roomID, room := range rooms {
		for _, l := range room.Loops {
			if l.Status != models.LoopActive {
				continue
			}
			if roomID == exempt.RoomID && l.ID == exempt.LoopID {
				continue
			}
			if loopHolds(l, userID) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (idx *ScanIndex) RoomPersisted(*models.Room) {}
