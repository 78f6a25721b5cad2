// internal/models/room.go
package models

import (
	"time"

	"github.com/samber/lo"
)

// Capacity bounds for a loop. Rooms may hold a default capacity before the
// owner confirms one, but a started loop never exceeds CapacityMax.
const (
	CapacityMin = 2
	CapacityMax = 4

	// MinParticipants is the smallest group the matcher will form.
	MinParticipants = 2

	// MaxLoopHistory bounds the per-room loop history, newest first.
	MaxLoopHistory = 12
)

// MeetingPoint is a named physical location inside a venue where a loop's
// participants convene.
type MeetingPoint struct {
	ID          string `json:"id,omitempty"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Attendee is one entry in the room's plain waiting queue, used by the
// alternate matching-function flow.
type Attendee struct {
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Profile is what the room remembers about a user who has passed through it.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Location is a user's last reported position.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Room is one waiting room, keyed by an opaque caller-supplied identifier.
// The zero value plus an ID is a valid unclaimed room.
type Room struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId,omitempty"`
	OwnerName string `json:"ownerName,omitempty"`

	VenueID   string `json:"venueId,omitempty"`
	VenueName string `json:"venueName,omitempty"`

	Capacity          int           `json:"capacity"`
	CapacityConfirmed bool          `json:"capacityConfirmed"`
	MeetingPoint      *MeetingPoint `json:"meetingPoint,omitempty"`
	ScheduledAt       time.Time     `json:"scheduledAt"`

	Attendees []Attendee          `json:"attendees"`
	Profiles  map[string]Profile  `json:"profiles"`
	Locations map[string]Location `json:"locations"`

	// Loops is the bounded history, most recent first.
	Loops []*Loop `json:"loops"`

	// ParticipantIndex is derived from Loops on every persist and backs the
	// cross-room active-loop lookup.
	ParticipantIndex []string `json:"participantIndex"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRoom returns an unclaimed room with empty defaults.
func NewRoom(id string, now time.Time) *Room {
	return &Room{
		ID:        id,
		Capacity:  CapacityMax,
		Profiles:  make(map[string]Profile),
		Locations: make(map[string]Location),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ClampCapacity forces a capacity into the allowed [CapacityMin, CapacityMax]
// range.
func ClampCapacity(capacity int) int {
	if capacity < CapacityMin {
		return CapacityMin
	}
	if capacity > CapacityMax {
		return CapacityMax
	}
	return capacity
}

// ActiveLoop returns the room's single active loop, or nil.
func (r *Room) ActiveLoop() *Loop {
	for _, l := range r.Loops {
		if l.Status == LoopActive {
			return l
		}
	}
	return nil
}

// PendingLoop returns the room's staging loop, or nil.
func (r *Room) PendingLoop() *Loop {
	for _, l := range r.Loops {
		if l.Status == LoopPending {
			return l
		}
	}
	return nil
}

// FindLoop looks a loop up by id.
func (r *Room) FindLoop(loopID string) *Loop {
	for _, l := range r.Loops {
		if l.ID == loopID {
			return l
		}
	}
	return nil
}

// PrependLoop inserts a loop at the head of the history and trims it to
// MaxLoopHistory entries.
func (r *Room) PrependLoop(l *Loop) {
	r.Loops = append([]*Loop{l}, r.Loops...)
	if len(r.Loops) > MaxLoopHistory {
		r.Loops = r.Loops[:MaxLoopHistory]
	}
}

// RebuildParticipantIndex recomputes the derived userId set from the loop
// history. Called by the engine before every persist.
func (r *Room) RebuildParticipantIndex() {
	ids := make([]string, 0, len(r.Loops)*CapacityMax)
	for _, l := range r.Loops {
		ids = append(ids, l.ParticipantIDs...)
	}
	r.ParticipantIndex = lo.Uniq(ids)
}

// Status derives the room-level phase from its loop history: active wins over
// pending, pending over completed.
func (r *Room) Status() LoopStatus {
	if r.ActiveLoop() != nil {
		return LoopActive
	}
	if r.PendingLoop() != nil {
		return LoopPending
	}
	return LoopCompleted
}

// SetupComplete reports whether the room is fully configured for a loop to
// start: claimed owner with a display name, an explicitly confirmed capacity
// and a labelled meeting point.
func (r *Room) SetupComplete() bool {
	return r.OwnerID != "" &&
		r.OwnerName != "" &&
		r.CapacityConfirmed &&
		r.MeetingPoint != nil &&
		r.MeetingPoint.Label != ""
}
