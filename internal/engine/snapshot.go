// internal/engine/snapshot.go
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/campusloop/loopd/internal/models"
)

// WaitingEntry is one alias-resolved waiting queue position.
type WaitingEntry struct {
	UserID   string    `json:"userId"`
	Alias    string    `json:"alias"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomSnapshot is the projection every operation returns. A polling client
// treats each action response identically to a snapshot read.
type RoomSnapshot struct {
	RoomID    string `json:"roomId"`
	VenueID   string `json:"venueId,omitempty"`
	VenueName string `json:"venueName,omitempty"`
	OwnerID   string `json:"ownerId,omitempty"`
	OwnerName string `json:"ownerName,omitempty"`

	Capacity          int                  `json:"capacity"`
	CapacityConfirmed bool                 `json:"capacityConfirmed"`
	MeetingPoint      *models.MeetingPoint `json:"meetingPoint,omitempty"`
	ScheduledAt       time.Time            `json:"scheduledAt"`

	Status        models.LoopStatus `json:"status"`
	SetupComplete bool              `json:"setupComplete"`

	Waiting []WaitingEntry `json:"waiting"`
	Loops   []*models.Loop `json:"loops"`

	LastUpdated time.Time `json:"lastUpdated"`
}

func (e *Engine) buildSnapshot(room *models.Room) *RoomSnapshot {
	waiting := make([]WaitingEntry, len(room.Attendees))
	for i, a := range room.Attendees {
		alias := room.Profiles[a.UserID].Name
		if alias == "" {
			alias = a.UserID
		}
		waiting[i] = WaitingEntry{UserID: a.UserID, Alias: alias, JoinedAt: a.JoinedAt}
	}
	return &RoomSnapshot{
		RoomID:            room.ID,
		VenueID:           room.VenueID,
		VenueName:         room.VenueName,
		OwnerID:           room.OwnerID,
		OwnerName:         room.OwnerName,
		Capacity:          room.Capacity,
		CapacityConfirmed: room.CapacityConfirmed,
		MeetingPoint:      room.MeetingPoint,
		ScheduledAt:       room.ScheduledAt,
		Status:            room.Status(),
		SetupComplete:     room.SetupComplete(),
		Waiting:           waiting,
		Loops:             room.Loops,
		LastUpdated:       e.now(),
	}
}

// LoopSummary is one entry of the cross-room user loop listing.
type LoopSummary struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	VenueID   string `json:"venueId,omitempty"`
	VenueName string `json:"venueName,omitempty"`
	OwnerID   string `json:"ownerId,omitempty"`
	OwnerName string `json:"ownerName,omitempty"`

	Status       models.LoopStatus    `json:"status"`
	Participants []models.Participant `json:"participants"`
	MeetingPoint *models.MeetingPoint `json:"meetingPoint,omitempty"`

	ScheduledAt     time.Time        `json:"scheduledAt"`
	StartedAt       time.Time        `json:"startedAt,omitempty"`
	EndedAt         *time.Time       `json:"endedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	DurationMinutes int              `json:"durationMinutes,omitempty"`
	AutoClosed      bool             `json:"autoClosed,omitempty"`
	Feedback        *models.Feedback `json:"feedback,omitempty"`

	IsOwner       bool `json:"isOwner"`
	IsParticipant bool `json:"isParticipant"`
}

// ListUserLoops returns every loop the user owns or participates in across
// all rooms, newest first. Empty pending placeholders are omitted. The
// optional status filter keeps only the named phases.
func (e *Engine) ListUserLoops(ctx context.Context, userID string, statuses []models.LoopStatus) ([]LoopSummary, error) {
	if userID == "" {
		return nil, validationf("userId is required")
	}
	rooms, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[models.LoopStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var summaries []LoopSummary
	for _, room := range rooms {
		isOwner := room.OwnerID == userID
		if !isOwner && !containsString(room.ParticipantIndex, userID) {
			continue
		}
		for _, loop := range room.Loops {
			isParticipant := loop.HasParticipant(userID)
			if !isOwner && !isParticipant {
				continue
			}
			// The staging loop carries no meeting yet; hide it from listings.
			if loop.Status == models.LoopPending && (len(loop.ParticipantIDs) == 0 || loop.StartedAt.IsZero()) {
				continue
			}
			if len(wanted) > 0 && !wanted[loop.Status] {
				continue
			}
			summaries = append(summaries, LoopSummary{
				ID:              loop.ID,
				RoomID:          room.ID,
				VenueID:         room.VenueID,
				VenueName:       room.VenueName,
				OwnerID:         room.OwnerID,
				OwnerName:       room.OwnerName,
				Status:          loop.Status,
				Participants:    loop.Participants,
				MeetingPoint:    loop.MeetingPoint,
				ScheduledAt:     loop.ScheduledAt,
				StartedAt:       loop.StartedAt,
				EndedAt:         loop.EndedAt,
				CreatedAt:       loop.CreatedAt,
				DurationMinutes: loop.DurationMinutes,
				AutoClosed:      loop.AutoClosed,
				Feedback:        loop.Feedback,
				IsOwner:         isOwner,
				IsParticipant:   isParticipant,
			})
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return loopSortTime(summaries[i]).After(loopSortTime(summaries[j]))
	})
	return summaries, nil
}

func loopSortTime(s LoopSummary) time.Time {
	if !s.StartedAt.IsZero() {
		return s.StartedAt
	}
	return s.CreatedAt
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
