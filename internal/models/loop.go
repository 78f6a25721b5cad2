// internal/models/loop.go
package models

import (
	"encoding/json"
	"time"
)

// MaxChatMessages bounds the per-loop chat history, oldest dropped first.
const MaxChatMessages = 100

// LoopStatus is the collapsed loop phase enum. Earlier variants of the
// service wrote several overlapping spellings; UnmarshalJSON folds them in.
type LoopStatus string

const (
	LoopPending   LoopStatus = "pending"
	LoopActive    LoopStatus = "active"
	LoopCompleted LoopStatus = "completed"
)

// UnmarshalJSON accepts historical status spellings so documents written by
// older deployments still load: waitingRoom/scheduled map to pending,
// inProgress to active.
func (s *LoopStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "waitingRoom", "scheduled":
		*s = LoopPending
	case "inProgress":
		*s = LoopActive
	default:
		*s = LoopStatus(raw)
	}
	return nil
}

// Participant is a point-in-time profile snapshot of a loop member.
type Participant struct {
	UserID   string    `json:"userId"`
	Alias    string    `json:"alias"`
	JoinedAt time.Time `json:"joinedAt"`
	Email    string    `json:"email,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// ChatMessage is one entry in a loop's bounded chat history.
type ChatMessage struct {
	ID     string    `json:"id"`
	UserID string    `json:"userId"`
	Alias  string    `json:"alias"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
}

// Loop is one scheduled or in-progress small-group meeting belonging to a
// room. Configuration fields are copied from the room when the loop starts so
// the loop stays a snapshot even if the room is reconfigured afterwards.
type Loop struct {
	ID     string     `json:"id"`
	Status LoopStatus `json:"status"`

	OwnerID   string `json:"ownerId,omitempty"`
	OwnerName string `json:"ownerName,omitempty"`

	ParticipantIDs []string      `json:"participantIds"`
	Participants   []Participant `json:"participants"`

	MeetingPoint *MeetingPoint `json:"meetingPoint,omitempty"`
	ScheduledAt  time.Time     `json:"scheduledAt"`
	Capacity     int           `json:"capacity"`

	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       time.Time  `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	AutoClosed      bool       `json:"autoClosed,omitempty"`

	Messages []ChatMessage `json:"messages,omitempty"`
	Feedback *Feedback     `json:"feedback,omitempty"`
}

// HasParticipant reports whether userID is in the loop's participant list.
func (l *Loop) HasParticipant(userID string) bool {
	for _, id := range l.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddMessage appends a chat message and trims the history to
// MaxChatMessages, dropping the oldest entries.
func (l *Loop) AddMessage(msg ChatMessage) {
	l.Messages = append(l.Messages, msg)
	if overflow := len(l.Messages) - MaxChatMessages; overflow > 0 {
		l.Messages = l.Messages[overflow:]
	}
}

// Finalize completes the loop. Duration is computed from StartedAt, floored
// at one minute; unstarted loops keep a zero duration.
func (l *Loop) Finalize(endedAt time.Time, autoClosed bool) {
	l.Status = LoopCompleted
	l.EndedAt = &endedAt
	l.AutoClosed = autoClosed
	if !l.StartedAt.IsZero() && !endedAt.Before(l.StartedAt) {
		minutes := int(endedAt.Sub(l.StartedAt).Round(time.Minute) / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		l.DurationMinutes = minutes
	}
}
