// internal/handlers/room.go
package handlers

import (
	"net/http"
	"time"

	"github.com/campusloop/loopd/internal/engine"
	"github.com/campusloop/loopd/internal/models"
)

type claimRequest struct {
	RoomID    string `json:"roomId" validate:"required"`
	OwnerName string `json:"ownerName" validate:"required"`
	VenueID   string `json:"venueId"`
	VenueName string `json:"venueName"`
}

type joinRequest struct {
	RoomID      string `json:"roomId" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type queueJoinRequest struct {
	RoomID      string `json:"roomId" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
}

type leaveRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type configureRequest struct {
	RoomID               string `json:"roomId" validate:"required"`
	Capacity             *int   `json:"capacity"`
	MeetPointID          string `json:"meetPointId"`
	MeetPointLabel       string `json:"meetPointLabel"`
	MeetPointDescription string `json:"meetPointDescription"`
	ScheduledAt          string `json:"scheduledAt"`
}

type startLoopRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type endLoopRequest struct {
	RoomID   string `json:"roomId" validate:"required"`
	LoopID   string `json:"loopId" validate:"required"`
	Feedback struct {
		Rating     string `json:"rating"`
		Attendance string `json:"attendance"`
		Safety     string `json:"safety"`
		FollowUp   string `json:"followUp"`
		Note       string `json:"note"`
	} `json:"feedback"`
}

type chatRequest struct {
	RoomID  string `json:"roomId" validate:"required"`
	LoopID  string `json:"loopId" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type locationRequest struct {
	RoomID string  `json:"roomId" validate:"required"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

type resetRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

// SnapshotHandler serves GET /room/snapshot?roomId=... Polling clients call
// this on an interval; the auto-close sweep runs on every read.
func SnapshotHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := s.actorID(w, r); !ok {
			return
		}
		snapshot, err := s.Engine.Snapshot(r.Context(), r.URL.Query().Get("roomId"))
		s.respond(w, snapshot, err)
	}
}

// ClaimHandler serves POST /room/claim.
func ClaimHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req claimRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		snapshot, err := s.Engine.Claim(r.Context(), req.RoomID, actor, engine.ClaimParams{
			OwnerName: req.OwnerName,
			VenueID:   req.VenueID,
			VenueName: req.VenueName,
		})
		s.respond(w, snapshot, err)
	}
}

// JoinHandler serves POST /room/join (join the active loop).
func JoinHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req joinRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		snapshot, err := s.Engine.Join(r.Context(), req.RoomID, actor, req.DisplayName, req.Email)
		s.respond(w, snapshot, err)
	}
}

// QueueJoinHandler serves POST /room/queue/join (alternate matching flow).
func QueueJoinHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req queueJoinRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		snapshot, err := s.Engine.Enqueue(r.Context(), req.RoomID, actor, req.DisplayName)
		s.respond(w, snapshot, err)
	}
}

// LeaveHandler serves POST /room/leave (waiting queue only).
func LeaveHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req leaveRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		snapshot, err := s.Engine.Leave(r.Context(), req.RoomID, actor)
		s.respond(w, snapshot, err)
	}
}

// ConfigureHandler serves POST /room/configure.
func ConfigureHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req configureRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		params := engine.ConfigureParams{Capacity: req.Capacity}
		if req.MeetPointLabel != "" || req.MeetPointID != "" {
			params.MeetingPoint = &models.MeetingPoint{
				ID:          req.MeetPointID,
				Label:       req.MeetPointLabel,
				Description: req.MeetPointDescription,
			}
		}
		if req.ScheduledAt != "" {
			t, err := time.Parse(time.RFC3339, req.ScheduledAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "scheduledAt must be an RFC 3339 timestamp")
				return
			}
			params.ScheduledAt = &t
		}

		snapshot, err := s.Engine.Configure(r.Context(), req.RoomID, actor, params)
		s.respond(w, snapshot, err)
	}
}

// StartLoopHandler serves POST /room/start.
func StartLoopHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req startLoopRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		snapshot, err := s.Engine.StartLoop(r.Context(), req.RoomID, actor)
		s.respond(w, snapshot, err)
	}
}

// EndLoopHandler serves POST /room/end. Feedback is mandatory for an
// explicit end; the engine validates the enum fields.
func EndLoopHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req endLoopRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		feedback := models.Feedback{
			Rating:     req.Feedback.Rating,
			Attendance: req.Feedback.Attendance,
			Safety:     req.Feedback.Safety,
			FollowUp:   req.Feedback.FollowUp,
			Note:       req.Feedback.Note,
		}
		snapshot, err := s.Engine.EndLoop(r.Context(), req.RoomID, actor, req.LoopID, feedback)
		s.respond(w, snapshot, err)
	}
}

// ChatHandler serves POST /room/chat.
func ChatHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req chatRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		snapshot, err := s.Engine.Chat(r.Context(), req.RoomID, actor, req.LoopID, req.Message)
		s.respond(w, snapshot, err)
	}
}

// LocationHandler serves POST /room/location.
func LocationHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req locationRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		snapshot, err := s.Engine.Location(r.Context(), req.RoomID, actor, req.Lat, req.Lng)
		s.respond(w, snapshot, err)
	}
}

// ResetHandler serves POST /room/reset.
func ResetHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}
		var req resetRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		snapshot, err := s.Engine.Reset(r.Context(), req.RoomID, actor)
		s.respond(w, snapshot, err)
	}
}

// MatchPreviewHandler serves GET /room/match/preview?roomId=... It returns
// the groups the matcher would form from the current waiting queue, without
// mutating the room.
func MatchPreviewHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := s.actorID(w, r); !ok {
			return
		}
		result, err := s.Engine.PreviewMatch(r.Context(), r.URL.Query().Get("roomId"))
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
