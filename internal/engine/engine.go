// internal/engine/engine.go

// Package engine implements the waiting-room / loop lifecycle state machine.
// Every public operation is one atomic transition: load the room, run the
// auto-close sweep, validate, mutate, persist, return a fresh snapshot.
// Actions on the same room are serialized by a per-room mutex; the
// cross-room active-loop check is best-effort (see DESIGN.md).
package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/campusloop/loopd/internal/events"
	"github.com/campusloop/loopd/internal/index"
	"github.com/campusloop/loopd/internal/match"
	"github.com/campusloop/loopd/internal/models"
	"github.com/campusloop/loopd/internal/store"
	"github.com/campusloop/loopd/internal/venues"
)

// Default lifecycle timings. All three are overridable through Options.
const (
	DefaultAutoCloseAfter  = time.Hour
	DefaultScheduleGrace   = time.Minute
	DefaultScheduleHorizon = 2 * time.Hour
)

// Engine owns the room state machine. Construct one per process with New
// and share it across requests.
type Engine struct {
	store   store.RoomStore
	index   index.CrossRoomIndex
	catalog venues.Catalog
	events  events.Publisher
	log     *logrus.Logger

	locks *roomLocks
	now   func() time.Time

	autoCloseAfter  time.Duration
	scheduleGrace   time.Duration
	scheduleHorizon time.Duration
}

// Options carries the engine's optional collaborators and tunables.
type Options struct {
	// Catalog resolves meeting-point coordinates for location defaulting.
	Catalog venues.Catalog
	// Events receives one ActionRecord per successful mutation.
	Events events.Publisher
	Logger *logrus.Logger

	AutoCloseAfter  time.Duration
	ScheduleGrace   time.Duration
	ScheduleHorizon time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New builds an engine over the given store and cross-room index.
func New(s store.RoomStore, idx index.CrossRoomIndex, opts Options) *Engine {
	e := &Engine{
		store:           s,
		index:           idx,
		catalog:         opts.Catalog,
		events:          opts.Events,
		log:             opts.Logger,
		locks:           newRoomLocks(),
		now:             opts.Now,
		autoCloseAfter:  opts.AutoCloseAfter,
		scheduleGrace:   opts.ScheduleGrace,
		scheduleHorizon: opts.ScheduleHorizon,
	}
	if e.log == nil {
		e.log = logrus.New()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.autoCloseAfter <= 0 {
		e.autoCloseAfter = DefaultAutoCloseAfter
	}
	if e.scheduleGrace <= 0 {
		e.scheduleGrace = DefaultScheduleGrace
	}
	if e.scheduleHorizon <= 0 {
		e.scheduleHorizon = DefaultScheduleHorizon
	}
	return e
}

// loadOrCreate fetches the room or lazily creates it with empty defaults.
// The second return reports whether the room is new.
func (e *Engine) loadOrCreate(ctx context.Context, roomID string) (*models.Room, bool, error) {
	room, err := e.store.Get(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewRoom(roomID, e.now()), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return room, false, nil
}

// persist recomputes derived state and writes the room through the store,
// then notifies the cross-room index.
func (e *Engine) persist(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = e.now()
	room.RebuildParticipantIndex()
	if err := e.store.Set(ctx, room.ID, room); err != nil {
		return err
	}
	e.index.RoomPersisted(room)
	return nil
}

// withRoom runs one mutating action under the room's lock. The sweep runs
// first and its result is persisted even when the action itself fails, so a
// rejected action still observes (and records) overdue auto-closes. On
// success the room is persisted and an action record published.
func (e *Engine) withRoom(ctx context.Context, roomID, action, actorID string, fn func(room *models.Room) error) (*RoomSnapshot, error) {
	if roomID == "" {
		return nil, validationf("roomId is required")
	}
	lock := e.locks.acquire(roomID)
	defer lock.Unlock()

	room, created, err := e.loadOrCreate(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if swept := e.sweepLoops(room); swept || created {
		if err := e.persist(ctx, room); err != nil {
			return nil, err
		}
	}

	if err := fn(room); err != nil {
		return nil, err
	}
	if err := e.persist(ctx, room); err != nil {
		return nil, err
	}
	e.publish(ctx, room.ID, action, actorID)
	return e.buildSnapshot(room), nil
}

func (e *Engine) publish(ctx context.Context, roomID, action, actorID string) {
	if e.events == nil {
		return
	}
	record := events.ActionRecord{
		RoomID:      roomID,
		Action:      action,
		ActorUserID: actorID,
		Timestamp:   e.now().Unix(),
	}
	if err := e.events.PublishAction(ctx, record); err != nil {
		e.log.WithError(err).WithField("room", roomID).Warn("action record publish failed")
	}
}

// Snapshot loads the room (creating it lazily on first access), runs the
// auto-close sweep and returns the current projection. State is persisted
// only when the sweep changed something or the room is new.
func (e *Engine) Snapshot(ctx context.Context, roomID string) (*RoomSnapshot, error) {
	if roomID == "" {
		return nil, validationf("roomId is required")
	}
	lock := e.locks.acquire(roomID)
	defer lock.Unlock()

	room, created, err := e.loadOrCreate(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if swept := e.sweepLoops(room); swept || created {
		if err := e.persist(ctx, room); err != nil {
			return nil, err
		}
	}
	return e.buildSnapshot(room), nil
}

// ClaimParams is the claim action payload.
type ClaimParams struct {
	OwnerName string
	VenueID   string
	VenueName string
}

// Claim makes the first caller the room owner. Re-claiming by the same owner
// refreshes the display name; anyone else is rejected.
func (e *Engine) Claim(ctx context.Context, roomID, actorID string, params ClaimParams) (*RoomSnapshot, error) {
	ownerName := strings.TrimSpace(params.OwnerName)
	if ownerName == "" {
		return nil, validationf("ownerName is required")
	}
	return e.withRoom(ctx, roomID, "claim", actorID, func(room *models.Room) error {
		if room.OwnerID != "" && room.OwnerID != actorID {
			return forbiddenf("room %s is already claimed by another owner", roomID)
		}
		room.OwnerID = actorID
		room.OwnerName = ownerName
		if params.VenueID != "" {
			room.VenueID = params.VenueID
		}
		if params.VenueName != "" {
			room.VenueName = params.VenueName
		}
		room.Profiles[actorID] = models.Profile{Name: ownerName, Email: room.Profiles[actorID].Email}
		if room.ScheduledAt.IsZero() {
			room.ScheduledAt = e.now()
		}
		e.ensurePendingLoop(room)
		return nil
	})
}

// Join adds the actor to the room's current active loop.
func (e *Engine) Join(ctx context.Context, roomID, actorID, displayName, email string) (*RoomSnapshot, error) {
	alias := strings.TrimSpace(displayName)
	if alias == "" {
		return nil, validationf("displayName is required")
	}
	return e.withRoom(ctx, roomID, "join", actorID, func(room *models.Room) error {
		active := room.ActiveLoop()
		if active == nil {
			return invalidStatef("no active loop to join in room %s", roomID)
		}
		if active.HasParticipant(actorID) {
			return conflictf("you already joined this loop")
		}
		busy, err := e.index.HasActiveLoop(ctx, actorID, index.Exemption{RoomID: roomID, LoopID: active.ID})
		if err != nil {
			return err
		}
		if busy {
			return crossRoomf("you already have an active loop in another room")
		}
		if len(active.ParticipantIDs) >= active.Capacity {
			return conflictf("loop is already full (%d of %d seats taken)", len(active.ParticipantIDs), active.Capacity)
		}

		room.Profiles[actorID] = models.Profile{Name: alias, Email: email}
		active.ParticipantIDs = append(active.ParticipantIDs, actorID)
		active.Participants = append(active.Participants, models.Participant{
			UserID:   actorID,
			Alias:    alias,
			JoinedAt: e.now(),
			Email:    email,
			Location: e.resolveLocation(room, actorID),
		})
		return nil
	})
}

// Enqueue places the actor on the room's plain waiting queue for the
// alternate matching-function flow. Re-enqueueing moves the actor to the
// tail with a fresh joinedAt.
func (e *Engine) Enqueue(ctx context.Context, roomID, actorID, displayName string) (*RoomSnapshot, error) {
	alias := strings.TrimSpace(displayName)
	if alias == "" {
		return nil, validationf("displayName is required")
	}
	return e.withRoom(ctx, roomID, "enqueue", actorID, func(room *models.Room) error {
		room.Attendees = lo.Filter(room.Attendees, func(a models.Attendee, _ int) bool {
			return a.UserID != actorID
		})
		room.Attendees = append(room.Attendees, models.Attendee{UserID: actorID, JoinedAt: e.now()})
		room.Profiles[actorID] = models.Profile{Name: alias, Email: room.Profiles[actorID].Email}
		return nil
	})
}

// Leave removes the actor from the waiting queue. A matched participant of
// an active loop is deliberately not removed; leaving a started loop is not
// supported.
func (e *Engine) Leave(ctx context.Context, roomID, actorID string) (*RoomSnapshot, error) {
	return e.withRoom(ctx, roomID, "leave", actorID, func(room *models.Room) error {
		room.Attendees = lo.Filter(room.Attendees, func(a models.Attendee, _ int) bool {
			return a.UserID != actorID
		})
		return nil
	})
}

// ConfigureParams carries the optional configure fields; nil means
// "unchanged".
type ConfigureParams struct {
	Capacity     *int
	MeetingPoint *models.MeetingPoint
	ScheduledAt  *time.Time
}

// Configure updates the room's capacity, meeting point and/or next start
// time. Owner only. Any accepted capacity write confirms it.
func (e *Engine) Configure(ctx context.Context, roomID, actorID string, params ConfigureParams) (*RoomSnapshot, error) {
	return e.withRoom(ctx, roomID, "configure", actorID, func(room *models.Room) error {
		if err := requireOwner(room, actorID, "configure the room"); err != nil {
			return err
		}
		if params.Capacity != nil {
			capacity := *params.Capacity
			if capacity < models.CapacityMin || capacity > models.CapacityMax {
				return validationf("capacity must be between %d and %d", models.CapacityMin, models.CapacityMax)
			}
			room.Capacity = capacity
			room.CapacityConfirmed = true
		}
		if params.MeetingPoint != nil {
			label := strings.TrimSpace(params.MeetingPoint.Label)
			if label == "" {
				return validationf("meeting point label is required")
			}
			room.MeetingPoint = &models.MeetingPoint{
				ID:          params.MeetingPoint.ID,
				Label:       label,
				Description: strings.TrimSpace(params.MeetingPoint.Description),
			}
		}
		if params.ScheduledAt != nil {
			now := e.now()
			t := *params.ScheduledAt
			if t.Before(now.Add(-e.scheduleGrace)) {
				return validationf("start time must not be in the past")
			}
			if t.After(now.Add(e.scheduleHorizon)) {
				return validationf("start time must be at most two hours in the future")
			}
			room.ScheduledAt = t
		}
		e.ensurePendingLoop(room)
		return nil
	})
}

// StartLoop promotes the room's pending loop to active, seeded with exactly
// the owner. Owner only; every precondition fails with its own message.
func (e *Engine) StartLoop(ctx context.Context, roomID, actorID string) (*RoomSnapshot, error) {
	return e.withRoom(ctx, roomID, "startLoop", actorID, func(room *models.Room) error {
		if err := requireOwner(room, actorID, "start a loop"); err != nil {
			return err
		}
		if room.MeetingPoint == nil || room.MeetingPoint.Label == "" {
			return invalidStatef("select a meeting point before starting a loop")
		}
		if !room.SetupComplete() {
			return invalidStatef("room setup is incomplete: confirm the capacity first")
		}
		if room.ActiveLoop() != nil {
			return conflictf("another loop is already active in this room")
		}
		e.ensurePendingLoop(room)
		pending := room.PendingLoop()

		busy, err := e.index.HasActiveLoop(ctx, actorID, index.Exemption{RoomID: roomID, LoopID: pending.ID})
		if err != nil {
			return err
		}
		if busy {
			return crossRoomf("you already have an active loop in another room")
		}

		now := e.now()
		pending.Status = models.LoopActive
		pending.StartedAt = now
		pending.ScheduledAt = now
		pending.Capacity = models.ClampCapacity(room.Capacity)
		pending.MeetingPoint = cloneMeetingPoint(room.MeetingPoint)
		pending.OwnerID = room.OwnerID
		pending.OwnerName = room.OwnerName
		pending.ParticipantIDs = []string{room.OwnerID}
		pending.Participants = []models.Participant{{
			UserID:   room.OwnerID,
			Alias:    room.OwnerName,
			JoinedAt: now,
			Email:    room.Profiles[room.OwnerID].Email,
			Location: e.resolveLocation(room, room.OwnerID),
		}}
		pending.Messages = nil
		pending.Feedback = nil
		pending.EndedAt = nil
		pending.AutoClosed = false
		pending.DurationMinutes = 0

		room.Attendees = nil
		return nil
	})
}

// EndLoop completes a loop with the owner's mandatory feedback and reseeds a
// fresh pending loop for the next cycle.
func (e *Engine) EndLoop(ctx context.Context, roomID, actorID, loopID string, feedback models.Feedback) (*RoomSnapshot, error) {
	return e.withRoom(ctx, roomID, "endLoop", actorID, func(room *models.Room) error {
		if err := requireOwner(room, actorID, "end a loop"); err != nil {
			return err
		}
		loop := room.FindLoop(loopID)
		if loop == nil {
			return notFoundf("loop %s not found in room %s", loopID, roomID)
		}
		if loop.Status == models.LoopCompleted {
			return invalidStatef("loop is already completed")
		}
		if err := feedback.Validate(); err != nil {
			return validationf("%s", err.Error())
		}

		now := e.now()
		loop.Finalize(now, false)
		feedback.SubmittedAt = now
		feedback.SubmittedBy = actorID
		loop.Feedback = &feedback
		e.ensurePendingLoop(room)
		return nil
	})
}

// Chat appends a message to an active loop. Participants and the room owner
// only.
func (e *Engine) Chat(ctx context.Context, roomID, actorID, loopID, message string) (*RoomSnapshot, error) {
	body := strings.TrimSpace(message)
	if body == "" {
		return nil, validationf("message is required")
	}
	return e.withRoom(ctx, roomID, "chat", actorID, func(room *models.Room) error {
		loop := room.FindLoop(loopID)
		if loop == nil {
			return notFoundf("loop %s not found in room %s", loopID, roomID)
		}
		if loop.Status != models.LoopActive {
			return invalidStatef("chat is only open while the loop is active")
		}
		if !loop.HasParticipant(actorID) && actorID != room.OwnerID {
			return forbiddenf("only loop participants may chat")
		}

		alias := room.Profiles[actorID].Name
		if alias == "" {
			alias = actorID
		}
		loop.AddMessage(models.ChatMessage{
			ID:     uuid.NewString(),
			UserID: actorID,
			Alias:  alias,
			Body:   body,
			SentAt: e.now(),
		})
		return nil
	})
}

// Location records the actor's coordinates on the room and patches their
// participant entry in every not-yet-completed loop they belong to, so
// in-progress loop snapshots stay current.
func (e *Engine) Location(ctx context.Context, roomID, actorID string, lat, lng float64) (*RoomSnapshot, error) {
	if !isFinite(lat) || !isFinite(lng) {
		return nil, validationf("coordinates must be finite numbers")
	}
	return e.withRoom(ctx, roomID, "location", actorID, func(room *models.Room) error {
		loc := models.Location{Lat: lat, Lng: lng, UpdatedAt: e.now()}
		room.Locations[actorID] = loc
		for _, loop := range room.Loops {
			if loop.Status == models.LoopCompleted {
				continue
			}
			for i := range loop.Participants {
				if loop.Participants[i].UserID == actorID {
					patched := loc
					loop.Participants[i].Location = &patched
				}
			}
		}
		return nil
	})
}

// Reset clears the room's mutable queue and staging state. Owner only, and
// refused while the active loop holds anyone besides the owner.
func (e *Engine) Reset(ctx context.Context, roomID, actorID string) (*RoomSnapshot, error) {
	return e.withRoom(ctx, roomID, "reset", actorID, func(room *models.Room) error {
		if err := requireOwner(room, actorID, "reset the room"); err != nil {
			return err
		}
		if active := room.ActiveLoop(); active != nil {
			for _, id := range active.ParticipantIDs {
				if id != room.OwnerID {
					return conflictf("cannot reset while guests are present")
				}
			}
		}
		room.Attendees = nil
		room.MeetingPoint = nil
		room.CapacityConfirmed = false
		room.ScheduledAt = e.now()
		room.Loops = lo.Filter(room.Loops, func(l *models.Loop, _ int) bool {
			return l.Status == models.LoopCompleted
		})
		e.ensurePendingLoop(room)
		return nil
	})
}

// PreviewMatch partitions the room's current waiting queue into groups at
// the room's capacity without mutating anything.
func (e *Engine) PreviewMatch(ctx context.Context, roomID string) (*match.Result, error) {
	if roomID == "" {
		return nil, validationf("roomId is required")
	}
	lock := e.locks.acquire(roomID)
	defer lock.Unlock()

	room, created, err := e.loadOrCreate(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if swept := e.sweepLoops(room); swept || created {
		if err := e.persist(ctx, room); err != nil {
			return nil, err
		}
	}
	result := match.Build(room.Attendees, room.Capacity)
	return &result, nil
}

// ensurePendingLoop guarantees the claimed room carries exactly one staging
// loop reflecting the current configuration. Idempotent; a present pending
// loop is refreshed in place, never duplicated.
func (e *Engine) ensurePendingLoop(room *models.Room) {
	if room.OwnerID == "" {
		return
	}
	if pending := room.PendingLoop(); pending != nil {
		pending.OwnerID = room.OwnerID
		pending.OwnerName = room.OwnerName
		pending.MeetingPoint = cloneMeetingPoint(room.MeetingPoint)
		pending.ScheduledAt = room.ScheduledAt
		pending.Capacity = models.ClampCapacity(room.Capacity)
		return
	}
	room.PrependLoop(&models.Loop{
		ID:             uuid.NewString(),
		Status:         models.LoopPending,
		OwnerID:        room.OwnerID,
		OwnerName:      room.OwnerName,
		ParticipantIDs: []string{},
		Participants:   []models.Participant{},
		MeetingPoint:   cloneMeetingPoint(room.MeetingPoint),
		ScheduledAt:    room.ScheduledAt,
		Capacity:       models.ClampCapacity(room.Capacity),
		CreatedAt:      e.now(),
	})
}

// resolveLocation returns the user's last-known location, falling back to
// the room's meeting-point coordinates from the venue catalog. Best-effort;
// returns nil when neither is known.
func (e *Engine) resolveLocation(room *models.Room, userID string) *models.Location {
	if loc, ok := room.Locations[userID]; ok {
		known := loc
		return &known
	}
	if e.catalog == nil || room.MeetingPoint == nil || room.VenueID == "" {
		return nil
	}
	geo, ok := e.catalog.MeetPointGeo(room.VenueID, room.MeetingPoint.ID)
	if !ok {
		return nil
	}
	loc := models.Location{Lat: geo.Lat, Lng: geo.Lng, UpdatedAt: e.now()}
	room.Locations[userID] = loc
	return &loc
}

func requireOwner(room *models.Room, actorID, verb string) error {
	if room.OwnerID == "" || room.OwnerID != actorID {
		return forbiddenf("only the room owner may %s", verb)
	}
	return nil
}

func cloneMeetingPoint(mp *models.MeetingPoint) *models.MeetingPoint {
	if mp == nil {
		return nil
	}
	clone := *mp
	return &clone
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
