// internal/engine/sweep.go
package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/campusloop/loopd/internal/models"
)

// sweepLoops force-completes every active loop whose running time has
// exceeded the ceiling. Runs inline before every read and write. Loops
// without a usable start timestamp are skipped rather than aborting the
// sweep. Returns whether anything changed; the caller persists only then.
func (e *Engine) sweepLoops(room *models.Room) bool {
	now := e.now()
	changed := false
	for _, loop := range room.Loops {
		if loop.Status != models.LoopActive || loop.EndedAt != nil {
			continue
		}
		startedAt := loop.StartedAt
		if startedAt.IsZero() {
			startedAt = loop.CreatedAt
		}
		if startedAt.IsZero() {
			continue
		}
		deadline := startedAt.Add(e.autoCloseAfter)
		if deadline.After(now) {
			continue
		}
		loop.Finalize(deadline, true)
		changed = true
		e.log.WithFields(logrus.Fields{
			"room": room.ID,
			"loop": loop.ID,
		}).Info("auto-closed overrunning loop")
	}
	if changed && room.OwnerID != "" {
		e.ensurePendingLoop(room)
	}
	return changed
}
