// internal/match/match.go

// Package match holds the pure group-formation function used by the
// alternate queue-driven matching flow. It is stateless and deterministic:
// the same queue and capacity always produce the same groups and residue.
package match

import (
	"sort"

	"github.com/campusloop/loopd/internal/models"
)

// Group is one proposed loop: participant ids only. Materializing an actual
// loop from a group is the caller's job.
type Group struct {
	ParticipantIDs []string `json:"participantIds"`
}

// Result is the outcome of partitioning a waiting queue.
type Result struct {
	Groups  []Group           `json:"groups"`
	Waiting []models.Attendee `json:"waiting"`
}

// Build partitions a waiting queue into capacity-bounded groups, earliest
// joiners first. Capacity is clamped to [2,4]; chunks of size
// min(capacity, remaining) are taken while at least two attendees remain.
// The sort is stable so attendees with identical joinedAt keep their queue
// order.
func Build(attendees []models.Attendee, capacity int) Result {
	queue := make([]models.Attendee, len(attendees))
	copy(queue, attendees)
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].JoinedAt.Before(queue[j].JoinedAt)
	})

	size := models.ClampCapacity(capacity)
	result := Result{Groups: []Group{}}

	for len(queue) >= models.MinParticipants {
		chunk := size
		if chunk > len(queue) {
			chunk = len(queue)
		}
		ids := make([]string, chunk)
		for i, attendee := range queue[:chunk] {
			ids[i] = attendee.UserID
		}
		result.Groups = append(result.Groups, Group{ParticipantIDs: ids})
		queue = queue[chunk:]
	}

	result.Waiting = queue
	return result
}
