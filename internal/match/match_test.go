// internal/match/match_test.go
package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusloop/loopd/internal/models"
)

func queueOf(ids ...string) []models.Attendee {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	attendees := make([]models.Attendee, len(ids))
	for i, id := range ids {
		attendees[i] = models.Attendee{UserID: id, JoinedAt: base.Add(time.Duration(i) * time.Second)}
	}
	return attendees
}

func TestBuildEarliestJoinersFirst(t *testing.T) {
	queue := queueOf("a", "b", "c", "d")
	// Shuffle arrival order in the slice; joinedAt decides, not position.
	queue[0], queue[3] = queue[3], queue[0]

	result := Build(queue, 2)
	require.Len(t, result.Groups, 2)
	assert.Equal(t, []string{"a", "b"}, result.Groups[0].ParticipantIDs)
	assert.Equal(t, []string{"c", "d"}, result.Groups[1].ParticipantIDs)
	assert.Empty(t, result.Waiting)
}

func TestBuildResidualUnderMinimum(t *testing.T) {
	result := Build(queueOf("a", "b", "c", "d", "e"), 2)
	require.Len(t, result.Groups, 2)
	require.Len(t, result.Waiting, 1)
	assert.Equal(t, "e", result.Waiting[0].UserID)
}

func TestBuildFinalShortChunk(t *testing.T) {
	// 7 with capacity 4: one full group, then the remaining 3 still meet the
	// minimum and form a short group.
	result := Build(queueOf("a", "b", "c", "d", "e", "f", "g"), 4)
	require.Len(t, result.Groups, 2)
	assert.Equal(t, []string{"a", "b", "c", "d"}, result.Groups[0].ParticipantIDs)
	assert.Equal(t, []string{"e", "f", "g"}, result.Groups[1].ParticipantIDs)
	assert.Empty(t, result.Waiting)
}

func TestBuildCapacityClamped(t *testing.T) {
	// Out-of-range capacities fall back to the [2,4] bounds.
	result := Build(queueOf("a", "b", "c", "d", "e", "f"), 10)
	require.Len(t, result.Groups, 2)
	assert.Len(t, result.Groups[0].ParticipantIDs, 4)

	result = Build(queueOf("a", "b", "c", "d"), 0)
	require.Len(t, result.Groups, 2)
	assert.Len(t, result.Groups[0].ParticipantIDs, 2)
}

func TestBuildTooFewAttendees(t *testing.T) {
	result := Build(queueOf("a"), 4)
	assert.Empty(t, result.Groups)
	require.Len(t, result.Waiting, 1)

	result = Build(nil, 4)
	assert.Empty(t, result.Groups)
	assert.Empty(t, result.Waiting)
}

func TestBuildDeterministic(t *testing.T) {
	queue := queueOf("a", "b", "c", "d", "e", "f", "g")
	first := Build(queue, 3)
	second := Build(queue, 3)
	assert.Equal(t, first, second)
}

func TestBuildStableOnEqualJoinTimes(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	queue := []models.Attendee{
		{UserID: "x", JoinedAt: at},
		{UserID: "y", JoinedAt: at},
		{UserID: "z", JoinedAt: at},
	}
	result := Build(queue, 3)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, []string{"x", "y", "z"}, result.Groups[0].ParticipantIDs)
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	queue := queueOf("c", "a", "b")
	queue[0], queue[2] = queue[2], queue[0] // now out of joinedAt order
	snapshot := make([]models.Attendee, len(queue))
	copy(snapshot, queue)

	Build(queue, 2)
	assert.Equal(t, snapshot, queue)
}
