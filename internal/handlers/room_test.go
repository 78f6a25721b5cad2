// internal/handlers/room_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusloop/loopd/internal/auth"
	"github.com/campusloop/loopd/internal/engine"
	"github.com/campusloop/loopd/internal/index"
	"github.com/campusloop/loopd/internal/models"
	"github.com/campusloop/loopd/internal/store"
)

func TestMain(m *testing.M) {
	if err := auth.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := store.NewMemoryStore()
	eng := engine.New(s, index.NewScanIndex(s), engine.Options{})
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	srv := NewServer(eng, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/room/snapshot", SnapshotHandler(srv))
	mux.HandleFunc("/room/claim", ClaimHandler(srv))
	mux.HandleFunc("/room/join", JoinHandler(srv))
	mux.HandleFunc("/room/queue/join", QueueJoinHandler(srv))
	mux.HandleFunc("/room/leave", LeaveHandler(srv))
	mux.HandleFunc("/room/configure", ConfigureHandler(srv))
	mux.HandleFunc("/room/start", StartLoopHandler(srv))
	mux.HandleFunc("/room/end", EndLoopHandler(srv))
	mux.HandleFunc("/room/chat", ChatHandler(srv))
	mux.HandleFunc("/room/location", LocationHandler(srv))
	mux.HandleFunc("/room/reset", ResetHandler(srv))
	mux.HandleFunc("/room/match/preview", MatchPreviewHandler(srv))
	mux.HandleFunc("/loops", ListUserLoopsHandler(srv))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func authCookie(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.CreateToken(userID)
	require.NoError(t, err)
	return "auth_token=" + token
}

func doPost(t *testing.T, ts *httptest.Server, path, userID string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Cookie", authCookie(t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func doGet(t *testing.T, ts *httptest.Server, path, userID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("Cookie", authCookie(t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeSnapshot(t *testing.T, resp *http.Response) engine.RoomSnapshot {
	t.Helper()
	defer resp.Body.Close()
	var snap engine.RoomSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func decodeMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["message"]
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := doGet(t, ts, "/room/snapshot?roomId=r1", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doPost(t, ts, "/room/claim", "", map[string]string{"roomId": "r1", "ownerName": "Ada"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/room/snapshot?roomId=r1", nil)
	require.NoError(t, err)
	req.Header.Set("Cookie", "auth_token=not-a-jwt")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestSnapshotLazyRoomCreation(t *testing.T) {
	ts := newTestServer(t)

	resp := doGet(t, ts, "/room/snapshot?roomId=fresh-room", "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.Equal(t, "fresh-room", snap.RoomID)
	assert.Empty(t, snap.OwnerID)
	assert.Equal(t, models.LoopCompleted, snap.Status)
}

func TestSnapshotRequiresRoomID(t *testing.T) {
	ts := newTestServer(t)

	resp := doGet(t, ts, "/room/snapshot", "u1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeMessage(t, resp), "roomId")
}

func TestClaimRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp := doPost(t, ts, "/room/claim", "u1", map[string]string{
		"roomId": "r1", "ownerName": "Ada", "venueId": "mensa-nord", "venueName": "Mensa Nord",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.Equal(t, "u1", snap.OwnerID)
	assert.Equal(t, "Mensa Nord", snap.VenueName)
	assert.Equal(t, models.LoopPending, snap.Status)

	// A second claim by another user maps Forbidden to 403.
	resp = doPost(t, ts, "/room/claim", "u2", map[string]string{"roomId": "r1", "ownerName": "Mallory"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestClaimValidatesBody(t *testing.T) {
	ts := newTestServer(t)

	resp := doPost(t, ts, "/room/claim", "u1", map[string]string{"roomId": "r1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

// TestLoopFlowOverHTTP drives a whole lifecycle through the handlers and
// checks the engine error mapping along the way.
func TestLoopFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp := doPost(t, ts, "/room/claim", "u1", map[string]string{"roomId": "r1", "ownerName": "Ada"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Starting before configuration is a state conflict.
	resp = doPost(t, ts, "/room/start", "u1", map[string]string{"roomId": "r1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decodeMessage(t, resp), "meeting point")

	capacity := 2
	resp = doPost(t, ts, "/room/configure", "u1", map[string]interface{}{
		"roomId":         "r1",
		"capacity":       &capacity,
		"meetPointId":    "table-7",
		"meetPointLabel": "Tisch 7",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.True(t, snap.SetupComplete)

	resp = doPost(t, ts, "/room/start", "u1", map[string]string{"roomId": "r1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.NotEmpty(t, snap.Loops)
	loopID := snap.Loops[0].ID
	assert.Equal(t, models.LoopActive, snap.Status)

	resp = doPost(t, ts, "/room/join", "u2", map[string]string{"roomId": "r1", "displayName": "Grace"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Loop is at capacity 2 now.
	resp = doPost(t, ts, "/room/join", "u3", map[string]string{"roomId": "r1", "displayName": "Edsger"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = doPost(t, ts, "/room/chat", "u2", map[string]string{"roomId": "r1", "loopId": loopID, "message": "on my way"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Non-participants may not chat.
	resp = doPost(t, ts, "/room/chat", "u9", map[string]string{"roomId": "r1", "loopId": loopID, "message": "hi"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Ending with bad feedback is a 400 and leaves the loop active.
	resp = doPost(t, ts, "/room/end", "u1", map[string]interface{}{
		"roomId": "r1", "loopId": loopID,
		"feedback": map[string]string{"rating": "amazing"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doPost(t, ts, "/room/end", "u1", map[string]interface{}{
		"roomId": "r1", "loopId": loopID,
		"feedback": map[string]string{
			"rating": "great", "attendance": "allPresent", "safety": "verySafe", "followUp": "again",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	assert.Equal(t, models.LoopPending, snap.Status)

	// Ending an unknown loop is a 404.
	resp = doPost(t, ts, "/room/end", "u1", map[string]interface{}{
		"roomId": "r1", "loopId": "nope",
		"feedback": map[string]string{
			"rating": "great", "attendance": "allPresent", "safety": "verySafe", "followUp": "again",
		},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestConfigureRejectsBadTimestamp(t *testing.T) {
	ts := newTestServer(t)

	resp := doPost(t, ts, "/room/claim", "u1", map[string]string{"roomId": "r1", "ownerName": "Ada"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doPost(t, ts, "/room/configure", "u1", map[string]string{
		"roomId": "r1", "scheduledAt": "tomorrow noon",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeMessage(t, resp), "RFC 3339")
}

func TestQueueAndMatchPreview(t *testing.T) {
	ts := newTestServer(t)

	resp := doPost(t, ts, "/room/claim", "u1", map[string]string{"roomId": "r1", "ownerName": "Ada"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	for i, u := range []string{"g1", "g2", "g3", "g4", "g5"} {
		resp = doPost(t, ts, "/room/queue/join", u, map[string]string{
			"roomId": "r1", "displayName": fmt.Sprintf("Guest %d", i),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp = doGet(t, ts, "/room/match/preview?roomId=r1", "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Groups []struct {
			ParticipantIDs []string `json:"participantIds"`
		} `json:"groups"`
		Waiting []models.Attendee `json:"waiting"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	// Default capacity 4: one full group, one remainder tagged waiting.
	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].ParticipantIDs, 4)
	assert.Len(t, result.Waiting, 1)

	resp = doPost(t, ts, "/room/leave", "g2", map[string]string{"roomId": "r1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.Len(t, snap.Waiting, 4)
}

func TestLocationOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp := doPost(t, ts, "/room/location", "u1", map[string]interface{}{
		"roomId": "r1", "lat": 51.2467, "lng": 7.1485,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// NaN is not valid JSON; a null coordinate decodes to zero and passes,
	// but a string does not.
	resp = doPost(t, ts, "/room/location", "u1", map[string]interface{}{
		"roomId": "r1", "lat": "north", "lng": 7.1485,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListUserLoopsOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp := doPost(t, ts, "/room/claim", "u1", map[string]string{"roomId": "r1", "ownerName": "Ada"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	capacity := 3
	resp = doPost(t, ts, "/room/configure", "u1", map[string]interface{}{
		"roomId": "r1", "capacity": &capacity, "meetPointLabel": "Fountain",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doPost(t, ts, "/room/start", "u1", map[string]string{"roomId": "r1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var listing struct {
		Loops []engine.LoopSummary `json:"loops"`
	}
	resp = doGet(t, ts, "/loops", "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	require.Len(t, listing.Loops, 1)
	assert.Equal(t, models.LoopActive, listing.Loops[0].Status)
	assert.True(t, listing.Loops[0].IsOwner)

	// Status filter: no completed loops yet.
	resp = doGet(t, ts, "/loops?status=completed", "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing.Loops = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	assert.Empty(t, listing.Loops)

	// A stranger has no loops at all.
	resp = doGet(t, ts, "/loops", "u9")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing.Loops = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	assert.Empty(t, listing.Loops)
}
