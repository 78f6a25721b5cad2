// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/campusloop/loopd/internal/auth"
	"github.com/campusloop/loopd/internal/engine"
)

// Server holds the lifecycle engine and everything the HTTP handlers share.
type Server struct {
	Engine   *engine.Engine
	Logger   *logrus.Logger
	validate *validator.Validate
}

// NewServer wires a handler server around the engine.
func NewServer(eng *engine.Engine, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		Engine:   eng,
		Logger:   logger,
		validate: validator.New(),
	}
}

// actorID authenticates the request's auth_token cookie and returns the
// acting userId, writing the failure response itself when the token is
// missing or invalid.
func (s *Server) actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie := r.Header.Get("Cookie")
	if !strings.Contains(cookie, "auth_token=") {
		writeError(w, http.StatusUnauthorized, "missing auth_token")
		return "", false
	}
	token := extractCookieToken(cookie, "auth_token")
	userID, err := auth.Authenticate(token)
	if err != nil {
		writeError(w, http.StatusForbidden, "invalid token")
		return "", false
	}
	return userID, true
}

// decodeBody unmarshals and validates a JSON payload.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// respond writes the action outcome: the refreshed snapshot on success, the
// mapped engine error otherwise.
func (s *Server) respond(w http.ResponseWriter, snapshot *engine.RoomSnapshot, err error) {
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch engine.KindOf(err) {
	case engine.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case engine.KindForbidden:
		writeError(w, http.StatusForbidden, err.Error())
	case engine.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case engine.KindInvalidState, engine.KindConflict, engine.KindCrossRoom:
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.Logger.WithError(err).Error("room action failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
