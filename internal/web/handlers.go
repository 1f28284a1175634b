package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/auth"
)

const handlerTimeout = 10 * time.Second

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var errTimeout = errors.New("request timed out")

// waitForResponse waits for a response with a timeout.
func waitForResponse(resp <-chan error) error {
	select {
	case err := <-resp:
		return err
	case <-time.After(handlerTimeout):
		return errTimeout
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}

// limitParam reads ?limit=, clamped to [1, maxListLimit].
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	Queues      map[string]int `json:"queues"`
	QueueSize   int            `json:"queueSize"`
	Sessions    int            `json:"sessions"`
	Connections int            `json:"connections"`
	Rooms       int            `json:"rooms"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	snap, err := s.coordinator.Snapshot(ctx)
	if err != nil {
		http.Error(w, "Coordinator unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := statsResponse{
		Queues:    make(map[string]int, len(snap.Queues)),
		QueueSize: snap.QueueSize,
		Sessions:  len(snap.Sessions),
	}
	for key, entries := range snap.Queues {
		resp.Queues[key] = len(entries)
	}
	hubStats := s.hub.Stats()
	resp.Connections = hubStats.Connections
	resp.Rooms = hubStats.Rooms

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.GetLeaderboard(r.Context(), limitParam(r))
	if err != nil {
		log.WithError(err).Error("Failed to load leaderboard")
		http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	match, err := s.store.GetMatch(r.Context(), matchID)
	if err != nil {
		log.WithError(err).WithField("match_id", matchID).Error("Failed to load match")
		http.Error(w, "Failed to load match", http.StatusInternalServerError)
		return
	}
	if match == nil {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// handleMyMatches lists the caller's most recent matches.
func (s *Server) handleMyMatches(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	matches, err := s.store.ListRecentMatches(r.Context(), user.ID, limitParam(r))
	if err != nil {
		log.WithError(err).WithField("player_id", user.ID).Error("Failed to list matches")
		http.Error(w, "Failed to list matches", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}
