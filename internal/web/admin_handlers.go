package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/coordinator"
	"github.com/edvart/typeduel/internal/store"
)

// handleAdminState returns the current coordinator state as JSON.
func (s *Server) handleAdminState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	snap, err := s.coordinator.Snapshot(ctx)
	if err != nil {
		http.Error(w, "Coordinator unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coordinator": snap,
		"hub":         s.hub.Stats(),
	})
}

// handleAdminKickPlayer kicks a player from the queue.
func (s *Server) handleAdminKickPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		http.Error(w, "player ID required", http.StatusBadRequest)
		return
	}

	resp := make(chan error, 1)
	s.coordinator.Send(coordinator.AdminKickFromQueue{
		PlayerID: playerID,
		Response: resp,
	})

	if err := waitForResponse(resp); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, coordinator.ErrNotQueued) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	log.WithField("player_id", playerID).Info("Admin kicked player from queue")
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminSetRating overrides a user's rating.
func (s *Server) handleAdminSetRating(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	rating, err := strconv.Atoi(chi.URLParam(r, "rating"))
	if err != nil || rating < 0 {
		http.Error(w, "rating must be a non-negative integer", http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateUserRating(r.Context(), userID, rating); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.WithError(err).WithField("player_id", userID).Error("Failed to set rating")
		http.Error(w, "Failed to set rating", http.StatusInternalServerError)
		return
	}

	log.WithFields(log.Fields{"player_id": userID, "rating": rating}).Info("Admin set rating")
	w.WriteHeader(http.StatusNoContent)
}
