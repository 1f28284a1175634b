package web

import (
	"encoding/json"
	"net/http"
	"slices"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/auth"
	"github.com/edvart/typeduel/internal/push"
	"github.com/edvart/typeduel/internal/store"
)

type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// handleSubscribePush handles push subscription from frontend
func (s *Server) handleSubscribePush(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req PushSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	sub := &store.PushSubscription{
		UserID:   user.ID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}

	if err := s.store.SavePushSubscription(r.Context(), sub); err != nil {
		log.WithError(err).WithField("player_id", user.ID).Error("Failed to save push subscription")
		http.Error(w, "Failed to save subscription", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleUnsubscribePush removes one of the caller's own subscriptions.
func (s *Server) handleUnsubscribePush(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	subs, err := s.store.GetPushSubscriptions(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to load subscriptions", http.StatusInternalServerError)
		return
	}
	if !slices.ContainsFunc(subs, func(sub store.PushSubscription) bool { return sub.Endpoint == req.Endpoint }) {
		http.Error(w, "Subscription not found", http.StatusNotFound)
		return
	}

	if err := s.store.DeletePushSubscription(r.Context(), req.Endpoint); err != nil {
		http.Error(w, "Failed to delete subscription", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleGetVAPIDPublicKey returns the VAPID public key for frontend
func (s *Server) handleGetVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if s.pushService == nil {
		http.Error(w, "Push notifications not configured", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"publicKey": s.pushService.GetPublicKey(),
	})
}

// handleTestPush sends a test push notification to the current user
func (s *Server) handleTestPush(w http.ResponseWriter, r *http.Request) {
	if s.pushService == nil {
		http.Error(w, "Push notifications not configured", http.StatusServiceUnavailable)
		return
	}

	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	payload := push.NotificationPayload{
		Title: "Match alerts are on",
		Body:  "You will be notified when an opponent is found and when results are in.",
		Tag:   "typeduel-test",
		Data: map[string]interface{}{
			"url": "/play",
		},
	}

	if err := s.pushService.SendToUser(r.Context(), user.ID, payload); err != nil {
		http.Error(w, "Failed to send test notification", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "Test notification sent"})
}
