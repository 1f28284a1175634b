package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/store"
)

// Handlers serves the login endpoints.
type Handlers struct {
	tokens *Tokens
	users  UserStore
}

func NewHandlers(tokens *Tokens, users UserStore) *Handlers {
	return &Handlers{tokens: tokens, users: users}
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

// GuestHandler creates a guest account and returns a token for it.
func (h *Handlers) GuestHandler(w http.ResponseWriter, r *http.Request) {
	var user *store.User
	// Generated names can collide on the unique index; a few retries are plenty.
	for attempt := 0; attempt < 3; attempt++ {
		id := uuid.New().String()
		candidate := &store.User{
			ID:       id,
			Username: "Guest_" + strings.ReplaceAll(id, "-", "")[:6],
			IsGuest:  true,
			Rating:   store.DefaultRating,
		}
		if err := h.users.CreateUser(r.Context(), candidate); err != nil {
			log.WithError(err).Warn("Guest creation failed, retrying")
			continue
		}
		user = candidate
		break
	}
	if user == nil {
		http.Error(w, "Failed to create guest", http.StatusInternalServerError)
		return
	}

	h.respondWithToken(w, user)
}

// DevLoginHandler provides a development-only login mechanism.
func (h *Handlers) DevLoginHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	name := r.URL.Query().Get("name")

	if id == "" || name == "" {
		http.Error(w, "id and name required", http.StatusBadRequest)
		return
	}

	if err := h.users.UpsertUser(r.Context(), &store.User{ID: id, Username: name}); err != nil {
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil || user == nil {
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	h.respondWithToken(w, user)
}

// MeHandler returns the current user's info. It must sit behind RequireAuth.
func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not logged in", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *Handlers) respondWithToken(w http.ResponseWriter, user *store.User) {
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: token, User: user})
}

// CreateFakeUsers creates dev_1..dev_n for local testing.
func CreateFakeUsers(ctx context.Context, users UserStore, count int) error {
	for i := 1; i <= count; i++ {
		user := &store.User{
			ID:       fmt.Sprintf("dev_%d", i),
			Username: fmt.Sprintf("Player %d", i),
		}
		if err := users.UpsertUser(ctx, user); err != nil {
			return err
		}
	}
	return nil
}
