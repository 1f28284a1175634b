package web

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/auth"
	"github.com/edvart/typeduel/internal/coordinator"
	"github.com/edvart/typeduel/internal/push"
	"github.com/edvart/typeduel/internal/store"
)

// Coordinator is what the server needs from the match coordinator.
type Coordinator interface {
	Send(cmd coordinator.Command)
	Snapshot(ctx context.Context) (coordinator.Snapshot, error)
}

// Store is the persistence behind the HTTP routes.
type Store interface {
	auth.UserStore
	UpdateUserRating(ctx context.Context, userID string, rating int) error
	GetMatch(ctx context.Context, matchID string) (*store.Match, error)
	ListRecentMatches(ctx context.Context, userID string, limit int) ([]store.Match, error)
	GetLeaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error)
	SavePushSubscription(ctx context.Context, sub *store.PushSubscription) error
	GetPushSubscriptions(ctx context.Context, userID string) ([]store.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	router      *chi.Mux
	handler     http.Handler
	coordinator Coordinator
	hub         *Hub
	store       Store
	tokens      *auth.Tokens
	auth        *auth.Handlers
	admin       auth.Admins
	pushService *push.Service
	devMode     bool
}

// Config holds server configuration.
type Config struct {
	DevMode        bool
	AllowedOrigins []string
	Admin          auth.Admins
}

// NewServer creates a new HTTP server. pushService may be nil.
func NewServer(
	coord Coordinator,
	hub *Hub,
	st Store,
	tokens *auth.Tokens,
	pushService *push.Service,
	cfg Config,
) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		coordinator: coord,
		hub:         hub,
		store:       st,
		tokens:      tokens,
		auth:        auth.NewHandlers(tokens, st),
		admin:       cfg.Admin,
		pushService: pushService,
		devMode:     cfg.DevMode,
	}

	s.setupRoutes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}).Handler(s.router)
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	// Auth routes
	r.Post("/auth/guest", s.auth.GuestHandler)
	if s.devMode {
		r.Get("/dev/login", s.auth.DevLoginHandler)
	}

	// Public read-only API
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/leaderboard", s.handleLeaderboard)
	r.Get("/api/matches/{matchID}", s.handleGetMatch)
	r.Get("/push/vapid-public-key", s.handleGetVAPIDPublicKey)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens, s.store))

		r.Get("/ws", s.handleWebSocket)
		r.Get("/me", s.auth.MeHandler)
		r.Get("/api/me/matches", s.handleMyMatches)

		r.Post("/push/subscribe", s.handleSubscribePush)
		r.Post("/push/unsubscribe", s.handleUnsubscribePush)
		r.Post("/push/test", s.handleTestPush)
	})

	// Admin routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens, s.store))
		r.Use(auth.RequireAdmin(s.admin))

		r.Get("/state", s.handleAdminState)
		r.Post("/queue/{playerID}/kick", s.handleAdminKickPlayer)
		r.Post("/users/{userID}/rating/{rating}", s.handleAdminSetRating)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleWebSocket upgrades an authenticated request and pumps frames between
// the connection and the coordinator until either side goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	client := newClient(s.hub, conn, coordinator.Player{
		ID:       user.ID,
		Username: user.Username,
		Rating:   user.Rating,
	})
	s.hub.register(client)

	fields := log.Fields{"conn_id": client.ID, "player_id": user.ID}
	log.WithFields(fields).Info("Player connected")

	s.hub.ToConn(client.ID, coordinator.Connected{
		PlayerID: user.ID,
		Username: user.Username,
		Rating:   user.Rating,
	})
	go client.writePump()

	client.readPump(func(message []byte) {
		cmd, err := decodeCommand(client.Player, message)
		if err != nil {
			log.WithFields(fields).WithError(err).Debug("Rejected frame")
			s.coordinator.Send(coordinator.Reject{ConnID: client.ID, Message: rejectMessage(err)})
			return
		}
		s.coordinator.Send(cmd)
	})

	s.hub.unregister(client)
	s.coordinator.Send(coordinator.Disconnect{Player: client.Player})
	log.WithFields(fields).Info("Player disconnected")
}

// OriginChecker allows websocket upgrades from the listed origins.
// A "*" entry, or a request without an Origin header, is always allowed.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// NewHTTPServer wraps handler with the timeouts used in production.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
