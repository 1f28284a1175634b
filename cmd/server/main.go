package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/auth"
	"github.com/edvart/typeduel/internal/config"
	"github.com/edvart/typeduel/internal/coordinator"
	"github.com/edvart/typeduel/internal/matchrecorder"
	"github.com/edvart/typeduel/internal/natsbus"
	"github.com/edvart/typeduel/internal/push"
	"github.com/edvart/typeduel/internal/store"
	"github.com/edvart/typeduel/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	cfg.ConfigureLogging()

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.WithError(err).Fatal("Failed to create data directory")
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DevMode {
		log.Warn("Dev mode enabled")
		if err := auth.CreateFakeUsers(ctx, db, 10); err != nil {
			log.WithError(err).Warn("Failed to create fake users")
		}
	}

	hub := web.NewHub(web.ConnectionConfig{CheckOrigin: web.OriginChecker(cfg.AllowedOrigins)})
	coord := coordinator.New(coordinator.Config{Settings: cfg.Game}, hub, db)

	// Subscribers must be registered before the coordinator starts.
	var workers sync.WaitGroup
	startWorker := func(run func(ctx context.Context, events <-chan coordinator.Event)) {
		events := coord.Subscribe()
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(ctx, events)
		}()
	}

	startWorker(matchrecorder.New(db).Run)

	var pushService *push.Service
	if cfg.Push.Enabled() {
		pushService = push.NewService(db, cfg.Push)
		startWorker(push.NewNotifier(pushService).Run)
	} else {
		log.Info("VAPID keys not configured, push notifications disabled")
	}

	if cfg.NATSURL != "" {
		nc, err := natsbus.Connect(cfg.NATSURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to NATS")
		}
		defer nc.Drain()
		startWorker(natsbus.NewPublisher(nc, cfg.NATSSubjectPrefix).Run)
	}

	coordDone := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(coordDone)
	}()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	server := web.NewServer(coord, hub, db, tokens, pushService, web.Config{
		DevMode:        cfg.DevMode,
		AllowedOrigins: cfg.AllowedOrigins,
		Admin:          auth.NewAdmins(cfg.AdminIDs),
	})
	httpServer := web.NewHTTPServer(":"+cfg.Port, server)

	// Handle shutdown signals
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Info("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("HTTP server shutdown error")
		}
		cancel()
	}()

	log.WithField("port", cfg.Port).Info("Server running")
	if cfg.DevMode {
		log.Infof("Dev login: http://localhost:%s/dev/login?id=dev_1&name=dev_1", cfg.Port)
	}

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("HTTP server error")
	}

	// Let in-flight result writes land before the database closes.
	<-coordDone
	workers.Wait()
	log.Info("Server stopped")
}
