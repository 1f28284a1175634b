// Package config loads server configuration from the environment, an optional
// .env file and an optional YAML file of game tunables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/edvart/typeduel/internal/auth"
	"github.com/edvart/typeduel/internal/coordinator"
	"github.com/edvart/typeduel/internal/natsbus"
	"github.com/edvart/typeduel/internal/push"
)

type Config struct {
	Port           string
	DatabasePath   string
	JWTSecret      string
	JWTTTL         time.Duration
	DevMode        bool
	AdminIDs       []string
	AllowedOrigins []string

	NATSURL           string
	NATSSubjectPrefix string

	Push push.Config

	LogLevel  string
	LogFormat string

	Game coordinator.Settings
}

// devSecret signs tokens when DEV_MODE is on and no secret is configured.
const devSecret = "typeduel-dev-secret"

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabasePath:      getEnv("DATABASE_PATH", "./data/typeduel.db"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		DevMode:           getEnv("DEV_MODE", "") == "true",
		AdminIDs:          splitList(os.Getenv("ADMIN_IDS")),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "*")),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", natsbus.DefaultSubjectPrefix),
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			VAPIDSubject:    os.Getenv("VAPID_SUBJECT"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	ttl, err := time.ParseDuration(getEnv("JWT_TTL", auth.DefaultTokenTTL.String()))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid JWT_TTL %q", os.Getenv("JWT_TTL"))
	}
	cfg.JWTTTL = ttl

	if cfg.JWTSecret == "" {
		if !cfg.DevMode {
			return nil, errors.New("JWT_SECRET is required unless DEV_MODE=true")
		}
		log.Warn("JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = devSecret
	}

	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (want text or json)", cfg.LogFormat)
	}

	game, err := LoadGameSettings(os.Getenv("GAME_CONFIG"))
	if err != nil {
		return nil, err
	}
	cfg.Game = game

	return cfg, nil
}

// LoadGameSettings overlays the YAML file at path onto the default tunables.
// An empty path yields the defaults.
func LoadGameSettings(path string) (coordinator.Settings, error) {
	settings := coordinator.DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read game config: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse game config %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("game config %s: %w", path, err)
	}
	return settings, nil
}

// ConfigureLogging applies the level and format to the global logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
