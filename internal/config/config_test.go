package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/edvart/typeduel/internal/coordinator"
)

// clearEnv blanks every variable Load reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_PATH", "JWT_SECRET", "JWT_TTL", "DEV_MODE", "ADMIN_IDS",
		"ALLOWED_ORIGINS", "NATS_URL", "NATS_SUBJECT_PREFIX", "VAPID_PUBLIC_KEY",
		"VAPID_PRIVATE_KEY", "VAPID_SUBJECT", "LOG_LEVEL", "LOG_FORMAT", "GAME_CONFIG",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.DatabasePath != "./data/typeduel.db" {
		t.Errorf("server defaults = %q %q", cfg.Port, cfg.DatabasePath)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("JWTTTL = %s", cfg.JWTTTL)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.NATSSubjectPrefix != "typeduel.match" {
		t.Errorf("NATSSubjectPrefix = %q", cfg.NATSSubjectPrefix)
	}
	if cfg.Game != coordinator.DefaultSettings() {
		t.Errorf("Game = %+v", cfg.Game)
	}
	if cfg.Push.Enabled() {
		t.Error("push should be disabled without VAPID keys")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("err = %v, want JWT_SECRET error", err)
	}

	t.Setenv("DEV_MODE", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JWTSecret == "" || !cfg.DevMode {
		t.Errorf("dev mode config = %+v", cfg)
	}
}

func TestLoadLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("ADMIN_IDS", " u1, ,u2 ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.AdminIDs, []string{"u1", "u2"}) {
		t.Errorf("AdminIDs = %v", cfg.AdminIDs)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"JWT_TTL", "soon"},
		{"JWT_TTL", "-1h"},
		{"LOG_LEVEL", "loud"},
		{"LOG_FORMAT", "xml"},
		{"GAME_CONFIG", "/does/not/exist.yaml"},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "x")
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestLoadGameSettingsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	body := "countdown_from: 3\nabort_window: 15s\nmax_time_setting: 120\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadGameSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	want := coordinator.DefaultSettings()
	want.CountdownFrom = 3
	want.AbortWindow = 15 * time.Second
	want.MaxTimeSetting = 120
	if got != want {
		t.Errorf("settings = %+v, want %+v", got, want)
	}
}

func TestLoadGameSettingsInvalid(t *testing.T) {
	tests := map[string]string{
		"negative countdown": "countdown_from: -1\n",
		"zero tick":          "tick: 0s\n",
		"bad duration":       "grace_window: forever\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "game.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadGameSettings(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
