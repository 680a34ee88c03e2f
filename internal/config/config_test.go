package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FOODDASH_MAPS_API_KEY", "test-key")
	t.Setenv("FOODDASH_RESTAURANT_ADDRESS", "1 Market St, San Francisco")
	t.Setenv("FOODDASH_JWT_SECRET", strings.Repeat("s", 32))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":5000" {
		t.Errorf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Mongo.MaxPoolSize != 10 {
		t.Errorf("pool = %d", cfg.Mongo.MaxPoolSize)
	}
	if cfg.Maps.Timeout != 5*time.Second || cfg.Maps.MaxRetries != 3 {
		t.Errorf("maps = %+v", cfg.Maps)
	}
	if cfg.Order.AllowCancelAfterReady {
		t.Error("cancel after ready must default to false")
	}
	if cfg.IsProduction() {
		t.Error("default env must not be production")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("FOODDASH_MAPS_TIMEOUT", "750ms")
	t.Setenv("FOODDASH_ALLOW_CANCEL_AFTER_READY", "true")
	t.Setenv("FOODDASH_PAGE_SIZE_MAX", "25")
	t.Setenv("FOODDASH_WS_BUFFER", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Maps.Timeout != 750*time.Millisecond {
		t.Errorf("timeout = %v", cfg.Maps.Timeout)
	}
	if !cfg.Order.AllowCancelAfterReady {
		t.Error("expected cancel after ready enabled")
	}
	if cfg.Order.MaxPageSize != 25 {
		t.Errorf("max page size = %d", cfg.Order.MaxPageSize)
	}
	if cfg.Notifier.ClientBuffer != 64 {
		t.Errorf("invalid int must fall back to default, got %d", cfg.Notifier.ClientBuffer)
	}
}

func TestLoadReportsEveryMissingKey(t *testing.T) {
	t.Setenv("FOODDASH_MAPS_API_KEY", "")
	t.Setenv("FOODDASH_RESTAURANT_ADDRESS", "")
	t.Setenv("FOODDASH_JWT_SECRET", "short")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"FOODDASH_MAPS_API_KEY", "FOODDASH_RESTAURANT_ADDRESS", "FOODDASH_JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFirebaseProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("FOODDASH_AUTH_PROVIDER", "firebase")
	t.Setenv("FOODDASH_FIREBASE_PROJECT_ID", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without firebase project id")
	}
	t.Setenv("FOODDASH_FIREBASE_PROJECT_ID", "fooddash-dev")
	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoadRealtimeDatabaseNeedsProject(t *testing.T) {
	setRequired(t)
	t.Setenv("FOODDASH_FIREBASE_DATABASE_URL", "https://fooddash-dev.firebaseio.com")
	t.Setenv("FOODDASH_FIREBASE_PROJECT_ID", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "FOODDASH_FIREBASE_DATABASE_URL") {
		t.Fatalf("expected database url error, got %v", err)
	}
	t.Setenv("FOODDASH_FIREBASE_PROJECT_ID", "fooddash-dev")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Firebase.DatabaseURL != "https://fooddash-dev.firebaseio.com" {
		t.Errorf("database url = %q", cfg.Firebase.DatabaseURL)
	}
}
