package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"task-calendar/internal/config"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.JWTSecret = "app-test-secret"
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "app.db")
	cfg.Timezone = "UTC"
	cfg.Holidays.APIToken = ""
	return cfg
}

func TestNewWiresSQLiteStack(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}

	telegramBot, err := a.NewBot()
	if err != nil || telegramBot != nil {
		t.Fatalf("no token should mean no bot, got %v %v", telegramBot, err)
	}
	if err := a.ScheduleJobs(nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timezone = "Mars/Olympus"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected timezone error")
	}
}
