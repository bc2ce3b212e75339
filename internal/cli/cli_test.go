package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	for _, key := range []string{"INVERT", "HOLIDAYS_API_TOKEN", "STORAGE_DRIVER", "DATABASE_URL", "TIMEZONE"} {
		t.Setenv(key, "")
	}

	path := filepath.Join(dir, "config.yaml")
	body := "jwt_secret: cli-test\n" +
		"database_url: " + filepath.Join(dir, "cli.db") + "\n" +
		"timezone: UTC\n" +
		"log_level: error\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHolidaysCommandPrintsFallbackList(t *testing.T) {
	path := setupConfig(t)
	out, err := run(t, "holidays", "2024", "--config", path)
	if err != nil {
		t.Fatalf("holidays: %v", err)
	}
	if !strings.Contains(out, "2024-12-25") || !strings.Contains(out, "2024-03-29") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 11 {
		t.Fatalf("expected 11 holidays, got %d", lines)
	}
}

func TestHolidaysCommandRejectsBadYear(t *testing.T) {
	path := setupConfig(t)
	if _, err := run(t, "holidays", "soon", "--config", path); err == nil {
		t.Fatalf("expected error for non-numeric year")
	}
}

func TestMigrateCreatesDatabase(t *testing.T) {
	path := setupConfig(t)
	out, err := run(t, "migrate", "--config", path)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "sqlite storage is up to date") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "cli.db")); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}
