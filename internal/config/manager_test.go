package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestParseYAMLConfig(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "bot.yaml", `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
storage:
  path: ./bot.db
reminders:
  drain_interval: "5s"
  utc_offset: "7h"
feedwatch:
  poll_schedule: "@every 60s"
`)

	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Storage.Path != "./bot.db" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	off, err := ParseUTCOffset(cfg.Reminders.UTCOffset)
	if err != nil {
		t.Fatalf("ParseUTCOffset error: %v", err)
	}
	if off == nil || *off != 7*time.Hour {
		t.Fatalf("offset = %v, want 7h", off)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "bot.yaml", `
telegram:
  token: "t"
storage:
  path: ./bot.db
surprise: true
`)

	if _, err := NewManager(p).Parse(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	t.Parallel()
	cfg := &Config{Storage: StorageConfig{Path: "x.db"}}
	if err := Validate(cfg); !errors.Is(err, errMissingToken) {
		t.Fatalf("error = %v, want missing token", err)
	}
}

func TestParseUTCOffsetNegativeAndEmpty(t *testing.T) {
	t.Parallel()
	off, err := ParseUTCOffset("-5h30m")
	if err != nil || off == nil || *off != -(5*time.Hour + 30*time.Minute) {
		t.Fatalf("negative offset = %v, err %v", off, err)
	}
	if off, err := ParseUTCOffset(""); err != nil || off != nil {
		t.Fatalf("empty offset = %v, err %v, want nil,nil", off, err)
	}
	if _, err := ParseUTCOffset("25h"); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
