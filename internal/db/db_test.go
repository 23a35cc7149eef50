package db

import (
	"os"
	"path/filepath"
	"testing"

	"go-triage/internal/chat"
	"go-triage/internal/config"
	"go-triage/internal/knowledge"
	"go-triage/internal/user"
)

func TestInit_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "mysql"
	if err := Init(cfg); err == nil {
		t.Errorf("expected error for unknown driver, got nil")
	}
}

func TestInit_SQLiteMigrates(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "nested", "triage.db")
	if err := Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if DB == nil {
		t.Fatalf("DB not set")
	}
	for _, model := range []any{&user.User{}, &chat.Conversation{}, &chat.Turn{}, &knowledge.Record{}} {
		if !DB.Migrator().HasTable(model) {
			t.Errorf("table for %T not created", model)
		}
	}
	if _, err := os.Stat(cfg.Database.DSN); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// Runs against a real server only when TEST_DB_DSN is set.
func TestInit_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("set TEST_DB_DSN to run real DB test")
	}
	cfg := config.Default()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = dsn
	if err := Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
}
