package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go-triage/internal/chat"
	"go-triage/internal/config"
	"go-triage/internal/knowledge"
	"go-triage/internal/user"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to the configured database without migrating.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch cfg.Database.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.Database.DSN), gcfg)
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." && !isMemoryDSN(cfg.Database.DSN) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		return gorm.Open(sqlite.Open(cfg.Database.DSN), gcfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file:")
}

// Migrate creates every table the service uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&user.User{}); err != nil {
		return err
	}
	if err := chat.Migrate(db); err != nil {
		return err
	}
	return db.AutoMigrate(&knowledge.Record{})
}

// Init opens and migrates the database and sets DB.
func Init(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	DB = db
	log.Printf("[DB] Connected (%s) and migrated", cfg.Database.Driver)
	return nil
}
