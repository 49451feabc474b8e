package database

import (
	"io/fs"
	"strings"
	"testing"

	"delivery-pricing/internal/config"
	"delivery-pricing/internal/logger"
	"delivery-pricing/migrations"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestHealth_PingsDatabase(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	mock.ExpectPing()

	db := &DB{DB: sqlDB}
	if err := db.Health(); err != nil {
		t.Fatalf("expected health ok, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConnect_UnreachableHost(t *testing.T) {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.DatabaseConfig{Host: "127.0.0.1", Port: "0", User: "pricing", Password: "p", DBName: "delivery_pricing", SSLMode: "disable", AutoMigrate: true}
	if _, err := Connect(cfg, log); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestNilDB(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Fatalf("expected nil error on nil db close, got %v", err)
	}
	if err := db.Health(); err == nil {
		t.Fatalf("expected error for nil db health")
	}
	if err := db.Migrate("delivery_pricing"); err == nil {
		t.Fatalf("expected error for nil db migrate")
	}
}

func TestEmbeddedMigrations_Readable(t *testing.T) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		t.Fatalf("iofs source: %v", err)
	}
	defer source.Close()

	version, err := source.First()
	if err != nil {
		t.Fatalf("first migration: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected first version 1, got %d", version)
	}
	down, _, err := source.ReadDown(version)
	if err != nil {
		t.Fatalf("expected down migration for version %d: %v", version, err)
	}
	_ = down.Close()
}

func TestEmbeddedMigrations_PricingConstraints(t *testing.T) {
	raw, err := fs.ReadFile(migrations.FS, "000001_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	schema := string(raw)

	for _, want := range []string{
		"CHECK (max_uses IS NULL OR usage_count <= max_uses)",
		"CHECK (valid_from <= valid_to)",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_order_items_free_line",
		"CHECK (quantity >= 1)",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("schema lost constraint %q", want)
		}
	}
}
