package testhelpers

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/blockwatch/blockwatch/internal/database"
)

// NewTestDB opens a migrated in-memory sqlite database. Every sqlite connection
// sees its own :memory: database, so the pool is pinned to one connection.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func NewTestStore(t *testing.T) *database.Store {
	t.Helper()
	return database.NewStore(NewTestDB(t))
}

// SeedSite upserts a site with the given code
func SeedSite(t *testing.T, store *database.Store, code string) *database.Site {
	t.Helper()
	site := NewSiteBuilder().WithCode(code).Build()
	if err := store.UpsertSite(context.Background(), &site); err != nil {
		t.Fatalf("seed site %s: %v", code, err)
	}
	return &site
}

// SeedObservation inserts obs and returns it with its generated ID
func SeedObservation(t *testing.T, store *database.Store, obs database.Observation) *database.Observation {
	t.Helper()
	if err := store.CreateObservation(context.Background(), &obs); err != nil {
		t.Fatalf("seed observation in %s/%s: %v", obs.SiteID, obs.BlockID, err)
	}
	return &obs
}
