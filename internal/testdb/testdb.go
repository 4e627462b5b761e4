// Package testdb opens in-memory SQLite databases with the yukpo schema for
// store and service tests.
package testdb

import (
	"context"
	"testing"

	"github.com/yukpo/yukpo/infrastructure/persistence"
	"github.com/yukpo/yukpo/internal/database"
	"github.com/yukpo/yukpo/internal/log"
)

// New creates an in-memory SQLite database with all migrations applied.
// The database is closed when the test finishes.
func New(t testing.TB) database.Database {
	t.Helper()
	db, err := database.NewDatabaseWithLogger(context.Background(), "sqlite:///:memory:", log.Discard())
	if err != nil {
		t.Fatalf("testdb.New: open database: %v", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("testdb.New: auto migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
