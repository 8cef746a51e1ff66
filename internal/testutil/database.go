// Package testutil provides shared helpers for tests that need a database.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/rules"
	"github.com/Veraticus/treasury-vouchers/internal/storage"
)

// TestDB is an in-memory database seeded for a test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	RuleSet *model.RuleSet
}

// TestDBOptions configures SetupTestDBWithOptions.
type TestDBOptions struct {
	RuleSet        *model.RuleSet
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	SkipMigrations bool
}

// SetupTestDB creates a migrated in-memory database holding the default rules.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{RuleSet: rules.DefaultRuleSet()})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	if opts.RuleSet != nil {
		if err := store.SaveRuleSet(ctx, opts.RuleSet); err != nil {
			t.Fatalf("failed to seed rule set: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		RuleSet: opts.RuleSet,
	}
}
