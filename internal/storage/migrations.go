package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Business rule tables",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS rule_settings (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					version TEXT NOT NULL,
					last_updated TEXT,
					settings TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS classification_rules (
					rule_id TEXT PRIMARY KEY,
					position INTEGER NOT NULL,
					name TEXT,
					description TEXT,
					category TEXT NOT NULL,
					subcategory TEXT,
					keywords TEXT NOT NULL,
					gl_account_patterns TEXT NOT NULL,
					amount_ranges TEXT NOT NULL,
					priority INTEGER NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_by TEXT,
					created_date TEXT,
					last_modified TEXT
				)`,
				`CREATE INDEX idx_classification_rules_category ON classification_rules(category)`,
				`CREATE TABLE IF NOT EXISTS approval_rules (
					rule_id TEXT PRIMARY KEY,
					position INTEGER NOT NULL,
					name TEXT,
					description TEXT,
					approval_level TEXT NOT NULL,
					required_approvers TEXT NOT NULL,
					conditions TEXT NOT NULL,
					escalation TEXT NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT 1
				)`,
				`CREATE TABLE IF NOT EXISTS validation_rules (
					rule_id TEXT PRIMARY KEY,
					position INTEGER NOT NULL,
					name TEXT,
					description TEXT,
					rule_type TEXT NOT NULL,
					conditions TEXT NOT NULL,
					error_message TEXT,
					warning_message TEXT,
					is_active BOOLEAN NOT NULL DEFAULT 1
				)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Voucher register",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS vouchers (
					voucher_number TEXT PRIMARY KEY,
					run_id TEXT NOT NULL,
					created_date TEXT NOT NULL,
					amount TEXT NOT NULL,
					entity TEXT NOT NULL,
					cost_center TEXT NOT NULL,
					gl_account TEXT NOT NULL,
					budget_group TEXT NOT NULL,
					descriptions TEXT NOT NULL,
					category TEXT NOT NULL,
					classification TEXT NOT NULL,
					status TEXT NOT NULL,
					content TEXT,
					workflow_id TEXT
				)`,
				`CREATE INDEX idx_vouchers_run ON vouchers(run_id)`,
				`CREATE INDEX idx_vouchers_category ON vouchers(category)`,
				`CREATE INDEX idx_vouchers_created ON vouchers(created_date)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Approval workflows",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS workflows (
					workflow_id TEXT PRIMARY KEY,
					voucher_number TEXT NOT NULL,
					approval_level TEXT NOT NULL,
					status TEXT NOT NULL,
					amount TEXT NOT NULL,
					current_step INTEGER NOT NULL DEFAULT 0,
					escalation_reason TEXT,
					created_date TEXT NOT NULL,
					completed_date TEXT
				)`,
				`CREATE INDEX idx_workflows_voucher ON workflows(voucher_number)`,
				`CREATE INDEX idx_workflows_status ON workflows(status)`,
				`CREATE TABLE IF NOT EXISTS approval_steps (
					workflow_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					step_id TEXT NOT NULL,
					role TEXT NOT NULL,
					approver_name TEXT,
					comments TEXT,
					status TEXT NOT NULL,
					required BOOLEAN NOT NULL DEFAULT 1,
					due_date TEXT,
					acted_at TEXT,
					PRIMARY KEY (workflow_id, position),
					FOREIGN KEY (workflow_id) REFERENCES workflows(workflow_id) ON DELETE CASCADE
				)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
