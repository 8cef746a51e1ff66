package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/config"
	"github.com/Veraticus/treasury-vouchers/internal/engine"
	"github.com/Veraticus/treasury-vouchers/internal/llm"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/reference"
	"github.com/Veraticus/treasury-vouchers/internal/rules"
	"github.com/Veraticus/treasury-vouchers/internal/service"
	"github.com/Veraticus/treasury-vouchers/internal/sheets"
	"github.com/Veraticus/treasury-vouchers/internal/storage"
)

// errReadOnlyRules is returned when a rule change targets the built-in rules.
var errReadOnlyRules = errors.New("built-in rules are read-only")

func readOnlyRulesError() error {
	return common.NewUserErrorHint("Cannot change rules", "set rules.source to file or database", errReadOnlyRules)
}

// loadConfig reads the typed configuration from viper.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, common.NewUserError("Invalid configuration", err)
	}
	return cfg, nil
}

// initStorage opens the SQLite database and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		closeQuietly(store, "database")
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		slog.Error("Failed to close "+what, "error", err)
	}
}

// ruleSource is the loaded rule set together with where it came from.
type ruleSource struct {
	Manager *rules.Manager
	store   service.RuleStore
	closer  io.Closer
	origin  string
}

// openRules loads the rules named by rules.source. The built-in defaults
// follow the processing mode.
func openRules(ctx context.Context, cfg *config.Config) (*ruleSource, error) {
	src := &ruleSource{origin: cfg.Rules.Source}

	var set *model.RuleSet
	switch cfg.Rules.Source {
	case config.RulesFromFile:
		fs := rules.NewFileStore(cfg.Rules.File)
		loaded, err := fs.LoadRuleSet(ctx)
		if err != nil {
			return nil, common.NewUserError("Failed to load rules file", err)
		}
		set, src.store, src.origin = loaded, fs, cfg.Rules.File
	case config.RulesFromDatabase:
		db, err := initStorage(ctx, cfg)
		if err != nil {
			return nil, common.NewUserError("Failed to open database", err)
		}
		loaded, err := db.LoadRuleSet(ctx)
		if err != nil {
			closeQuietly(db, "database")
			return nil, common.NewUserError("Failed to load rules from database", err)
		}
		set, src.store, src.closer, src.origin = loaded, db, db, cfg.Database.Path
	default:
		set = defaultRules(cfg.Processing.Mode)
	}

	src.Manager = rules.NewManager(set, slog.Default())
	return src, nil
}

func defaultRules(mode engine.Mode) *model.RuleSet {
	if mode == engine.ModeTreasury {
		return rules.TreasuryRuleSet()
	}
	return rules.DefaultRuleSet()
}

// Save persists the managed rule set back to its origin.
func (r *ruleSource) Save(ctx context.Context) error {
	if r.store == nil {
		return readOnlyRulesError()
	}
	if err := r.store.SaveRuleSet(ctx, r.Manager.RuleSet()); err != nil {
		return fmt.Errorf("failed to save rules: %w", err)
	}
	return nil
}

// Writable reports whether Save can succeed.
func (r *ruleSource) Writable() bool {
	return r.store != nil
}

func (r *ruleSource) Close() {
	if r.closer != nil {
		closeQuietly(r.closer, "rules database")
	}
}

// newOracle builds the remote classifier when llm.enabled is set and the
// rule settings allow it. A nil oracle means rules only.
func newOracle(ctx context.Context, cfg *config.Config, settings model.GlobalSettings) (engine.Oracle, error) {
	if !cfg.LLM.Enabled || !settings.EnableLLMClassification {
		return nil, nil
	}
	oracle, err := llm.NewOracle(ctx, cfg.LLM.Config, slog.Default())
	if err != nil {
		return nil, common.NewUserError("Failed to configure classification oracle", err)
	}
	return oracle, nil
}

// newEngine builds the classification engine for the configured mode.
func newEngine(ctx context.Context, cfg *config.Config, manager *rules.Manager) (*engine.Engine, error) {
	policy, err := engine.PolicyFor(string(cfg.Processing.Mode))
	if err != nil {
		return nil, common.NewUserError("Invalid processing mode", err)
	}
	oracle, err := newOracle(ctx, cfg, manager.Settings())
	if err != nil {
		return nil, err
	}

	engineCfg := engine.DefaultConfig()
	if cfg.LLM.Timeout > 0 {
		engineCfg.OracleTimeout = cfg.LLM.Timeout
	}
	return engine.NewWithConfig(policy, manager, oracle, slog.Default(), engineCfg), nil
}

// referenceSource picks the configured reference workbook. A local file wins
// over a spreadsheet. Nil means no reference data is configured.
func referenceSource(ctx context.Context, cfg *config.Config) (reference.Source, error) {
	switch {
	case cfg.Reference.Path != "":
		return reference.XLSXFile{Path: cfg.Reference.Path}, nil
	case cfg.Reference.SpreadsheetID != "":
		reader, err := sheets.NewReader(ctx, config.ReferenceSheetsConfig(viper.GetViper(), cfg), slog.Default())
		if err != nil {
			return nil, err
		}
		return reader, nil
	default:
		return nil, nil
	}
}

// loadReference builds the reference lookup. It returns nil without error
// when no reference source is configured.
func loadReference(ctx context.Context, cfg *config.Config) (*reference.Lookup, error) {
	src, err := referenceSource(ctx, cfg)
	if err != nil {
		return nil, common.NewUserError("Failed to load reference workbook", err)
	}
	if src == nil {
		return nil, nil
	}

	start := time.Now()
	wb, err := src.Workbook(ctx)
	if err != nil {
		return nil, common.NewUserError("Failed to load reference workbook", err)
	}
	lookup, err := reference.NewLookup(wb, slog.Default())
	if err != nil {
		return nil, common.NewUserError("Failed to load reference workbook", err)
	}

	slog.Debug("reference workbook loaded", "sheets", len(wb.Sheets), "duration", time.Since(start))
	return lookup, nil
}
