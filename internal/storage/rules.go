package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/rules"
)

// SaveRuleSet replaces the stored rule set.
func (s *SQLiteStorage) SaveRuleSet(ctx context.Context, set *model.RuleSet) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRuleSet(set); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"classification_rules", "approval_rules", "validation_rules", "rule_settings"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		settings, err := json.Marshal(set.GlobalSettings)
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rule_settings (id, version, last_updated, settings) VALUES (1, ?, ?, ?)`,
			set.Version, formatTime(set.LastUpdated), string(settings)); err != nil {
			return fmt.Errorf("failed to save rule settings: %w", err)
		}

		for i, r := range set.ClassificationRules {
			if err := insertClassificationRule(ctx, tx, i, r); err != nil {
				return err
			}
		}
		for i, r := range set.ApprovalRules {
			if err := insertApprovalRule(ctx, tx, i, r); err != nil {
				return err
			}
		}
		for i, r := range set.ValidationRules {
			if err := insertValidationRule(ctx, tx, i, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertClassificationRule(ctx context.Context, tx *sql.Tx, pos int, r model.ClassificationRule) error {
	keywords, err := marshalJSON(r.Keywords)
	if err != nil {
		return err
	}
	patterns, err := marshalJSON(r.GLAccountPatterns)
	if err != nil {
		return err
	}
	ranges, err := marshalJSON(r.AmountRanges)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO classification_rules (
			rule_id, position, name, description, category, subcategory,
			keywords, gl_account_patterns, amount_ranges, priority, is_active,
			created_by, created_date, last_modified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RuleID, pos, r.Name, r.Description, r.Category, r.Subcategory,
		keywords, patterns, ranges, r.Priority, r.IsActive,
		r.CreatedBy, formatTime(r.CreatedDate), formatTime(r.LastModified))
	if err != nil {
		return fmt.Errorf("failed to save classification rule %s: %w", r.RuleID, err)
	}
	return nil
}

func insertApprovalRule(ctx context.Context, tx *sql.Tx, pos int, r model.ApprovalRule) error {
	approvers, err := marshalJSON(r.RequiredApprovers)
	if err != nil {
		return err
	}
	conditions, err := marshalJSON(r.Conditions)
	if err != nil {
		return err
	}
	escalation, err := marshalJSON(r.Escalation)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO approval_rules (
			rule_id, position, name, description, approval_level,
			required_approvers, conditions, escalation, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RuleID, pos, r.Name, r.Description, string(r.ApprovalLevel),
		approvers, conditions, escalation, r.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save approval rule %s: %w", r.RuleID, err)
	}
	return nil
}

func insertValidationRule(ctx context.Context, tx *sql.Tx, pos int, r model.ValidationRule) error {
	conditions, err := marshalJSON(r.Conditions)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO validation_rules (
			rule_id, position, name, description, rule_type,
			conditions, error_message, warning_message, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RuleID, pos, r.Name, r.Description, string(r.RuleType),
		conditions, r.ErrorMessage, r.WarningMessage, r.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save validation rule %s: %w", r.RuleID, err)
	}
	return nil
}

// LoadRuleSet reads the stored rule set. An empty database yields the
// built-in defaults.
func (s *SQLiteStorage) LoadRuleSet(ctx context.Context) (*model.RuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		set         model.RuleSet
		lastUpdated string
		settings    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, last_updated, settings FROM rule_settings WHERE id = 1`,
	).Scan(&set.Version, &lastUpdated, &settings)
	if err == sql.ErrNoRows {
		return rules.DefaultRuleSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule settings: %w", err)
	}
	if set.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &set.GlobalSettings); err != nil {
		return nil, fmt.Errorf("failed to decode rule settings: %w", err)
	}

	if set.ClassificationRules, err = s.loadClassificationRules(ctx); err != nil {
		return nil, err
	}
	if set.ApprovalRules, err = s.loadApprovalRules(ctx); err != nil {
		return nil, err
	}
	if set.ValidationRules, err = s.loadValidationRules(ctx); err != nil {
		return nil, err
	}

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("stored rule set is invalid: %w", err)
	}
	return &set, nil
}

func (s *SQLiteStorage) loadClassificationRules(ctx context.Context) ([]model.ClassificationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, name, description, category, subcategory,
			keywords, gl_account_patterns, amount_ranges, priority, is_active,
			created_by, created_date, last_modified
		FROM classification_rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ClassificationRule
	for rows.Next() {
		var (
			r                          model.ClassificationRule
			keywords, patterns, ranges string
			createdDate, lastModified  string
		)
		if err := rows.Scan(&r.RuleID, &r.Name, &r.Description, &r.Category, &r.Subcategory,
			&keywords, &patterns, &ranges, &r.Priority, &r.IsActive,
			&r.CreatedBy, &createdDate, &lastModified); err != nil {
			return nil, fmt.Errorf("failed to scan classification rule: %w", err)
		}
		if err := unmarshalJSON(keywords, &r.Keywords); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(patterns, &r.GLAccountPatterns); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(ranges, &r.AmountRanges); err != nil {
			return nil, err
		}
		if r.CreatedDate, err = parseTime(createdDate); err != nil {
			return nil, err
		}
		if r.LastModified, err = parseTime(lastModified); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadApprovalRules(ctx context.Context) ([]model.ApprovalRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, name, description, approval_level,
			required_approvers, conditions, escalation, is_active
		FROM approval_rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ApprovalRule
	for rows.Next() {
		var (
			r                                   model.ApprovalRule
			level, approvers, conds, escalation string
		)
		if err := rows.Scan(&r.RuleID, &r.Name, &r.Description, &level,
			&approvers, &conds, &escalation, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan approval rule: %w", err)
		}
		r.ApprovalLevel = model.ApprovalLevel(level)
		if err := unmarshalJSON(approvers, &r.RequiredApprovers); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(conds, &r.Conditions); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(escalation, &r.Escalation); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadValidationRules(ctx context.Context) ([]model.ValidationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, name, description, rule_type, conditions,
			error_message, warning_message, is_active
		FROM validation_rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query validation rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ValidationRule
	for rows.Next() {
		var (
			r               model.ValidationRule
			ruleType, conds string
		)
		if err := rows.Scan(&r.RuleID, &r.Name, &r.Description, &ruleType, &conds,
			&r.ErrorMessage, &r.WarningMessage, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan validation rule: %w", err)
		}
		r.RuleType = model.ValidationType(ruleType)
		if err := unmarshalJSON(conds, &r.Conditions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}
