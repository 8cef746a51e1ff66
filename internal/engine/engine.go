// Package engine classifies voucher groups into categories and derives their
// approval tier, risk level and compliance checklist.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/pattern"
	"github.com/shopspring/decimal"
)

// GeneralSubcategory is used when an oracle label has no matching rule.
const GeneralSubcategory = "General"

// Engine classifies descriptions under one policy.
type Engine struct {
	rules         RuleProvider
	oracle        Oracle
	logger        *slog.Logger
	policy        Policy
	oracleTimeout time.Duration
}

// Config holds configuration options for the classification engine.
type Config struct {
	OracleTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		OracleTimeout: 10 * time.Second,
	}
}

// New creates an engine. A nil oracle disables oracle classification.
func New(policy Policy, rules RuleProvider, oracle Oracle, logger *slog.Logger) *Engine {
	return NewWithConfig(policy, rules, oracle, logger, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(policy Policy, rules RuleProvider, oracle Oracle, logger *slog.Logger, config Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.OracleTimeout <= 0 {
		config.OracleTimeout = DefaultConfig().OracleTimeout
	}
	return &Engine{
		policy:        policy,
		rules:         rules,
		oracle:        oracle,
		logger:        logger,
		oracleTimeout: config.OracleTimeout,
	}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Classify assigns a category to description and derives the approval tier,
// risk and compliance checks. Only the magnitude of amount is considered.
func (e *Engine) Classify(ctx context.Context, description string, amount decimal.Decimal) model.VoucherClassification {
	amount = amount.Abs()
	matcher := pattern.NewMatcher(e.rules.ClassificationRules(""))

	result, ok := e.classifyWithOracle(ctx, matcher, description, amount)
	if !ok {
		result = e.classifyWithRules(matcher, description, amount)
	}

	result.ApprovalLevel, _ = ApprovalLevelFor(e.rules.ApprovalRules(), amount, result.Category)
	result.RiskLevel = RiskFor(result.Category, amount)
	result.ComplianceChecks = ComplianceChecks(result.Category, amount)
	if e.policy.finalize != nil {
		e.policy.finalize(&result)
	}

	e.logger.Debug("classified",
		"description", description,
		"amount", amount.String(),
		"category", result.Category,
		"rule_id", result.RuleID,
		"source", result.Source,
		"approval_level", result.ApprovalLevel)

	return result
}

func (e *Engine) classifyWithOracle(ctx context.Context, matcher *pattern.MatcherImpl, description string, amount decimal.Decimal) (model.VoucherClassification, bool) {
	if e.oracle == nil {
		return model.VoucherClassification{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, e.oracleTimeout)
	defer cancel()

	label, err := e.oracle.Classify(ctx, Query{
		Description: description,
		Amount:      amount,
		Vocabulary:  e.policy.Vocabulary,
	})
	if err != nil {
		e.logger.Debug("oracle classification failed", "description", description, "error", err)
		return model.VoucherClassification{}, false
	}
	if !e.policy.InVocabulary(label) {
		e.logger.Debug("oracle label outside vocabulary", "description", description, "label", label)
		return model.VoucherClassification{}, false
	}

	result := model.VoucherClassification{
		Category:    label,
		Subcategory: GeneralSubcategory,
		Source:      model.SourceOracle,
	}
	if best, ok := matcher.BestInCategory(description, amount, label); ok {
		result.Subcategory = best.Rule.Subcategory
		result.RuleID = best.Rule.RuleID
	}
	result.Justification = fmt.Sprintf("Classified by oracle as %s - %s", result.Category, result.Subcategory)
	return result, true
}

func (e *Engine) classifyWithRules(matcher *pattern.MatcherImpl, description string, amount decimal.Decimal) model.VoucherClassification {
	choose := matcher.Best
	if e.policy.RequireKeywordHit {
		choose = matcher.BestHit
	}

	rule := e.policy.DefaultRule
	source := model.SourceDefault
	if best, ok := choose(description, amount); ok {
		rule = *best.Rule
		source = model.SourceRule
	}

	return model.VoucherClassification{
		Category:      rule.Category,
		Subcategory:   rule.Subcategory,
		RuleID:        rule.RuleID,
		Source:        source,
		Justification: fmt.Sprintf("Classified as %s - %s", rule.Category, rule.Subcategory),
	}
}
