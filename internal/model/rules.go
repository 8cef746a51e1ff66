package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidRule is returned when a rule fails schema validation.
var ErrInvalidRule = errors.New("invalid rule")

// RuleKind discriminates the rule union.
type RuleKind string

// Rule kinds.
const (
	KindClassification RuleKind = "classification"
	KindApproval       RuleKind = "approval"
	KindValidation     RuleKind = "validation"
)

// Rule is implemented by every kind of business rule.
type Rule interface {
	ID() string
	Kind() RuleKind
	Active() bool
	SetActive(active bool)
	Validate() error
}

var (
	_ Rule = (*ClassificationRule)(nil)
	_ Rule = (*ApprovalRule)(nil)
	_ Rule = (*ValidationRule)(nil)
)

// AmountRange is an inclusive amount window.
type AmountRange struct {
	Min decimal.Decimal `json:"min" yaml:"min"`
	Max decimal.Decimal `json:"max" yaml:"max"`
}

// Contains reports whether amount lies within the range, bounds included.
func (r AmountRange) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(r.Min) && amount.LessThanOrEqual(r.Max)
}

// ClassificationRule maps keyword and GL evidence to a category.
type ClassificationRule struct {
	CreatedDate       time.Time     `json:"created_date" yaml:"created_date"`
	LastModified      time.Time     `json:"last_modified" yaml:"last_modified"`
	RuleID            string        `json:"rule_id" yaml:"rule_id"`
	Name              string        `json:"name" yaml:"name"`
	Description       string        `json:"description" yaml:"description"`
	Category          string        `json:"category" yaml:"category"`
	Subcategory       string        `json:"subcategory" yaml:"subcategory"`
	CreatedBy         string        `json:"created_by" yaml:"created_by"`
	Keywords          []string      `json:"keywords" yaml:"keywords"`
	GLAccountPatterns []string      `json:"gl_account_patterns" yaml:"gl_account_patterns"`
	AmountRanges      []AmountRange `json:"amount_ranges" yaml:"amount_ranges"`
	Priority          int           `json:"priority" yaml:"priority"`
	IsActive          bool          `json:"is_active" yaml:"is_active"`
}

// ID returns the rule identifier.
func (r *ClassificationRule) ID() string { return r.RuleID }

// Kind returns KindClassification.
func (r *ClassificationRule) Kind() RuleKind { return KindClassification }

// Active reports whether the rule takes part in classification.
func (r *ClassificationRule) Active() bool { return r.IsActive }

// SetActive toggles the rule.
func (r *ClassificationRule) SetActive(active bool) { r.IsActive = active }

// AcceptsAmount reports whether amount falls inside any declared range.
// A rule without ranges accepts every amount.
func (r *ClassificationRule) AcceptsAmount(amount decimal.Decimal) bool {
	if len(r.AmountRanges) == 0 {
		return true
	}
	for _, rng := range r.AmountRanges {
		if rng.Contains(amount) {
			return true
		}
	}
	return false
}

// Validate checks the rule schema.
func (r *ClassificationRule) Validate() error {
	if strings.TrimSpace(r.RuleID) == "" {
		return fmt.Errorf("%w: classification rule id is required", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("%w: rule %s: category is required", ErrInvalidRule, r.RuleID)
	}
	if r.Priority < 0 {
		return fmt.Errorf("%w: rule %s: priority cannot be negative", ErrInvalidRule, r.RuleID)
	}
	for i, rng := range r.AmountRanges {
		if rng.Min.GreaterThan(rng.Max) {
			return fmt.Errorf("%w: rule %s: amount range %d has min greater than max", ErrInvalidRule, r.RuleID, i)
		}
	}
	for _, p := range r.GLAccountPatterns {
		if idx := strings.Index(p, "*"); idx >= 0 && idx != len(p)-1 {
			return fmt.Errorf("%w: rule %s: wildcard must be trailing in %q", ErrInvalidRule, r.RuleID, p)
		}
	}
	return nil
}

// ApprovalConditions restricts when an approval rule applies.
type ApprovalConditions struct {
	MinAmount  *decimal.Decimal `json:"min_amount,omitempty" yaml:"min_amount,omitempty"`
	MaxAmount  *decimal.Decimal `json:"max_amount,omitempty" yaml:"max_amount,omitempty"`
	Categories []string         `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Matches reports whether amount and category satisfy every declared condition.
func (c ApprovalConditions) Matches(amount decimal.Decimal, category string) bool {
	if c.MinAmount != nil && amount.LessThan(*c.MinAmount) {
		return false
	}
	if c.MaxAmount != nil && amount.GreaterThan(*c.MaxAmount) {
		return false
	}
	if len(c.Categories) > 0 {
		found := false
		for _, cat := range c.Categories {
			if cat == category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Escalation describes where an overdue approval goes.
type Escalation struct {
	EscalateTo   string `json:"escalate_to,omitempty" yaml:"escalate_to,omitempty"`
	TimeoutHours int    `json:"timeout_hours,omitempty" yaml:"timeout_hours,omitempty"`
}

// ApprovalRule assigns an approval level to matching vouchers.
type ApprovalRule struct {
	RuleID            string             `json:"rule_id" yaml:"rule_id"`
	Name              string             `json:"name" yaml:"name"`
	Description       string             `json:"description" yaml:"description"`
	ApprovalLevel     ApprovalLevel      `json:"approval_level" yaml:"approval_level"`
	RequiredApprovers []string           `json:"required_approvers" yaml:"required_approvers"`
	Conditions        ApprovalConditions `json:"conditions" yaml:"conditions"`
	Escalation        Escalation         `json:"escalation_rules" yaml:"escalation_rules"`
	IsActive          bool               `json:"is_active" yaml:"is_active"`
}

// ID returns the rule identifier.
func (r *ApprovalRule) ID() string { return r.RuleID }

// Kind returns KindApproval.
func (r *ApprovalRule) Kind() RuleKind { return KindApproval }

// Active reports whether the rule is consulted.
func (r *ApprovalRule) Active() bool { return r.IsActive }

// SetActive toggles the rule.
func (r *ApprovalRule) SetActive(active bool) { r.IsActive = active }

// Validate checks the rule schema.
func (r *ApprovalRule) Validate() error {
	if strings.TrimSpace(r.RuleID) == "" {
		return fmt.Errorf("%w: approval rule id is required", ErrInvalidRule)
	}
	if !r.ApprovalLevel.Valid() {
		return fmt.Errorf("%w: rule %s: unknown approval level %q", ErrInvalidRule, r.RuleID, r.ApprovalLevel)
	}
	c := r.Conditions
	if c.MinAmount != nil && c.MaxAmount != nil && c.MinAmount.GreaterThan(*c.MaxAmount) {
		return fmt.Errorf("%w: rule %s: min_amount greater than max_amount", ErrInvalidRule, r.RuleID)
	}
	if r.Escalation.TimeoutHours < 0 {
		return fmt.Errorf("%w: rule %s: negative escalation timeout", ErrInvalidRule, r.RuleID)
	}
	return nil
}

// ValidationType selects what a validation rule inspects.
type ValidationType string

// Validation types.
const (
	ValidateAmount     ValidationType = "amount"
	ValidateGLAccount  ValidationType = "gl_account"
	ValidateCompliance ValidationType = "compliance"
	ValidateCategory   ValidationType = "category"
)

// ValidationConditions parameterises a validation rule.
type ValidationConditions struct {
	MinAmount        *decimal.Decimal    `json:"min_amount,omitempty" yaml:"min_amount,omitempty"`
	MaxAmount        *decimal.Decimal    `json:"max_amount,omitempty" yaml:"max_amount,omitempty"`
	CategoryPatterns map[string][]string `json:"category_patterns,omitempty" yaml:"category_patterns,omitempty"`
	Category         string              `json:"category,omitempty" yaml:"category,omitempty"`
}

// ValidationRule checks a classified voucher before it is issued.
type ValidationRule struct {
	RuleID         string               `json:"rule_id" yaml:"rule_id"`
	Name           string               `json:"name" yaml:"name"`
	Description    string               `json:"description" yaml:"description"`
	RuleType       ValidationType       `json:"rule_type" yaml:"rule_type"`
	ErrorMessage   string               `json:"error_message" yaml:"error_message"`
	WarningMessage string               `json:"warning_message,omitempty" yaml:"warning_message,omitempty"`
	Conditions     ValidationConditions `json:"conditions" yaml:"conditions"`
	IsActive       bool                 `json:"is_active" yaml:"is_active"`
}

// ID returns the rule identifier.
func (r *ValidationRule) ID() string { return r.RuleID }

// Kind returns KindValidation.
func (r *ValidationRule) Kind() RuleKind { return KindValidation }

// Active reports whether the rule is enforced.
func (r *ValidationRule) Active() bool { return r.IsActive }

// SetActive toggles the rule.
func (r *ValidationRule) SetActive(active bool) { r.IsActive = active }

// Validate checks the rule schema.
func (r *ValidationRule) Validate() error {
	if strings.TrimSpace(r.RuleID) == "" {
		return fmt.Errorf("%w: validation rule id is required", ErrInvalidRule)
	}
	switch r.RuleType {
	case ValidateAmount, ValidateGLAccount, ValidateCompliance, ValidateCategory:
	default:
		return fmt.Errorf("%w: rule %s: unknown rule type %q", ErrInvalidRule, r.RuleID, r.RuleType)
	}
	if r.RuleType == ValidateGLAccount && len(r.Conditions.CategoryPatterns) == 0 {
		return fmt.Errorf("%w: rule %s: gl_account rule needs category_patterns", ErrInvalidRule, r.RuleID)
	}
	if r.RuleType == ValidateCategory && r.Conditions.Category == "" {
		return fmt.Errorf("%w: rule %s: category rule needs a category", ErrInvalidRule, r.RuleID)
	}
	return nil
}

// GlobalSettings are run-wide knobs stored alongside the rules.
type GlobalSettings struct {
	DefaultCurrency              string `json:"default_currency" yaml:"default_currency"`
	DefaultDepartment            string `json:"default_department" yaml:"default_department"`
	VoucherNumberPrefix          string `json:"voucher_number_prefix" yaml:"voucher_number_prefix"`
	ApprovalTimeoutHours         int    `json:"approval_timeout_hours" yaml:"approval_timeout_hours"`
	MaxRetryAttempts             int    `json:"max_retry_attempts" yaml:"max_retry_attempts"`
	DuplicateCheckDays           int    `json:"duplicate_check_days" yaml:"duplicate_check_days"`
	EnableLLMClassification      bool   `json:"enable_llm_classification" yaml:"enable_llm_classification"`
	EnableAutoApproval           bool   `json:"enable_auto_approval" yaml:"enable_auto_approval"`
	RequireBusinessJustification bool   `json:"require_business_justification" yaml:"require_business_justification"`
	EnableDuplicateCheck         bool   `json:"enable_duplicate_check" yaml:"enable_duplicate_check"`
}

// RuleSet is the complete persisted rule configuration.
type RuleSet struct {
	LastUpdated         time.Time            `json:"last_updated" yaml:"last_updated"`
	Version             string               `json:"version" yaml:"version"`
	ClassificationRules []ClassificationRule `json:"classification_rules" yaml:"classification_rules"`
	ApprovalRules       []ApprovalRule       `json:"approval_rules" yaml:"approval_rules"`
	ValidationRules     []ValidationRule     `json:"validation_rules" yaml:"validation_rules"`
	GlobalSettings      GlobalSettings       `json:"global_settings" yaml:"global_settings"`
}

// Rules returns every rule in the set in document order.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(s.ClassificationRules)+len(s.ApprovalRules)+len(s.ValidationRules))
	for i := range s.ClassificationRules {
		out = append(out, &s.ClassificationRules[i])
	}
	for i := range s.ApprovalRules {
		out = append(out, &s.ApprovalRules[i])
	}
	for i := range s.ValidationRules {
		out = append(out, &s.ValidationRules[i])
	}
	return out
}

// Validate checks every rule and rejects duplicate identifiers within a kind.
func (s *RuleSet) Validate() error {
	seen := make(map[RuleKind]map[string]bool)
	for _, r := range s.Rules() {
		if err := r.Validate(); err != nil {
			return err
		}
		ids := seen[r.Kind()]
		if ids == nil {
			ids = make(map[string]bool)
			seen[r.Kind()] = ids
		}
		if ids[r.ID()] {
			return fmt.Errorf("%w: duplicate %s rule id %s", ErrInvalidRule, r.Kind(), r.ID())
		}
		ids[r.ID()] = true
	}
	return nil
}
