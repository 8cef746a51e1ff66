// Package voucher validates classified account groups and turns them into
// numbered vouchers with workflows, rendered content and run statistics.
package voucher

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/pattern"
)

// Compliance checks outside the classification vocabulary.
const (
	CheckForeignExchange      = "foreign_exchange_approval"
	CheckRegulatoryCompliance = "regulatory_compliance"
	CheckTaxWithholding       = "tax_withholding"
)

// ValidationRuleSource supplies the configured validation rules.
type ValidationRuleSource interface {
	ValidationRules(ruleType model.ValidationType) []model.ValidationRule
}

// CategoryRules are the fixed business rules of one category.
type CategoryRules struct {
	MaxAmount             decimal.Decimal
	AllowedGL             []string
	ProhibitedGL          []string
	RequiresBudgetCheck   bool
	RequiresReceipt       bool
	RequiresJustification bool
}

// Thresholds drive amount-based checks.
type Thresholds struct {
	Minimum        decimal.Decimal
	Maximum        decimal.Decimal
	VeryHigh       decimal.Decimal
	HighRiskAmount decimal.Decimal
	HighAmount     decimal.Decimal
	Executive      decimal.Decimal
	BudgetCheck    decimal.Decimal
}

// DefaultThresholds returns the built-in amount thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Minimum:        decimal.NewFromInt(0),
		Maximum:        decimal.NewFromInt(10000000),
		VeryHigh:       decimal.NewFromInt(1000000),
		HighRiskAmount: decimal.NewFromInt(50000),
		HighAmount:     decimal.NewFromInt(100000),
		Executive:      decimal.NewFromInt(500000),
		BudgetCheck:    decimal.NewFromInt(10000),
	}
}

// DefaultCategoryRules returns the per-category business rules.
func DefaultCategoryRules() map[string]CategoryRules {
	expense := []string{"6*"}
	balanceSheet := []string{"1*", "2*", "3*"}
	return map[string]CategoryRules{
		model.CategoryOperating: {
			MaxAmount:           decimal.NewFromInt(50000),
			AllowedGL:           expense,
			ProhibitedGL:        balanceSheet,
			RequiresBudgetCheck: true,
			RequiresReceipt:     true,
		},
		model.CategoryCapital: {
			MaxAmount:             decimal.NewFromInt(1000000),
			AllowedGL:             []string{"1*"},
			ProhibitedGL:          []string{"6*"},
			RequiresBudgetCheck:   true,
			RequiresReceipt:       true,
			RequiresJustification: true,
		},
		model.CategoryVendor: {
			MaxAmount:             decimal.NewFromInt(200000),
			AllowedGL:             []string{"6*", "2*"},
			ProhibitedGL:          []string{"1*", "3*"},
			RequiresBudgetCheck:   true,
			RequiresReceipt:       true,
			RequiresJustification: true,
		},
		model.CategoryPersonnel: {
			MaxAmount:             decimal.NewFromInt(500000),
			AllowedGL:             expense,
			ProhibitedGL:          balanceSheet,
			RequiresBudgetCheck:   true,
			RequiresJustification: true,
		},
		model.CategoryAdministrative: {
			MaxAmount:           decimal.NewFromInt(25000),
			AllowedGL:           expense,
			ProhibitedGL:        balanceSheet,
			RequiresBudgetCheck: true,
			RequiresReceipt:     true,
		},
	}
}

var categoryCompliance = map[string]struct {
	checks  []string
	warning string
}{
	model.CategoryVendor: {
		checks:  []string{model.CheckVendorVerification, model.CheckContractValidation, model.CheckTaxCompliance},
		warning: "Vendor payment - compliance checks required",
	},
	model.CategoryCapital: {
		checks:  []string{model.CheckAssetApproval, model.CheckDepreciationSetup, model.CheckBudgetAllocation},
		warning: "Capital expenditure - compliance checks required",
	},
	model.CategoryPersonnel: {
		checks:  []string{model.CheckHRApproval, model.CheckPayrollValidation, model.CheckBenefitVerification},
		warning: "Personnel cost - compliance checks required",
	},
}

// Input is one voucher to validate.
type Input struct {
	Amount         decimal.Decimal
	GLCode         string
	VendorID       string
	Classification model.VoucherClassification
	International  bool
}

// Result is the outcome of validating one voucher.
type Result struct {
	Errors           []string `json:"errors"`
	Warnings         []string `json:"warnings"`
	ComplianceChecks []string `json:"compliance_checks"`
	Recommendations  []string `json:"recommendations"`
	Valid            bool     `json:"is_valid"`
}

// Validator checks vouchers against amount limits, category business rules,
// configured validation rules and compliance requirements.
type Validator struct {
	rules      ValidationRuleSource
	categories map[string]CategoryRules
	thresholds Thresholds
}

// NewValidator creates a validator. rules may be nil.
func NewValidator(rules ValidationRuleSource) *Validator {
	return &Validator{
		rules:      rules,
		categories: DefaultCategoryRules(),
		thresholds: DefaultThresholds(),
	}
}

// Validate runs every check against in. Only the magnitude of the amount is
// considered, except that a zero amount is rejected.
func (v *Validator) Validate(in Input) Result {
	amount := in.Amount.Abs()
	var r Result

	v.basic(&r, amount, in.Classification)
	v.business(&r, amount, in)
	v.configured(&r, amount, in)
	v.compliance(&r, amount, in)
	v.recommend(&r, amount, in.Classification)

	r.Valid = len(r.Errors) == 0
	return r
}

func (v *Validator) basic(r *Result, amount decimal.Decimal, c model.VoucherClassification) {
	switch {
	case amount.LessThanOrEqual(v.thresholds.Minimum):
		r.Errors = append(r.Errors, "Amount must be greater than zero")
	case amount.GreaterThan(v.thresholds.Maximum):
		r.Errors = append(r.Errors, "Amount exceeds maximum allowed limit")
	case amount.GreaterThanOrEqual(v.thresholds.VeryHigh):
		r.Warnings = append(r.Warnings, "High amount - additional approval may be required")
	}

	if c.Category == model.CategoryUnknown {
		r.Errors = append(r.Errors, "Transaction category could not be determined")
	}
	if c.RiskLevel == model.RiskHigh && amount.GreaterThanOrEqual(v.thresholds.HighRiskAmount) {
		r.Warnings = append(r.Warnings, "High-risk transaction with significant amount")
	}
}

func (v *Validator) business(r *Result, amount decimal.Decimal, in Input) {
	category := in.Classification.Category
	rules, ok := v.categories[category]
	if !ok {
		return
	}

	if amount.GreaterThan(rules.MaxAmount) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("Amount $%s exceeds maximum for %s category ($%s)",
			amount.StringFixed(2), category, rules.MaxAmount.StringFixed(2)))
	}

	if in.GLCode != "" {
		if pattern.MatchAnyGL(rules.ProhibitedGL, in.GLCode) {
			r.Errors = append(r.Errors, fmt.Sprintf("GL Account %s prohibited for %s category", in.GLCode, category))
		} else if len(rules.AllowedGL) > 0 && !pattern.MatchAnyGL(rules.AllowedGL, in.GLCode) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("GL Account %s not allowed for %s category", in.GLCode, category))
		}
	}

	if rules.RequiresBudgetCheck && amount.GreaterThanOrEqual(v.thresholds.BudgetCheck) {
		r.Warnings = append(r.Warnings, "Budget availability check required")
	}
	if rules.RequiresReceipt {
		r.Warnings = append(r.Warnings, "Receipt documentation required")
		r.ComplianceChecks = appendUnique(r.ComplianceChecks, model.CheckReceiptRequired)
	}
	if rules.RequiresJustification {
		r.Warnings = append(r.Warnings, "Business justification required")
		if strings.TrimSpace(in.Classification.Justification) == "" {
			r.ComplianceChecks = appendUnique(r.ComplianceChecks, model.CheckJustificationMissing)
		}
	}
}

func (v *Validator) configured(r *Result, amount decimal.Decimal, in Input) {
	if v.rules == nil {
		return
	}
	c := in.Classification

	for _, rule := range v.rules.ValidationRules("") {
		cond := rule.Conditions
		switch rule.RuleType {
		case model.ValidateAmount:
			if (cond.MinAmount != nil && amount.LessThan(*cond.MinAmount)) ||
				(cond.MaxAmount != nil && amount.GreaterThan(*cond.MaxAmount)) {
				r.Errors = append(r.Errors, ruleMessage(rule.ErrorMessage, rule))
			}
		case model.ValidateGLAccount:
			if in.GLCode == "" {
				continue
			}
			if err := pattern.NewGLCategoryValidator(cond.CategoryPatterns).Validate(c.Category, in.GLCode); err != nil {
				if rule.WarningMessage != "" {
					r.Warnings = append(r.Warnings, rule.WarningMessage)
				} else {
					r.Errors = append(r.Errors, ruleMessage(rule.ErrorMessage, rule))
				}
			}
		case model.ValidateCompliance:
			if cond.MinAmount == nil || amount.GreaterThanOrEqual(*cond.MinAmount) {
				r.Warnings = append(r.Warnings, ruleMessage(rule.WarningMessage, rule))
			}
		case model.ValidateCategory:
			if c.Category != cond.Category {
				continue
			}
			if cond.MinAmount == nil || amount.GreaterThanOrEqual(*cond.MinAmount) {
				r.Warnings = append(r.Warnings, ruleMessage(rule.WarningMessage, rule))
			}
		}
	}
}

func (v *Validator) compliance(r *Result, amount decimal.Decimal, in Input) {
	if amount.GreaterThanOrEqual(v.thresholds.HighAmount) {
		r.ComplianceChecks = appendUnique(r.ComplianceChecks,
			model.CheckExecutiveApproval, model.CheckAdditionalDocs, model.CheckPostPaymentAudit)
		r.Warnings = append(r.Warnings, "High amount - additional compliance checks required")
	}

	if cc, ok := categoryCompliance[in.Classification.Category]; ok {
		r.ComplianceChecks = appendUnique(r.ComplianceChecks, cc.checks...)
		r.Warnings = append(r.Warnings, cc.warning)
	}

	if in.International {
		r.ComplianceChecks = appendUnique(r.ComplianceChecks,
			CheckForeignExchange, CheckRegulatoryCompliance, CheckTaxWithholding)
		r.Warnings = append(r.Warnings, "International payment - additional compliance required")
	}
	if in.VendorID != "" {
		r.Warnings = append(r.Warnings, "Verify no duplicate payments to same vendor")
	}
}

func (v *Validator) recommend(r *Result, amount decimal.Decimal, c model.VoucherClassification) {
	add := func(s string) { r.Recommendations = append(r.Recommendations, s) }

	if amount.GreaterThanOrEqual(v.thresholds.HighAmount) {
		add("Consider breaking into smaller payments for better control")
	}
	if amount.GreaterThanOrEqual(v.thresholds.Executive) {
		add("Executive approval recommended for amounts over $500K")
	}

	switch c.Category {
	case model.CategoryCapital:
		add("Ensure asset tracking and depreciation setup")
	case model.CategoryVendor:
		add("Verify vendor credentials and contract terms")
	case model.CategoryPersonnel:
		add("Coordinate with HR for payroll integration")
	}

	if c.RiskLevel == model.RiskHigh {
		add("Enhanced documentation and approval process recommended")
	}
	if containsFold(r.Errors, "GL Account") || containsFold(r.Warnings, "GL Account") {
		add("Review GL account mapping with Finance team")
	}
	if containsFold(r.Warnings, "budget") {
		add("Verify budget availability before processing")
	}
}

// ValidationSummary aggregates a batch of validation results.
type ValidationSummary struct {
	ValidationRate            string  `json:"validation_rate"`
	TotalVouchers             int     `json:"total_vouchers"`
	ValidVouchers             int     `json:"valid_vouchers"`
	InvalidVouchers           int     `json:"invalid_vouchers"`
	TotalErrors               int     `json:"total_errors"`
	TotalWarnings             int     `json:"total_warnings"`
	AverageErrorsPerVoucher   float64 `json:"average_errors_per_voucher"`
	AverageWarningsPerVoucher float64 `json:"average_warnings_per_voucher"`
}

// Summarize aggregates results.
func Summarize(results []Result) ValidationSummary {
	s := ValidationSummary{TotalVouchers: len(results), ValidationRate: "0%"}
	for _, r := range results {
		if r.Valid {
			s.ValidVouchers++
		}
		s.TotalErrors += len(r.Errors)
		s.TotalWarnings += len(r.Warnings)
	}
	s.InvalidVouchers = s.TotalVouchers - s.ValidVouchers

	if s.TotalVouchers > 0 {
		n := float64(s.TotalVouchers)
		s.ValidationRate = fmt.Sprintf("%.1f%%", float64(s.ValidVouchers)/n*100)
		s.AverageErrorsPerVoucher = float64(s.TotalErrors) / n
		s.AverageWarningsPerVoucher = float64(s.TotalWarnings) / n
	}
	return s
}

func ruleMessage(msg string, rule model.ValidationRule) string {
	if msg != "" {
		return msg
	}
	return fmt.Sprintf("Validation rule %s failed", rule.RuleID)
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}

func containsFold(list []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, s := range list {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
