package engine

import (
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
)

// Amount thresholds shared by approval, risk and compliance assessment.
var (
	ExecutiveThreshold = decimal.NewFromInt(100000)
	HighThreshold      = decimal.NewFromInt(10000)
	HighValueThreshold = decimal.NewFromInt(50000)
)

// ApprovalLevelFor picks the first active approval rule matching amount and
// category, falling back to fixed amount tiers.
func ApprovalLevelFor(approvalRules []model.ApprovalRule, amount decimal.Decimal, category string) (model.ApprovalLevel, string) {
	for _, r := range approvalRules {
		if r.IsActive && r.Conditions.Matches(amount, category) {
			return r.ApprovalLevel, r.RuleID
		}
	}
	return FallbackApprovalLevel(amount), ""
}

// FallbackApprovalLevel grades by amount alone.
func FallbackApprovalLevel(amount decimal.Decimal) model.ApprovalLevel {
	switch {
	case amount.GreaterThanOrEqual(ExecutiveThreshold):
		return model.ApprovalExecutive
	case amount.GreaterThanOrEqual(HighThreshold):
		return model.ApprovalHigh
	default:
		return model.ApprovalStandard
	}
}

var baselineRisk = map[string]model.RiskLevel{
	model.CategoryOperating:      model.RiskLow,
	model.CategoryAdministrative: model.RiskLow,
	model.CategoryCapital:        model.RiskMedium,
	model.CategoryVendor:         model.RiskMedium,
	model.CategoryPersonnel:      model.RiskHigh,
}

// RiskFor grades the exposure of a category at amount.
func RiskFor(category string, amount decimal.Decimal) model.RiskLevel {
	risk, ok := baselineRisk[category]
	if !ok {
		risk = model.RiskMedium
	}

	switch {
	case amount.GreaterThanOrEqual(ExecutiveThreshold):
		return model.RiskHigh
	case amount.GreaterThanOrEqual(HighValueThreshold):
		if risk == model.RiskLow {
			return model.RiskMedium
		}
		return model.RiskHigh
	}
	return risk
}

// ComplianceChecks lists the checks required for category at amount.
// budget_approval always comes first.
func ComplianceChecks(category string, amount decimal.Decimal) []string {
	checks := []string{model.CheckBudgetApproval}

	switch category {
	case model.CategoryCapital:
		checks = append(checks, model.CheckAssetApproval, model.CheckDepreciationSetup)
	case model.CategoryVendor:
		checks = append(checks, model.CheckVendorVerification, model.CheckContractValidation)
	case model.CategoryPersonnel:
		checks = append(checks, model.CheckHRApproval, model.CheckPayrollValidation)
	}

	if amount.GreaterThanOrEqual(HighValueThreshold) {
		checks = append(checks, model.CheckHighValueApproval)
	}
	return checks
}
