// Package rules manages the business rule configuration: classification,
// approval and validation rules plus global settings.
package rules

import (
	"time"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
)

// DefaultVersion is the version stamped on freshly generated rule sets.
const DefaultVersion = "1.0.0"

// DefaultCreatedBy is the author recorded on built-in rules.
const DefaultCreatedBy = "System"

// defaultDate is the fixed creation date of built-in rules.
var defaultDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// StandardRange is the amount window used by built-in classification rules.
func StandardRange() []model.AmountRange {
	return []model.AmountRange{{Min: decimal.NewFromInt(0), Max: decimal.NewFromInt(1000000)}}
}

func dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func classification(id, name, desc, category, sub string, priority int, keywords, gl []string) model.ClassificationRule {
	return model.ClassificationRule{
		RuleID:            id,
		Name:              name,
		Description:       desc,
		Keywords:          keywords,
		GLAccountPatterns: gl,
		AmountRanges:      StandardRange(),
		Category:          category,
		Subcategory:       sub,
		Priority:          priority,
		IsActive:          true,
		CreatedBy:         DefaultCreatedBy,
		CreatedDate:       defaultDate,
		LastModified:      defaultDate,
	}
}

// DefaultClassificationRules returns the payment voucher classification rules.
func DefaultClassificationRules() []model.ClassificationRule {
	return []model.ClassificationRule{
		classification("OP-001", "Office Supplies", "Office supplies and stationery",
			model.CategoryOperating, "Office Supplies", 100,
			[]string{"office supplies", "stationery", "pens", "paper", "notebooks", "staplers"},
			[]string{"6*", "601*", "602*"}),
		classification("OP-002", "Utilities", "Utility payments",
			model.CategoryOperating, "Utilities", 100,
			[]string{"utilities", "electricity", "water", "gas", "internet", "phone", "telecommunications"},
			[]string{"6*", "603*"}),
		classification("OP-003", "Travel Expenses", "Business travel and transportation",
			model.CategoryOperating, "Travel", 100,
			[]string{"travel", "transportation", "accommodation", "meals", "hotel", "flight", "taxi"},
			[]string{"6*", "604*"}),
		classification("CAP-001", "IT Equipment", "Computer and IT equipment",
			model.CategoryCapital, "IT Equipment", 100,
			[]string{"computer", "laptop", "desktop", "server", "software", "hardware", "printer", "monitor"},
			[]string{"1*", "11*", "12*"}),
		classification("CAP-002", "Office Furniture", "Office furniture and fixtures",
			model.CategoryCapital, "Office Furniture", 100,
			[]string{"furniture", "desk", "chair", "cabinet", "shelf", "table", "filing cabinet"},
			[]string{"1*", "13*"}),
		classification("VEN-001", "Service Providers", "External service providers and contractors",
			model.CategoryVendor, "Service Provider", 100,
			[]string{"vendor", "supplier", "contractor", "service provider", "consultant", "outsourcing"},
			[]string{"6*", "2*"}),
		classification("PER-001", "Employee Compensation", "Employee salaries and benefits",
			model.CategoryPersonnel, "Employee Compensation", 100,
			[]string{"salary", "wages", "compensation", "benefits", "payroll", "bonus", "incentive"},
			[]string{"6*", "61*"}),
		classification("ADM-001", "General Administrative", "General administrative expenses",
			model.CategoryAdministrative, "General Administrative", 50,
			[]string{"administrative", "general", "overhead", "management", "governance"},
			[]string{"6*", "69*"}),
	}
}

// DefaultApprovalRules returns the built-in approval tiers in evaluation order.
func DefaultApprovalRules() []model.ApprovalRule {
	return []model.ApprovalRule{
		{
			RuleID:      "APP-001",
			Name:        "Standard Approval",
			Description: "Standard approval for amounts under $10,000",
			Conditions: model.ApprovalConditions{
				MaxAmount:  dec(10000),
				Categories: []string{model.CategoryOperating, model.CategoryAdministrative},
			},
			ApprovalLevel:     model.ApprovalStandard,
			RequiredApprovers: []string{"Department Head", "Finance Processor"},
			Escalation:        model.Escalation{TimeoutHours: 48, EscalateTo: "Finance Director"},
			IsActive:          true,
		},
		{
			RuleID:      "APP-002",
			Name:        "High Value Approval",
			Description: "High approval for amounts $10,000 - $100,000",
			Conditions: model.ApprovalConditions{
				MinAmount: dec(10000),
				MaxAmount: dec(100000),
			},
			ApprovalLevel:     model.ApprovalHigh,
			RequiredApprovers: []string{"Department Head", "Finance Director", "Finance Processor"},
			Escalation:        model.Escalation{TimeoutHours: 72, EscalateTo: "Executive"},
			IsActive:          true,
		},
		{
			RuleID:            "APP-003",
			Name:              "Executive Approval",
			Description:       "Executive approval for amounts over $100,000",
			Conditions:        model.ApprovalConditions{MinAmount: dec(100000)},
			ApprovalLevel:     model.ApprovalExecutive,
			RequiredApprovers: []string{"Department Head", "Finance Director", "Executive", "Finance Processor"},
			Escalation:        model.Escalation{TimeoutHours: 96, EscalateTo: "CEO"},
			IsActive:          true,
		},
		{
			RuleID:      "APP-004",
			Name:        "Capital Expenditure Approval",
			Description: "Special approval for capital expenditures",
			Conditions: model.ApprovalConditions{
				MinAmount:  dec(5000),
				Categories: []string{model.CategoryCapital},
			},
			ApprovalLevel:     model.ApprovalHigh,
			RequiredApprovers: []string{"Department Head", "Asset Manager", "Finance Director", "Finance Processor"},
			Escalation:        model.Escalation{TimeoutHours: 72, EscalateTo: "Executive"},
			IsActive:          true,
		},
		{
			RuleID:      "APP-005",
			Name:        "Vendor Payment Approval",
			Description: "Special approval for vendor payments",
			Conditions: model.ApprovalConditions{
				MinAmount:  dec(10000),
				Categories: []string{model.CategoryVendor},
			},
			ApprovalLevel:     model.ApprovalHigh,
			RequiredApprovers: []string{"Department Head", "Procurement Manager", "Finance Director", "Finance Processor"},
			Escalation:        model.Escalation{TimeoutHours: 72, EscalateTo: "Executive"},
			IsActive:          true,
		},
	}
}

// DefaultValidationRules returns the built-in voucher validation rules.
func DefaultValidationRules() []model.ValidationRule {
	return []model.ValidationRule{
		{
			RuleID:       "VAL-001",
			Name:         "Amount Validation",
			Description:  "Validate amount is positive and within limits",
			RuleType:     model.ValidateAmount,
			Conditions:   model.ValidationConditions{MinAmount: dec(0.01), MaxAmount: dec(10000000)},
			ErrorMessage: "Amount must be between $0.01 and $10,000,000",
			IsActive:     true,
		},
		{
			RuleID:      "VAL-002",
			Name:        "GL Account Category Match",
			Description: "Validate GL account matches transaction category",
			RuleType:    model.ValidateGLAccount,
			Conditions: model.ValidationConditions{
				CategoryPatterns: map[string][]string{
					model.CategoryOperating:      {"6*"},
					model.CategoryCapital:        {"1*"},
					model.CategoryVendor:         {"6*", "2*"},
					model.CategoryPersonnel:      {"6*"},
					model.CategoryAdministrative: {"6*"},
				},
			},
			ErrorMessage:   "GL account does not match transaction category",
			WarningMessage: "GL account category mismatch - please verify",
			IsActive:       true,
		},
		{
			RuleID:         "VAL-003",
			Name:           "High Amount Documentation",
			Description:    "Require additional documentation for high amounts",
			RuleType:       model.ValidateCompliance,
			Conditions:     model.ValidationConditions{MinAmount: dec(50000)},
			WarningMessage: "High amount transaction - additional documentation required",
			IsActive:       true,
		},
		{
			RuleID:         "VAL-004",
			Name:           "Capital Expenditure Validation",
			Description:    "Validate capital expenditure requirements",
			RuleType:       model.ValidateCategory,
			Conditions:     model.ValidationConditions{Category: model.CategoryCapital, MinAmount: dec(1000)},
			ErrorMessage:   "Capital expenditures require asset approval and depreciation setup",
			WarningMessage: "Ensure asset tracking is configured",
			IsActive:       true,
		},
	}
}

// DefaultSettings returns the built-in global settings.
func DefaultSettings() model.GlobalSettings {
	return model.GlobalSettings{
		DefaultCurrency:              "USD",
		DefaultDepartment:            "Finance",
		VoucherNumberPrefix:          "PV",
		ApprovalTimeoutHours:         72,
		MaxRetryAttempts:             3,
		EnableLLMClassification:      true,
		EnableAutoApproval:           false,
		RequireBusinessJustification: true,
		EnableDuplicateCheck:         true,
		DuplicateCheckDays:           30,
	}
}

// DefaultRuleSet returns the complete built-in payment voucher configuration.
func DefaultRuleSet() *model.RuleSet {
	return &model.RuleSet{
		Version:             DefaultVersion,
		LastUpdated:         defaultDate,
		ClassificationRules: DefaultClassificationRules(),
		ApprovalRules:       DefaultApprovalRules(),
		ValidationRules:     DefaultValidationRules(),
		GlobalSettings:      DefaultSettings(),
	}
}

// TreasuryRuleSet returns the interest/principal rules used for treasury receipts.
// Treasury receipts carry no approval tiers of their own.
func TreasuryRuleSet() *model.RuleSet {
	settings := DefaultSettings()
	settings.VoucherNumberPrefix = "TR"
	settings.EnableLLMClassification = false

	return &model.RuleSet{
		Version:     DefaultVersion,
		LastUpdated: defaultDate,
		ClassificationRules: []model.ClassificationRule{
			{
				RuleID:       "INT-001",
				Name:         "Interest Receipts",
				Description:  "Interest, coupon and yield receipts",
				Keywords:     []string{"interest", "coupon", "yield"},
				Category:     model.TypeInterest,
				Subcategory:  "Interest Income",
				Priority:     100,
				IsActive:     true,
				CreatedBy:    DefaultCreatedBy,
				CreatedDate:  defaultDate,
				LastModified: defaultDate,
			},
			{
				RuleID:       "PRN-001",
				Name:         "Principal Repayments",
				Description:  "Loan principal repayments and amortization",
				Keywords:     []string{"principal", "loan repayment", "amortization", "capital repayment"},
				Category:     model.TypePrincipalRepayment,
				Subcategory:  "Loan Principal",
				Priority:     100,
				IsActive:     true,
				CreatedBy:    DefaultCreatedBy,
				CreatedDate:  defaultDate,
				LastModified: defaultDate,
			},
		},
		GlobalSettings: settings,
	}
}
