package model

// Voucher categories used by the payment voucher policy.
const (
	CategoryOperating      = "Operating"
	CategoryCapital        = "Capital"
	CategoryVendor         = "Vendor"
	CategoryPersonnel      = "Personnel"
	CategoryAdministrative = "Administrative"
	CategoryUnknown        = "Unknown"
)

// Transaction types used by the treasury receipt policy.
const (
	TypeInterest           = "Interest"
	TypePrincipalRepayment = "Principal Repayment"
)

// ApprovalLevel is the seniority of sign-off a voucher needs.
type ApprovalLevel string

// Approval levels.
const (
	ApprovalStandard  ApprovalLevel = "Standard"
	ApprovalHigh      ApprovalLevel = "High"
	ApprovalExecutive ApprovalLevel = "Executive"
)

// Valid reports whether l is a known approval level.
func (l ApprovalLevel) Valid() bool {
	switch l {
	case ApprovalStandard, ApprovalHigh, ApprovalExecutive:
		return true
	}
	return false
}

// RiskLevel grades the exposure of a voucher.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ClassificationSource indicates how a voucher was categorized.
type ClassificationSource string

// Classification sources.
const (
	SourceRule    ClassificationSource = "rule"
	SourceOracle  ClassificationSource = "oracle"
	SourceDefault ClassificationSource = "default"
)

// Compliance check identifiers.
const (
	CheckBudgetApproval       = "budget_approval"
	CheckAssetApproval        = "asset_approval"
	CheckDepreciationSetup    = "depreciation_setup"
	CheckVendorVerification   = "vendor_verification"
	CheckContractValidation   = "contract_validation"
	CheckHRApproval           = "hr_approval"
	CheckPayrollValidation    = "payroll_validation"
	CheckHighValueApproval    = "high_value_approval"
	CheckExecutiveApproval    = "executive_approval_required"
	CheckAdditionalDocs       = "additional_documentation"
	CheckPostPaymentAudit     = "post_payment_audit"
	CheckTaxCompliance        = "tax_compliance_check"
	CheckBudgetAllocation     = "budget_allocation"
	CheckBenefitVerification  = "benefit_verification"
	CheckReceiptRequired      = "receipt_required"
	CheckJustificationMissing = "business_justification"
)

// VoucherClassification is the outcome of classifying one account group.
type VoucherClassification struct {
	Category             string               `json:"category"`
	Subcategory          string               `json:"subcategory"`
	ApprovalLevel        ApprovalLevel        `json:"approval_level"`
	RiskLevel            RiskLevel            `json:"risk_level"`
	Justification        string               `json:"business_justification"`
	Reason               string               `json:"reason,omitempty"`
	RuleID               string               `json:"rule_id"`
	Source               ClassificationSource `json:"source"`
	ComplianceChecks     []string             `json:"compliance_checks"`
	RequiresApproval     bool                 `json:"requires_approval"`
	AdditionalProcessing bool                 `json:"additional_processing_required"`
}
