package engine

import (
	"fmt"
	"strings"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/rules"
)

// DefaultRuleID identifies the fallback rule applied when nothing matches.
const DefaultRuleID = "DEFAULT"

// Mode names a classification policy.
type Mode string

// Supported policies.
const (
	ModePaymentVoucher Mode = "payment_voucher"
	ModeTreasury       Mode = "treasury_receipt"
)

// Policy fixes the label vocabulary, the fallback rule and how a final
// classification decides on extra processing.
//
// With RequireKeywordHit unset, any amount-eligible rule can win with score 0
// and the default rule applies only when no rule accepts the amount. With it
// set, a rule needs a keyword hit (or no keywords at all) to be chosen.
type Policy struct {
	finalize          func(*model.VoucherClassification)
	Mode              Mode
	Vocabulary        []string
	DefaultRule       model.ClassificationRule
	RequireKeywordHit bool
}

// PaymentVoucherPolicy is the multi-category payment voucher policy.
func PaymentVoucherPolicy() Policy {
	return Policy{
		Mode: ModePaymentVoucher,
		Vocabulary: []string{
			model.CategoryOperating,
			model.CategoryCapital,
			model.CategoryVendor,
			model.CategoryPersonnel,
			model.CategoryAdministrative,
		},
		DefaultRule: model.ClassificationRule{
			RuleID:       DefaultRuleID,
			Name:         "Default Classification",
			Description:  "Applied when no rule matches",
			Category:     model.CategoryAdministrative,
			Subcategory:  "General Administrative",
			Priority:     1,
			AmountRanges: rules.StandardRange(),
			IsActive:     true,
			CreatedBy:    rules.DefaultCreatedBy,
		},
		finalize: func(c *model.VoucherClassification) {
			c.RequiresApproval = c.ApprovalLevel != model.ApprovalStandard
			c.AdditionalProcessing = c.RequiresApproval
		},
	}
}

// TreasuryPolicy is the interest/principal treasury receipt policy.
func TreasuryPolicy() Policy {
	return Policy{
		Mode:              ModeTreasury,
		Vocabulary:        []string{model.TypeInterest, model.TypePrincipalRepayment, model.CategoryUnknown},
		RequireKeywordHit: true,
		DefaultRule: model.ClassificationRule{
			RuleID:      DefaultRuleID,
			Name:        "Manual Review",
			Description: "Applied when no rule matches",
			Category:    model.CategoryUnknown,
			Subcategory: "Manual Review",
			IsActive:    true,
			CreatedBy:   rules.DefaultCreatedBy,
		},
		finalize: func(c *model.VoucherClassification) {
			switch c.Category {
			case model.TypeInterest:
				c.AdditionalProcessing = false
				c.Reason = "Interest receipts are final; direct TR creation"
			case model.TypePrincipalRepayment:
				c.AdditionalProcessing = true
				c.Reason = "Principal reduces asset balance; reflect on assets side"
			default:
				c.AdditionalProcessing = true
				c.Reason = "Unclear classification; flag for manual review"
			}
			c.RequiresApproval = c.AdditionalProcessing
		},
	}
}

// PolicyFor returns the policy registered for mode.
func PolicyFor(mode string) (Policy, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case ModePaymentVoucher, "":
		return PaymentVoucherPolicy(), nil
	case ModeTreasury, "treasury":
		return TreasuryPolicy(), nil
	default:
		return Policy{}, fmt.Errorf("unknown processing mode %q", mode)
	}
}

// InVocabulary reports whether label is one of the policy's labels.
func (p Policy) InVocabulary(label string) bool {
	for _, v := range p.Vocabulary {
		if v == label {
			return true
		}
	}
	return false
}
