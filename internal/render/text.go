// Package render turns classified voucher groups into documents: plain-text
// payment vouchers and treasury receipts, Markdown and CSV.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/treasury-vouchers/internal/model"
)

// SystemName is printed in document footers.
const SystemName = "Payment Voucher Creation Agent"

// Template controls the layout of a payment voucher.
type Template struct {
	Name              string
	Header            string
	Separator         string
	IncludeCompliance bool
	IncludeWorkflow   bool
	IncludeRisk       bool
}

// Built-in template names.
const (
	TemplateStandard  = "standard"
	TemplateExecutive = "executive"
	TemplateSimple    = "simple"
)

var templates = map[string]Template{
	TemplateStandard: {
		Name:              TemplateStandard,
		Header:            "PAYMENT VOUCHER",
		Separator:         strings.Repeat("=", 50),
		IncludeCompliance: true,
		IncludeWorkflow:   true,
	},
	TemplateExecutive: {
		Name:              TemplateExecutive,
		Header:            "EXECUTIVE PAYMENT VOUCHER",
		Separator:         strings.Repeat("=", 60),
		IncludeCompliance: true,
		IncludeWorkflow:   true,
		IncludeRisk:       true,
	},
	TemplateSimple: {
		Name:      TemplateSimple,
		Header:    "PAYMENT VOUCHER",
		Separator: strings.Repeat("-", 30),
	},
}

// TemplateFor returns the named template. An empty name is standard.
func TemplateFor(name string) (Template, error) {
	if name == "" {
		name = TemplateStandard
	}
	t, ok := templates[strings.ToLower(name)]
	if !ok {
		return Template{}, fmt.Errorf("unknown voucher template %q", name)
	}
	return t, nil
}

// Document is everything needed to render one voucher group.
type Document struct {
	CreatedDate    time.Time
	Net            decimal.Decimal
	Workflow       *model.ApprovalWorkflow
	VoucherNumber  string
	CreatedBy      string
	Department     string
	Currency       string
	Descriptions   model.AccountDescriptions
	Classification model.VoucherClassification
}

// PaymentVoucher renders doc with tmpl. now stamps the footer.
func PaymentVoucher(doc Document, tmpl Template, now time.Time) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("%s", tmpl.Header)
	line("%s", tmpl.Separator)

	line("VOUCHER INFORMATION:")
	line("Voucher Number: %s", doc.VoucherNumber)
	line("Creation Date: %s", doc.CreatedDate.Format("2006-01-02"))
	line("Created By: %s", doc.CreatedBy)
	line("Department: %s", doc.Department)
	line("")

	d := doc.Descriptions
	line("ACCOUNT DETAILS:")
	line("Entity: %s", d.Entity)
	line("Cost Center: %s", d.CostCenter)
	line("GL Account: %s", d.GLAccount)
	line("Budget Group: %s", d.BudgetGroup)
	if d.Future1 != "" {
		line("Future 1: %s", d.Future1)
	}
	if d.Future2 != "" {
		line("Future 2: %s", d.Future2)
	}
	line("")

	c := doc.Classification
	amount, entry := FormatMoney(doc.Net, doc.Currency)
	line("PAYMENT DETAILS:")
	line("Amount: %s (%s)", amount, entry)
	line("Currency: %s", currencyOrDefault(doc.Currency))
	line("Payment Method: To be determined")
	line("Category: %s", c.Category)
	line("Subcategory: %s", c.Subcategory)
	line("")

	line("CLASSIFICATION DETAILS:")
	line("Category: %s", c.Category)
	line("Subcategory: %s", c.Subcategory)
	line("Risk Level: %s", c.RiskLevel)
	line("Approval Level: %s", c.ApprovalLevel)
	line("Requires Approval: %s", yesNo(c.RequiresApproval))
	line("Business Justification: %s", c.Justification)
	line("")

	if tmpl.IncludeCompliance {
		line("REQUIRED COMPLIANCE CHECKS:")
		for i, check := range c.ComplianceChecks {
			line("%d. %s", i+1, CheckTitle(check))
		}
		line("")
	}

	if tmpl.IncludeWorkflow {
		line("APPROVAL WORKFLOW:")
		for _, s := range workflowLines(doc) {
			line("%s", s)
		}
		line("")
	}

	if tmpl.IncludeRisk {
		for _, s := range riskLines(c, doc.Net.Abs()) {
			line("%s", s)
		}
		line("")
	}

	line("")
	line("%s", strings.Repeat("=", 50))
	line("Generated on: %s", now.Format("2006-01-02 15:04:05"))
	b.WriteString("System: " + SystemName)
	return b.String()
}

// TreasuryReceipt renders the compact treasury receipt block.
func TreasuryReceipt(doc Document) string {
	d := doc.Descriptions
	c := doc.Classification
	amount, entry := FormatPlain(doc.Net)

	lines := []string{
		"TREASURY RECEIPT",
		"================",
		fmt.Sprintf("Account: %s - %s - %s - %s", d.Entity, d.CostCenter, d.GLAccount, d.BudgetGroup),
		fmt.Sprintf("Amount: %s (%s)", amount, entry),
		fmt.Sprintf("Transaction Type: %s", c.Category),
		fmt.Sprintf("Additional Processing Required: %s", yesNo(c.AdditionalProcessing)),
	}
	if c.Reason != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", c.Reason))
	}
	return strings.Join(lines, "\n")
}

// Batch joins rendered vouchers under a batch header.
func Batch(contents []string, now time.Time) string {
	sep := strings.Repeat("=", 50)
	lines := []string{
		"BATCH PAYMENT VOUCHERS",
		sep,
		"Batch Date: " + now.Format("2006-01-02"),
		fmt.Sprintf("Total Vouchers: %d", len(contents)),
		"",
	}
	for i, content := range contents {
		lines = append(lines,
			fmt.Sprintf("VOUCHER %d of %d", i+1, len(contents)),
			strings.Repeat("-", 30),
			content,
			"",
			sep,
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// UnbalancedWarning describes a batch whose debits and credits differ, or
// returns "" when they balance within tolerance.
func UnbalancedWarning(debits, credits decimal.Decimal, tolerance decimal.Decimal) string {
	diff := debits.Sub(credits).Abs()
	if diff.LessThan(tolerance) {
		return ""
	}
	d, _ := FormatPlain(debits)
	c, _ := FormatPlain(credits)
	x, _ := FormatPlain(diff)
	return fmt.Sprintf("WARNING: Transactions are not balanced (Debits: %s, Credits: %s, Difference: %s)", d, c, x)
}

// CheckTitle turns a compliance check identifier into a title.
func CheckTitle(check string) string {
	words := strings.Split(check, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

var levelSteps = map[model.ApprovalLevel][]string{
	model.ApprovalStandard: {
		"1. Department Head Approval",
		"2. Finance Processing",
	},
	model.ApprovalHigh: {
		"1. Department Head Approval",
		"2. Finance Director Approval",
		"3. Finance Processing",
	},
	model.ApprovalExecutive: {
		"1. Department Head Approval",
		"2. Finance Director Approval",
		"3. Executive Approval",
		"4. Finance Processing",
	},
}

func workflowLines(doc Document) []string {
	if wf := doc.Workflow; wf != nil && len(wf.Steps) > 0 {
		out := []string{"Workflow ID: " + wf.WorkflowID}
		for i, s := range wf.Steps {
			entry := fmt.Sprintf("%d. %s [%s]", i+1, s.Role, s.Status)
			if s.DueDate != nil {
				entry += " due " + s.DueDate.Format("2006-01-02 15:04")
			}
			out = append(out, entry)
		}
		return out
	}
	if steps, ok := levelSteps[doc.Classification.ApprovalLevel]; ok {
		return steps
	}
	return []string{"Manual Review Required"}
}

func riskLines(c model.VoucherClassification, amount decimal.Decimal) []string {
	amountRisk := model.RiskLow
	switch {
	case amount.GreaterThanOrEqual(decimal.NewFromInt(100000)):
		amountRisk = model.RiskHigh
	case amount.GreaterThanOrEqual(decimal.NewFromInt(10000)):
		amountRisk = model.RiskMedium
	}

	lines := []string{
		"RISK ASSESSMENT:",
		"Risk Level: " + string(c.RiskLevel),
		"Amount Risk: " + string(amountRisk),
		"Category Risk: " + string(c.RiskLevel),
	}
	if c.RiskLevel == model.RiskHigh || amountRisk == model.RiskHigh {
		lines = append(lines,
			"Risk Mitigation:",
			"- Additional documentation required",
			"- Enhanced approval process",
			"- Post-payment audit recommended",
		)
	}
	return lines
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
