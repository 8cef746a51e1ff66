package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
)

// Markdown renders doc as a Markdown document.
func Markdown(doc Document, tmpl Template, now time.Time) string {
	var b strings.Builder
	c := doc.Classification
	d := doc.Descriptions
	amount, entry := FormatMoney(doc.Net, doc.Currency)

	fmt.Fprintf(&b, "# %s %s\n\n", titleCase(tmpl.Header), doc.VoucherNumber)
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	rows := [][2]string{
		{"Creation Date", doc.CreatedDate.Format("2006-01-02")},
		{"Created By", doc.CreatedBy},
		{"Department", doc.Department},
		{"Entity", d.Entity},
		{"Cost Center", d.CostCenter},
		{"GL Account", d.GLAccount},
		{"Budget Group", d.BudgetGroup},
		{"Amount", fmt.Sprintf("%s (%s)", amount, entry)},
		{"Category", c.Category},
		{"Subcategory", c.Subcategory},
		{"Risk Level", string(c.RiskLevel)},
		{"Approval Level", string(c.ApprovalLevel)},
		{"Requires Approval", yesNo(c.RequiresApproval)},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", r[0], escapeCell(r[1]))
	}

	if c.Justification != "" {
		fmt.Fprintf(&b, "\n> %s\n", c.Justification)
	}

	if tmpl.IncludeCompliance && len(c.ComplianceChecks) > 0 {
		b.WriteString("\n## Compliance Checks\n\n")
		for _, check := range c.ComplianceChecks {
			fmt.Fprintf(&b, "- [ ] %s\n", CheckTitle(check))
		}
	}

	if tmpl.IncludeWorkflow {
		b.WriteString("\n## Approval Workflow\n\n")
		for _, s := range workflowLines(doc) {
			fmt.Fprintf(&b, "%s\n", s)
		}
	}

	if tmpl.IncludeRisk {
		b.WriteString("\n## Risk Assessment\n\n")
		for _, s := range riskLines(c, doc.Net.Abs())[1:] {
			if strings.HasPrefix(s, "- ") {
				fmt.Fprintf(&b, "  %s\n", s)
				continue
			}
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	fmt.Fprintf(&b, "\n---\n*Generated on %s by %s*\n", now.Format("2006-01-02 15:04:05"), SystemName)
	return b.String()
}

// RenderTerminal styles Markdown for the terminal with glamour.
func RenderTerminal(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
