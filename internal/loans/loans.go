// Package loans converts foreign loan revenue statements into a balanced
// funding voucher: one debit to the funding account and one credit per country.
package loans

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/ledger"
	"github.com/Veraticus/treasury-vouchers/internal/render"
)

// Column headers and markers of the revenue statement.
const (
	ColumnProject   = "Project no"
	ColumnCountry   = "Country Name"
	ColumnStatement = "Statement of Shares"
	ColumnTotal     = "Total"

	TotalMarker    = "Total"
	FundingAccount = "Funding- Foreign Loans"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Record is one "Total" row of the statement.
type Record struct {
	Total   decimal.Decimal
	Project string
	Country string
}

// Group is the summed total of one project and country.
type Group struct {
	Total   decimal.Decimal
	Project string
	Country string
}

// Entry is one voucher line. Exactly one of Debit and Credit is set.
type Entry struct {
	Debit       *decimal.Decimal
	Credit      *decimal.Decimal
	Account     string
	Description string
}

// Voucher is the generated funding voucher.
type Voucher struct {
	Generated   time.Time
	Records     []Record
	Groups      []Group
	Entries     []Entry
	Description string
}

// Totals sums the debit and credit sides.
func (v *Voucher) Totals() (debits, credits decimal.Decimal) {
	debits, credits = decimal.NewFromInt(0), decimal.NewFromInt(0)
	for _, e := range v.Entries {
		if e.Debit != nil {
			debits = debits.Add(*e.Debit)
		}
		if e.Credit != nil {
			credits = credits.Add(*e.Credit)
		}
	}
	return debits, credits
}

// Balanced reports whether debits and credits agree within tolerance.
func (v *Voucher) Balanced() bool {
	return ledger.IsBalanced(v.Totals())
}

// Countries lists the group countries in order.
func (v *Voucher) Countries() []string {
	out := make([]string, len(v.Groups))
	for i, g := range v.Groups {
		out[i] = g.Country
	}
	return out
}

// Projects lists the group project numbers in order.
func (v *Voucher) Projects() []string {
	out := make([]string, len(v.Groups))
	for i, g := range v.Groups {
		out[i] = g.Project
	}
	return out
}

// ReadRecords reads the statement and keeps the rows marked "Total".
// Rows with an unreadable amount are skipped with a warning.
func ReadRecords(r io.Reader, logger *slog.Logger) ([]Record, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range []string{ColumnProject, ColumnCountry, ColumnStatement, ColumnTotal} {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		field := func(name string) string {
			i := columns[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		if field(ColumnStatement) != TotalMarker {
			continue
		}
		total, err := ledger.ParseAmount(field(ColumnTotal))
		if err != nil {
			logger.Warn("skipping loan row with invalid total", "line", line, "error", err)
			continue
		}
		records = append(records, Record{
			Project: field(ColumnProject),
			Country: field(ColumnCountry),
			Total:   total,
		})
	}

	logger.Info("loaded loan records", "count", len(records))
	return records, nil
}

// GroupRecords sums records by project and country in first-seen order.
func GroupRecords(records []Record) []Group {
	type key struct{ project, country string }
	index := make(map[key]int)
	var groups []Group

	for _, r := range records {
		k := key{r.Project, r.Country}
		i, ok := index[k]
		if !ok {
			groups = append(groups, Group{Project: r.Project, Country: r.Country, Total: decimal.NewFromInt(0)})
			i = len(groups) - 1
			index[k] = i
		}
		groups[i].Total = groups[i].Total.Add(r.Total)
	}
	return groups
}

// Build creates the funding voucher for records.
func Build(records []Record, now time.Time) (*Voucher, error) {
	groups := GroupRecords(records)
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no loan totals found", common.ErrNoTransactions)
	}

	parts := make([]string, len(groups))
	funding := decimal.NewFromInt(0)
	for i, g := range groups {
		parts[i] = fmt.Sprintf("%s Loan %s", g.Country, g.Project)
		funding = funding.Add(g.Total)
	}
	description := fmt.Sprintf("%s Repayments - Funding Entries %d", strings.Join(parts, " & "), now.Year())

	entries := []Entry{{Account: FundingAccount, Debit: &funding, Description: description}}
	for _, g := range groups {
		amount := g.Total
		entries = append(entries, Entry{
			Account:     "Loans-" + g.Country,
			Credit:      &amount,
			Description: description,
		})
	}

	return &Voucher{
		Generated:   now,
		Records:     records,
		Groups:      groups,
		Entries:     entries,
		Description: description,
	}, nil
}

func amountCell(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	s, _ := render.FormatPlain(*d)
	return s
}

// WriteCSV writes the voucher entries followed by a TOTAL row.
func WriteCSV(w io.Writer, v *Voucher) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{"Acc No & Acc Name", "Debit", "Credit", "Description"}}
	for _, e := range v.Entries {
		rows = append(rows, []string{e.Account, amountCell(e.Debit), amountCell(e.Credit), e.Description})
	}

	debits, credits := v.Totals()
	balanced := "No"
	if v.Balanced() {
		balanced = "Yes"
	}
	rows = append(rows, []string{"TOTAL", amountCell(&debits), amountCell(&credits), "Balanced: " + balanced})

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write loan voucher csv: %w", err)
	}
	return nil
}

// Text renders the voucher as a fixed-width table.
func Text(v *Voucher) string {
	lines := []string{
		"PAYMENT VOUCHER - FOREIGN LOAN REVENUES",
		strings.Repeat("=", 60),
		"Generated: " + v.Generated.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("Total Entries: %d", len(v.Entries)),
		"",
		fmt.Sprintf("%-30s%-15s%-15s%s", "Acc No & Acc Name", "Debit", "Credit", "Description"),
		strings.Repeat("-", 80),
	}
	for _, e := range v.Entries {
		lines = append(lines, fmt.Sprintf("%-30s%-15s%-15s%s", e.Account, amountCell(e.Debit), amountCell(e.Credit), e.Description))
	}

	debits, credits := v.Totals()
	lines = append(lines,
		strings.Repeat("-", 80),
		fmt.Sprintf("%-30s%-15s%-15s", "TOTAL", amountCell(&debits), amountCell(&credits)),
		"",
	)
	if v.Balanced() {
		lines = append(lines, "Voucher is balanced")
	} else {
		diff := debits.Sub(credits).Abs()
		lines = append(lines, fmt.Sprintf("Voucher is not balanced (Difference: %s)", amountCell(&diff)))
	}
	return strings.Join(lines, "\n")
}
