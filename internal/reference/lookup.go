package reference

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/treasury-vouchers/internal/model"
)

// NotApplicable describes an all-zero future code with no registered entry.
const NotApplicable = "N/A"

const futureWidth = 6

// Lookup holds the five code→description mappings of a run.
// It is read-only after NewLookup returns and safe for concurrent use.
type Lookup struct {
	logger      *slog.Logger
	entity      map[string]string
	costCenter  map[string]string
	glAccount   map[string]string
	budgetGroup map[string]string
	futures     map[string]string
}

// NewLookup builds a Lookup from the sheets of wb.
// Missing sheets yield empty mappings; a sheet without usable columns is an error.
func NewLookup(wb *Workbook, logger *slog.Logger) (*Lookup, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if wb == nil {
		wb = &Workbook{}
	}

	l := &Lookup{logger: logger}
	targets := map[Dimension]*map[string]string{
		DimEntity:      &l.entity,
		DimCostCenter:  &l.costCenter,
		DimGLAccount:   &l.glAccount,
		DimBudgetGroup: &l.budgetGroup,
		DimFutures:     &l.futures,
	}

	for _, dim := range Dimensions {
		merged, err := loadDimension(wb, dim, logger)
		if err != nil {
			return nil, err
		}
		*targets[dim] = merged
	}

	logger.Debug("reference data loaded",
		"entities", len(l.entity),
		"cost_centers", len(l.costCenter),
		"gl_accounts", len(l.glAccount),
		"budget_groups", len(l.budgetGroup),
		"futures", len(l.futures))

	return l, nil
}

func loadDimension(wb *Workbook, dim Dimension, logger *slog.Logger) (map[string]string, error) {
	merged := make(map[string]string)

	sheets := wb.sheetsFor(dim)
	if len(sheets) == 0 {
		logger.Warn("reference sheet missing; lookups may fail",
			"dimension", string(dim),
			"candidates", sheetSynonyms[dim])
		return merged, nil
	}

	for _, s := range sheets {
		partial, err := codeDescriptions(s)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", dim, err)
		}
		for code, desc := range partial {
			if dim == DimFutures {
				for _, v := range codeVariants(code) {
					merged[v] = desc
				}
				continue
			}
			merged[code] = desc
		}
	}
	return merged, nil
}

// codeVariants returns the raw code, its zero-stripped form and both padded
// to six digits, without duplicates.
func codeVariants(code string) []string {
	raw := strings.TrimSpace(code)
	stripped := strings.TrimLeft(raw, "0")
	if stripped == "" {
		stripped = "0"
	}

	variants := make([]string, 0, 4)
	for _, v := range []string{raw, stripped, zeroPad(raw), zeroPad(stripped)} {
		dup := false
		for _, seen := range variants {
			if seen == v {
				dup = true
				break
			}
		}
		if !dup {
			variants = append(variants, v)
		}
	}
	return variants
}

func zeroPad(s string) string {
	if len(s) >= futureWidth {
		return s
	}
	return strings.Repeat("0", futureWidth-len(s)) + s
}

// Entity returns the description of an entity code.
func (l *Lookup) Entity(code string) (string, bool) {
	desc, ok := l.entity[code]
	return desc, ok
}

// CostCenter returns the description of a cost center code.
func (l *Lookup) CostCenter(code string) (string, bool) {
	desc, ok := l.costCenter[code]
	return desc, ok
}

// GLAccount returns the description of a GL account code.
func (l *Lookup) GLAccount(code string) (string, bool) {
	desc, ok := l.glAccount[code]
	return desc, ok
}

// BudgetGroup returns the description of a budget group code.
func (l *Lookup) BudgetGroup(code string) (string, bool) {
	desc, ok := l.budgetGroup[code]
	return desc, ok
}

// Future resolves a future code under any zero-padding convention.
// An all-zero code without an entry resolves to NotApplicable.
func (l *Lookup) Future(code string) (string, bool) {
	if desc, ok := l.futures[code]; ok {
		return desc, true
	}
	for _, v := range codeVariants(code) {
		if desc, ok := l.futures[v]; ok {
			return desc, true
		}
	}
	if strings.Trim(strings.TrimSpace(code), "0") == "" {
		return NotApplicable, true
	}
	return "", false
}

// Describe resolves every segment of acc, echoing raw codes that are unknown.
func (l *Lookup) Describe(acc model.ParsedAccount) model.AccountDescriptions {
	or := func(desc string, ok bool, code string) string {
		if ok {
			return desc
		}
		return code
	}

	e, eok := l.Entity(acc.Entity)
	c, cok := l.CostCenter(acc.CostCenter)
	g, gok := l.GLAccount(acc.GLAccount)
	b, bok := l.BudgetGroup(acc.BudgetGroup)
	f1, f1ok := l.Future(acc.Future1)
	f2, f2ok := l.Future(acc.Future2)
	f3, f3ok := l.Future(acc.Future3)

	return model.AccountDescriptions{
		Entity:      or(e, eok, acc.Entity),
		CostCenter:  or(c, cok, acc.CostCenter),
		GLAccount:   or(g, gok, acc.GLAccount),
		BudgetGroup: or(b, bok, acc.BudgetGroup),
		Future1:     or(f1, f1ok, acc.Future1),
		Future2:     or(f2, f2ok, acc.Future2),
		Future3:     or(f3, f3ok, acc.Future3),
	}
}

// ValidateAccount returns one message per unresolved mandatory segment.
// Unknown future codes are logged at debug level only.
func (l *Lookup) ValidateAccount(acc model.ParsedAccount) []string {
	var errs []string
	if _, ok := l.Entity(acc.Entity); !ok {
		errs = append(errs, "Unknown Entity: "+acc.Entity)
	}
	if _, ok := l.CostCenter(acc.CostCenter); !ok {
		errs = append(errs, "Unknown Cost Center: "+acc.CostCenter)
	}
	if _, ok := l.GLAccount(acc.GLAccount); !ok {
		errs = append(errs, "Unknown GL Account: "+acc.GLAccount)
	}
	if _, ok := l.BudgetGroup(acc.BudgetGroup); !ok {
		errs = append(errs, "Unknown Budget Group: "+acc.BudgetGroup)
	}

	for _, code := range []string{acc.Future1, acc.Future2, acc.Future3} {
		if _, ok := l.Future(code); !ok {
			l.logger.Debug("future code not found", "code", code)
		}
	}
	return errs
}

// Counts reports the number of entries per dimension.
func (l *Lookup) Counts() map[Dimension]int {
	return map[Dimension]int{
		DimEntity:      len(l.entity),
		DimCostCenter:  len(l.costCenter),
		DimGLAccount:   len(l.glAccount),
		DimBudgetGroup: len(l.budgetGroup),
		DimFutures:     len(l.futures),
	}
}
