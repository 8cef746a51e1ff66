// Package reference resolves chart-of-accounts codes to descriptions.
package reference

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoColumns is returned for a sheet that cannot hold a code/description pair.
var ErrNoColumns = errors.New("unable to determine code/description columns in reference sheet")

// Sheet is one named table of a reference workbook. The first row is the header.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is an in-memory reference workbook.
type Workbook struct {
	Sheets []Sheet
}

// Source loads a reference workbook.
type Source interface {
	Workbook(ctx context.Context) (*Workbook, error)
}

// Dimension names one of the five account dimensions.
type Dimension string

// Account dimensions.
const (
	DimEntity      Dimension = "entity"
	DimCostCenter  Dimension = "cost_center"
	DimGLAccount   Dimension = "gl_account"
	DimBudgetGroup Dimension = "budget_group"
	DimFutures     Dimension = "futures"
)

// Dimensions lists every dimension in lookup order.
var Dimensions = []Dimension{DimEntity, DimCostCenter, DimGLAccount, DimBudgetGroup, DimFutures}

var sheetSynonyms = map[Dimension][]string{
	DimEntity:      {"entity", "entities"},
	DimCostCenter:  {"cost center", "cost centers", "costcentre", "cost centres"},
	DimGLAccount:   {"gl account", "gl accounts", "gl", "account"},
	DimBudgetGroup: {"budget group", "budget groups"},
	DimFutures:     {"futures", "future", "future codes", "future 1", "future 2"},
}

var codeHeaders = []string{
	"code", "number", "id", "gl account", "cost center", "entity", "budget group", "future", "future code",
}

var descriptionHeaders = []string{
	"description", "desc", "name", "gl account description", "cost center description",
	"entity description", "budget group description", "future description",
}

func normalizeSheetName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", " ")
}

// sheetsFor returns the workbook sheets matching dim, in synonym order.
func (wb *Workbook) sheetsFor(dim Dimension) []Sheet {
	present := make(map[string]int, len(wb.Sheets))
	for i, s := range wb.Sheets {
		key := normalizeSheetName(s.Name)
		if _, dup := present[key]; !dup {
			present[key] = i
		}
	}

	var hits []Sheet
	used := make(map[int]bool)
	for _, cand := range sheetSynonyms[dim] {
		if i, ok := present[normalizeSheetName(cand)]; ok && !used[i] {
			used[i] = true
			hits = append(hits, wb.Sheets[i])
		}
	}
	return hits
}

// Names lists the sheet names in workbook order.
func (wb *Workbook) Names() []string {
	names := make([]string, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// codeDescriptions reads the code and description columns of a sheet.
func codeDescriptions(s Sheet) (map[string]string, error) {
	if len(s.Rows) == 0 {
		return nil, fmt.Errorf("sheet %q: %w", s.Name, ErrNoColumns)
	}

	header := s.Rows[0]
	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}

	codeCol, descCol := findColumn(columns, codeHeaders), findColumn(columns, descriptionHeaders)
	if codeCol < 0 || descCol < 0 {
		if len(header) < 2 {
			return nil, fmt.Errorf("sheet %q: %w", s.Name, ErrNoColumns)
		}
		codeCol, descCol = 0, 1
	}

	out := make(map[string]string, len(s.Rows)-1)
	for _, row := range s.Rows[1:] {
		code, desc := cell(row, codeCol), cell(row, descCol)
		if code == "" || desc == "" {
			continue
		}
		out[code] = desc
	}
	return out, nil
}

func findColumn(columns map[string]int, candidates []string) int {
	for _, c := range candidates {
		if i, ok := columns[c]; ok {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
