package reference

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleWorkbook() *Workbook {
	return &Workbook{Sheets: []Sheet{
		{Name: "Entity", Rows: [][]string{
			{"Code", "Description"},
			{"201", "Ministry of Finance"},
		}},
		{Name: "Cost_Centres", Rows: [][]string{
			{"Cost Center", "Cost Center Description"},
			{"2010023", "Treasury Operations"},
			{"", "orphan description"},
		}},
		{Name: "GL Accounts", Rows: [][]string{
			{"Ref", "Label", "Owner"},
			{"610101", "Office Supplies - Stationery", "ops"},
			{" 120000 ", " IT Equipment ", "it"},
		}},
		{Name: "budget group", Rows: [][]string{
			{"id", "name"},
			{"1", "Recurrent"},
		}},
		{Name: "Future 1", Rows: [][]string{
			{"Future Code", "Future Description"},
			{"0", "Not Used"},
			{"123", "Project 123"},
		}},
		{Name: "Future 2", Rows: [][]string{
			{"Future Code", "Future Description"},
			{"000777", "Donor 777"},
		}},
		{Name: "Notes", Rows: [][]string{{"anything"}}},
	}}
}

func newSampleLookup(t *testing.T) *Lookup {
	t.Helper()
	l, err := NewLookup(sampleWorkbook(), quietLogger())
	require.NoError(t, err)
	return l
}

func TestNewLookup_HeaderDetection(t *testing.T) {
	l := newSampleLookup(t)

	desc, ok := l.Entity("201")
	assert.True(t, ok)
	assert.Equal(t, "Ministry of Finance", desc)

	desc, ok = l.CostCenter("2010023")
	assert.True(t, ok)
	assert.Equal(t, "Treasury Operations", desc)

	// no recognised headers: first two columns, trimmed
	desc, ok = l.GLAccount("120000")
	assert.True(t, ok)
	assert.Equal(t, "IT Equipment", desc)

	desc, ok = l.BudgetGroup("1")
	assert.True(t, ok)
	assert.Equal(t, "Recurrent", desc)

	assert.Equal(t, 1, l.Counts()[DimCostCenter])
}

func TestLookup_FutureVariants(t *testing.T) {
	l := newSampleLookup(t)

	for _, code := range []string{"0", "000000", "0000000", "00"} {
		desc, ok := l.Future(code)
		assert.True(t, ok, code)
		assert.Equal(t, "Not Used", desc, code)
	}

	for _, code := range []string{"123", "000123", "0123"} {
		desc, ok := l.Future(code)
		assert.True(t, ok, code)
		assert.Equal(t, "Project 123", desc, code)
	}

	// merged from the second futures sheet
	desc, ok := l.Future("777")
	assert.True(t, ok)
	assert.Equal(t, "Donor 777", desc)

	_, ok = l.Future("999")
	assert.False(t, ok)
}

func TestLookup_AllZeroFutureWithoutEntry(t *testing.T) {
	l, err := NewLookup(&Workbook{}, quietLogger())
	require.NoError(t, err)

	for _, code := range []string{"0", "000000", "0000000"} {
		desc, ok := l.Future(code)
		assert.True(t, ok)
		assert.Equal(t, NotApplicable, desc)
	}
}

func TestLookup_MissingSheetsDegrade(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	l, err := NewLookup(&Workbook{Sheets: []Sheet{
		{Name: "Entity", Rows: [][]string{{"code", "description"}, {"201", "Ministry"}}},
	}}, logger)
	require.NoError(t, err)

	acc, err := model.ParseAccount("201.2010023.610101.1.000000.000000.000000")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Unknown Cost Center: 2010023",
		"Unknown GL Account: 610101",
		"Unknown Budget Group: 1",
	}, l.ValidateAccount(acc))

	desc := l.Describe(acc)
	assert.Equal(t, "Ministry", desc.Entity)
	assert.Equal(t, "610101", desc.GLAccount)
	assert.Equal(t, NotApplicable, desc.Future1)

	assert.Contains(t, buf.String(), "reference sheet missing")
}

func TestLookup_ValidateAccountIgnoresFutures(t *testing.T) {
	l := newSampleLookup(t)

	acc, err := model.ParseAccount("201.2010023.610101.1.555555.000000.000000")
	require.NoError(t, err)

	assert.Empty(t, l.ValidateAccount(acc))
	assert.Equal(t, "555555", l.Describe(acc).Future1)
}

func TestNewLookup_SingleColumnSheetFails(t *testing.T) {
	_, err := NewLookup(&Workbook{Sheets: []Sheet{
		{Name: "GL", Rows: [][]string{{"Only"}, {"610101"}}},
	}}, quietLogger())
	require.ErrorIs(t, err, ErrNoColumns)
}

func TestCodeVariants(t *testing.T) {
	assert.Equal(t, []string{"0", "000000"}, codeVariants("0"))
	assert.Equal(t, []string{"000123", "123"}, codeVariants("000123"))
	assert.Equal(t, []string{"0000000", "0", "000000"}, codeVariants("0000000"))
}

func TestXLSXFile_Workbook(t *testing.T) {
	f := excelize.NewFile()
	for _, s := range sampleWorkbook().Sheets {
		_, err := f.NewSheet(s.Name)
		require.NoError(t, err)
		for i, row := range s.Rows {
			cells := make([]any, len(row))
			for j, v := range row {
				cells[j] = v
			}
			addr, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(s.Name, addr, &cells))
		}
	}
	path := filepath.Join(t.TempDir(), "reference.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	wb, err := XLSXFile{Path: path}.Workbook(context.Background())
	require.NoError(t, err)
	assert.Contains(t, wb.Names(), "GL Accounts")

	l, err := NewLookup(wb, quietLogger())
	require.NoError(t, err)

	desc, ok := l.GLAccount("610101")
	assert.True(t, ok)
	assert.Equal(t, "Office Supplies - Stationery", desc)

	desc, ok = l.Future("000000")
	assert.True(t, ok)
	assert.Equal(t, "Not Used", desc)
}

func TestXLSXFile_MissingFile(t *testing.T) {
	_, err := XLSXFile{Path: filepath.Join(t.TempDir(), "missing.xlsx")}.Workbook(context.Background())
	require.Error(t, err)
}
