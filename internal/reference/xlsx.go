package reference

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXFile reads a reference workbook from an .xlsx file on disk.
type XLSXFile struct {
	Path string
}

// Workbook implements Source.
func (x XLSXFile) Workbook(ctx context.Context) (*Workbook, error) {
	f, err := excelize.OpenFile(x.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", x.Path, err)
	}
	defer func() { _ = f.Close() }()

	return readWorkbook(ctx, f)
}

func readWorkbook(ctx context.Context, f *excelize.File) (*Workbook, error) {
	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}
