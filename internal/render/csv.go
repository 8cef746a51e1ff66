package render

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Veraticus/treasury-vouchers/internal/model"
)

// CSVHeader lists the voucher register export columns.
var CSVHeader = []string{
	"Voucher Number",
	"Amount",
	"Category",
	"Subcategory",
	"Approval Level",
	"Status",
	"Created Date",
}

// WriteCSV writes one row per voucher record.
func WriteCSV(w io.Writer, records []model.VoucherRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		if err := cw.Write(RegisterRow(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.VoucherNumber, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// RegisterRow formats a voucher record in CSVHeader column order.
func RegisterRow(r model.VoucherRecord) []string {
	return []string{
		r.VoucherNumber,
		r.Amount.StringFixed(2),
		r.Classification.Category,
		r.Classification.Subcategory,
		string(r.Classification.ApprovalLevel),
		r.Status,
		r.CreatedDate.Format("2006-01-02"),
	}
}
