package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/reference"
	"github.com/Veraticus/treasury-vouchers/internal/service"
)

var _ reference.Source = (*Reader)(nil)

// Reader loads a reference workbook from a spreadsheet. Every tab becomes
// one reference sheet.
type Reader struct {
	api    spreadsheetAPI
	logger *slog.Logger
	config Config
}

// NewReader creates a reader for config.SpreadsheetID.
func NewReader(ctx context.Context, config Config, logger *slog.Logger) (*Reader, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet ID is required to read reference data")
	}
	api, err := newGoogleAPI(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return newReader(api, config, logger), nil
}

func newReader(api spreadsheetAPI, config Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{api: api, config: config, logger: logger}
}

// Workbook implements reference.Source.
func (r *Reader) Workbook(ctx context.Context) (*reference.Workbook, error) {
	opts := retryOptions(r.config)

	var titles []string
	err := common.WithRetry(ctx, "list reference sheets", opts, func(ctx context.Context) error {
		var err error
		titles, err = r.api.SheetTitles(ctx, r.config.SpreadsheetID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrReferenceUnavailable, err)
	}

	wb := &reference.Workbook{}
	for _, title := range titles {
		var values [][]any
		err := common.WithRetry(ctx, "read sheet "+title, opts, func(ctx context.Context) error {
			var err error
			values, err = r.api.Values(ctx, r.config.SpreadsheetID, quoteRange(title))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", title, err)
		}
		wb.Sheets = append(wb.Sheets, reference.Sheet{Name: title, Rows: toRows(values)})
	}

	r.logger.Info("loaded reference spreadsheet",
		"spreadsheet_id", r.config.SpreadsheetID,
		"sheets", len(wb.Sheets))
	return wb, nil
}

// quoteRange addresses a whole tab, quoting names with spaces.
func quoteRange(title string) string {
	return "'" + title + "'"
}

func toRows(values [][]any) [][]string {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		row := make([]string, len(v))
		for i, cell := range v {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellString(cell any) string {
	switch c := cell.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}

func retryOptions(cfg Config) service.RetryOptions {
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * cfg.RetryDelay,
		Multiplier:   2.0,
	}
}
