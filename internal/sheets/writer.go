package sheets

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/render"
)

// Writer exports the voucher register to a spreadsheet.
type Writer struct {
	api    spreadsheetAPI
	logger *slog.Logger
	config Config
}

// NewWriter creates a new Google Sheets register writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	api, err := newGoogleAPI(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return newWriter(api, config, logger), nil
}

func newWriter(api spreadsheetAPI, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{api: api, config: config, logger: logger}
}

// Write replaces the register tab with records and returns the spreadsheet ID.
func (w *Writer) Write(ctx context.Context, records []model.VoucherRecord) (string, error) {
	spreadsheetID, err := w.spreadsheet(ctx)
	if err != nil {
		return "", err
	}

	values := registerValues(records)
	opts := retryOptions(w.config)
	rng := quoteRange(RegisterTab)

	err = common.WithRetry(ctx, "write voucher register", opts, func(ctx context.Context) error {
		if err := w.api.Clear(ctx, spreadsheetID, rng); err != nil {
			return err
		}
		return w.api.Update(ctx, spreadsheetID, rng+"!A1", values)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write register: %w", err)
	}

	if w.config.EnableFormatting {
		if err := w.api.BoldHeader(ctx, spreadsheetID, RegisterTab); err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("voucher register exported",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(records))
	return spreadsheetID, nil
}

func (w *Writer) spreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		titles, err := w.api.SheetTitles(ctx, w.config.SpreadsheetID)
		if err != nil {
			return "", err
		}
		for _, t := range titles {
			if t == RegisterTab {
				return w.config.SpreadsheetID, nil
			}
		}
		return "", fmt.Errorf("spreadsheet %s has no %q sheet", w.config.SpreadsheetID, RegisterTab)
	}

	name := w.config.SpreadsheetName
	if name == "" {
		name = DefaultSpreadsheetName
	}
	id, url, err := w.api.Create(ctx, name, w.config.TimeZone, []string{RegisterTab})
	if err != nil {
		return "", err
	}
	w.logger.Info("created new spreadsheet", "id", id, "url", url)
	return id, nil
}

func registerValues(records []model.VoucherRecord) [][]any {
	values := make([][]any, 0, len(records)+1)
	values = append(values, toAny(append(append([]string{}, render.CSVHeader...), "Run ID", "Workflow ID")))
	for _, r := range records {
		values = append(values, toAny(append(render.RegisterRow(r), r.RunID, r.WorkflowID)))
	}
	return values
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
