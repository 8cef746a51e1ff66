package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/treasury-vouchers/internal/cli"
	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/config"
	"github.com/Veraticus/treasury-vouchers/internal/ledger"
	"github.com/Veraticus/treasury-vouchers/internal/render"
	"github.com/Veraticus/treasury-vouchers/internal/sheets"
	"github.com/Veraticus/treasury-vouchers/internal/voucher"
	"github.com/Veraticus/treasury-vouchers/internal/workflow"
)

type processOptions struct {
	input         string
	outPath       string
	save          bool
	exportSheets  bool
	international bool
	noProgress    bool
}

func processCmd() *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process [file|-]",
		Short: "Create vouchers from ledger transaction lines",
		Long: `Parse ledger lines of the form

  100.1234567.123456.1.123456.123456.000000 - Debit: 1,234.56

group them by account, classify every group with the configured rules and render one
voucher per group. Reads stdin when no file (or "-") is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.input = args[0]
			}
			return runProcess(cmd, opts)
		},
	}

	cmd.Flags().String("mode", "", "processing mode (payment_voucher, treasury_receipt)")
	cmd.Flags().String("template", "", "voucher template (standard, executive, simple)")
	cmd.Flags().StringP("output", "o", "", "output format (text, markdown, csv)")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "write vouchers to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save vouchers and workflows to the register database")
	cmd.Flags().BoolVar(&opts.exportSheets, "export-sheets", false, "export the voucher register to Google Sheets")
	cmd.Flags().BoolVar(&opts.international, "international", false, "treat payments as international (tax compliance checks)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "hide the progress bar")

	_ = viper.BindPFlag("processing.mode", cmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("processing.template", cmd.Flags().Lookup("template"))
	_ = viper.BindPFlag("processing.output", cmd.Flags().Lookup("output"))

	return cmd
}

func runProcess(cmd *cobra.Command, opts processOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()

	handler := cli.NewInterruptHandler(stderr)
	ctx := handler.HandleInterrupts(cmd.Context(), opts.save)

	text, err := cli.ReadInput(ctx, opts.input, cmd.InOrStdin())
	if err != nil {
		return common.NewUserError("Failed to read input", err)
	}

	txns, err := ledger.ParseLines(text)
	if err != nil {
		var parseErr *ledger.ParseError
		if errors.As(err, &parseErr) {
			return common.NewUserError("Malformed transaction input", err)
		}
		return err
	}
	if len(txns) == 0 {
		return common.NewUserError("Nothing to process", common.ErrNoTransactions)
	}

	src, err := openRules(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	proc, err := buildProcessor(ctx, cfg, src, opts, stderr)
	if err != nil {
		return err
	}

	var progress *cli.Progress
	if !opts.noProgress {
		progress = cli.NewProgress(stderr, "Classifying account groups")
		proc.SetProgress(progress.Update)
	}

	run, err := proc.Process(ctx, txns)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		if handler.WasInterrupted() {
			return common.NewUserError("Processing interrupted", err)
		}
		return err
	}

	if err := writeVouchers(cmd.OutOrStdout(), proc, run, cfg.Processing.Output, opts.outPath); err != nil {
		return err
	}

	if opts.save {
		if err := saveRun(ctx, cfg, run); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stderr, cli.FormatSuccess(fmt.Sprintf("Saved %d vouchers to %s", len(run.Vouchers), cfg.Database.Path)))
	}

	if opts.exportSheets {
		id, err := exportRegister(ctx, run)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stderr, cli.FormatSuccess("Voucher register exported to spreadsheet "+id))
	}

	printRunSummary(stderr, run, cfg.Processing.Currency)

	if !run.Success {
		return common.NewUserError(fmt.Sprintf("%d account groups could not be processed", len(run.Errors)), nil)
	}
	return nil
}

// buildProcessor wires the engine, validator, workflows and reference data.
func buildProcessor(ctx context.Context, cfg *config.Config, src *ruleSource, opts processOptions, stderr io.Writer) (*voucher.Processor, error) {
	eng, err := newEngine(ctx, cfg, src.Manager)
	if err != nil {
		return nil, err
	}

	lookup, err := loadReference(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tmpl, err := render.TemplateFor(cfg.Processing.Template)
	if err != nil {
		return nil, common.NewUserError("Invalid template", err)
	}

	deps := voucher.Deps{
		Classifier: eng,
		Validator:  voucher.NewValidator(src.Manager),
		Workflows:  workflow.NewManager(cfg.Workflow, nil, slog.Default()),
		Logger:     slog.Default(),
	}
	if lookup != nil {
		deps.Reference = lookup
	} else {
		_, _ = fmt.Fprintln(stderr, cli.FormatWarning("No reference workbook configured; account codes are shown as-is"))
	}

	settings := src.Manager.Settings()
	department := cfg.Processing.Department
	if department == "" {
		department = settings.DefaultDepartment
	}
	currency := cfg.Processing.Currency
	if currency == "" {
		currency = settings.DefaultCurrency
	}

	return voucher.NewProcessor(deps, voucher.Options{
		Mode:          cfg.Processing.Mode,
		Template:      tmpl,
		Prefix:        settings.VoucherNumberPrefix,
		CreatedBy:     cfg.Processing.CreatedBy,
		Department:    department,
		Currency:      currency,
		International: opts.international,
	}), nil
}

// writeVouchers renders the run to outPath, or to stdout when empty.
// Markdown on stdout is styled for the terminal.
func writeVouchers(stdout io.Writer, proc *voucher.Processor, run *voucher.RunResult, format, outPath string) error {
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := proc.Export(f, run, format); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write vouchers: %w", err)
		}
		return f.Close()
	}

	if format != config.OutputMarkdown {
		if err := proc.Export(stdout, run, format); err != nil {
			return fmt.Errorf("failed to write vouchers: %w", err)
		}
		_, err := fmt.Fprintln(stdout)
		return err
	}

	var buf bytes.Buffer
	if err := proc.Export(&buf, run, format); err != nil {
		return fmt.Errorf("failed to write vouchers: %w", err)
	}
	styled, err := render.RenderTerminal(buf.String(), 0)
	if err != nil {
		slog.Warn("Falling back to plain markdown", "error", err)
		styled = buf.String()
	}
	_, err = io.WriteString(stdout, styled)
	return err
}

// saveRun stores every voucher of run and its workflow in the register.
func saveRun(ctx context.Context, cfg *config.Config, run *voucher.RunResult) error {
	db, err := initStorage(ctx, cfg)
	if err != nil {
		return common.NewUserError("Failed to open database", err)
	}
	defer closeQuietly(db, "database")

	for i := range run.Vouchers {
		v := &run.Vouchers[i]
		if err := db.SaveVoucher(ctx, &v.Record); err != nil {
			return fmt.Errorf("failed to save voucher %s: %w", v.Record.VoucherNumber, err)
		}
		if v.Workflow == nil {
			continue
		}
		if err := db.SaveWorkflow(ctx, v.Workflow); err != nil {
			return fmt.Errorf("failed to save workflow %s: %w", v.Workflow.WorkflowID, err)
		}
	}
	return nil
}

func exportRegister(ctx context.Context, run *voucher.RunResult) (string, error) {
	writer, err := sheets.NewWriter(ctx, config.LoadSheetsConfig(viper.GetViper()), slog.Default())
	if err != nil {
		return "", common.NewUserError("Failed to connect to Google Sheets", err)
	}
	id, err := writer.Write(ctx, run.Records())
	if err != nil {
		return "", common.NewUserError("Failed to export voucher register", err)
	}
	return id, nil
}

func printRunSummary(w io.Writer, run *voucher.RunResult, currency string) {
	s := run.Summary
	total, entry := render.FormatMoney(s.TotalAmount, currency)

	lines := []string{
		fmt.Sprintf("Vouchers:        %d", s.TotalVouchers),
		fmt.Sprintf("Net amount:      %s (%s)", total, entry),
		fmt.Sprintf("Validation rate: %s (%d errors, %d warnings)", s.Validation.ValidationRate, s.Validation.TotalErrors, s.Validation.TotalWarnings),
	}
	if len(s.CategoryBreakdown) > 0 {
		lines = append(lines, "Categories:      "+formatCounts(s.CategoryBreakdown))
	}
	if len(s.ApprovalBreakdown) > 0 {
		lines = append(lines, "Approval levels: "+formatCounts(s.ApprovalBreakdown))
	}

	_, _ = fmt.Fprintln(w, cli.RenderBox("Run "+run.RunID, strings.Join(lines, "\n")))
	for _, warning := range run.Warnings {
		_, _ = fmt.Fprintln(w, cli.FormatWarning(warning))
	}
	for _, msg := range run.Errors {
		_, _ = fmt.Fprintln(w, cli.FormatError(msg))
	}
}

// formatCounts renders a count map as "a: 1, b: 2" in key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
