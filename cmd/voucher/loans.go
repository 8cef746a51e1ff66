package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/treasury-vouchers/internal/cli"
	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/config"
	"github.com/Veraticus/treasury-vouchers/internal/loans"
)

func loansCmd() *cobra.Command {
	var (
		output  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "loans <statement.csv>",
		Short: "Build a funding voucher from a foreign loan revenue statement",
		Long: `Read the "Total" rows of a foreign loan revenue statement (columns "Project no",
"Country Name", "Statement of Shares" and "Total") and produce one debit to the
funding account with one credit per country.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return common.NewUserError("Failed to open statement", err)
			}
			defer func() { _ = f.Close() }()

			v, err := buildLoanVoucher(f, time.Now())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				out, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = out.Close() }()
				w = out
			}

			if err := writeLoanVoucher(w, v, output); err != nil {
				return err
			}
			if !v.Balanced() {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning("Loan voucher is not balanced"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", config.OutputText, "output format (text, csv)")
	cmd.Flags().StringVar(&outPath, "out", "", "write the voucher to this file instead of stdout")
	return cmd
}

func buildLoanVoucher(r io.Reader, now time.Time) (*loans.Voucher, error) {
	records, err := loans.ReadRecords(r, slog.Default())
	if err != nil {
		return nil, common.NewUserError("Invalid loan statement", err)
	}
	v, err := loans.Build(records, now)
	if err != nil {
		return nil, common.NewUserError("Invalid loan statement", err)
	}
	return v, nil
}

func writeLoanVoucher(w io.Writer, v *loans.Voucher, format string) error {
	switch strings.ToLower(format) {
	case config.OutputCSV:
		return loans.WriteCSV(w, v)
	case config.OutputText, "":
		_, err := fmt.Fprintln(w, loans.Text(v))
		return err
	default:
		return common.NewUserError(fmt.Sprintf("unsupported loan voucher format %q", format), common.ErrInvalidConfig)
	}
}
