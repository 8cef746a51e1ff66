package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/treasury-vouchers/internal/cli"
	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/ledger"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/reference"
)

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Inspect the chart-of-accounts reference data",
	}
	cmd.AddCommand(referenceInspectCmd())
	return cmd
}

func referenceInspectCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show what the reference workbook provides",
		Long: `Load the configured reference workbook (reference.path or reference.spreadsheet_id)
and report how many codes each dimension holds. With --account, resolve one
account reference against it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			lookup, err := loadReference(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if lookup == nil {
				return common.NewUserErrorHint("No reference workbook configured",
					"set reference.path or reference.spreadsheet_id", common.ErrMissingConfig)
			}

			out := cmd.OutOrStdout()
			counts := lookup.Counts()
			rows := make([][]string, len(reference.Dimensions))
			for i, dim := range reference.Dimensions {
				rows[i] = []string{string(dim), fmt.Sprintf("%d", counts[dim])}
			}
			_, _ = fmt.Fprintln(out, cli.FormatTitle("Reference data"))
			_, _ = fmt.Fprintln(out, cli.RenderTable([]string{"Dimension", "Codes"}, rows))

			if account == "" {
				return nil
			}
			acc, err := model.ParseAccount(account)
			if err != nil {
				return common.NewUserError("Invalid account reference", err)
			}
			printAccount(cmd, lookup, acc)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account reference to resolve")
	return cmd
}

func printAccount(cmd *cobra.Command, lookup *reference.Lookup, acc model.ParsedAccount) {
	d := lookup.Describe(acc)
	rows := [][]string{
		{"Entity", acc.Entity, d.Entity},
		{"Cost Center", acc.CostCenter, d.CostCenter},
		{"GL Account", acc.GLAccount, d.GLAccount},
		{"Budget Group", acc.BudgetGroup, d.BudgetGroup},
		{"Future 1", acc.Future1, d.Future1},
		{"Future 2", acc.Future2, d.Future2},
		{"Future 3", acc.Future3, d.Future3},
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, cli.RenderTable([]string{"Segment", "Code", "Description"}, rows))
	for _, issue := range ledger.ValidateAccounts([]model.Transaction{{RawLine: acc.String(), Account: acc}}, lookup) {
		_, _ = fmt.Fprintln(out, cli.FormatWarning(issue))
	}
}
