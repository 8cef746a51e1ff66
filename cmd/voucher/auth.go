package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/treasury-vouchers/internal/cli"
	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/config"
	"github.com/Veraticus/treasury-vouchers/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}
	cmd.AddCommand(authSheetsCmd())
	return cmd
}

func authSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "Authorize Google Sheets access for the voucher register",
		Long: `Run the OAuth2 consent flow with sheets.client_id and sheets.client_secret and
store the token in sheets.token_file. The token is used by --export-sheets and
by reference.spreadsheet_id.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadSheetsConfig(viper.GetViper())

			out := cmd.OutOrStdout()
			show := func(url string) {
				_, _ = fmt.Fprintln(out, cli.FormatInfo("Open this URL in your browser to authorize access:"))
				_, _ = fmt.Fprintln(out, url)
				_, _ = fmt.Fprintln(out, cli.SubtleStyle.Render("Waiting for the callback on "+sheets.CallbackAddr+"..."))
			}

			if _, err := sheets.Authenticate(cmd.Context(), cfg, show, slog.Default()); err != nil {
				if errors.Is(err, common.ErrMissingConfig) {
					return common.NewUserErrorHint("Google Sheets authorization failed",
						"set sheets.client_id and sheets.client_secret (or GOOGLE_SHEETS_CLIENT_ID / GOOGLE_SHEETS_CLIENT_SECRET)", err)
				}
				return common.NewUserError("Google Sheets authorization failed", err)
			}
			_, _ = fmt.Fprintln(out, cli.FormatSuccess("Token saved to "+cfg.TokenFile))
			return nil
		},
	}
}
