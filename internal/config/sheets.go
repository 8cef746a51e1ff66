package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/treasury-vouchers/internal/sheets"
)

// DefaultTokenFile is where "voucher auth sheets" stores the OAuth2 token.
const DefaultTokenFile = "~/.config/voucher/sheets_token.json"

// LoadSheetsConfig builds the Google Sheets configuration. Values come from
// viper first (config file or VOUCHER_ variables), then from the
// GOOGLE_SHEETS_* environment variables, then from defaults.
func LoadSheetsConfig(v *viper.Viper) sheets.Config {
	cfg := sheets.DefaultConfig()

	pick := func(key, env string) string {
		if s := v.GetString(key); s != "" {
			return s
		}
		return os.Getenv(env)
	}

	cfg.ServiceAccountPath = ExpandPath(pick("sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	cfg.ClientID = pick("sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	cfg.ClientSecret = pick("sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	cfg.RefreshToken = pick("sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	cfg.TokenFile = ExpandPath(pick("sheets.token_file", "GOOGLE_SHEETS_TOKEN_FILE"))
	if cfg.TokenFile == "" {
		cfg.TokenFile = ExpandPath(DefaultTokenFile)
	}
	cfg.SpreadsheetID = pick("sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	if name := pick("sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"); name != "" {
		cfg.SpreadsheetName = name
	}
	if tz := v.GetString("sheets.time_zone"); tz != "" {
		cfg.TimeZone = tz
	}
	if v.IsSet("sheets.enable_formatting") {
		cfg.EnableFormatting = v.GetBool("sheets.enable_formatting")
	}
	return cfg
}

// ReferenceSheetsConfig is LoadSheetsConfig pointed at the reference
// spreadsheet instead of the register.
func ReferenceSheetsConfig(v *viper.Viper, cfg *Config) sheets.Config {
	sc := LoadSheetsConfig(v)
	sc.SpreadsheetID = cfg.Reference.SpreadsheetID
	return sc
}
