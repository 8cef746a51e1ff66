package render

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/treasury-vouchers/internal/model"
)

// DefaultCurrency is used when a document names an unknown currency.
const DefaultCurrency = money.USD

var plainFormatter = money.NewFormatter(2, ".", ",", "", "1")

func minorUnits(amount decimal.Decimal, fraction int) int64 {
	factor := decimal.New(1, int32(fraction))
	return amount.Abs().Mul(factor).Round(0).IntPart()
}

// FormatMoney renders the magnitude of amount with the currency symbol and
// returns the Debit/Credit label for its sign.
func FormatMoney(amount decimal.Decimal, currency string) (string, string) {
	currency = strings.ToUpper(currency)
	cur := money.GetCurrency(currency)
	if cur == nil {
		currency = DefaultCurrency
		cur = money.GetCurrency(currency)
	}
	m := money.New(minorUnits(amount, cur.Fraction), currency)
	return m.Display(), model.EntryTypeFor(amount)
}

// FormatPlain renders the magnitude of amount with two decimals and thousands
// separators and no symbol.
func FormatPlain(amount decimal.Decimal) (string, string) {
	return plainFormatter.Format(minorUnits(amount, 2)), model.EntryTypeFor(amount)
}

func currencyOrDefault(code string) string {
	code = strings.ToUpper(code)
	if money.GetCurrency(code) == nil {
		return DefaultCurrency
	}
	return code
}
