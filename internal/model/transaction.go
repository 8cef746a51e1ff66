package model

import "github.com/shopspring/decimal"

// Transaction represents a single ledger line parsed from input text.
type Transaction struct {
	RawLine string
	Account ParsedAccount
	Amount  decimal.Decimal // always non-negative
	IsDebit bool
}

// Signed returns the amount with debits positive and credits negative.
func (t Transaction) Signed() decimal.Decimal {
	if t.IsDebit {
		return t.Amount
	}
	return t.Amount.Neg()
}

// EntryType returns "Debit" or "Credit".
func (t Transaction) EntryType() string {
	if t.IsDebit {
		return EntryDebit
	}
	return EntryCredit
}

// Entry type labels.
const (
	EntryDebit  = "Debit"
	EntryCredit = "Credit"
)

// EntryTypeFor labels a signed net amount, treating zero as a debit.
func EntryTypeFor(net decimal.Decimal) string {
	if net.IsNegative() {
		return EntryCredit
	}
	return EntryDebit
}
