package ledger

import (
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest debit/credit difference treated as balanced.
var BalanceTolerance = decimal.New(1, -2)

// Describer resolves human-readable descriptions for an account.
type Describer interface {
	Describe(acc model.ParsedAccount) model.AccountDescriptions
}

// AccountValidator reports unresolved segments of an account.
type AccountValidator interface {
	ValidateAccount(acc model.ParsedAccount) []string
}

// Group is the set of transactions posted to one account key.
type Group struct {
	Net          decimal.Decimal
	Key          model.AccountKey
	Descriptions model.AccountDescriptions
	Members      []model.Transaction
}

// EntryType labels the net amount as Debit or Credit.
func (g Group) EntryType() string {
	return model.EntryTypeFor(g.Net)
}

// GroupByAccount partitions txns by account key in first-seen order and nets
// each group. Descriptions come from the first member of the group.
func GroupByAccount(txns []model.Transaction, describer Describer) []Group {
	if len(txns) == 0 {
		return nil
	}

	index := make(map[model.AccountKey]int)
	var groups []Group

	for _, txn := range txns {
		key := txn.Account.Key()
		i, ok := index[key]
		if !ok {
			g := Group{Key: key, Net: decimal.NewFromInt(0)}
			if describer != nil {
				g.Descriptions = describer.Describe(txn.Account)
			} else {
				g.Descriptions = rawDescriptions(txn.Account)
			}
			groups = append(groups, g)
			i = len(groups) - 1
			index[key] = i
		}

		groups[i].Members = append(groups[i].Members, txn)
		groups[i].Net = groups[i].Net.Add(txn.Signed())
	}

	return groups
}

// Totals sums debit and credit amounts separately.
func Totals(txns []model.Transaction) (debits, credits decimal.Decimal) {
	debits, credits = decimal.NewFromInt(0), decimal.NewFromInt(0)
	for _, txn := range txns {
		if txn.IsDebit {
			debits = debits.Add(txn.Amount)
		} else {
			credits = credits.Add(txn.Amount)
		}
	}
	return debits, credits
}

// IsBalanced reports whether debits and credits agree within BalanceTolerance.
func IsBalanced(debits, credits decimal.Decimal) bool {
	return debits.Sub(credits).Abs().LessThan(BalanceTolerance)
}

// ValidateAccounts checks every transaction account and returns one message
// per unresolved segment, prefixed with the offending line.
func ValidateAccounts(txns []model.Transaction, validator AccountValidator) []string {
	var errs []string
	for _, txn := range txns {
		for _, msg := range validator.ValidateAccount(txn.Account) {
			errs = append(errs, txn.RawLine+" -> "+msg)
		}
	}
	return errs
}

func rawDescriptions(acc model.ParsedAccount) model.AccountDescriptions {
	return model.AccountDescriptions{
		Entity:      acc.Entity,
		CostCenter:  acc.CostCenter,
		GLAccount:   acc.GLAccount,
		BudgetGroup: acc.BudgetGroup,
		Future1:     acc.Future1,
		Future2:     acc.Future2,
		Future3:     acc.Future3,
	}
}
