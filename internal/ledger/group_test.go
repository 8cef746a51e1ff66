package ledger

import (
	"math/rand"
	"testing"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDescriber struct{ calls int }

func (s *stubDescriber) Describe(acc model.ParsedAccount) model.AccountDescriptions {
	s.calls++
	return model.AccountDescriptions{GLAccount: "GL " + acc.GLAccount + " from " + acc.Future1}
}

type stubValidator map[string][]string

func (s stubValidator) ValidateAccount(acc model.ParsedAccount) []string {
	return s[acc.GLAccount]
}

func mustTxn(t *testing.T, line string) model.Transaction {
	t.Helper()
	txn, ok, err := ParseLine(line)
	require.NoError(t, err)
	require.True(t, ok)
	return txn
}

func TestGroupByAccount(t *testing.T) {
	txns := []model.Transaction{
		mustTxn(t, "201.2010023.610101.1.000001.000000.000000 - Debit: 1,000"),
		mustTxn(t, "101.1000001.120000.2.000000.000000.000000 - Debit: 300"),
		mustTxn(t, "201.2010023.610101.1.000002.000000.000000 - Credit: 250.25"),
		mustTxn(t, "201.2010023.610101.1.000003.000000.000000 - Debit: 0.25"),
	}

	describer := &stubDescriber{}
	groups := GroupByAccount(txns, describer)
	require.Len(t, groups, 2)

	assert.Equal(t, "201.2010023.610101.1", groups[0].Key.String())
	assert.True(t, groups[0].Net.Equal(decimal.NewFromInt(750)), "net %s", groups[0].Net)
	assert.Len(t, groups[0].Members, 3)
	assert.Equal(t, "GL 610101 from 000001", groups[0].Descriptions.GLAccount)
	assert.Equal(t, model.EntryDebit, groups[0].EntryType())

	assert.Equal(t, "101.1000001.120000.2", groups[1].Key.String())
	assert.True(t, groups[1].Net.Equal(decimal.NewFromInt(300)))

	assert.Equal(t, 2, describer.calls)
}

func TestGroupByAccount_NetIndependentOfOrder(t *testing.T) {
	lines := []string{
		"201.2010023.610101.1.000000.000000.000000 - Debit: 1,200.50",
		"201.2010023.610101.1.000000.000000.000000 - Credit: 50,000",
		"201.2010023.610101.1.000000.000000.000000 - Debit: 10.01",
		"201.2010023.610101.1.000000.000000.000000 - Credit: 0.51",
		"201.2010023.610101.1.000000.000000.000000 - Debit: 999",
	}
	var txns []model.Transaction
	expected := decimal.NewFromInt(0)
	for _, l := range lines {
		txn := mustTxn(t, l)
		txns = append(txns, txn)
		expected = expected.Add(txn.Signed())
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(txns), func(a, b int) { txns[a], txns[b] = txns[b], txns[a] })
		groups := GroupByAccount(txns, nil)
		require.Len(t, groups, 1)
		assert.True(t, groups[0].Net.Equal(expected), "net %s want %s", groups[0].Net, expected)
		assert.Equal(t, model.EntryCredit, groups[0].EntryType())
	}
}

func TestGroupByAccount_Empty(t *testing.T) {
	assert.Empty(t, GroupByAccount(nil, nil))
}

func TestGroupByAccount_RawDescriptionsWithoutDescriber(t *testing.T) {
	groups := GroupByAccount([]model.Transaction{
		mustTxn(t, "201.2010023.610101.1.000000.000000.000000 - Debit: 1"),
	}, nil)
	require.Len(t, groups, 1)
	assert.Equal(t, "2010023", groups[0].Descriptions.CostCenter)
}

func TestTotalsAndBalance(t *testing.T) {
	txns := []model.Transaction{
		mustTxn(t, "201.2010023.610101.1.000000.000000.000000 - Debit: 100.00"),
		mustTxn(t, "201.2010023.210000.1.000000.000000.000000 - Credit: 99.995"),
	}
	// amount grammar caps at two decimals; the trailing digit is ignored
	debits, credits := Totals(txns)
	assert.True(t, debits.Equal(decimal.NewFromInt(100)))
	assert.True(t, credits.Equal(decimal.RequireFromString("99.99")))
	assert.False(t, IsBalanced(debits, credits))

	assert.True(t, IsBalanced(decimal.RequireFromString("100"), decimal.RequireFromString("99.995")))
}

func TestValidateAccounts(t *testing.T) {
	txns := []model.Transaction{
		mustTxn(t, "201.2010023.610101.1.000000.000000.000000 - Debit: 1"),
		mustTxn(t, "201.2010023.999999.1.000000.000000.000000 - Debit: 1"),
	}
	errs := ValidateAccounts(txns, stubValidator{"999999": {"Unknown GL Account: 999999"}})
	require.Len(t, errs, 1)
	assert.Equal(t, "201.2010023.999999.1.000000.000000.000000 - Debit: 1 -> Unknown GL Account: 999999", errs[0])
}
