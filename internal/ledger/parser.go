// Package ledger turns free-text ledger lines into transactions and groups them
// by account.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
)

// linePattern finds "<account> - Debit|Credit: <amount>" anywhere in a line.
// The account capture is a digit-led run of at least ten characters, so dotted
// prose ("ref no.") is skipped; the fixed-width grammar is enforced afterwards
// by model.ParseAccount.
var linePattern = regexp.MustCompile(
	`(?i)(?P<account>\b[0-9][0-9a-z.]{9,})\s*[-–—]\s*(?P<type>debit|credit)\s*:\s*(?P<amount>[\d,]+(?:\.\d{1,2})?)`,
)

var (
	accountGroup = linePattern.SubexpIndex("account")
	typeGroup    = linePattern.SubexpIndex("type")
	amountGroup  = linePattern.SubexpIndex("amount")
)

// ParseError reports the input line that stopped parsing.
type ParseError struct {
	Err        error
	Line       string
	Token      string
	LineNumber int
}

func (e *ParseError) Error() string {
	if errors.Is(e.Err, model.ErrMalformedAccount) {
		return fmt.Sprintf("Malformed account number: %s", e.Token)
	}
	return fmt.Sprintf("line %d: %v", e.LineNumber, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseLines parses every transaction line in text.
// Lines that do not look like a transaction are skipped. A line that looks
// like a transaction but carries a malformed account or amount aborts parsing.
func ParseLines(text string) ([]model.Transaction, error) {
	var txns []model.Transaction

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		txn, ok, err := ParseLine(line)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.LineNumber = lineNumber
			}
			return nil, err
		}
		if ok {
			txns = append(txns, txn)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	return txns, nil
}

// ParseLine parses a single trimmed line. ok is false when the line is not a
// transaction.
func ParseLine(line string) (txn model.Transaction, ok bool, err error) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return model.Transaction{}, false, nil
	}

	token := m[accountGroup]
	account, err := model.ParseAccount(token)
	if err != nil {
		return model.Transaction{}, false, &ParseError{Err: err, Line: line, Token: token}
	}

	amount, err := ParseAmount(m[amountGroup])
	if err != nil {
		return model.Transaction{}, false, &ParseError{Err: err, Line: line, Token: m[amountGroup]}
	}

	return model.Transaction{
		RawLine: line,
		Account: account,
		Amount:  amount,
		IsDebit: strings.EqualFold(m[typeGroup], model.EntryDebit),
	}, true, nil
}

// ParseAmount converts an amount that may use "," thousands separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", model.ErrInvalidAmount, s)
	}
	return amount, nil
}
