// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Account errors.
var (
	ErrMalformedAccount = errors.New("malformed account number")
	ErrInvalidAmount    = errors.New("invalid amount")
)

var accountPattern = regexp.MustCompile(`^(\d{3})\.(\d{7})\.(\d{6})\.(\d)\.(\d{6})\.(\d{6})\.(\d{6})$`)

// ParsedAccount is a fully validated seven-segment account reference.
type ParsedAccount struct {
	Entity      string
	CostCenter  string
	GLAccount   string
	BudgetGroup string
	Future1     string
	Future2     string
	Future3     string
}

// AccountKey identifies a group of transactions posted to the same account.
type AccountKey struct {
	Entity      string
	CostCenter  string
	GLAccount   string
	BudgetGroup string
}

// String joins the key segments the same way the account token does.
func (k AccountKey) String() string {
	return strings.Join([]string{k.Entity, k.CostCenter, k.GLAccount, k.BudgetGroup}, ".")
}

// ParseAccount validates token against the fixed-width account grammar.
func ParseAccount(token string) (ParsedAccount, error) {
	m := accountPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return ParsedAccount{}, fmt.Errorf("%w: %s", ErrMalformedAccount, token)
	}

	return ParsedAccount{
		Entity:      m[1],
		CostCenter:  m[2],
		GLAccount:   m[3],
		BudgetGroup: m[4],
		Future1:     m[5],
		Future2:     m[6],
		Future3:     m[7],
	}, nil
}

// Key returns the grouping key of the account.
func (a ParsedAccount) Key() AccountKey {
	return AccountKey{
		Entity:      a.Entity,
		CostCenter:  a.CostCenter,
		GLAccount:   a.GLAccount,
		BudgetGroup: a.BudgetGroup,
	}
}

func (a ParsedAccount) String() string {
	return strings.Join([]string{
		a.Entity, a.CostCenter, a.GLAccount, a.BudgetGroup,
		a.Future1, a.Future2, a.Future3,
	}, ".")
}

// AccountDescriptions holds the human-readable name of every account segment.
// A segment without a known description carries its raw code.
type AccountDescriptions struct {
	Entity      string `json:"entity"`
	CostCenter  string `json:"cost_center"`
	GLAccount   string `json:"gl_account"`
	BudgetGroup string `json:"budget_group"`
	Future1     string `json:"future1"`
	Future2     string `json:"future2"`
	Future3     string `json:"future3"`
}
