package engine

import (
	"context"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/service"
)

// Query is what the engine asks the oracle.
type Query = service.OracleQuery

// Oracle labels a description with one term of the query vocabulary.
type Oracle interface {
	Classify(ctx context.Context, q Query) (string, error)
}

// RuleProvider supplies the rules the engine evaluates.
type RuleProvider interface {
	ClassificationRules(category string) []model.ClassificationRule
	ApprovalRules() []model.ApprovalRule
}
