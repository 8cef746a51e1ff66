package pattern

import (
	"fmt"
	"strings"
)

// GLCategoryValidator checks GL accounts against per-category pattern lists.
type GLCategoryValidator struct {
	patterns map[string][]string
}

// NewGLCategoryValidator creates a validator from category→pattern lists.
func NewGLCategoryValidator(patterns map[string][]string) *GLCategoryValidator {
	normalized := make(map[string][]string, len(patterns))
	for cat, list := range patterns {
		normalized[strings.ToLower(cat)] = list
	}
	return &GLCategoryValidator{patterns: normalized}
}

// Validate returns an error when the category declares patterns and none of
// them match the GL account. Categories without patterns accept any account.
func (v *GLCategoryValidator) Validate(category, glAccount string) error {
	list, ok := v.patterns[strings.ToLower(category)]
	if !ok || len(list) == 0 {
		return nil
	}
	if MatchAnyGL(list, glAccount) {
		return nil
	}
	return fmt.Errorf("GL account %s does not match %s patterns %v", glAccount, category, list)
}
