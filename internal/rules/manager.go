package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
)

// Manager owns a rule set and serializes edits to it.
type Manager struct {
	set    *model.RuleSet
	logger *slog.Logger
	now    func() time.Time
	mu     sync.RWMutex
}

// NewManager wraps set. A nil set starts from DefaultRuleSet.
func NewManager(set *model.RuleSet, logger *slog.Logger) *Manager {
	if set == nil {
		set = DefaultRuleSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		set:    set,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source used for modification stamps.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// RuleSet returns a snapshot of the managed configuration.
func (m *Manager) RuleSet() *model.RuleSet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := *m.set
	out.ClassificationRules = append([]model.ClassificationRule(nil), m.set.ClassificationRules...)
	out.ApprovalRules = append([]model.ApprovalRule(nil), m.set.ApprovalRules...)
	out.ValidationRules = append([]model.ValidationRule(nil), m.set.ValidationRules...)
	return &out
}

// Replace swaps in a new rule set after validating it.
func (m *Manager) Replace(set *model.RuleSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = set
	m.logger.Info("Replaced business rules",
		"classification", len(set.ClassificationRules),
		"approval", len(set.ApprovalRules),
		"validation", len(set.ValidationRules))
	return nil
}

// Settings returns the global settings.
func (m *Manager) Settings() model.GlobalSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.GlobalSettings
}

// ClassificationRules returns the active classification rules ordered by
// priority descending. An empty category returns every category.
func (m *Manager) ClassificationRules(category string) []model.ClassificationRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ClassificationRule
	for _, r := range m.set.ClassificationRules {
		if !r.IsActive {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// ApprovalRules returns the active approval rules in document order.
func (m *Manager) ApprovalRules() []model.ApprovalRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ApprovalRule
	for _, r := range m.set.ApprovalRules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out
}

// ApprovalRuleFor returns the first active approval rule matching amount and category.
func (m *Manager) ApprovalRuleFor(amount decimal.Decimal, category string) (model.ApprovalRule, bool) {
	for _, r := range m.ApprovalRules() {
		if r.Conditions.Matches(amount, category) {
			return r, true
		}
	}
	return model.ApprovalRule{}, false
}

// ValidationRules returns the active validation rules, optionally of one type.
func (m *Manager) ValidationRules(ruleType model.ValidationType) []model.ValidationRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ValidationRule
	for _, r := range m.set.ValidationRules {
		if !r.IsActive {
			continue
		}
		if ruleType != "" && r.RuleType != ruleType {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Get returns a copy of the rule with the given ID, searching every kind.
func (m *Manager) Get(id string) (model.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := m.find(id)
	if r == nil {
		return nil, fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}
	switch v := r.(type) {
	case *model.ClassificationRule:
		c := *v
		return &c, nil
	case *model.ApprovalRule:
		c := *v
		return &c, nil
	case *model.ValidationRule:
		c := *v
		return &c, nil
	}
	return r, nil
}

// Add appends a rule of any kind. IDs must be unique across the set.
func (m *Manager) Add(rule model.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.find(rule.ID()) != nil {
		return fmt.Errorf("rule %s: %w", rule.ID(), common.ErrDuplicateEntry)
	}

	now := m.now()
	switch v := rule.(type) {
	case *model.ClassificationRule:
		v.CreatedDate = now
		v.LastModified = now
		m.set.ClassificationRules = append(m.set.ClassificationRules, *v)
	case *model.ApprovalRule:
		m.set.ApprovalRules = append(m.set.ApprovalRules, *v)
	case *model.ValidationRule:
		m.set.ValidationRules = append(m.set.ValidationRules, *v)
	default:
		return fmt.Errorf("%w: unsupported rule type %T", model.ErrInvalidRule, rule)
	}
	m.set.LastUpdated = now

	m.logger.Info("Added rule", "rule_id", rule.ID(), "kind", rule.Kind())
	return nil
}

// UpdateClassificationRule applies fn to the classification rule with id.
// The edit is discarded when the result fails validation.
func (m *Manager) UpdateClassificationRule(id string, fn func(*model.ClassificationRule)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.set.ClassificationRules {
		if m.set.ClassificationRules[i].RuleID != id {
			continue
		}
		updated := m.set.ClassificationRules[i]
		fn(&updated)
		if updated.RuleID != id {
			return fmt.Errorf("%w: rule id cannot be changed", model.ErrInvalidRule)
		}
		if err := updated.Validate(); err != nil {
			return err
		}
		now := m.now()
		updated.LastModified = now
		m.set.ClassificationRules[i] = updated
		m.set.LastUpdated = now
		m.logger.Info("Updated classification rule", "rule_id", id)
		return nil
	}
	return fmt.Errorf("classification rule %s: %w", id, common.ErrNotFound)
}

// Remove deletes the rule with id, whatever its kind.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := false
	m.set.ClassificationRules, removed = removeByID(m.set.ClassificationRules, id, removed)
	m.set.ApprovalRules, removed = removeByID(m.set.ApprovalRules, id, removed)
	m.set.ValidationRules, removed = removeByID(m.set.ValidationRules, id, removed)
	if !removed {
		return fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}
	m.set.LastUpdated = m.now()
	m.logger.Info("Removed rule", "rule_id", id)
	return nil
}

// Enable activates the rule with id.
func (m *Manager) Enable(id string) error {
	return m.setActive(id, true)
}

// Disable deactivates the rule with id.
func (m *Manager) Disable(id string) error {
	return m.setActive(id, false)
}

func (m *Manager) setActive(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.find(id)
	if r == nil {
		return fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}
	r.SetActive(active)
	now := m.now()
	if c, ok := r.(*model.ClassificationRule); ok {
		c.LastModified = now
	}
	m.set.LastUpdated = now
	m.logger.Info("Changed rule state", "rule_id", id, "active", active)
	return nil
}

// Validate reports consistency problems without rejecting the set.
func (m *Manager) Validate() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var issues []string
	seen := make(map[string]bool)
	dupReported := false
	for _, r := range m.set.ClassificationRules {
		if seen[r.RuleID] && !dupReported {
			issues = append(issues, "Duplicate classification rule IDs found")
			dupReported = true
		}
		seen[r.RuleID] = true
	}
	for _, r := range m.set.ClassificationRules {
		if len(r.Keywords) == 0 {
			issues = append(issues, fmt.Sprintf("Classification rule %s has no keywords", r.RuleID))
		}
		if len(r.GLAccountPatterns) == 0 {
			issues = append(issues, fmt.Sprintf("Classification rule %s has no GL account patterns", r.RuleID))
		}
	}
	for _, r := range m.set.Rules() {
		if err := r.Validate(); err != nil {
			issues = append(issues, err.Error())
		}
	}
	return issues
}

// find returns a pointer into the managed set. Callers hold the lock.
func (m *Manager) find(id string) model.Rule {
	for _, r := range m.set.Rules() {
		if r.ID() == id {
			return r
		}
	}
	return nil
}

func removeByID[T any, P interface {
	*T
	model.Rule
}](rules []T, id string, removed bool) ([]T, bool) {
	out := rules[:0]
	for i := range rules {
		if P(&rules[i]).ID() == id {
			removed = true
			continue
		}
		out = append(out, rules[i])
	}
	return out, removed
}
