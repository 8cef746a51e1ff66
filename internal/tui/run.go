package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the rules browser until the user quits. It reports whether any
// rule was enabled or disabled so the caller can persist the rule set.
func Run(ctx context.Context, cfg Config) (bool, error) {
	if cfg.Rules == nil {
		return false, errors.New("rule source is required")
	}
	if cfg.Classifier == nil {
		return false, errors.New("classifier is required")
	}
	cfg.Context = ctx

	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return false, fmt.Errorf("rules browser failed: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return false, nil
	}
	return m.Changed(), nil
}
