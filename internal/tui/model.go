// Package tui implements the interactive rules browser: a table of
// classification rules with a live classification tester.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/treasury-vouchers/internal/ledger"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/tui/themes"
)

// RuleSource lists rules and flips their active state.
type RuleSource interface {
	RuleSet() *model.RuleSet
	Enable(id string) error
	Disable(id string) error
}

// Classifier classifies one description and amount.
type Classifier interface {
	Classify(ctx context.Context, description string, amount decimal.Decimal) model.VoucherClassification
}

// State is the focused pane.
type State int

// Panes.
const (
	StateRules State = iota
	StateTester
)

// Config configures the rules browser.
type Config struct {
	Rules      RuleSource
	Classifier Classifier
	Theme      themes.Theme
	Context    context.Context
	Width      int
	Height     int
}

type classifiedMsg struct {
	result model.VoucherClassification
	input  string
}

// Model holds the rules browser state.
type Model struct {
	ctx         context.Context
	rules       RuleSource
	classifier  Classifier
	lastResult  *classifiedMsg
	theme       themes.Theme
	status      string
	filter      string
	keymap      KeyMap
	help        help.Model
	table       table.Model
	description textinput.Model
	amount      textinput.Model
	categories  []string
	visible     []model.ClassificationRule
	width       int
	height      int
	state       State
	changed     bool
	quitting    bool
}

// New creates the browser model.
func New(cfg Config) Model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	width, height := cfg.Width, cfg.Height
	if width == 0 {
		width = 100
	}
	if height == 0 {
		height = 30
	}

	desc := textinput.New()
	desc.Placeholder = "GL account description, e.g. Office Supplies"
	desc.CharLimit = 120
	desc.Width = 50
	desc.Cursor.SetMode(cursor.CursorStatic)

	amount := textinput.New()
	amount.Placeholder = "Amount, e.g. 1,500.00"
	amount.CharLimit = 24
	amount.Width = 20
	amount.Cursor.SetMode(cursor.CursorStatic)

	m := Model{
		ctx:         ctx,
		rules:       cfg.Rules,
		classifier:  cfg.Classifier,
		theme:       cfg.Theme,
		keymap:      DefaultKeyMap(),
		help:        help.New(),
		description: desc,
		amount:      amount,
		width:       width,
		height:      height,
	}
	m.table = table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(tableHeight(height)),
	)
	styles := table.DefaultStyles()
	styles.Header = m.theme.Header
	styles.Selected = m.theme.Selected
	m.table.SetStyles(styles)
	m.reload()
	return m
}

func columns(width int) []table.Column {
	fixed := 10 + 15 + 16 + 9 + 8
	rest := width - fixed - 12
	if rest < 20 {
		rest = 20
	}
	return []table.Column{
		{Title: "Rule", Width: 10},
		{Title: "Category", Width: 15},
		{Title: "Subcategory", Width: 16},
		{Title: "Priority", Width: 9},
		{Title: "Active", Width: 8},
		{Title: "Keywords", Width: rest},
	}
}

func tableHeight(height int) int {
	h := height - 14
	if h < 3 {
		h = 3
	}
	return h
}

// reload rebuilds the visible rows from the rule source, keeping the cursor.
func (m *Model) reload() {
	set := m.rules.RuleSet()
	all := append([]model.ClassificationRule(nil), set.ClassificationRules...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })

	seen := map[string]bool{}
	m.categories = m.categories[:0]
	m.visible = m.visible[:0]
	for _, r := range all {
		if !seen[r.Category] {
			seen[r.Category] = true
			m.categories = append(m.categories, r.Category)
		}
		if m.filter == "" || r.Category == m.filter {
			m.visible = append(m.visible, r)
		}
	}
	sort.Strings(m.categories)

	rows := make([]table.Row, 0, len(m.visible))
	for _, r := range m.visible {
		active := "no"
		if r.IsActive {
			active = "yes"
		}
		rows = append(rows, table.Row{
			r.RuleID, r.Category, r.Subcategory, strconv.Itoa(r.Priority), active,
			strings.Join(r.Keywords, ", "),
		})
	}
	cursor := m.table.Cursor()
	m.table.SetRows(rows)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	m.table.SetCursor(cursor)
}

// Changed reports whether any rule was enabled or disabled.
func (m Model) Changed() bool { return m.changed }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(tableHeight(msg.Height))
		m.help.Width = msg.Width
		return m, nil

	case classifiedMsg:
		m.lastResult = &msg
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.ForceQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.state == StateTester {
			return m.updateTester(msg)
		}
		return m.updateRules(msg)
	}
	return m, nil
}

func (m Model) updateRules(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keymap.Toggle):
		m.toggleSelected()
		return m, nil
	case key.Matches(msg, m.keymap.Filter):
		m.cycleFilter()
		return m, nil
	case key.Matches(msg, m.keymap.Tester):
		m.state = StateTester
		m.table.Blur()
		return m, m.description.Focus()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) toggleSelected() {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return
	}
	r := m.visible[idx]

	var err error
	if r.IsActive {
		err = m.rules.Disable(r.RuleID)
	} else {
		err = m.rules.Enable(r.RuleID)
	}
	if err != nil {
		m.status = m.theme.StatusError.Render(err.Error())
		return
	}

	m.changed = true
	state := "enabled"
	if r.IsActive {
		state = "disabled"
	}
	m.status = m.theme.StatusSuccess.Render(fmt.Sprintf("%s %s", r.RuleID, state))
	m.reload()
}

func (m *Model) cycleFilter() {
	if len(m.categories) == 0 {
		return
	}
	next := ""
	if m.filter == "" {
		next = m.categories[0]
	} else {
		for i, c := range m.categories {
			if c == m.filter && i+1 < len(m.categories) {
				next = m.categories[i+1]
			}
		}
	}
	m.filter = next
	m.table.SetCursor(0)
	m.reload()
}

func (m Model) updateTester(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Back), key.Matches(msg, m.keymap.Tester) && msg.String() == "tab":
		m.state = StateRules
		m.description.Blur()
		m.amount.Blur()
		m.table.Focus()
		return m, nil

	case key.Matches(msg, m.keymap.Classify):
		if m.description.Focused() {
			m.description.Blur()
			return m, m.amount.Focus()
		}
		return m, m.classify()
	}

	var cmd tea.Cmd
	if m.description.Focused() {
		m.description, cmd = m.description.Update(msg)
	} else {
		m.amount, cmd = m.amount.Update(msg)
	}
	return m, cmd
}

// classify runs the classifier on the tester inputs.
func (m *Model) classify() tea.Cmd {
	desc := strings.TrimSpace(m.description.Value())
	if desc == "" {
		m.status = m.theme.StatusWarning.Render("enter a description first")
		return nil
	}
	amount := decimal.NewFromInt(0)
	if raw := strings.TrimSpace(m.amount.Value()); raw != "" {
		parsed, err := ledger.ParseAmount(raw)
		if err != nil {
			m.status = m.theme.StatusError.Render(fmt.Sprintf("invalid amount %q", raw))
			return nil
		}
		amount = parsed
	}
	m.status = ""

	ctx, classifier := m.ctx, m.classifier
	input := fmt.Sprintf("%s (%s)", desc, amount.StringFixed(2))
	return func() tea.Msg {
		return classifiedMsg{input: input, result: classifier.Classify(ctx, desc, amount)}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	filter := "all categories"
	if m.filter != "" {
		filter = m.filter
	}
	title := m.theme.Title.Render("Classification Rules")
	subtitle := m.theme.Subtitle.Render(fmt.Sprintf("%d rules · %s", len(m.visible), filter))

	sections := []string{
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, "  ", subtitle),
		m.theme.BorderedBox.Render(m.table.View()),
		m.testerView(),
	}
	if m.status != "" {
		sections = append(sections, m.status)
	}
	sections = append(sections, m.help.View(m.keymap))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) testerView() string {
	heading := m.theme.Subtitle.Render("Tester (Tab to focus)")
	if m.state == StateTester {
		heading = m.theme.Title.Render("Tester")
	}
	lines := []string{heading, m.description.View(), m.amount.View()}

	if r := m.lastResult; r != nil {
		c := r.result
		lines = append(lines,
			"",
			m.theme.Normal.Render(r.input),
			fmt.Sprintf("→ %s / %s  approval %s  risk %s  rule %s (%s)",
				m.theme.StatusSuccess.Render(c.Category), c.Subcategory,
				c.ApprovalLevel, c.RiskLevel, c.RuleID, c.Source),
		)
		if len(c.ComplianceChecks) > 0 {
			lines = append(lines, m.theme.StatusPending.Render("checks: "+strings.Join(c.ComplianceChecks, ", ")))
		}
	}
	return m.theme.BorderedBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
