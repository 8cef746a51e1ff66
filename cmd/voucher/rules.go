package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/treasury-vouchers/internal/cli"
	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/ledger"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/render"
	"github.com/Veraticus/treasury-vouchers/internal/rules"
	"github.com/Veraticus/treasury-vouchers/internal/tui"
	"github.com/Veraticus/treasury-vouchers/internal/tui/themes"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage business rules",
		Long: `Inspect and edit the classification, approval and validation rules.

Rules come from rules.source: the built-in defaults (read-only), a JSON or YAML
file, or the SQLite database.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesToggleCmd("enable", true))
	cmd.AddCommand(rulesToggleCmd("disable", false))
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesExportCmd())
	cmd.AddCommand(rulesImportCmd())
	cmd.AddCommand(rulesValidateCmd())
	cmd.AddCommand(rulesTestCmd())
	cmd.AddCommand(rulesBrowseCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	var (
		kind     string
		category string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			set := src.Manager.RuleSet()
			var rows [][]string
			for _, r := range set.Rules() {
				if kind != "" && string(r.Kind()) != kind {
					continue
				}
				if !all && !r.Active() {
					continue
				}
				if category != "" && !strings.EqualFold(ruleCategory(r), category) {
					continue
				}
				rows = append(rows, ruleRow(r))
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Business rules (%s)", src.origin)))
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(out, cli.FormatInfo("No rules match"))
				return nil
			}
			_, _ = fmt.Fprintln(out, cli.RenderTable([]string{"ID", "Kind", "Name", "Category", "Priority", "Active"}, rows))
			_, _ = fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("%d rules", len(rows))))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only rules of this kind (classification, approval, validation)")
	cmd.Flags().StringVar(&category, "category", "", "only rules for this category")
	cmd.Flags().BoolVar(&all, "all", false, "include disabled rules")
	return cmd
}

func ruleRow(r model.Rule) []string {
	var name, priority string
	switch v := r.(type) {
	case *model.ClassificationRule:
		name, priority = v.Name, strconv.Itoa(v.Priority)
	case *model.ApprovalRule:
		name, priority = v.Name, string(v.ApprovalLevel)
	case *model.ValidationRule:
		name, priority = v.Name, string(v.RuleType)
	}
	active := cli.SuccessIcon
	if !r.Active() {
		active = cli.ErrorIcon
	}
	return []string{r.ID(), string(r.Kind()), name, ruleCategory(r), priority, active}
}

func ruleCategory(r model.Rule) string {
	switch v := r.(type) {
	case *model.ClassificationRule:
		return v.Category
	case *model.ApprovalRule:
		return strings.Join(v.Conditions.Categories, ",")
	case *model.ValidationRule:
		return v.Conditions.Category
	}
	return ""
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show one rule as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			rule, err := src.Manager.Get(args[0])
			if err != nil {
				return common.NewUserError("Rule not found", err)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(rule); err != nil {
				return fmt.Errorf("failed to encode rule: %w", err)
			}
			return enc.Close()
		},
	}
}

type addRuleOptions struct {
	file        string
	id          string
	name        string
	description string
	category    string
	subcategory string
	minAmount   string
	maxAmount   string
	keywords    []string
	glPatterns  []string
	priority    int
}

func rulesAddCmd() *cobra.Command {
	var opts addRuleOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a classification rule, or every rule of a rules document",
		Example: `  voucher rules add --id CLN-001 --category Operating --subcategory Cleaning \
    --keywords cleaning,janitorial --gl-patterns 6* --priority 80
  voucher rules add --file extra-rules.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()
			if !src.Writable() {
				return readOnlyRulesError()
			}

			added, err := addRules(src.Manager, opts)
			if err != nil {
				return err
			}
			if err := src.Save(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %s", strings.Join(added, ", "))))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "rules document (JSON or YAML) whose rules are added")
	cmd.Flags().StringVar(&opts.id, "id", "", "rule ID")
	cmd.Flags().StringVar(&opts.name, "name", "", "rule name")
	cmd.Flags().StringVar(&opts.description, "description", "", "rule description")
	cmd.Flags().StringVar(&opts.category, "category", "", "category assigned by the rule")
	cmd.Flags().StringVar(&opts.subcategory, "subcategory", "", "subcategory assigned by the rule")
	cmd.Flags().StringSliceVar(&opts.keywords, "keywords", nil, "description keywords")
	cmd.Flags().StringSliceVar(&opts.glPatterns, "gl-patterns", nil, "GL account patterns (trailing * wildcard)")
	cmd.Flags().IntVar(&opts.priority, "priority", 50, "rule priority (higher wins)")
	cmd.Flags().StringVar(&opts.minAmount, "min-amount", "", "smallest amount the rule accepts")
	cmd.Flags().StringVar(&opts.maxAmount, "max-amount", "", "largest amount the rule accepts")
	return cmd
}

// addRules adds the rules described by opts and returns their IDs.
func addRules(manager *rules.Manager, opts addRuleOptions) ([]string, error) {
	if opts.file != "" {
		set, err := readRulesFile(opts.file)
		if err != nil {
			return nil, err
		}
		var added []string
		for _, r := range set.Rules() {
			if err := manager.Add(r); err != nil {
				return added, common.NewUserError("Failed to add rule "+r.ID(), err)
			}
			added = append(added, r.ID())
		}
		return added, nil
	}

	if opts.id == "" || opts.category == "" {
		return nil, common.NewUserError("--id and --category are required without --file", nil)
	}
	rule := &model.ClassificationRule{
		RuleID:            opts.id,
		Name:              opts.name,
		Description:       opts.description,
		Category:          opts.category,
		Subcategory:       opts.subcategory,
		Keywords:          opts.keywords,
		GLAccountPatterns: opts.glPatterns,
		Priority:          opts.priority,
		IsActive:          true,
		CreatedBy:         "cli",
	}
	if opts.minAmount != "" || opts.maxAmount != "" {
		rng, err := amountRange(opts.minAmount, opts.maxAmount)
		if err != nil {
			return nil, common.NewUserError("Invalid amount range", err)
		}
		rule.AmountRanges = []model.AmountRange{rng}
	}
	if err := manager.Add(rule); err != nil {
		return nil, common.NewUserError("Failed to add rule", err)
	}
	return []string{rule.RuleID}, nil
}

// amountRange builds an inclusive range. A missing bound is open.
func amountRange(minAmount, maxAmount string) (model.AmountRange, error) {
	rng := model.AmountRange{
		Min: decimal.NewFromInt(0),
		Max: decimal.NewFromInt(999_999_999_999),
	}
	if minAmount != "" {
		v, err := ledger.ParseAmount(minAmount)
		if err != nil {
			return rng, err
		}
		rng.Min = v
	}
	if maxAmount != "" {
		v, err := ledger.ParseAmount(maxAmount)
		if err != nil {
			return rng, err
		}
		rng.Max = v
	}
	return rng, nil
}

func readRulesFile(path string) (*model.RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewUserError("Failed to open rules document", err)
	}
	defer func() { _ = f.Close() }()

	set, err := rules.Decode(f, rules.FormatForPath(path))
	if err != nil {
		return nil, common.NewUserError("Invalid rules document", err)
	}
	return set, nil
}

func rulesToggleCmd(verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <rule-id>...",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()
			if !src.Writable() {
				return readOnlyRulesError()
			}

			toggle := src.Manager.Disable
			if active {
				toggle = src.Manager.Enable
			}
			for _, id := range args {
				if err := toggle(id); err != nil {
					return common.NewUserError("Rule not found", err)
				}
			}
			if err := src.Save(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%sd %s", strings.ToUpper(verb[:1])+verb[1:], strings.Join(args, ", "))))
			return nil
		},
	}
}

func rulesDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()
			if !src.Writable() {
				return readOnlyRulesError()
			}

			id := args[0]
			if _, err := src.Manager.Get(id); err != nil {
				return common.NewUserError("Rule not found", err)
			}

			if !yes {
				ok, err := cli.Confirm(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete rule %s?", id))
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing deleted"))
					return nil
				}
			}

			if err := src.Manager.Remove(id); err != nil {
				return err
			}
			if err := src.Save(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+id))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func rulesExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the rule set as JSON or YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			set := src.Manager.RuleSet()
			if len(args) == 0 {
				return rules.Encode(cmd.OutOrStdout(), set, exportFormat(format, ""))
			}

			path := args[0]
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			if err := rules.Encode(f, set, exportFormat(format, path)); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess("Rules exported to "+path))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default: from the file extension, else json)")
	return cmd
}

func exportFormat(flag, path string) rules.Format {
	switch strings.ToLower(flag) {
	case "yaml", "yml":
		return rules.FormatYAML
	case "json":
		return rules.FormatJSON
	}
	return rules.FormatForPath(path)
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the rule set with a JSON or YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()
			if !src.Writable() {
				return readOnlyRulesError()
			}

			set, err := readRulesFile(args[0])
			if err != nil {
				return err
			}
			if err := src.Manager.Replace(set); err != nil {
				return common.NewUserError("Invalid rules document", err)
			}
			if err := src.Save(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Imported %d classification, %d approval and %d validation rules",
				len(set.ClassificationRules), len(set.ApprovalRules), len(set.ValidationRules))))
			return nil
		},
	}
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the rule set for problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			issues := src.Manager.Validate()
			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				_, _ = fmt.Fprintln(out, cli.FormatSuccess("Rule set is valid"))
				return nil
			}
			for _, issue := range issues {
				_, _ = fmt.Fprintln(out, cli.FormatWarning(issue))
			}
			return common.NewUserError(fmt.Sprintf("%d rule issues found", len(issues)), nil)
		},
	}
}

func rulesTestCmd() *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "test <description>",
		Short: "Classify a GL description with the current rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			value, err := ledger.ParseAmount(amount)
			if err != nil {
				return common.NewUserError("Invalid amount", err)
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			eng, err := newEngine(cmd.Context(), cfg, src.Manager)
			if err != nil {
				return err
			}

			c := eng.Classify(cmd.Context(), args[0], value)
			printClassification(cmd.OutOrStdout(), args[0], value, cfg.Processing.Currency, c)
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "1000", "transaction amount")
	return cmd
}

func printClassification(w io.Writer, description string, amount decimal.Decimal, currency string, c model.VoucherClassification) {
	formatted, entry := render.FormatMoney(amount, currency)
	rule := c.RuleID
	if rule == "" {
		rule = "-"
	}
	lines := []string{
		fmt.Sprintf("Amount:      %s (%s)", formatted, entry),
		fmt.Sprintf("Category:    %s / %s", c.Category, c.Subcategory),
		fmt.Sprintf("Approval:    %s", c.ApprovalLevel),
		fmt.Sprintf("Risk:        %s", c.RiskLevel),
		fmt.Sprintf("Rule:        %s (%s)", rule, c.Source),
	}
	if len(c.ComplianceChecks) > 0 {
		checks := make([]string, len(c.ComplianceChecks))
		for i, check := range c.ComplianceChecks {
			checks[i] = render.CheckTitle(check)
		}
		lines = append(lines, "Compliance:  "+strings.Join(checks, ", "))
	}
	if c.Reason != "" {
		lines = append(lines, "Reason:      "+c.Reason)
	}
	_, _ = fmt.Fprintln(w, cli.RenderBox(description, strings.Join(lines, "\n")))
}

func rulesBrowseCmd() *cobra.Command {
	var theme string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse, toggle and test rules interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := openRules(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			eng, err := newEngine(cmd.Context(), cfg, src.Manager)
			if err != nil {
				return err
			}

			changed, err := tui.Run(cmd.Context(), tui.Config{
				Rules:      src.Manager,
				Classifier: eng,
				Theme:      themes.ByName(viper.GetString("tui.theme")),
			})
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}

			if err := src.Save(cmd.Context()); err != nil {
				if errors.Is(err, errReadOnlyRules) {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning("Changes discarded: "+errReadOnlyRules.Error()))
					return nil
				}
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Rule changes saved"))
			return nil
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "", "color theme (default, catppuccin)")
	_ = viper.BindPFlag("tui.theme", cmd.Flags().Lookup("theme"))
	return cmd
}
