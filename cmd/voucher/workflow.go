package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/treasury-vouchers/internal/cli"
	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/config"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/render"
	"github.com/Veraticus/treasury-vouchers/internal/service"
	"github.com/Veraticus/treasury-vouchers/internal/storage"
	"github.com/Veraticus/treasury-vouchers/internal/voucher"
	"github.com/Veraticus/treasury-vouchers/internal/workflow"
)

const timeLayout = "2006-01-02 15:04"

func workflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Drive approval workflows of saved vouchers",
		Long: `Approval workflows are created for vouchers that need sign-off and saved with
"voucher process --save". Workflows are addressed by workflow ID (WF-...) or by
voucher number.`,
	}

	cmd.AddCommand(workflowListCmd())
	cmd.AddCommand(workflowShowCmd())
	cmd.AddCommand(workflowDecisionCmd("approve"))
	cmd.AddCommand(workflowDecisionCmd("reject"))
	cmd.AddCommand(workflowCancelCmd())
	cmd.AddCommand(workflowTimeoutsCmd())

	return cmd
}

// openRegister loads the configuration and opens the register database.
func openRegister(cmd *cobra.Command) (*config.Config, *storage.SQLiteStorage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, common.NewUserError("Failed to open database", err)
	}
	return cfg, db, nil
}

func workflowListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openRegister(cmd)
			if err != nil {
				return err
			}
			defer closeQuietly(db, "database")

			workflows, err := db.ListWorkflows(cmd.Context(), model.ApprovalStatus(strings.ToLower(status)))
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(workflows) == 0 {
				_, _ = fmt.Fprintln(out, cli.FormatInfo("No workflows found"))
				return nil
			}

			rows := make([][]string, len(workflows))
			for i := range workflows {
				s := workflow.Status(&workflows[i])
				next := s.NextApprover
				if next == "" {
					next = "-"
				}
				rows[i] = []string{
					s.WorkflowID,
					s.VoucherNumber,
					string(workflows[i].ApprovalLevel),
					string(s.Status),
					s.Progress,
					next,
					s.CreatedDate.Format(timeLayout),
				}
			}
			_, _ = fmt.Fprintln(out, cli.FormatTitle("Approval workflows"))
			_, _ = fmt.Fprintln(out, cli.RenderTable([]string{"Workflow", "Voucher", "Level", "Status", "Progress", "Next", "Created"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(model.StatusPending), "pending, approved, rejected, escalated, cancelled, or empty for all")
	return cmd
}

// findWorkflow resolves ref as a workflow ID or a voucher number.
func findWorkflow(ctx context.Context, store service.WorkflowStore, ref string) (*model.ApprovalWorkflow, error) {
	var (
		wf  *model.ApprovalWorkflow
		err error
	)
	if strings.HasPrefix(ref, "WF-") {
		wf, err = store.GetWorkflow(ctx, ref)
	} else {
		wf, err = store.GetWorkflowByVoucher(ctx, ref)
	}
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewUserError("No workflow for "+ref, err)
	}
	return wf, err
}

func workflowShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow-id|voucher-number>",
		Short: "Show a workflow and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openRegister(cmd)
			if err != nil {
				return err
			}
			defer closeQuietly(db, "database")

			wf, err := findWorkflow(cmd.Context(), db, args[0])
			if err != nil {
				return err
			}
			printWorkflow(cmd.OutOrStdout(), wf, cfg.Processing.Currency)
			return nil
		},
	}
}

func printWorkflow(w io.Writer, wf *model.ApprovalWorkflow, currency string) {
	s := workflow.Status(wf)
	amount, entry := render.FormatMoney(wf.Amount, currency)

	lines := []string{
		fmt.Sprintf("Voucher:  %s", wf.VoucherNumber),
		fmt.Sprintf("Amount:   %s (%s)", amount, entry),
		fmt.Sprintf("Level:    %s", wf.ApprovalLevel),
		fmt.Sprintf("Status:   %s", wf.Status),
		fmt.Sprintf("Progress: %s", s.Progress),
		fmt.Sprintf("Created:  %s", wf.CreatedDate.Format(timeLayout)),
	}
	if s.NextApprover != "" {
		lines = append(lines, "Next:     "+s.NextApprover)
	}
	if wf.CompletedDate != nil {
		lines = append(lines, "Closed:   "+wf.CompletedDate.Format(timeLayout))
	}
	if wf.EscalationReason != "" {
		lines = append(lines, "Reason:   "+wf.EscalationReason)
	}
	_, _ = fmt.Fprintln(w, cli.RenderBox(wf.WorkflowID, strings.Join(lines, "\n")))

	rows := make([][]string, len(wf.Steps))
	for i, step := range wf.Steps {
		due, acted := "-", "-"
		if step.DueDate != nil {
			due = step.DueDate.Format(timeLayout)
		}
		if step.ActedAt != nil {
			acted = step.ActedAt.Format(timeLayout)
		}
		marker := " "
		if i == wf.CurrentStep && step.Status == model.StatusPending {
			marker = "→"
		}
		rows[i] = []string{marker, step.StepID, step.Role, string(step.Status), due, step.ApproverName, acted, step.Comments}
	}
	_, _ = fmt.Fprintln(w, cli.RenderTable([]string{"", "Step", "Role", "Status", "Due", "Approver", "Acted", "Comments"}, rows))
}

type decisionOptions struct {
	step     string
	approver string
	comments string
}

func workflowDecisionCmd(verb string) *cobra.Command {
	var opts decisionOptions

	cmd := &cobra.Command{
		Use:   verb + " <workflow-id|voucher-number>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " the current (or given) approval step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openRegister(cmd)
			if err != nil {
				return err
			}
			defer closeQuietly(db, "database")

			wf, err := decide(cmd.Context(), db, workflow.NewManager(cfg.Workflow, nil, slog.Default()), verb, args[0], opts)
			if err != nil {
				return err
			}

			msg := fmt.Sprintf("%s: workflow is %s", wf.WorkflowID, wf.Status)
			if next := workflow.NextApprover(wf); next != "" && wf.Status == model.StatusPending {
				msg += ", next approver " + next
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
			if wf.Status == model.StatusEscalated {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(wf.EscalationReason))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.step, "step", "", "step ID (default: the current step)")
	cmd.Flags().StringVar(&opts.approver, "approver", "", "name of the approver")
	cmd.Flags().StringVar(&opts.comments, "comments", "", "comments recorded on the step")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}

// decide applies an approve or reject decision and saves the result.
func decide(ctx context.Context, store service.Storage, manager *workflow.Manager, verb, ref string, opts decisionOptions) (*model.ApprovalWorkflow, error) {
	wf, err := findWorkflow(ctx, store, ref)
	if err != nil {
		return nil, err
	}

	stepID := opts.step
	if stepID == "" {
		if wf.CurrentStep >= len(wf.Steps) {
			return nil, common.NewUserError("Workflow has no pending step", workflow.ErrWorkflowClosed)
		}
		stepID = wf.Steps[wf.CurrentStep].StepID
	}

	apply := manager.Approve
	if verb == "reject" {
		apply = manager.Reject
	}
	if err := apply(wf, stepID, opts.approver, opts.comments); err != nil {
		return nil, common.NewUserError("Cannot "+verb+" "+stepID, err)
	}

	if err := persistWorkflow(ctx, store, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// persistWorkflow saves wf and mirrors its status onto the voucher register.
func persistWorkflow(ctx context.Context, store service.Storage, wf *model.ApprovalWorkflow) error {
	if err := store.SaveWorkflow(ctx, wf); err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	record, err := store.GetVoucher(ctx, wf.VoucherNumber)
	if errors.Is(err, common.ErrNotFound) {
		slog.Debug("Workflow has no saved voucher", "workflow_id", wf.WorkflowID, "voucher", wf.VoucherNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load voucher: %w", err)
	}

	status := voucher.StatusFor(wf.Status)
	if record.Status == status {
		return nil
	}
	record.Status = status
	if err := store.SaveVoucher(ctx, record); err != nil {
		return fmt.Errorf("failed to update voucher status: %w", err)
	}
	return nil
}

func workflowCancelCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <workflow-id|voucher-number>",
		Short: "Cancel an open workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openRegister(cmd)
			if err != nil {
				return err
			}
			defer closeQuietly(db, "database")

			wf, err := findWorkflow(cmd.Context(), db, args[0])
			if err != nil {
				return err
			}
			manager := workflow.NewManager(cfg.Workflow, nil, slog.Default())
			if err := manager.Cancel(wf, reason); err != nil {
				return common.NewUserError("Cannot cancel workflow", err)
			}
			if err := persistWorkflow(cmd.Context(), db, wf); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(wf.WorkflowID+" cancelled"))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the cancelled steps")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func workflowTimeoutsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeouts",
		Short: "Report overdue steps and escalate stale workflows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openRegister(cmd)
			if err != nil {
				return err
			}
			defer closeQuietly(db, "database")

			report, err := checkTimeouts(cmd.Context(), db, workflow.NewManager(cfg.Workflow, nil, slog.Default()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(report) == 0 {
				_, _ = fmt.Fprintln(out, cli.FormatSuccess("No overdue approvals"))
				return nil
			}
			for _, line := range report {
				_, _ = fmt.Fprintln(out, cli.FormatWarning(line))
			}
			return nil
		},
	}
}

// checkTimeouts runs the timeout check over every open workflow and saves
// the ones that changed status.
func checkTimeouts(ctx context.Context, store service.Storage, manager *workflow.Manager) ([]string, error) {
	workflows, err := store.ListWorkflows(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	var report []string
	for i := range workflows {
		wf := &workflows[i]
		if wf.Status != model.StatusPending && wf.Status != model.StatusEscalated {
			continue
		}
		before := wf.Status
		for _, msg := range manager.CheckTimeouts(wf) {
			report = append(report, wf.WorkflowID+": "+msg)
		}
		if wf.Status != before {
			if err := persistWorkflow(ctx, store, wf); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}
