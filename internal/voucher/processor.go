package voucher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/engine"
	"github.com/Veraticus/treasury-vouchers/internal/ledger"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/render"
)

// Voucher statuses.
const (
	StatusPendingApproval = "Pending Approval"
	StatusApproved        = "Approved"
	StatusRejected        = "Rejected"
	StatusEscalated       = "Escalated"
	StatusCancelled       = "Cancelled"
)

// StatusFor maps a workflow status onto the voucher register status.
func StatusFor(status model.ApprovalStatus) string {
	switch status {
	case model.StatusApproved:
		return StatusApproved
	case model.StatusRejected:
		return StatusRejected
	case model.StatusEscalated:
		return StatusEscalated
	case model.StatusCancelled:
		return StatusCancelled
	default:
		return StatusPendingApproval
	}
}

// Export formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Classifier assigns a classification to a GL description.
type Classifier interface {
	Classify(ctx context.Context, description string, amount decimal.Decimal) model.VoucherClassification
}

// WorkflowCreator starts approval workflows.
type WorkflowCreator interface {
	Create(voucherNumber string, level model.ApprovalLevel, amount decimal.Decimal) (*model.ApprovalWorkflow, error)
}

// Reference resolves and checks account segments.
type Reference interface {
	ledger.Describer
	ledger.AccountValidator
}

// Options configures document metadata and layout.
type Options struct {
	Mode          engine.Mode
	Template      render.Template
	Prefix        string
	CreatedBy     string
	Department    string
	Currency      string
	International bool
}

// Deps are the collaborators of a Processor. Reference and Workflows may be nil.
type Deps struct {
	Classifier Classifier
	Validator  *Validator
	Workflows  WorkflowCreator
	Reference  Reference
	Logger     *slog.Logger
	Now        func() time.Time
}

// Voucher is one processed account group.
type Voucher struct {
	Workflow         *model.ApprovalWorkflow
	Record           model.VoucherRecord
	Document         render.Document
	Validation       Result
	TransactionCount int
}

// Stats counts processed groups over the life of a Processor.
type Stats struct {
	ByCategory      map[string]int `json:"by_category"`
	ByApprovalLevel map[string]int `json:"by_approval_level"`
	TotalProcessed  int            `json:"total_processed"`
	Successful      int            `json:"successful"`
	Failed          int            `json:"failed"`
}

// SuccessRate formats the share of successful groups.
func (s Stats) SuccessRate() string {
	total := s.TotalProcessed
	if total == 0 {
		total = 1
	}
	return fmt.Sprintf("%.1f%%", float64(s.Successful)/float64(total)*100)
}

// RunSummary describes one processing run.
type RunSummary struct {
	ProcessedAt       time.Time         `json:"processing_timestamp"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	CategoryBreakdown map[string]int    `json:"category_breakdown"`
	ApprovalBreakdown map[string]int    `json:"approval_breakdown"`
	Validation        ValidationSummary `json:"validation_summary"`
	TotalVouchers     int               `json:"total_vouchers"`
	TotalErrors       int               `json:"total_errors"`
}

// RunResult is the outcome of processing one batch of transactions.
type RunResult struct {
	RunID    string
	Vouchers []Voucher
	Errors   []string
	Warnings []string
	// Unbalanced is set when the batch debits and credits differ.
	Unbalanced string
	Summary    RunSummary
	Success    bool
}

// Records returns the voucher register rows of the run.
func (r *RunResult) Records() []model.VoucherRecord {
	out := make([]model.VoucherRecord, len(r.Vouchers))
	for i, v := range r.Vouchers {
		out[i] = v.Record
	}
	return out
}

// Processor turns parsed transactions into vouchers.
type Processor struct {
	deps     Deps
	options  Options
	stats    Stats
	progress func(done, total int)
	seq      int
}

// NewProcessor creates a processor. Missing option fields take defaults.
func NewProcessor(deps Deps, options Options) *Processor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Validator == nil {
		deps.Validator = NewValidator(nil)
	}
	if options.Mode == "" {
		options.Mode = engine.ModePaymentVoucher
	}
	if options.Template.Name == "" {
		options.Template, _ = render.TemplateFor(render.TemplateStandard)
	}
	if options.Prefix == "" {
		options.Prefix = "PV"
	}
	if options.CreatedBy == "" {
		options.CreatedBy = "System"
	}
	if options.Department == "" {
		options.Department = "Finance"
	}
	if options.Currency == "" {
		options.Currency = render.DefaultCurrency
	}

	return &Processor{
		deps:    deps,
		options: options,
		stats: Stats{
			ByCategory:      make(map[string]int),
			ByApprovalLevel: make(map[string]int),
		},
	}
}

// SetProgress registers a callback invoked after each group.
func (p *Processor) SetProgress(fn func(done, total int)) {
	p.progress = fn
}

// Stats returns a copy of the accumulated statistics.
func (p *Processor) Stats() Stats {
	s := p.stats
	s.ByCategory = copyCounts(p.stats.ByCategory)
	s.ByApprovalLevel = copyCounts(p.stats.ByApprovalLevel)
	return s
}

// Process groups txns by account, classifies, validates and renders each
// group. Group failures are recorded in the result and do not stop the run.
func (p *Processor) Process(ctx context.Context, txns []model.Transaction) (*RunResult, error) {
	if len(txns) == 0 {
		return nil, common.ErrNoTransactions
	}

	run := &RunResult{RunID: uuid.NewString()}
	common.LogInfo(p.deps.Logger, "Starting voucher processing", common.Fields{
		"run_id":       run.RunID,
		"transactions": len(txns),
		"mode":         string(p.options.Mode),
	})

	if p.deps.Reference != nil {
		run.Warnings = append(run.Warnings, ledger.ValidateAccounts(txns, p.deps.Reference)...)
	}
	debits, credits := ledger.Totals(txns)
	if w := render.UnbalancedWarning(debits, credits, ledger.BalanceTolerance); w != "" {
		run.Unbalanced = w
		run.Warnings = append(run.Warnings, w)
		common.LogWarn(p.deps.Logger, "Input batch is not balanced", common.Fields{
			"debits":  debits.StringFixed(2),
			"credits": credits.StringFixed(2),
		})
	}

	var describer ledger.Describer
	if p.deps.Reference != nil {
		describer = p.deps.Reference
	}
	groups := ledger.GroupByAccount(txns, describer)

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, err := p.processGroup(ctx, run.RunID, g)
		p.stats.TotalProcessed++
		if err != nil {
			msg := fmt.Sprintf("Error processing group %s: %v", g.Key, err)
			common.LogError(p.deps.Logger, err, "Group processing failed", common.Fields{"account": g.Key.String()})
			run.Errors = append(run.Errors, msg)
			p.stats.Failed++
		} else {
			run.Vouchers = append(run.Vouchers, v)
			p.stats.Successful++
		}

		if p.progress != nil {
			p.progress(i+1, len(groups))
		}
	}

	run.Success = len(run.Errors) == 0
	run.Summary = p.summarize(run)

	common.LogInfo(p.deps.Logger, "Voucher processing finished", common.Fields{
		"run_id":   run.RunID,
		"vouchers": len(run.Vouchers),
		"errors":   len(run.Errors),
	})
	return run, nil
}

func (p *Processor) processGroup(ctx context.Context, runID string, g ledger.Group) (Voucher, error) {
	classification := p.deps.Classifier.Classify(ctx, g.Descriptions.GLAccount, g.Net)

	validation := p.deps.Validator.Validate(Input{
		Amount:         g.Net,
		GLCode:         g.Key.GLAccount,
		Classification: classification,
		International:  p.options.International,
	})

	p.stats.ByCategory[classification.Category]++
	p.stats.ByApprovalLevel[string(classification.ApprovalLevel)]++

	now := p.deps.Now()
	number := p.nextNumber(now)

	var wf *model.ApprovalWorkflow
	if classification.RequiresApproval && p.deps.Workflows != nil {
		var err error
		wf, err = p.deps.Workflows.Create(number, classification.ApprovalLevel, g.Net)
		if err != nil {
			return Voucher{}, fmt.Errorf("create workflow: %w", err)
		}
	}

	doc := render.Document{
		VoucherNumber:  number,
		CreatedDate:    now,
		CreatedBy:      p.options.CreatedBy,
		Department:     p.options.Department,
		Currency:       p.options.Currency,
		Descriptions:   g.Descriptions,
		Net:            g.Net,
		Classification: classification,
		Workflow:       wf,
	}

	var content string
	if p.options.Mode == engine.ModeTreasury {
		content = render.TreasuryReceipt(doc)
	} else {
		content = render.PaymentVoucher(doc, p.options.Template, now)
	}

	status := StatusApproved
	if classification.RequiresApproval {
		status = StatusPendingApproval
	}

	record := model.VoucherRecord{
		VoucherNumber:  number,
		RunID:          runID,
		CreatedDate:    now,
		Amount:         g.Net,
		Account:        g.Key,
		Descriptions:   g.Descriptions,
		Classification: classification,
		Status:         status,
		Content:        content,
	}
	if wf != nil {
		record.WorkflowID = wf.WorkflowID
	}

	common.LogDebug(p.deps.Logger, "Voucher created", common.Fields{
		"voucher":  number,
		"category": classification.Category,
		"valid":    validation.Valid,
	})

	return Voucher{
		Record:           record,
		Document:         doc,
		Validation:       validation,
		Workflow:         wf,
		TransactionCount: len(g.Members),
	}, nil
}

// nextNumber returns <prefix>-YYYYMMDDHHMMSS-NNN. The sequence keeps numbers
// unique within the life of the processor.
func (p *Processor) nextNumber(now time.Time) string {
	p.seq++
	return fmt.Sprintf("%s-%s-%03d", p.options.Prefix, now.Format("20060102150405"), p.seq)
}

func (p *Processor) summarize(run *RunResult) RunSummary {
	s := RunSummary{
		ProcessedAt:       p.deps.Now(),
		TotalAmount:       decimal.NewFromInt(0),
		CategoryBreakdown: make(map[string]int),
		ApprovalBreakdown: make(map[string]int),
		TotalVouchers:     len(run.Vouchers),
		TotalErrors:       len(run.Errors),
	}

	results := make([]Result, 0, len(run.Vouchers))
	for _, v := range run.Vouchers {
		s.TotalAmount = s.TotalAmount.Add(v.Record.Amount)
		s.CategoryBreakdown[v.Record.Classification.Category]++
		s.ApprovalBreakdown[string(v.Record.Classification.ApprovalLevel)]++
		results = append(results, v.Validation)
	}
	s.Validation = Summarize(results)
	return s
}

// Export writes the vouchers of run in the given format.
func (p *Processor) Export(w io.Writer, run *RunResult, format string) error {
	switch strings.ToLower(format) {
	case FormatText, "":
		contents := make([]string, len(run.Vouchers))
		for i, v := range run.Vouchers {
			contents[i] = v.Record.Content
		}
		out := render.Batch(contents, p.deps.Now())
		if run.Unbalanced != "" {
			out += "\n" + run.Unbalanced + "\n"
		}
		_, err := io.WriteString(w, out)
		return err
	case FormatMarkdown:
		parts := make([]string, 0, len(run.Vouchers)+1)
		if run.Unbalanced != "" {
			parts = append(parts, "> **"+run.Unbalanced+"**")
		}
		for _, v := range run.Vouchers {
			parts = append(parts, render.Markdown(v.Document, p.options.Template, p.deps.Now()))
		}
		_, err := io.WriteString(w, strings.Join(parts, "\n\n"))
		return err
	case FormatCSV:
		return render.WriteCSV(w, run.Records())
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
