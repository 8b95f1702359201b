package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/rxtech-lab/argo-signals/internal/coordinator"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

func render(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}

		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q (use %s or %s)", format, formatYAML, formatJSON)
	}
}

type outcomeView struct {
	TradeID  string            `json:"trade_id" yaml:"trade_id"`
	Status   types.TradeStatus `json:"status" yaml:"status"`
	Settled  bool              `json:"settled" yaml:"settled"`
	Attempts int               `json:"attempts" yaml:"attempts"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
}

type runSummary struct {
	Channel     string                   `json:"channel" yaml:"channel"`
	Trades      int                      `json:"trades" yaml:"trades"`
	Settled     int                      `json:"settled" yaml:"settled"`
	Failed      int                      `json:"failed" yaml:"failed"`
	Outcomes    []outcomeView            `json:"outcomes" yaml:"outcomes"`
	Evaluations []types.EvaluationResult `json:"evaluations" yaml:"evaluations"`
}

func newRunSummary(report *coordinator.Report) runSummary {
	summary := runSummary{
		Channel:     report.Channel,
		Trades:      len(report.Outcomes),
		Settled:     0,
		Failed:      report.Failed(),
		Outcomes:    make([]outcomeView, 0, len(report.Outcomes)),
		Evaluations: make([]types.EvaluationResult, 0, len(report.Evaluations)),
	}

	for _, o := range report.Outcomes {
		view := outcomeView{
			TradeID:  o.TradeID,
			Status:   o.Status,
			Settled:  o.Settled,
			Attempts: o.Attempts,
			Error:    "",
		}

		if o.Err != nil {
			view.Error = o.Err.Error()
		}

		if o.Settled {
			summary.Settled++
		}

		summary.Outcomes = append(summary.Outcomes, view)
	}

	for _, r := range report.Evaluations {
		summary.Evaluations = append(summary.Evaluations, r.Result)
	}

	return summary
}

// validationView replaces an unbounded worst-case loss, which JSON cannot
// carry, with the string "unbounded".
type validationView struct {
	PropFirm      string   `json:"prop_firm" yaml:"prop_firm"`
	Allowed       bool     `json:"allowed" yaml:"allowed"`
	Violations    []string `json:"violations" yaml:"violations"`
	WorstCaseLoss any      `json:"worst_case_loss" yaml:"worst_case_loss"`
}

func newValidationViews(results []types.PreTradeValidationResult) []validationView {
	views := make([]validationView, 0, len(results))

	for _, r := range results {
		var loss any = r.WorstCaseLoss
		if math.IsInf(r.WorstCaseLoss, 1) {
			loss = "unbounded"
		}

		violations := r.Violations
		if violations == nil {
			violations = []string{}
		}

		views = append(views, validationView{
			PropFirm:      r.PropFirm,
			Allowed:       r.Allowed,
			Violations:    violations,
			WorstCaseLoss: loss,
		})
	}

	return views
}

// progressReporter draws a bar once the coordinator reports the first
// finished trade, since the total is unknown before that.
type progressReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w, bar: nil}
}

func (p *progressReporter) report(pr coordinator.Progress) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(pr.Total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("Settling trades"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	_ = p.bar.Add(1)
}

func (p *progressReporter) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
