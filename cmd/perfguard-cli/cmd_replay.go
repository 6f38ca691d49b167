package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amiyaDev/perfguard/internal/engine"
	"github.com/amiyaDev/perfguard/internal/lifecycle"
	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// replayOptions configures a replay run
type replayOptions struct {
	RulesFile        string
	HistoryCapacity  int
	MissingThreshold int
	JSON             bool
}

// BatchReport is the outcome of one replayed batch
type BatchReport struct {
	Batch       int                   `json:"batch"`
	Results     []engine.EntityResult `json:"results"`
	HasCritical bool                  `json:"hasCritical"`
	Summary     lifecycle.Summary     `json:"summary"`
}

func newReplayCmd() *cobra.Command {
	opts := replayOptions{
		HistoryCapacity:  10,
		MissingThreshold: lifecycle.DefaultConfig().MissingThreshold,
	}
	var input string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay snapshot batches from a JSON file through the rule engine",
		Long: `Replay reads a JSON array of batches, each an array of snapshots,
and evaluates them in order against one engine so history accumulates
across batches. Use "-" to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}

			var r io.Reader = cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				r = f
			}

			reports, err := replay(r, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return writeReports(cmd.OutOrStdout(), reports, opts.JSON)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "JSON file of snapshot batches (- for stdin)")
	cmd.Flags().StringVar(&opts.RulesFile, "rules", "", "rule YAML file (default: built-in catalogue)")
	cmd.Flags().IntVar(&opts.HistoryCapacity, "history", opts.HistoryCapacity, "snapshots retained per component")
	cmd.Flags().IntVar(&opts.MissingThreshold, "missing-threshold", opts.MissingThreshold, "absent batches before an issue resolves")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "emit reports as JSON")

	return cmd
}

// replay evaluates every batch in r and tracks issue lifecycles. Lifecycle
// events are written to events.
func replay(r io.Reader, opts replayOptions, events io.Writer) ([]BatchReport, error) {
	var batches [][]model.Snapshot
	if err := json.NewDecoder(r).Decode(&batches); err != nil {
		return nil, fmt.Errorf("failed to decode batches: %w", err)
	}

	ruleSet, err := loadReplayRules(opts.RulesFile, events)
	if err != nil {
		return nil, err
	}

	eng := engine.NewEngine(opts.HistoryCapacity)
	eng.LoadRules(ruleSet)

	manager := lifecycle.NewManager(lifecycle.Config{
		MissingThreshold: opts.MissingThreshold,
	}, writerNotifier{w: events})

	reports := make([]BatchReport, 0, len(batches))
	for i, batch := range batches {
		results, hasCritical := eng.EvaluateBatch(batch)
		reports = append(reports, BatchReport{
			Batch:       i + 1,
			Results:     results,
			HasCritical: hasCritical,
			Summary:     manager.Observe(results),
		})
	}

	return reports, nil
}

func loadReplayRules(file string, events io.Writer) ([]rules.Rule, error) {
	if file == "" {
		return rules.Builtin()
	}

	ruleSet, errs, err := rules.LoadRules(file)
	if err != nil {
		return nil, err
	}
	for _, e := range errs {
		fmt.Fprintf(events, "warning: %s\n", e.Error())
	}
	return ruleSet, nil
}

func writeReports(w io.Writer, reports []BatchReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, report := range reports {
		fmt.Fprintf(w, "batch %d: %d entities, new=%d active=%d resolved=%d\n",
			report.Batch, len(report.Results),
			report.Summary.New, report.Summary.Active, report.Summary.Resolved)
		for _, result := range report.Results {
			for _, issue := range result.Issues {
				fmt.Fprintf(w, "  %-24s %-28s %-8s %.2f  %s\n",
					result.Component, issue.RuleID, issue.Severity, issue.Confidence, issue.Reason)
			}
		}
	}
	return nil
}

// writerNotifier prints lifecycle events as plain lines
type writerNotifier struct {
	w io.Writer
}

func (n writerNotifier) NewIssue(row lifecycle.Row) {
	fmt.Fprintf(n.w, "%s new %s on %s: %s\n", time.Now().Format(time.TimeOnly), row.RuleID, row.Component, row.Reason)
}

func (n writerNotifier) Critical(row lifecycle.Row) {
	fmt.Fprintf(n.w, "%s CRITICAL %s on %s: %s\n", time.Now().Format(time.TimeOnly), row.RuleID, row.Component, row.Reason)
}

func (n writerNotifier) Resolved(row lifecycle.Row) {
	fmt.Fprintf(n.w, "%s resolved %s on %s\n", time.Now().Format(time.TimeOnly), row.RuleID, row.Component)
}
