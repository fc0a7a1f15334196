package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/services"
	"stereomatch/internal/stage"
	"stereomatch/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		nights    nightFlags
		startFlag string
		endFlag   string
		retryFlag int
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run nights through the pipeline",
		Long: `Run processes each selected night through the pipeline steps, resuming
from its checkpoints. Retry level 0 trusts every checkpoint, 1 reruns steps
whose outputs are missing, 2 recomputes everything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := runOptions(startFlag, endFlag, retryFlag)
			if err != nil {
				return err
			}
			selected, err := nights.resolve(cfg)
			if err != nil {
				return err
			}
			if len(selected) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No nights found")
				return nil
			}

			runLog, err := ctx.runLogger()
			if err != nil {
				return err
			}
			defer runLog.Close()
			logger, logPath := runLog.Logger, runLog.Path
			var reports []workflow.NightReport
			err = ctx.withLedger(logger, func(ledger *checkpoint.Ledger) error {
				coord, err := ctx.coordinator(ledger, logger)
				if err != nil {
					return err
				}
				reports, err = coord.RunNights(cmd.Context(), selected, opts)
				return err
			})
			if err != nil {
				return err
			}

			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), reportsJSON(reports)); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderReports(reports))
				if logPath != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Run log: %s\n", logPath)
				}
			}
			if failed := countFailed(reports); failed > 0 {
				return fmt.Errorf("%d of %d nights raised an exception", failed, len(reports))
			}
			return nil
		},
	}

	nights.register(cmd, true)
	cmd.Flags().StringVar(&startFlag, "start", "", "First step to run (see `stereomatch steps`)")
	cmd.Flags().StringVar(&endFlag, "end", "", "Last step to run")
	cmd.Flags().IntVar(&retryFlag, "retry", 0, "Retry level: 0 trust checkpoints, 1 rerun missing outputs, 2 recompute")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the per-night report as JSON")
	return cmd
}

func runOptions(start, end string, retry int) (workflow.RunOptions, error) {
	var opts workflow.RunOptions
	if start != "" {
		step, err := stage.ParseStepName(start)
		if err != nil {
			return opts, err
		}
		opts.Start = step
	}
	if end != "" {
		step, err := stage.ParseStepName(end)
		if err != nil {
			return opts, err
		}
		opts.End = step
	}
	level, err := stage.ParseRetryLevel(strconv.Itoa(retry))
	if err != nil {
		return opts, err
	}
	opts.Retry = level
	return opts, nil
}

func renderReports(reports []workflow.NightReport) string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		result := r.Summary()
		if r.Memoized {
			result += " (memoized)"
		}
		rows = append(rows, []string{
			r.Night.Date,
			r.Night.Source,
			string(r.Outcome),
			result,
			strconv.Itoa(len(r.Steps)),
			formatDuration(r.FinishedAt.Sub(r.StartedAt)),
		})
	}
	return renderTable(
		[]string{"Date", "Source", "Outcome", "Result", "Steps", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

type nightReportJSON struct {
	Night      string `json:"night"`
	RunID      string `json:"run_id"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	Memoized   bool   `json:"memoized"`
	Steps      int    `json:"steps"`
	DurationMS int64  `json:"duration_ms"`
}

func reportsJSON(reports []workflow.NightReport) []nightReportJSON {
	out := make([]nightReportJSON, 0, len(reports))
	for _, r := range reports {
		item := nightReportJSON{
			Night:      r.Night.Key(),
			RunID:      r.RunID,
			Outcome:    string(r.Outcome),
			Reason:     r.Reason.String(),
			Memoized:   r.Memoized,
			Steps:      len(r.Steps),
			DurationMS: r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
		}
		if r.Err != nil {
			item.ErrorKind, item.Error = services.Details(r.Err)
		}
		out = append(out, item)
	}
	return out
}

func countFailed(reports []workflow.NightReport) int {
	n := 0
	for _, r := range reports {
		if r.Failed() {
			n++
		}
	}
	return n
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
