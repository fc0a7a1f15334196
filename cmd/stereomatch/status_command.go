package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/logging"
	"stereomatch/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		nights  nightFlags
		date    string
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded outcomes from the ledger",
		Long: `Without --date, status lists the latest run of every night of the selected
calibration, model and source. With --date it shows the memoized outcome,
the completed checkpoints and the recent runs of one night.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			identity := nights.identity(cfg)
			logger := logging.NewNop()

			if strings.TrimSpace(date) == "" {
				var runs []checkpoint.Run
				err := ctx.withLedger(logger, func(ledger *checkpoint.Ledger) error {
					var err error
					runs, err = ledger.LatestRuns(cmd.Context(), identity.Key())
					return err
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), runsJSON(runs))
				}
				if len(runs) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded for %s\n", strings.TrimSuffix(identity.Key(), "/"))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
				return nil
			}

			n := identity.WithDate(strings.TrimSpace(date))
			if err := n.Validate(); err != nil {
				return err
			}
			var status workflow.NightStatus
			err = ctx.withLedger(logger, func(ledger *checkpoint.Ledger) error {
				var err error
				status, err = workflow.Status(cmd.Context(), ledger, n, limit)
				return err
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), statusJSON(status))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderNightStatus(status, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}

	nights.register(cmd, false)
	cmd.Flags().StringVar(&date, "date", "", "Show one night in detail (YYYYMMDD)")
	cmd.Flags().IntVar(&limit, "runs", 5, "Number of recent runs to show with --date")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func renderRuns(runs []checkpoint.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.Night,
			r.Outcome,
			runResult(r),
			r.FinishedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(
		[]string{"Night", "Outcome", "Result", "Finished"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func runResult(r checkpoint.Run) string {
	if r.Error != "" {
		return r.Error
	}
	return r.Reason
}

func renderNightStatus(status workflow.NightStatus, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader(status.Night.Key(), colorize) {
		b.WriteString(line + "\n")
	}
	if status.Memo != "" {
		b.WriteString(renderStatusLine("Memoized outcome", statusOK, status.Memo, colorize) + "\n")
	} else {
		b.WriteString(renderStatusLine("Memoized outcome", statusInfo, "none", colorize) + "\n")
	}
	b.WriteString(renderStatusLine("Checkpoints", statusInfo, fmt.Sprintf("%d completed", len(status.Completions)), colorize) + "\n")
	for _, c := range status.Completions {
		label := c.Stage
		if c.Scope != "" {
			label = c.Scope + " " + c.Stage
		}
		b.WriteString(renderStatusLine(label, statusOK, c.CompletedAt.Local().Format(time.DateTime), colorize) + "\n")
	}
	if len(status.Runs) > 0 {
		b.WriteString("\n" + renderRuns(status.Runs) + "\n")
	}
	return b.String()
}

type runJSON struct {
	RunID      string    `json:"run_id"`
	Night      string    `json:"night"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func runsJSON(runs []checkpoint.Run) []runJSON {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runJSON(r))
	}
	return out
}

type completionJSON struct {
	Scope       string    `json:"scope,omitempty"`
	Stage       string    `json:"stage"`
	CompletedAt time.Time `json:"completed_at"`
	RunID       string    `json:"run_id"`
}

type nightStatusJSON struct {
	Night       string           `json:"night"`
	Memo        string           `json:"memo,omitempty"`
	Completions []completionJSON `json:"completions"`
	Runs        []runJSON        `json:"runs"`
}

func statusJSON(status workflow.NightStatus) nightStatusJSON {
	out := nightStatusJSON{
		Night:       status.Night.Key(),
		Memo:        status.Memo,
		Completions: make([]completionJSON, 0, len(status.Completions)),
		Runs:        runsJSON(status.Runs),
	}
	for _, c := range status.Completions {
		out.Completions = append(out.Completions, completionJSON{
			Scope:       c.Scope,
			Stage:       c.Stage,
			CompletedAt: c.CompletedAt,
			RunID:       c.RunID,
		})
	}
	return out
}
