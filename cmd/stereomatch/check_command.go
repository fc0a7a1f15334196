package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/deps"
	"stereomatch/internal/logging"
	"stereomatch/internal/preflight"
	"stereomatch/internal/stage"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, collaborator programs and step readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			problems := 0

			printSection := func(title string) {
				for _, line := range renderSectionHeader(title, colorize) {
					fmt.Fprintln(out, line)
				}
			}

			printSection("Filesystem")
			for _, r := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !r.Passed {
					kind = statusError
					problems++
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out)
			printSection("Programs")
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			for _, s := range statuses {
				fmt.Fprintln(out, renderStatusLine(s.Name, depKind(s), depDetail(s), colorize))
			}
			problems += len(deps.Missing(statuses))

			var (
				health []stage.Health
				schema string
				kind   = statusOK
			)
			err = ctx.withLedger(logging.NewNop(), func(ledger *checkpoint.Ledger) error {
				version, dirty, err := ledger.SchemaVersion()
				if err != nil {
					return err
				}
				schema = ledgerSchemaDetail(ledger.Path(), version, dirty)
				if dirty {
					kind = statusError
					problems++
				}
				coord, err := ctx.coordinator(ledger, logging.NewNop())
				if err != nil {
					return err
				}
				health = coord.HealthChecks(cmd.Context())
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printSection("Ledger")
			fmt.Fprintln(out, renderStatusLine("Schema", kind, schema, colorize))
			fmt.Fprintln(out)
			printSection("Steps")
			for _, h := range health {
				kind, detail := statusOK, "ready"
				if !h.Ready {
					kind, detail = statusError, h.Detail
					problems++
				}
				fmt.Fprintln(out, renderStatusLine(h.Name, kind, detail, colorize))
			}

			if problems > 0 {
				return fmt.Errorf("%d check(s) failed", problems)
			}
			fmt.Fprintln(out, "\nAll checks passed")
			return nil
		},
	}
}

func ledgerSchemaDetail(path string, version uint, dirty bool) string {
	detail := fmt.Sprintf("version %d (%s)", version, path)
	if dirty {
		detail += ", dirty migration"
	}
	return detail
}

func depKind(s deps.Status) statusKind {
	switch {
	case s.Available:
		return statusOK
	case s.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func depDetail(s deps.Status) string {
	if s.Available {
		return strings.TrimSpace(s.Command + " " + s.Detail)
	}
	if s.Optional {
		return s.Detail + " (optional)"
	}
	return s.Detail
}
