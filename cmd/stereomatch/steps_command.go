package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stereomatch/internal/stage"
)

func newStepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "steps",
		Short:       "List the pipeline steps in execution order",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := stage.Steps()
			rows := make([][]string, 0, len(steps))
			for i, s := range steps {
				rows = append(rows, []string{strconv.Itoa(i + 1), s.String(), s.Label()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Step", "Description"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
