package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded load and dump runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openState()
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("runs needs a state database (conflicts with --no-state)")
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(runs)
			return nil
		}
		for _, r := range runs {
			finished := "running"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-4s  started %s  finished %s  %d/%d ok, %d failed, %d blocked\n",
				r.ID, r.Kind, r.StartedAt.Format("2006-01-02 15:04:05"), finished,
				r.SuccessCount, r.TotalCount, r.FailureCount, r.BlockedCount)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")
	runsCmd.Flags().StringVar(&statePath, "state", "", "State database path (default: per config)")
	rootCmd.AddCommand(runsCmd)
}
