package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/moodtune/moodtune-sync/internal/di"
	"github.com/moodtune/moodtune-sync/internal/logger"
	"github.com/moodtune/moodtune-sync/internal/orchestrator"
	"github.com/moodtune/moodtune-sync/internal/worker"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync engine with its periodic schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(func(injector *do.RootScope, log *logger.Logger) error {
				orch, err := di.Bootstrap(injector)
				if err != nil {
					return fmt.Errorf("bootstrap: %w", err)
				}
				log.Info("Sync engine running", "scheduled", orch.Scheduled())

				waitForSignal(cmd.Context())

				log.Info("Shutting down sync engine gracefully...")
				orch.CancelAllWork()
				return nil
			})
		},
	}
	rootCmd.AddCommand(serveCmd)

	var timeout time.Duration
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run every sync worker once and report the outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				orch, err := do.Invoke[*orchestrator.Orchestrator](injector)
				if err != nil {
					return err
				}

				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()

				reports := orch.RunAll(ctx)
				printReports(reports)
				for _, r := range reports {
					if r.Result != worker.Success {
						return fmt.Errorf("%s finished with %s", r.Worker, r.Result)
					}
				}
				return nil
			})
		},
	}
	syncCmd.Flags().DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "Give up after this long")
	rootCmd.AddCommand(syncCmd)

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete synced rows past retention and expired cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				workers, err := do.Invoke[orchestrator.Workers](injector)
				if err != nil {
					return err
				}
				result := workers.Cleanup.Run(cmd.Context())
				printReports([]orchestrator.RunReport{{Worker: workers.Cleanup.Name(), Result: result}})
				if result != worker.Success {
					return fmt.Errorf("cleanup finished with %s", result)
				}
				return nil
			})
		},
	}
	rootCmd.AddCommand(purgeCmd)
}

func printReports(reports []orchestrator.RunReport) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKER\tRESULT")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\n", r.Worker, r.Result)
	}
	tw.Flush()
}
