package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanifsetyadi/cv-analyzer/internal/adapters/reaper"
	"github.com/hanifsetyadi/cv-analyzer/internal/service"
)

func newReapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run a single queue retention pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDatabase(cmd.Context(), 0, func(ctx context.Context, db *sql.DB) error {
				runner, err := reaper.NewRunner(reaper.RunnerOptions{
					DB:     db,
					Config: a.cfg.Reaper,
					Logger: a.logger,
				})
				if err != nil {
					return err
				}
				report, err := runner.Service().Cleanup(ctx)
				if perr := printCleanupReport(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

func printCleanupReport(w io.Writer, r service.CleanupReport) error {
	_, err := fmt.Fprintf(w,
		"evicted %d job(s): %d completed expired, %d completed trimmed, %d failed expired (%s)\n",
		r.Total(), r.CompletedExpired, r.CompletedTrimmed, r.FailedExpired, r.Elapsed.Round(time.Millisecond),
	)
	return err
}
