package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/service"
)

func newJobCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect the evaluation queue",
	}
	cmd.AddCommand(
		newJobGetCmd(a),
		newJobListCmd(a),
		newJobStatsCmd(a),
		newJobErrorsCmd(a),
	)
	return cmd
}

func (a *app) queueService(db *sql.DB) (*service.QueueService, error) {
	return service.NewQueueService(service.QueueServiceOptions{
		Repo: data.NewQueueRepo(db, data.RepoConfig{
			DefaultMaxAttempts: a.cfg.Queue.MaxAttempts,
			DefaultBackoff:     a.cfg.Queue.BackoffPolicy(),
			Logger:             a.logger,
		}),
		DefaultLease: a.cfg.Worker.JobLease,
		Logger:       a.logger,
	})
}

func newJobGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Print one job as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(cmd.Context(), 0, func(ctx context.Context, db *sql.DB) error {
				queue, err := a.queueService(db)
				if err != nil {
					return err
				}
				job, err := queue.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), job)
			})
		},
	}
}

func newJobListCmd(a *app) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := model.JobListOptions{Limit: limit}
			if status != "" {
				var st model.JobState
				if err := st.UnmarshalText([]byte(status)); err != nil {
					return err
				}
				opts.Status = &st
			}
			return a.withDatabase(cmd.Context(), 0, func(ctx context.Context, db *sql.DB) error {
				queue, err := a.queueService(db)
				if err != nil {
					return err
				}
				jobs, err := queue.List(ctx, opts)
				if err != nil {
					return err
				}
				return printJobs(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by state (waiting, active, delayed, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to print")
	return cmd
}

func newJobStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print job counts per state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDatabase(cmd.Context(), 0, func(ctx context.Context, db *sql.DB) error {
				queue, err := a.queueService(db)
				if err != nil {
					return err
				}
				stats, err := queue.Stats(ctx)
				if err != nil {
					return err
				}
				return printStats(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newJobErrorsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Print recent submissions that failed to enqueue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRedis(cmd.Context(), func(ctx context.Context, client redis.UniversalClient) error {
				failures, err := data.NewEnqueueErrorLog(client, 0).List(ctx, limit)
				if err != nil {
					return err
				}
				return printEnqueueFailures(cmd.OutOrStdout(), failures)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to print")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printJobs(w io.Writer, jobs []*model.EvaluationJob) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tSTATUS\tATTEMPTS\tJOB TITLE\tCREATED"); err != nil {
		return err
	}
	for _, j := range jobs {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n",
			j.ID, j.Status, j.Attempts, j.MaxAttempts, j.JobTitle, j.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printStats(w io.Writer, s *model.JobStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		n     int
	}{
		{"waiting", s.Waiting},
		{"active", s.Active},
		{"delayed", s.Delayed},
		{"completed", s.Completed},
		{"failed", s.Failed},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%d\n", r.label, r.n); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printEnqueueFailures(w io.Writer, failures []model.EnqueueFailure) error {
	if len(failures) == 0 {
		_, err := fmt.Fprintln(w, "No enqueue failures recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "TIME\tCORRELATION ID\tJOB TITLE\tERROR"); err != nil {
		return err
	}
	for _, f := range failures {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			f.Timestamp.UTC().Format(time.RFC3339), f.CorrelationID, f.JobTitle, f.Error,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}
