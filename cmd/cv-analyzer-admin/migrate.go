package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanifsetyadi/cv-analyzer/internal/bootstrap"
	"github.com/hanifsetyadi/cv-analyzer/internal/migrate"
)

const defaultMigrationTimeout = 5 * time.Minute

func newMigrateCmd(a *app) *cobra.Command {
	var (
		timeout time.Duration
		status  bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDatabase(cmd.Context(), timeout, func(ctx context.Context, db *sql.DB) error {
				if status {
					pending, err := migrate.Pending(ctx, db)
					if err != nil {
						return fmt.Errorf("list pending migrations: %w", err)
					}
					return printPending(cmd.OutOrStdout(), pending)
				}
				a.logger.Info("running database migrations")
				return bootstrap.RunMigrations(ctx, db, a.logger)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "Maximum time to wait for migrations")
	cmd.Flags().BoolVar(&status, "status", false, "List pending migrations without applying them")
	return cmd
}

func printPending(w io.Writer, pending []string) error {
	if len(pending) == 0 {
		_, err := fmt.Fprintln(w, "Database schema is up to date.")
		return err
	}
	if _, err := fmt.Fprintf(w, "%d pending migration(s):\n", len(pending)); err != nil {
		return err
	}
	for _, v := range pending {
		if _, err := fmt.Fprintf(w, "  %s\n", v); err != nil {
			return err
		}
	}
	return nil
}

func newDBResetCmd(a *app) *cobra.Command {
	var (
		timeout     time.Duration
		yes         bool
		allowRemote bool
	)
	cmd := &cobra.Command{
		Use:   "db-reset",
		Short: "Drop the public schema and re-run migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			host := a.cfg.Postgres.Host
			if isLikelyRemoteHost(host) && !allowRemote {
				return fmt.Errorf(
					"refusing to reset potentially remote database host %q; re-run with --allow-remote if this is intentional",
					host,
				)
			}
			if !yes {
				if err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), a.cfg.Postgres.Name); err != nil {
					return err
				}
			}
			return a.withDatabase(cmd.Context(), timeout, func(ctx context.Context, db *sql.DB) error {
				if err := resetSchema(ctx, db, a.cfg.Postgres.User); err != nil {
					return err
				}
				a.logger.Info("re-running database migrations")
				return bootstrap.RunMigrations(ctx, db, a.logger)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "Maximum time for the reset")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&allowRemote, "allow-remote", false, "Allow resetting a non-local database host")
	return cmd
}

// confirm requires the operator to type the database name.
func confirm(in io.Reader, out io.Writer, dbName string) error {
	if _, err := fmt.Fprintf(out, "This will drop every table in %q. Type the database name to continue: ", dbName); err != nil {
		return err
	}
	var resp string
	if _, err := fmt.Fscanln(in, &resp); err != nil || strings.TrimSpace(resp) != dbName {
		return errors.New("aborted by user")
	}
	return nil
}

func resetSchema(ctx context.Context, db *sql.DB, user string) error {
	statements := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
		"GRANT ALL ON SCHEMA public TO public",
	}
	if u := strings.TrimSpace(user); u != "" && !strings.EqualFold(u, "public") {
		statements = append(statements, "GRANT ALL ON SCHEMA public TO "+quoteIdentifier(u))
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	switch {
	case h == "", h == "localhost", strings.HasSuffix(h, ".local"):
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	// Compose-style service names resolve inside a private network.
	return strings.Contains(h, ".")
}
