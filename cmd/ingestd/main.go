package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/idpsmw/ingest/internal/config"
	"github.com/idpsmw/ingest/internal/ingest"
	"github.com/idpsmw/ingest/internal/logging"
	"github.com/idpsmw/ingest/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ingestd",
		Short: "Ingest industrial production export files into the workflow database",
		Long: `ingestd watches an input directory for CSV export files produced by the
production system, parses and normalizes them, loads the rows into the
workflow database, and archives each file into a success or error tree.

Designed to be invoked on a schedule (cron or systemd timer); each
invocation performs one full ingestion pass.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newInitDBCmd())
	root.AddCommand(newStatusCmd())

	return root
}

// setup loads .env and environment configuration and configures logging.
// Shared preamble for every subcommand.
func setup() (*config.Config, error) {
	// Overload overwrites existing env vars with .env values
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// String masks the database URL.
	slog.Info("configuration loaded", "config", cfg.String())

	return cfg, nil
}

// connect builds the pgx pool from config and verifies the connection.
func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return pool, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one ingestion pass over the input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				slog.Error("startup failed", "error", err)
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Ingest.Timeout)
			defer cancel()

			pool, err := connect(ctx, cfg)
			if err != nil {
				slog.Error("database connection failed", "error", err)
				return err
			}
			defer pool.Close()

			orch := ingest.New(afero.NewOsFs(), store.NewPostgres(pool), ingest.Options{
				InputDir:   cfg.Files.InputDir,
				ArchiveDir: cfg.Files.ArchiveDir,
				ErrorDir:   cfg.Files.ErrorDir,
				Separator:  cfg.CSV.SeparatorRune(),
				Encoding:   cfg.CSV.Encoding,
				Logger:     logging.NewRunLogger(),
			})

			results, err := orch.Run(ctx)
			if err != nil {
				slog.Error("ingestion pass failed", "error", err)
				return err
			}

			var failed int
			for _, r := range results {
				if !r.Success() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}
}

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema and tables if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				slog.Error("startup failed", "error", err)
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Ingest.Timeout)
			defer cancel()

			pool, err := connect(ctx, cfg)
			if err != nil {
				slog.Error("database connection failed", "error", err)
				return err
			}
			defer pool.Close()

			if err := store.NewPostgres(pool).InitSchema(ctx); err != nil {
				slog.Error("schema initialization failed", "error", err)
				return err
			}

			slog.Info("database schema initialized")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show event counts and recent ingestion audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				slog.Error("startup failed", "error", err)
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Ingest.Timeout)
			defer cancel()

			pool, err := connect(ctx, cfg)
			if err != nil {
				slog.Error("database connection failed", "error", err)
				return err
			}
			defer pool.Close()

			pg := store.NewPostgres(pool)

			workflow, errorEvents, err := pg.EventCounts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workflow events: %d\nerror events:    %d\n\n", workflow, errorEvents)

			records, err := pg.RecentAuditLogs(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no ingestion runs recorded")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%-55s %-10s %9s %9s %s\n",
				"FILE", "STATUS", "EXPECTED", "INSERTED", "ENDED AT")
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%-55s %-10s %9d %9d %s\n",
					r.FileName, r.Status, r.RecordsExpected, r.RecordsInserted,
					r.EndedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of audit entries to show")

	return cmd
}
