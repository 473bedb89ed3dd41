package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"migration-service/config"
	"migration-service/internal/domain"
	"migration-service/internal/infra"
	"migration-service/internal/repository"
	"migration-service/internal/usecase"
)

// newEngine は設定からマイグレーションエンジン一式を組み立てる。
func newEngine() (*usecase.MigrationRunner, *usecase.MigrationService, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	absPath, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve migrations directory: %w", err)
	}

	repo := repository.NewHistoryRepository(db)
	loader := usecase.NewMigrationLoader(absPath)
	executor := usecase.NewMigrationExecutor(repo, db)
	service := usecase.NewMigrationService(repo, loader, executor)
	runner := usecase.NewMigrationRunner(service, repo, cfg.Environment)
	return runner, service, nil
}

// upCmd は未適用マイグレーションを一括適用する。
func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  "Apply all pending migrations in ascending id order, stopping at the first failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, service, err := newEngine()
			if err != nil {
				return err
			}

			result, err := service.RunPendingMigrations(ctx)
			if err != nil {
				// どこまで適用できたかを区別して出力する
				untouched := 0
				if status, statusErr := service.GetMigrationStatus(ctx); statusErr == nil {
					untouched = len(status.Pending)
				}
				fmt.Printf("%d applied, %d failed, %d untouched.\n",
					len(result.Executed), len(result.Failed), untouched)
				return fmt.Errorf("migration failed: %w", err)
			}

			if len(result.Executed) == 0 {
				fmt.Println("No pending migrations.")
			} else {
				fmt.Printf("Applied %d migration(s) successfully.\n", len(result.Executed))
			}
			return nil
		},
	}
}

// downCmd は指定IDのマイグレーションをロールバックする。
func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down <id>",
		Short: "Roll back a single migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, service, err := newEngine()
			if err != nil {
				return err
			}

			id := args[0]
			if err := service.RollbackMigration(ctx, id); err != nil {
				if errors.Is(err, domain.ErrRollbackNotSupported) {
					return fmt.Errorf("migration %s has no down script and cannot be rolled back", id)
				}
				return fmt.Errorf("rollback failed: %w", err)
			}

			fmt.Printf("Rolled back migration %s.\n", id)
			return nil
		},
	}
}

// statusCmd は全マイグレーションの状態をテーブル形式で表示する。
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, service, err := newEngine()
			if err != nil {
				return err
			}

			status, err := service.GetMigrationStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			type row struct {
				id, name, state, executedAt string
			}
			var rows []row
			for _, record := range status.Applied {
				rows = append(rows, row{record.ID, record.Name, "applied",
					record.ExecutedAt.Format("2006-01-02 15:04:05")})
			}
			for _, record := range status.Failed {
				rows = append(rows, row{record.ID, record.Name, "failed",
					record.ExecutedAt.Format("2006-01-02 15:04:05")})
			}
			for _, def := range status.Pending {
				rows = append(rows, row{def.ID, def.Name, "pending", "-"})
			}
			sort.Slice(rows, func(i, j int) bool {
				ni, _ := strconv.Atoi(rows[i].id)
				nj, _ := strconv.Atoi(rows[j].id)
				return ni < nj
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tEXECUTED AT")
			fmt.Fprintln(w, "--\t----\t------\t-----------")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.id, r.name, r.state, r.executedAt)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
			return nil
		},
	}
}

// validateCmd はファイルと履歴の整合性を検証する。
func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate migration files against the applied history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, service, err := newEngine()
			if err != nil {
				return err
			}

			result := service.ValidateMigrations(ctx)
			if result.Valid {
				fmt.Println("Migrations are valid.")
				return nil
			}

			for _, issue := range result.Issues {
				fmt.Printf("- %s\n", issue)
			}
			return fmt.Errorf("validation failed with %d issue(s)", len(result.Issues))
		},
	}
}

// healthCmd はステータスと検証を合わせたヘルスレポートを表示する。
func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report overall migration health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			runner, _, err := newEngine()
			if err != nil {
				return err
			}

			report, err := runner.HealthCheck(ctx)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Printf("total: %d, applied: %d, failed: %d, pending: %d\n",
				report.Status.Total, len(report.Status.Applied),
				len(report.Status.Failed), len(report.Status.Pending))
			for _, issue := range report.Issues {
				fmt.Printf("- %s\n", issue)
			}

			if !report.Healthy {
				return fmt.Errorf("migrations are unhealthy")
			}
			fmt.Println("Migrations are healthy.")
			return nil
		},
	}
}
