package usecase

import (
	"context"
	"log/slog"

	"migration-service/config"
	"migration-service/internal/domain"
)

// MigrationRunner は一連のマイグレーション操作を束ねるファサード。
// 実行環境は構築時に注入し、呼び出し時にプロセス環境変数は参照しない。
type MigrationRunner struct {
	service *MigrationService
	repo    HistoryRepository
	env     config.Environment
}

// NewMigrationRunner は新しいMigrationRunnerを生成する。
func NewMigrationRunner(service *MigrationService, repo HistoryRepository, env config.Environment) *MigrationRunner {
	return &MigrationRunner{
		service: service,
		repo:    repo,
		env:     env,
	}
}

// Initialize は履歴テーブルを初期化する。何度呼んでも安全。
func (r *MigrationRunner) Initialize(ctx context.Context) error {
	return r.repo.EnsureTable(ctx)
}

// HasPendingMigrations は未適用マイグレーションの有無を返す。
func (r *MigrationRunner) HasPendingMigrations(ctx context.Context) (bool, error) {
	status, err := r.service.GetMigrationStatus(ctx)
	if err != nil {
		return false, err
	}
	return len(status.Pending) > 0, nil
}

// HealthCheck はステータスと検証結果をまとめたレポートを返す。
// 失敗したマイグレーションが存在するか、検証で問題が見つかった場合は不健全とする。
func (r *MigrationRunner) HealthCheck(ctx context.Context) (*domain.HealthReport, error) {
	status, err := r.service.GetMigrationStatus(ctx)
	if err != nil {
		return nil, err
	}

	validation := r.service.ValidateMigrations(ctx)

	return &domain.HealthReport{
		Healthy: len(status.Failed) == 0 && validation.Valid,
		Issues:  validation.Issues,
		Status:  status,
	}, nil
}

// AutoMigrate はdevelopment環境でのみ未適用マイグレーションを一括適用する。
// レビュー前のマイグレーションが本番で走ることを防ぐため、
// それ以外の環境ではデータベースに変更を加えずfalseを返す。
func (r *MigrationRunner) AutoMigrate(ctx context.Context) (bool, error) {
	if r.env != config.EnvDevelopment {
		slog.InfoContext(ctx, "auto-migration is unavailable outside development",
			"operation", "auto_migrate",
			"environment", string(r.env),
		)
		return false, nil
	}

	if _, err := r.service.RunPendingMigrations(ctx); err != nil {
		return false, err
	}
	return true, nil
}
