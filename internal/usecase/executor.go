package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"migration-service/internal/domain"
)

// HistoryRepository はマイグレーション履歴を管理するリポジトリのインターフェース。
type HistoryRepository interface {
	EnsureTable(ctx context.Context) error
	FindAll(ctx context.Context) ([]*domain.MigrationRecord, error)
	Save(ctx context.Context, record *domain.MigrationRecord) error
}

// MigrationExecutor は単一マイグレーションの適用とロールバックを提供する。
type MigrationExecutor struct {
	repo HistoryRepository
	db   *gorm.DB
}

// NewMigrationExecutor は新しいMigrationExecutorを生成する。
func NewMigrationExecutor(repo HistoryRepository, db *gorm.DB) *MigrationExecutor {
	return &MigrationExecutor{repo: repo, db: db}
}

// ExecuteMigration はupスクリプトをトランザクション内で実行し、結果を履歴に記録する。
// 失敗時はトランザクションをロールバックした上でsuccess=falseの記録を残し、
// 元のエラーを返す。失敗したトランザクションでは記録を書けないため、
// 記録の書き込みは常にベース接続に対して行う。
func (e *MigrationExecutor) ExecuteMigration(ctx context.Context, def *domain.MigrationDefinition) error {
	execErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(def.UpScript).Error; err != nil {
			return fmt.Errorf("failed to execute up script: %w", err)
		}
		return nil
	})

	record := &domain.MigrationRecord{
		ID:         def.ID,
		Name:       def.Name,
		ExecutedAt: time.Now().UTC(),
		Checksum:   def.Checksum,
		Success:    execErr == nil,
	}
	if execErr != nil {
		record.ErrorMessage = execErr.Error()
	}

	if saveErr := e.repo.Save(ctx, record); saveErr != nil {
		slog.ErrorContext(ctx, "failed to record migration outcome",
			"operation", "execute_migration",
			"id", def.ID,
			"success", record.Success,
			"error", saveErr,
		)
		if execErr == nil {
			return fmt.Errorf("failed to record migration %s: %w", def.ID, saveErr)
		}
		// 実行エラーの方を優先して返す
	}

	if execErr != nil {
		slog.ErrorContext(ctx, "migration failed",
			"operation", "execute_migration",
			"id", def.ID,
			"filename", def.Filename,
			"error", execErr,
		)
		return fmt.Errorf("%w: %s: %v", domain.ErrMigrationFailed, def.ID, execErr)
	}

	slog.InfoContext(ctx, "migration applied",
		"operation", "execute_migration",
		"id", def.ID,
		"name", def.Name,
	)
	return nil
}

// RollbackMigration はdownスクリプトをトランザクション内で実行する。
// downスクリプトを持たないマイグレーションは即座にエラーとし、データベースには触れない。
// ロールバックの失敗は履歴に記録しない。適用時との非対称は意図的なもので、
// 履歴テーブルは適用試行の監査のみを目的とする。
func (e *MigrationExecutor) RollbackMigration(ctx context.Context, def *domain.MigrationDefinition) error {
	if !def.Reversible() {
		return fmt.Errorf("%w: migration %s has no down script", domain.ErrRollbackNotSupported, def.ID)
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(def.DownScript).Error; err != nil {
			return fmt.Errorf("failed to execute down script: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "rollback failed",
			"operation", "rollback_migration",
			"id", def.ID,
			"filename", def.Filename,
			"error", err,
		)
		return fmt.Errorf("%w: %s: %v", domain.ErrMigrationFailed, def.ID, err)
	}

	slog.InfoContext(ctx, "migration rolled back",
		"operation", "rollback_migration",
		"id", def.ID,
		"name", def.Name,
	)
	return nil
}
