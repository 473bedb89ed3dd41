package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"migration-service/internal/domain"
)

// MigrationService はステータス集計・一括適用・整合性検証のビジネスロジックを提供する。
type MigrationService struct {
	repo     HistoryRepository
	loader   *MigrationLoader
	executor *MigrationExecutor
}

// NewMigrationService は新しいMigrationServiceを生成する。
func NewMigrationService(repo HistoryRepository, loader *MigrationLoader, executor *MigrationExecutor) *MigrationService {
	return &MigrationService{
		repo:     repo,
		loader:   loader,
		executor: executor,
	}
}

// GetMigrationStatus は定義と履歴を突き合わせて現在の状態を返す。
// pendingは履歴が一切ないマイグレーションのみ。失敗したマイグレーションは
// failedに分類され、自動的にpendingへは戻らない。
func (s *MigrationService) GetMigrationStatus(ctx context.Context) (*domain.MigrationStatus, error) {
	if err := s.repo.EnsureTable(ctx); err != nil {
		return nil, err
	}

	definitions, err := s.loader.LoadMigrations(ctx)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch migration history: %w", err)
	}

	known := make(map[string]*domain.MigrationDefinition, len(definitions))
	for _, def := range definitions {
		known[def.ID] = def
	}

	status := &domain.MigrationStatus{Total: len(definitions)}
	recorded := make(map[string]*domain.MigrationRecord, len(records))
	for _, record := range records {
		recorded[record.ID] = record
		if record.Success {
			if _, exists := known[record.ID]; exists {
				status.Applied = append(status.Applied, record)
			}
		} else {
			status.Failed = append(status.Failed, record)
		}
	}

	for _, def := range definitions {
		if _, exists := recorded[def.ID]; !exists {
			status.Pending = append(status.Pending, def)
		}
	}

	return status, nil
}

// RunPendingMigrations は未適用マイグレーションをID昇順で一括適用する。
// 後続のマイグレーションは先行分のスキーマ変更に依存し得るため、
// 最初の失敗で中断し、以降のマイグレーションは未適用のまま残す。
// 未適用が存在しない場合はno-opとして空の結果を返す。
func (s *MigrationService) RunPendingMigrations(ctx context.Context) (*domain.RunResult, error) {
	result := &domain.RunResult{
		RunID:    uuid.NewString(),
		Executed: []string{},
		Failed:   []string{},
	}

	status, err := s.GetMigrationStatus(ctx)
	if err != nil {
		return result, err
	}

	if len(status.Pending) == 0 {
		slog.InfoContext(ctx, "no pending migrations",
			"operation", "run_pending_migrations",
			"run_id", result.RunID,
		)
		return result, nil
	}

	slog.InfoContext(ctx, "applying pending migrations",
		"operation", "run_pending_migrations",
		"run_id", result.RunID,
		"pending", len(status.Pending),
	)

	for _, def := range status.Pending {
		if err := s.executor.ExecuteMigration(ctx, def); err != nil {
			result.Failed = append(result.Failed, def.ID)
			slog.ErrorContext(ctx, "stopping run after migration failure",
				"operation", "run_pending_migrations",
				"run_id", result.RunID,
				"id", def.ID,
				"executed", len(result.Executed),
				"untouched", len(status.Pending)-len(result.Executed)-1,
				"error", err,
			)
			return result, err
		}
		result.Executed = append(result.Executed, def.ID)
	}

	return result, nil
}

// RollbackMigration は指定IDのマイグレーションを1件ロールバックする。
// 他のマイグレーションとの順序関係は強制しない。対象の選択は呼び出し側の責任。
func (s *MigrationService) RollbackMigration(ctx context.Context, id string) error {
	if err := s.repo.EnsureTable(ctx); err != nil {
		return err
	}

	definitions, err := s.loader.LoadMigrations(ctx)
	if err != nil {
		return err
	}

	for _, def := range definitions {
		if def.ID == id {
			return s.executor.RollbackMigration(ctx, def)
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrMigrationNotFound, id)
}

// ValidateMigrations はファイルと履歴の整合性を検証する。
// 検証はエラーを外へ伝播させず、内部の失敗もissueとして報告する。
// 検出する問題: チェックサムのずれ、ファイルを失った適用済みレコード、IDの連番抜け。
func (s *MigrationService) ValidateMigrations(ctx context.Context) (result *domain.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &domain.ValidationResult{
				Valid:  false,
				Issues: []string{fmt.Sprintf("Validation failed: %v", r)},
			}
		}
	}()

	if err := s.repo.EnsureTable(ctx); err != nil {
		return validationFailure(err)
	}

	definitions, err := s.loader.LoadMigrations(ctx)
	if err != nil {
		return validationFailure(err)
	}

	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return validationFailure(err)
	}

	byID := make(map[string]*domain.MigrationDefinition, len(definitions))
	for _, def := range definitions {
		byID[def.ID] = def
	}

	var issues []string

	for _, record := range records {
		def, exists := byID[record.ID]
		if !exists {
			issues = append(issues, fmt.Sprintf(
				"Applied migration %s has no corresponding file (file deleted after being applied?)", record.ID))
			continue
		}
		if record.Success && record.Checksum != def.Checksum {
			issues = append(issues, fmt.Sprintf(
				"Checksum mismatch for migration %s: %s was modified after being applied", record.ID, def.Filename))
		}
	}

	// 定義はID昇順でソート済みのため、隣接比較で連番抜けを検出できる
	for i := 1; i < len(definitions); i++ {
		prev, curr := definitions[i-1], definitions[i]
		if numericID(curr.ID) != numericID(prev.ID)+1 {
			issues = append(issues, fmt.Sprintf(
				"Sequence gap between migration %s and %s", prev.ID, curr.ID))
		}
	}

	return &domain.ValidationResult{Valid: len(issues) == 0, Issues: issues}
}

func validationFailure(err error) *domain.ValidationResult {
	return &domain.ValidationResult{
		Valid:  false,
		Issues: []string{fmt.Sprintf("Validation failed: %v", err)},
	}
}
