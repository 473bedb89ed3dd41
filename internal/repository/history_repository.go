// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"migration-service/internal/domain"
)

// MigrationRecordModel はschema_migrationsテーブルのgorm用モデル。
type MigrationRecordModel struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(16)"`
	Name         string    `gorm:"column:name;type:varchar(255);not null"`
	ExecutedAt   time.Time `gorm:"column:executed_at;type:datetime(6);not null"`
	Checksum     string    `gorm:"column:checksum;type:varchar(64);not null"`
	Success      bool      `gorm:"column:success;not null"`
	ErrorMessage *string   `gorm:"column:error_message;type:text"`
}

// TableName はテーブル名を指定。
func (MigrationRecordModel) TableName() string {
	return "schema_migrations"
}

// toDomain はモデルをドメインエンティティに変換する。
func (m *MigrationRecordModel) toDomain() *domain.MigrationRecord {
	record := &domain.MigrationRecord{
		ID:         m.ID,
		Name:       m.Name,
		ExecutedAt: m.ExecutedAt,
		Checksum:   m.Checksum,
		Success:    m.Success,
	}
	if m.ErrorMessage != nil {
		record.ErrorMessage = *m.ErrorMessage
	}
	return record
}

// fromDomain はドメインエンティティをモデルに変換する。
func fromDomain(record *domain.MigrationRecord) *MigrationRecordModel {
	model := &MigrationRecordModel{
		ID:         record.ID,
		Name:       record.Name,
		ExecutedAt: record.ExecutedAt,
		Checksum:   record.Checksum,
		Success:    record.Success,
	}
	if record.ErrorMessage != "" {
		msg := record.ErrorMessage
		model.ErrorMessage = &msg
	}
	return model
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    id VARCHAR(16) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    executed_at DATETIME(6) NOT NULL,
    checksum VARCHAR(64) NOT NULL,
    success BOOLEAN NOT NULL,
    error_message TEXT
)`

const executedAtIndex = "idx_schema_migrations_executed_at"

// HistoryRepository はマイグレーション履歴を管理するリポジトリ。
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository は新しいHistoryRepositoryを生成する。
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// EnsureTable は履歴テーブルとインデックスを冪等に作成する。
// 各公開オペレーションの前提条件として毎回呼ばれるため、作成は必ずガードする。
func (r *HistoryRepository) EnsureTable(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec(createTableSQL).Error; err != nil {
		slog.ErrorContext(ctx, "failed to ensure schema_migrations table",
			"operation", "ensure_table",
			"error", err,
		)
		return err
	}

	// MySQLはCREATE INDEX IF NOT EXISTSを持たないため、存在確認してから作成する。
	if !db.Migrator().HasIndex(&MigrationRecordModel{}, executedAtIndex) {
		if err := db.Exec("CREATE INDEX " + executedAtIndex + " ON schema_migrations (executed_at)").Error; err != nil {
			slog.ErrorContext(ctx, "failed to create executed_at index",
				"operation", "ensure_table",
				"error", err,
			)
			return err
		}
	}
	return nil
}

// FindAll は全マイグレーション履歴を取得する。
func (r *HistoryRepository) FindAll(ctx context.Context) ([]*domain.MigrationRecord, error) {
	var models []MigrationRecordModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find migration records",
			"operation", "find_all",
			"error", err,
		)
		return nil, err
	}

	records := make([]*domain.MigrationRecord, len(models))
	for i := range models {
		records[i] = models[i].toDomain()
	}
	return records, nil
}

// Save は実行結果を記録する。同一IDの既存行は最新の試行結果で上書きする。
// 失敗後にリトライが成功した場合、履歴には成功の1行だけが残る。
func (r *HistoryRepository) Save(ctx context.Context, record *domain.MigrationRecord) error {
	model := fromDomain(record)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to save migration record",
			"operation", "save_record",
			"id", record.ID,
			"success", record.Success,
			"error", err,
		)
		return err
	}
	return nil
}
