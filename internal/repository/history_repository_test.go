package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"migration-service/internal/domain"
)

// setupTestDB はテスト用のSQLiteデータベースを作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func TestEnsureTable_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)

	// 繰り返し呼んでもエラーにならず、同じスキーマになる
	for i := 0; i < 3; i++ {
		if err := repo.EnsureTable(ctx); err != nil {
			t.Fatalf("EnsureTable call %d failed: %v", i+1, err)
		}
	}

	if !db.Migrator().HasTable(&MigrationRecordModel{}) {
		t.Error("schema_migrations table was not created")
	}
	if !db.Migrator().HasIndex(&MigrationRecordModel{}, executedAtIndex) {
		t.Error("executed_at index was not created")
	}
}

func TestSaveAndFindAll(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)

	if err := repo.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}

	executedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []*domain.MigrationRecord{
		{ID: "0001", Name: "init", ExecutedAt: executedAt, Checksum: "aaa", Success: true},
		{ID: "0002", Name: "broken", ExecutedAt: executedAt, Checksum: "bbb", Success: false, ErrorMessage: "syntax error near FROM"},
	}
	for _, record := range records {
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("Save(%s) failed: %v", record.ID, err)
		}
	}

	found, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 records, got %d", len(found))
	}

	if found[0].ID != "0001" || !found[0].Success || found[0].ErrorMessage != "" {
		t.Errorf("unexpected first record: %+v", found[0])
	}
	if found[1].ID != "0002" || found[1].Success || found[1].ErrorMessage != "syntax error near FROM" {
		t.Errorf("unexpected second record: %+v", found[1])
	}
	if found[0].Checksum != "aaa" {
		t.Errorf("expected checksum aaa, got %s", found[0].Checksum)
	}
}

func TestSave_UpsertKeepsLatestAttempt(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)

	if err := repo.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}

	// 失敗の記録の後にリトライが成功したケース
	failed := &domain.MigrationRecord{
		ID:           "0001",
		Name:         "init",
		ExecutedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Checksum:     "aaa",
		Success:      false,
		ErrorMessage: "table already exists",
	}
	if err := repo.Save(ctx, failed); err != nil {
		t.Fatalf("Save failed attempt: %v", err)
	}

	retried := &domain.MigrationRecord{
		ID:         "0001",
		Name:       "init",
		ExecutedAt: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		Checksum:   "aaa",
		Success:    true,
	}
	if err := repo.Save(ctx, retried); err != nil {
		t.Fatalf("Save retry: %v", err)
	}

	found, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}

	// 同一IDは最新の試行結果1行だけが残る
	if len(found) != 1 {
		t.Fatalf("expected 1 record after retry, got %d", len(found))
	}
	if !found[0].Success {
		t.Error("expected record to reflect the successful retry")
	}
	if found[0].ErrorMessage != "" {
		t.Errorf("expected error message to be cleared, got %q", found[0].ErrorMessage)
	}
}
