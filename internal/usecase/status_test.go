package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"migration-service/internal/domain"
)

// newTestService はモックリポジトリと実SQLiteを組み合わせたサービスを生成する。
func newTestService(t *testing.T, dir string) (*MigrationService, *mockHistoryRepository, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	repo := newMockHistoryRepository()
	loader := NewMigrationLoader(dir)
	executor := NewMigrationExecutor(repo, db)
	return NewMigrationService(repo, loader, executor), repo, db
}

func successRecord(id, name, checksum string) *domain.MigrationRecord {
	return &domain.MigrationRecord{
		ID:         id,
		Name:       name,
		ExecutedAt: time.Now().UTC(),
		Checksum:   checksum,
		Success:    true,
	}
}

func TestGetMigrationStatus_Partition(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_first.sql":  sampleMigration,
		"0002_second.sql": sampleMigration,
		"0003_third.sql":  sampleMigration,
	})
	service, repo, _ := newTestService(t, dir)
	repo.records["0001"] = successRecord("0001", "first", "x")

	status, err := service.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}

	if status.Total != 3 {
		t.Errorf("expected total=3, got %d", status.Total)
	}
	if len(status.Applied) != 1 || status.Applied[0].ID != "0001" {
		t.Errorf("unexpected applied set: %+v", status.Applied)
	}
	if len(status.Failed) != 0 {
		t.Errorf("expected no failed migrations, got %d", len(status.Failed))
	}
	if len(status.Pending) != 2 || status.Pending[0].ID != "0002" || status.Pending[1].ID != "0003" {
		t.Errorf("unexpected pending set: %+v", status.Pending)
	}
}

func TestGetMigrationStatus_FailedIsNotPending(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_first.sql": sampleMigration,
	})
	service, repo, _ := newTestService(t, dir)
	repo.records["0001"] = &domain.MigrationRecord{
		ID:           "0001",
		Name:         "first",
		ExecutedAt:   time.Now().UTC(),
		Success:      false,
		ErrorMessage: "syntax error",
	}

	status, err := service.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}

	// 失敗済みのマイグレーションは自動的にpendingへ戻らない
	if len(status.Pending) != 0 {
		t.Errorf("expected failed migration not to be pending, got %+v", status.Pending)
	}
	if len(status.Failed) != 1 || status.Failed[0].ID != "0001" {
		t.Errorf("unexpected failed set: %+v", status.Failed)
	}
}

func TestRunPendingMigrations_EndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_init.sql":    "-- UP MIGRATION\nCREATE TABLE items (id INT);\n-- DOWN MIGRATION\nDROP TABLE items;\n",
		"0002_add_col.sql": "-- UP MIGRATION\nALTER TABLE items ADD COLUMN label TEXT;\n",
	})
	service, _, db := newTestService(t, dir)

	result, err := service.RunPendingMigrations(ctx)
	if err != nil {
		t.Fatalf("RunPendingMigrations failed: %v", err)
	}

	if len(result.Executed) != 2 || result.Executed[0] != "0001" || result.Executed[1] != "0002" {
		t.Errorf("unexpected executed list: %v", result.Executed)
	}
	if len(result.Failed) != 0 {
		t.Errorf("expected no failures, got %v", result.Failed)
	}
	if result.RunID == "" {
		t.Error("expected run id to be assigned")
	}
	if !tableExists(t, db, "items") {
		t.Error("items table was not created")
	}

	status, err := service.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.Total != 2 || len(status.Applied) != 2 || len(status.Pending) != 0 || len(status.Failed) != 0 {
		t.Errorf("unexpected status after run: total=%d applied=%d pending=%d failed=%d",
			status.Total, len(status.Applied), len(status.Pending), len(status.Failed))
	}
}

func TestRunPendingMigrations_StopsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_ok.sql":     "-- UP MIGRATION\nCREATE TABLE alpha (id INT);\n",
		"0002_broken.sql": "-- UP MIGRATION\nINSERT INTO no_such_table VALUES (1);\n",
		"0003_later.sql":  "-- UP MIGRATION\nCREATE TABLE gamma (id INT);\n",
	})
	service, _, db := newTestService(t, dir)

	result, err := service.RunPendingMigrations(ctx)
	if err == nil {
		t.Fatal("expected error from broken migration, got nil")
	}
	if !errors.Is(err, domain.ErrMigrationFailed) {
		t.Errorf("expected ErrMigrationFailed, got %v", err)
	}

	if len(result.Executed) != 1 || result.Executed[0] != "0001" {
		t.Errorf("expected executed=[0001], got %v", result.Executed)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "0002" {
		t.Errorf("expected failed=[0002], got %v", result.Failed)
	}

	// 失敗以降のマイグレーションには手を付けない
	if tableExists(t, db, "gamma") {
		t.Error("migration 0003 should not have been attempted")
	}

	status, err := service.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if len(status.Pending) != 1 || status.Pending[0].ID != "0003" {
		t.Errorf("expected 0003 to remain pending, got %+v", status.Pending)
	}
	if len(status.Failed) != 1 || status.Failed[0].ID != "0002" {
		t.Errorf("expected 0002 to be failed, got %+v", status.Failed)
	}
}

func TestRunPendingMigrations_NoPendingIsNoOp(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{})
	service, _, _ := newTestService(t, dir)

	result, err := service.RunPendingMigrations(ctx)
	if err != nil {
		t.Fatalf("RunPendingMigrations failed: %v", err)
	}
	if len(result.Executed) != 0 || len(result.Failed) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestRollbackMigration_UnknownID(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_first.sql": sampleMigration,
	})
	service, _, _ := newTestService(t, dir)

	err := service.RollbackMigration(ctx, "0042")
	if !errors.Is(err, domain.ErrMigrationNotFound) {
		t.Fatalf("expected ErrMigrationNotFound, got %v", err)
	}
}

func TestValidateMigrations_Clean(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_first.sql":  sampleMigration,
		"0002_second.sql": sampleMigration,
	})
	service, repo, _ := newTestService(t, dir)

	definitions, err := NewMigrationLoader(dir).LoadMigrations(ctx)
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}
	repo.records["0001"] = successRecord("0001", "first", definitions[0].Checksum)

	result := service.ValidateMigrations(ctx)
	if !result.Valid {
		t.Errorf("expected valid result, got issues: %v", result.Issues)
	}
}

func TestValidateMigrations_ChecksumDrift(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_first.sql": sampleMigration,
	})
	service, repo, _ := newTestService(t, dir)

	// 適用時と異なるチェックサムを持つレコード
	repo.records["0001"] = successRecord("0001", "first", "abc")

	result := service.ValidateMigrations(ctx)
	if result.Valid {
		t.Fatal("expected invalid result for checksum drift")
	}
	if len(result.Issues) != 1 || !strings.Contains(result.Issues[0], "0001") {
		t.Errorf("expected one issue mentioning 0001, got %v", result.Issues)
	}
}

func TestValidateMigrations_OrphanRecord(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_first.sql": sampleMigration,
	})
	service, repo, _ := newTestService(t, dir)

	definitions, err := NewMigrationLoader(dir).LoadMigrations(ctx)
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}
	repo.records["0001"] = successRecord("0001", "first", definitions[0].Checksum)
	repo.records["0009"] = successRecord("0009", "deleted", "xyz")

	result := service.ValidateMigrations(ctx)
	if result.Valid {
		t.Fatal("expected invalid result for orphan record")
	}
	if len(result.Issues) != 1 || !strings.Contains(result.Issues[0], "0009") {
		t.Errorf("expected one issue mentioning 0009, got %v", result.Issues)
	}
}

func TestValidateMigrations_SequenceGap(t *testing.T) {
	ctx := context.Background()
	dir := setupMigrationsDir(t, map[string]string{
		"0001_first.sql": sampleMigration,
		"0003_third.sql": sampleMigration,
	})
	service, _, _ := newTestService(t, dir)

	result := service.ValidateMigrations(ctx)
	if result.Valid {
		t.Fatal("expected invalid result for sequence gap")
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected one issue, got %v", result.Issues)
	}
	if !strings.Contains(result.Issues[0], "0001") || !strings.Contains(result.Issues[0], "0003") {
		t.Errorf("expected gap issue to mention 0001 and 0003, got %s", result.Issues[0])
	}
}

func TestValidateMigrations_LoadFailureReportedAsIssue(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t, filepath.Join(t.TempDir(), "no_such_dir"))

	// 検証は例外を投げず、読み込み失敗もissueとして報告する
	result := service.ValidateMigrations(ctx)
	if result.Valid {
		t.Fatal("expected invalid result for unreadable directory")
	}
	if len(result.Issues) != 1 || !strings.HasPrefix(result.Issues[0], "Validation failed:") {
		t.Errorf("expected a 'Validation failed:' issue, got %v", result.Issues)
	}
}
