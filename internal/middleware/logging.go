// Package middleware は運用向けのログ出力を提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteMigrationAuditLog はマイグレーション操作の監査ログを出力する。
// migrationIDは単一マイグレーションを対象としない操作では空でよい。
func WriteMigrationAuditLog(ctx context.Context, operation string, migrationID string, result string) {
	slog.InfoContext(ctx, "migration operation completed",
		"operation", operation,
		"migration_id", migrationID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
