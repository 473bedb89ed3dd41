// Package main はマイグレーションステータスAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"migration-service/config"
	"migration-service/internal/handler"
	"migration-service/internal/infra"
	"migration-service/internal/repository"
	"migration-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg)

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	migrationsDir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		slog.Error("failed to resolve migrations directory", "error", err)
		os.Exit(1)
	}

	// DI
	repo := repository.NewHistoryRepository(db)
	loader := usecase.NewMigrationLoader(migrationsDir)
	executor := usecase.NewMigrationExecutor(repo, db)
	service := usecase.NewMigrationService(repo, loader, executor)
	runner := usecase.NewMigrationRunner(service, repo, cfg.Environment)

	// 履歴テーブルを初期化し、development環境であれば未適用分を自動適用する
	if err := runner.Initialize(ctx); err != nil {
		slog.Error("failed to initialize migration history table", "error", err)
		os.Exit(1)
	}
	ran, err := runner.AutoMigrate(ctx)
	if err != nil {
		slog.Error("auto-migration failed", "error", err)
		os.Exit(1)
	}
	if ran {
		slog.Info("auto-migration completed")
	}

	h := handler.NewMigrationHandler(runner, service)
	router := handler.NewRouter(h, cfg)

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "environment", string(cfg.Environment))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
