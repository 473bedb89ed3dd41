package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"migration-service/config"
)

// NewRouter はルーターを生成する。
func NewRouter(h *MigrationHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	// ルート定義
	r.Route("/v1/migrations", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/validation", h.GetValidation)
		r.Get("/health", h.GetHealth)
		r.Post("/apply", h.ApplyMigrations)
	})

	if cfg.OtelEnabled {
		return otelhttp.NewHandler(r, "migration-service")
	}
	return r
}
