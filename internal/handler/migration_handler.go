// Package handler はHTTPハンドラを提供する。
package handler

import (
	"net/http"
	"time"

	"migration-service/internal/domain"
	"migration-service/internal/middleware"
	"migration-service/internal/usecase"
	"migration-service/pkg/httputil"
)

// MigrationHandler はマイグレーション状態のHTTPハンドラを提供する。
type MigrationHandler struct {
	runner  *usecase.MigrationRunner
	service *usecase.MigrationService
}

// NewMigrationHandler は新しいMigrationHandlerを生成する。
func NewMigrationHandler(runner *usecase.MigrationRunner, service *usecase.MigrationService) *MigrationHandler {
	return &MigrationHandler{runner: runner, service: service}
}

// RecordResponse は履歴レコードのレスポンス形式。
type RecordResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExecutedAt   string `json:"executed_at"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// PendingResponse は未適用マイグレーションのレスポンス形式。
type PendingResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusResponse はマイグレーションステータスのレスポンス形式。
type StatusResponse struct {
	Total   int               `json:"total"`
	Applied []RecordResponse  `json:"applied"`
	Failed  []RecordResponse  `json:"failed"`
	Pending []PendingResponse `json:"pending"`
}

// ValidationResponse は整合性検証のレスポンス形式。
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// HealthResponse はヘルスチェックのレスポンス形式。
type HealthResponse struct {
	Healthy bool           `json:"healthy"`
	Issues  []string       `json:"issues"`
	Status  StatusResponse `json:"status"`
}

// ApplyResponse は一括適用のレスポンス形式。
type ApplyResponse struct {
	RunID    string   `json:"run_id"`
	Executed []string `json:"executed"`
	Failed   []string `json:"failed"`
}

func toStatusResponse(status *domain.MigrationStatus) StatusResponse {
	resp := StatusResponse{
		Total:   status.Total,
		Applied: []RecordResponse{},
		Failed:  []RecordResponse{},
		Pending: []PendingResponse{},
	}
	for _, record := range status.Applied {
		resp.Applied = append(resp.Applied, toRecordResponse(record))
	}
	for _, record := range status.Failed {
		resp.Failed = append(resp.Failed, toRecordResponse(record))
	}
	for _, def := range status.Pending {
		resp.Pending = append(resp.Pending, PendingResponse{ID: def.ID, Name: def.Name})
	}
	return resp
}

func toRecordResponse(record *domain.MigrationRecord) RecordResponse {
	return RecordResponse{
		ID:           record.ID,
		Name:         record.Name,
		ExecutedAt:   record.ExecutedAt.Format(time.RFC3339),
		ErrorMessage: record.ErrorMessage,
	}
}

// GetStatus は現在のマイグレーションステータスを返す。
func (h *MigrationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetMigrationStatus(r.Context())
	if err != nil {
		middleware.WriteMigrationAuditLog(r.Context(), "GET_STATUS", "", "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to compute migration status")
		return
	}

	httputil.JSON(w, http.StatusOK, toStatusResponse(status))
}

// GetValidation はファイルと履歴の整合性検証の結果を返す。
// 検証の失敗はHTTPエラーではなくレスポンス内のデータとして表現される。
func (h *MigrationHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	result := h.service.ValidateMigrations(r.Context())

	issues := result.Issues
	if issues == nil {
		issues = []string{}
	}
	httputil.JSON(w, http.StatusOK, ValidationResponse{Valid: result.Valid, Issues: issues})
}

// GetHealth はステータスと検証を合わせたヘルスレポートを返す。
// 不健全な場合は503を返し、監視側がそのまま利用できるようにする。
func (h *MigrationHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.HealthCheck(r.Context())
	if err != nil {
		middleware.WriteMigrationAuditLog(r.Context(), "HEALTH_CHECK", "", "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "health check failed")
		return
	}

	issues := report.Issues
	if issues == nil {
		issues = []string{}
	}
	resp := HealthResponse{
		Healthy: report.Healthy,
		Issues:  issues,
		Status:  toStatusResponse(report.Status),
	}

	statusCode := http.StatusOK
	if !report.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	httputil.JSON(w, statusCode, resp)
}

// ApplyMigrations は未適用マイグレーションの一括適用を実行する。
// 途中で失敗した場合も、どこまで適用できたかをレスポンスで返す。
func (h *MigrationHandler) ApplyMigrations(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunPendingMigrations(r.Context())
	if err != nil {
		failedID := ""
		if len(result.Failed) > 0 {
			failedID = result.Failed[0]
		}
		middleware.WriteMigrationAuditLog(r.Context(), "APPLY_MIGRATIONS", failedID, "FAILED")
		httputil.JSON(w, http.StatusInternalServerError, ApplyResponse{
			RunID:    result.RunID,
			Executed: result.Executed,
			Failed:   result.Failed,
		})
		return
	}

	middleware.WriteMigrationAuditLog(r.Context(), "APPLY_MIGRATIONS", "", "SUCCESS")
	httputil.JSON(w, http.StatusOK, ApplyResponse{
		RunID:    result.RunID,
		Executed: result.Executed,
		Failed:   result.Failed,
	})
}
