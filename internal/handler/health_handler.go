package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/invoiceapi/internal/middleware"
)

const (
	serviceName    = "Invoice API"
	serviceVersion = "2.0.0"
)

// availableEndpoints は404レスポンスで案内するエンドポイント一覧。
var availableEndpoints = []string{
	"GET /",
	"GET /health",
	"POST /api/auth/register",
	"POST /api/auth/login",
	"GET /api/invoices",
	"POST /api/invoices",
	"GET /api/invoices/summary",
	"GET /api/invoices/{invoiceId}",
	"PUT /api/invoices/{invoiceId}/paid",
	"GET /api/invoices/{invoiceId}/pdf",
}

type rootResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Structure string `json:"structure"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type notFoundResponse struct {
	Success            bool     `json:"success"`
	Error              string   `json:"error"`
	AvailableEndpoints []string `json:"availableEndpoints"`
}

// HealthHandler はサービス情報とヘルスチェックのハンドラー。
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Root はサービス情報を返す。
// GET /
func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, rootResponse{
		Message:   serviceName + " is running!",
		Timestamp: h.timestamp(),
		Structure: "Handler-Service-Repository Architecture",
	})
}

// Health はヘルスチェック結果を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Service:   serviceName,
		Timestamp: h.timestamp(),
		Version:   serviceVersion,
	})
}

// NotFound は未定義ルートに対して404を返す。
func (h *HealthHandler) NotFound(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusNotFound, notFoundResponse{
		Error:              "Endpoint not found",
		AvailableEndpoints: availableEndpoints,
	})
}
