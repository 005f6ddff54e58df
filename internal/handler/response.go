package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/invoiceapi/internal/middleware"
	"github.com/hitoshi/invoiceapi/internal/model"
)

// successResponse は成功レスポンスの統一フォーマット。
type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// writeSuccess は成功レスポンスを書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	middleware.WriteJSON(w, statusCode, successResponse{Success: true, Message: message, Data: data})
}

// decodeJSON はリクエストボディをデコードする。ボディが空の場合はvをゼロ値のままにする。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return model.NewValidationError("Invalid JSON body")
	}
	return nil
}

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 1 << 20

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForCode(apiErr.Code), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// statusForCode はAPIErrorコードからHTTPステータスコードにマッピングする。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeValidation, model.ErrCodeCannotDeleteSelf:
		return http.StatusBadRequest
	case model.ErrCodeMissingToken, model.ErrCodeUnauthenticated, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeInvoiceNotFound:
		return http.StatusNotFound
	case model.ErrCodeUserExists:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// requireIdentity はコンテキストの主体を取得する。認証ミドルウェアの後でのみ呼ぶ。
func requireIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
	}
	return identity, ok
}
