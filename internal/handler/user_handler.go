package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/invoiceapi/internal/model"
)

// UserServiceInterface は管理者向けユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	Delete(ctx context.Context, actor model.Identity, userID string) error
}

// UserHandler は管理者向けユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userSummaryResponse は一覧用のユーザー情報。
type userSummaryResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Status            bool   `json:"status"`
	EmailVerification bool   `json:"emailVerification"`
}

// userDetailResponse は詳細用のユーザー情報。
type userDetailResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Status    bool   `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type userListResponse struct {
	Users []userSummaryResponse `json:"users"`
	Total int                   `json:"total"`
}

// ListUsers は全ユーザーを返す。
// GET /api/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := userListResponse{Users: make([]userSummaryResponse, len(users)), Total: len(users)}
	for i, u := range users {
		resp.Users[i] = userSummaryResponse{
			ID:                u.ID,
			Email:             u.Email,
			Name:              u.Name,
			Status:            u.Status,
			EmailVerification: u.EmailVerified,
		}
	}
	writeSuccess(w, http.StatusOK, "", resp)
}

// GetUser は指定ユーザーを返す。
// GET /api/admin/users/{userId}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	createdAt := ""
	if !user.CreatedAt.IsZero() {
		createdAt = user.CreatedAt.UTC().Format(time.RFC3339)
	}
	writeSuccess(w, http.StatusOK, "", userEnvelope{User: userDetailResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      string(user.Role),
		Status:    user.Status,
		CreatedAt: createdAt,
	}})
}

// DeleteUser は指定ユーザーを削除する。自分自身は削除できない。
// DELETE /api/admin/users/{userId}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "userId")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User deleted successfully", nil)
}
