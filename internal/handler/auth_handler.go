// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/invoiceapi/internal/auth"
	"github.com/hitoshi/invoiceapi/internal/metrics"
	"github.com/hitoshi/invoiceapi/internal/middleware"
	"github.com/hitoshi/invoiceapi/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, identity model.Identity) (*model.User, error)
	ChangePassword(ctx context.Context, userID, newPassword string) error
}

// AuthHandler はアカウント関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, m metrics.MetricsCollector) *AuthHandler {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &AuthHandler{service: service, metrics: m}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// accountResponse はアカウント情報のAPIレスポンス。
type accountResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toAccountResponse(u *model.User) accountResponse {
	return accountResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)}
}

type userEnvelope struct {
	User any `json:"user"`
}

type loginResponse struct {
	User      accountResponse `json:"user"`
	Token     string          `json:"token"`
	ExpiresIn string          `json:"expiresIn"`
}

// Register はアカウントを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Account created successfully", userEnvelope{User: toAccountResponse(user)})
}

// Login はトークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", loginResponse{
		User:      toAccountResponse(result.User),
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	})
}

// Logout は現在のトークンを失効させる。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.TokenFromContext(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.metrics.RecordTokenRevoked()

	writeSuccess(w, http.StatusOK, "Logged out", nil)
}

// Me は現在のユーザーを返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", userEnvelope{User: toAccountResponse(user)})
}

// ChangePassword は指定ユーザーのパスワードを変更する（管理者のみ）。
// PUT /api/auth/users/{userId}/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), chi.URLParam(r, "userId"), req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password updated", nil)
}
