// Package auth はトークンの発行・検証・失効と、アカウント登録・ログインを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/invoiceapi/internal/model"
	"github.com/hitoshi/invoiceapi/internal/repository"
)

// bcryptが扱えるパスワードの最大バイト数
const maxPasswordBytes = 72

// authMethodCustom はpreferencesに記録する認証方式。
const authMethodCustom = "custom"

// RegisterInput はアカウント登録の入力。
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User      *model.User
	Token     string
	ExpiresIn string
}

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	users  repository.UserRepository
	tokens *TokenService
	hasher *PasswordHasher
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, tokens *TokenService, hasher *PasswordHasher) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		now:    time.Now,
	}
}

// Register はアカウントを登録する。
// パスワードハッシュとロールはユーザーのpreferencesに保存する。未知のロールはUSERとして扱う。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	// 1. 入力チェック
	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		return nil, model.NewValidationError("Email, password, and name are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("Invalid email address")
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, model.NewValidationError("Password must be at most 72 bytes")
	}

	// 2. パスワードをハッシュ化
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	// 3. ユーザーとpreferencesを作成
	role := model.ParseRole(in.Role)
	prefs := model.Preferences{
		PasswordHash: hash,
		Email:        email,
		Role:         string(role),
		RegisteredAt: s.now().UTC().Format(time.RFC3339),
		AuthMethod:   authMethodCustom,
	}
	user, err := s.users.Create(ctx, &model.User{Email: email, Name: name, Role: role}, prefs)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, model.NewUserExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Login はメールアドレスとパスワードを照合し、トークンを発行する。
// ユーザーが存在しない場合とパスワード不一致は区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewValidationError("Email & password required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	hash, err := s.users.GetPasswordHash(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("failed to get password hash: %w", err)
	}
	if !s.hasher.Compare(hash, password) {
		slog.Info("login rejected", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(model.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &LoginResult{User: user, Token: token, ExpiresIn: TokenValidityLabel}, nil
}

// Logout はトークンを失効させる。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return model.NewMissingTokenError()
	}
	return s.tokens.Revoke(ctx, token)
}

// CurrentUser はトークンの主体に対応するユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, identity model.Identity) (*model.User, error) {
	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ChangePassword は指定ユーザーのパスワードを変更する（管理者操作）。
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if newPassword == "" {
		return model.NewValidationError("Password required")
	}
	if len(newPassword) > maxPasswordBytes {
		return model.NewValidationError("Password must be at most 72 bytes")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password changed", slog.String("user_id", userID))
	return nil
}
