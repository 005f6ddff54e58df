package appwrite

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/invoiceapi/internal/model"
	"github.com/hitoshi/invoiceapi/internal/repository"
)

// userDoc はUsers APIのユーザー表現。
type userDoc struct {
	ID                string            `json:"$id"`
	CreatedAt         string            `json:"$createdAt"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Status            bool              `json:"status"`
	EmailVerification bool              `json:"emailVerification"`
	Prefs             model.Preferences `json:"prefs"`
}

type userList struct {
	Total int       `json:"total"`
	Users []userDoc `json:"users"`
}

type prefsBody struct {
	Prefs model.Preferences `json:"prefs"`
}

// toModel はAPI表現をドメインモデルに変換する。ロールはpreferencesから決定する。
func (d userDoc) toModel() *model.User {
	return &model.User{
		ID:            d.ID,
		Email:         d.Email,
		Name:          d.Name,
		Role:          model.ParseRole(d.Prefs.Role),
		Status:        d.Status,
		EmailVerified: d.EmailVerification,
		CreatedAt:     parseTime(d.CreatedAt),
	}
}

// parseTime はAppwriteのタイムスタンプを解析する。解析できない場合はゼロ値を返す。
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// UserRepo はAppwrite Users APIを使うUserRepository実装。
type UserRepo struct {
	client *Client
}

// NewUserRepo はUserRepoを生成する。
func NewUserRepo(client *Client) *UserRepo {
	return &UserRepo{client: client}
}

// Create はユーザーを作成し、続けてpreferencesを保存する。
// preferencesの保存に失敗した場合は作成したユーザーを削除する。
func (r *UserRepo) Create(ctx context.Context, user *model.User, prefs model.Preferences) (*model.User, error) {
	var created userDoc
	body := map[string]string{
		"userId": uniqueID,
		"email":  user.Email,
		"name":   user.Name,
	}
	if err := r.client.do(ctx, http.MethodPost, "/users", nil, body, &created); err != nil {
		return nil, err
	}

	if err := r.client.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(created.ID)+"/prefs", nil, prefsBody{Prefs: prefs}, nil); err != nil {
		if delErr := r.Delete(ctx, created.ID); delErr != nil {
			r.client.logger.Warn("failed to roll back user after prefs error",
				slog.String("user_id", created.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to store preferences: %w", err)
	}

	created.Prefs = prefs
	return created.toModel(), nil
}

// FindByID は指定IDのユーザーを取得する。
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var doc userDoc
	if err := r.client.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// FindByEmail はメールアドレスでユーザーを検索する。
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	q, err := encodeQueries(equal("email", email), limit(1))
	if err != nil {
		return nil, err
	}
	var list userList
	if err := r.client.do(ctx, http.MethodGet, "/users", q, nil, &list); err != nil {
		return nil, err
	}
	if len(list.Users) == 0 {
		return nil, repository.ErrNotFound
	}
	return list.Users[0].toModel(), nil
}

// List は全ユーザーをページングで取得する。
func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	users := make([]*model.User, 0)
	err := listAll(ctx, func(ctx context.Context, off int) (int, int, error) {
		q, err := encodeQueries(limit(pageSize), offset(off))
		if err != nil {
			return 0, 0, err
		}
		var page userList
		if err := r.client.do(ctx, http.MethodGet, "/users", q, nil, &page); err != nil {
			return 0, 0, err
		}
		for _, d := range page.Users {
			users = append(users, d.toModel())
		}
		return len(page.Users), page.Total, nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Delete は指定IDのユーザーを削除する。
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, nil)
}

func (r *UserRepo) getPrefs(ctx context.Context, id string) (model.Preferences, error) {
	var prefs model.Preferences
	err := r.client.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id)+"/prefs", nil, nil, &prefs)
	return prefs, err
}

// GetPasswordHash はpreferencesのパスワードハッシュを返す。
func (r *UserRepo) GetPasswordHash(ctx context.Context, id string) (string, error) {
	prefs, err := r.getPrefs(ctx, id)
	if err != nil {
		return "", err
	}
	return prefs.PasswordHash, nil
}

// SetPasswordHash はpreferencesを読み出してハッシュだけを差し替える。
// PATCHはpreferences全体を置き換えるため、他のキーを保持するには読み出しが必要。
func (r *UserRepo) SetPasswordHash(ctx context.Context, id, hash string) error {
	prefs, err := r.getPrefs(ctx, id)
	if err != nil {
		return err
	}
	prefs.PasswordHash = hash
	return r.client.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id)+"/prefs", nil, prefsBody{Prefs: prefs}, nil)
}
