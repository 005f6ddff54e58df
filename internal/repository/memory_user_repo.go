package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/invoiceapi/internal/model"
)

// MemoryUserRepo はプロセス内メモリに保持するユーザーリポジトリ。
// テストとローカル開発用（STORE_BACKEND=memory）。
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*memoryUser
	order []string
	now   func() time.Time
}

type memoryUser struct {
	user  model.User
	prefs model.Preferences
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users: make(map[string]*memoryUser),
		now:   time.Now,
	}
}

// Create はユーザーを作成する。IDが空の場合はUUIDを採番する。
func (r *MemoryUserRepo) Create(_ context.Context, user *model.User, prefs model.Preferences) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.user.Email, user.Email) {
			return nil, ErrConflict
		}
	}

	stored := *user
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now().UTC()
	}
	stored.Role = model.ParseRole(prefs.Role)

	r.users[stored.ID] = &memoryUser{user: stored, prefs: prefs}
	r.order = append(r.order, stored.ID)

	out := stored
	return &out, nil
}

// FindByID は指定IDのユーザーを取得する。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := u.user
	return &out, nil
}

// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを検索する。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		u := r.users[id]
		if strings.EqualFold(u.user.Email, email) {
			out := u.user
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// List は登録順に全ユーザーを返す。
func (r *MemoryUserRepo) List(_ context.Context) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(r.order))
	for _, id := range r.order {
		u := r.users[id].user
		users = append(users, &u)
	}
	return users, nil
}

// Delete は指定IDのユーザーを削除する。
func (r *MemoryUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetPasswordHash はpreferencesのパスワードハッシュを返す。
func (r *MemoryUserRepo) GetPasswordHash(_ context.Context, id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return "", ErrNotFound
	}
	return u.prefs.PasswordHash, nil
}

// SetPasswordHash はpreferencesのパスワードハッシュを更新する。
func (r *MemoryUserRepo) SetPasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.prefs.PasswordHash = hash
	return nil
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)
