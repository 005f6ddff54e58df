package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationStore はログアウト済みトークンを保持するストアのインターフェース。
// 永続化しない実装ではプロセス再起動で内容が失われる。
type RevocationStore interface {
	// Add はトークンを失効済みとして登録する。expiresAtはトークン本来の有効期限。
	// 登録済みの場合は何もしない。
	Add(ctx context.Context, token string, expiresAt time.Time) error
	// Contains はトークンが失効済みかどうかを返す。
	Contains(ctx context.Context, token string) (bool, error)
	// Prune は本来の有効期限がnow以前のエントリを削除し、削除件数を返す。
	Prune(ctx context.Context, now time.Time) (int, error)
	// Len は保持しているエントリ数を返す。
	Len() int
}

// MemoryRevocationStore はプロセス内メモリの失効トークンストア。
type MemoryRevocationStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
}

// NewMemoryRevocationStore はMemoryRevocationStoreを生成する。
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{tokens: make(map[string]time.Time)}
}

// Add はトークンを失効済みとして登録する。
func (s *MemoryRevocationStore) Add(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token]; !ok {
		s.tokens[token] = expiresAt
	}
	return nil
}

// Contains はトークンが失効済みかどうかを返す。
func (s *MemoryRevocationStore) Contains(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tokens[token]
	return ok, nil
}

// Prune は期限切れのエントリを削除する。
// 期限切れトークンは署名検証の段階で拒否されるため、失効リストから外しても結果は変わらない。
func (s *MemoryRevocationStore) Prune(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for token, expiresAt := range s.tokens {
		if !expiresAt.After(now) {
			delete(s.tokens, token)
			pruned++
		}
	}
	return pruned, nil
}

// Len は保持しているエントリ数を返す。
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// compile-time interface check
var _ RevocationStore = (*MemoryRevocationStore)(nil)
