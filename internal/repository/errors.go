package repository

import "errors"

// ストア実装が返す型付きエラー。
// サービス層はerrors.Isで判定し、メッセージ文字列には依存しない。
var (
	// ErrNotFound は対象のレコードが存在しない。
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict は一意制約に違反した（登録済みメールアドレスなど）。
	ErrConflict = errors.New("repository: conflict")
	// ErrUnauthorized は外部ストアが認証情報を拒否した。
	ErrUnauthorized = errors.New("repository: unauthorized")
)
