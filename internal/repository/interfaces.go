// Package repository はユーザーと請求書の永続化インターフェースと実装を提供する。
// 実装はAppwrite（internal/appwrite）、PostgreSQL、インメモリの3種類で、起動時の設定で選択する。
package repository

import (
	"context"

	"github.com/hitoshi/invoiceapi/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// パスワードハッシュとロールはユーザーのpreferencesとして保存する。
type UserRepository interface {
	// Create はユーザーを作成し、ストアが採番したIDを含むユーザーを返す。
	// 同じメールアドレスのユーザーが存在する場合はErrConflictを返す。
	Create(ctx context.Context, user *model.User, prefs model.Preferences) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はErrNotFoundを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はErrNotFoundを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)

	// Delete は指定IDのユーザーを削除する。見つからない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// GetPasswordHash はpreferencesに保存されたパスワードハッシュを返す。
	// 未設定の場合は空文字列を返す。
	GetPasswordHash(ctx context.Context, id string) (string, error)

	// SetPasswordHash はpreferencesのパスワードハッシュを更新する。
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// InvoiceRepository は請求書データの永続化インターフェース。
type InvoiceRepository interface {
	// Create は請求書を保存し、ストアが採番したIDを含む請求書を返す。
	Create(ctx context.Context, invoice *model.Invoice) (*model.Invoice, error)

	// FindByID は指定IDの請求書を取得する。見つからない場合はErrNotFoundを返す。
	FindByID(ctx context.Context, id string) (*model.Invoice, error)

	// List は全請求書を作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.Invoice, error)

	// ListByUser は指定ユーザーの請求書を作成日時の昇順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Invoice, error)

	// UpdatePayment は請求書のstatus、paidAt、updatedAtを更新する。
	UpdatePayment(ctx context.Context, invoice *model.Invoice) error

	// Delete は指定IDの請求書を削除する。見つからない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}
