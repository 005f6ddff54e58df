// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Codeからハンドラー層がHTTPステータスを決定する。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアントに返すメッセージ
	Category string // カテゴリ: auth, validation, invoice, user, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithMessage はメッセージだけを差し替えたコピーを返す。
func (e *APIError) WithMessage(msg string) *APIError {
	out := *e
	out.Message = msg
	return &out
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeMissingToken       = "MISSING_TOKEN"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvoiceNotFound    = "INVOICE_NOT_FOUND"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeCannotDeleteSelf   = "CANNOT_DELETE_SELF"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewMissingTokenError はAuthorizationヘッダー欠落エラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingToken,
		Message:  "Authorization token required",
		Category: "auth",
	}
}

// NewUnauthenticatedError はトークン検証失敗エラーを生成する。
// messageには失効・期限切れなどの理由を渡す。
func NewUnauthenticatedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  message,
		Category: "auth",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザーの存在有無を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
	}
}

// NewForbiddenError はロール不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Admin access required",
		Category: "auth",
	}
}

// NewAccessDeniedError は他ユーザーの請求書へのアクセスエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "Access denied to this invoice",
		Category: "invoice",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "user",
	}
}

// NewInvoiceNotFoundError は請求書が見つからない場合のエラーを生成する。
func NewInvoiceNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeInvoiceNotFound,
		Message:  "Invoice not found",
		Category: "invoice",
	}
}

// NewUserExistsError は登録済みメールアドレスでの再登録エラーを生成する。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "User already exists",
		Category: "user",
	}
}

// NewCannotDeleteSelfError は管理者が自分自身を削除しようとした場合のエラーを生成する。
func NewCannotDeleteSelfError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotDeleteSelf,
		Message:  "Cannot delete your own account",
		Category: "user",
	}
}
