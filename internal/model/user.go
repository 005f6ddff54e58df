// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role はユーザーの権限を表す。
type Role string

const (
	// RoleUser は一般ユーザー。自分の請求書のみ操作できる。
	RoleUser Role = "USER"
	// RoleAdmin は管理者。全ユーザーのデータを操作できる。
	RoleAdmin Role = "ADMIN"
)

// ParseRole は文字列をRoleに変換する。
// 大文字小文字は区別しない。未知の値や空文字列はRoleUserとして扱う。
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// IsAdmin は管理者ロールかどうかを返す。
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// User は外部ユーザーストアに登録されたユーザーを表す。
// パスワードハッシュはpreferencesに保存され、このモデルには含めない。
type User struct {
	ID            string
	Email         string
	Name          string
	Role          Role
	Status        bool
	EmailVerified bool
	CreatedAt     time.Time
}

// Preferences はユーザーストアの任意キー・バリュー領域に保存する認証情報。
type Preferences struct {
	PasswordHash string `json:"passwordHash,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	RegisteredAt string `json:"registeredAt,omitempty"`
	AuthMethod   string `json:"authMethod,omitempty"`
}

// Identity はトークンに埋め込まれる認証済み主体を表す。
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

// IsAdmin は管理者かどうかを返す。
func (i Identity) IsAdmin() bool {
	return i.Role.IsAdmin()
}

// CanAccess は指定ユーザーが所有するリソースにアクセスできるかを返す。
// 管理者は全リソース、一般ユーザーは自分のリソースのみアクセスできる。
func (i Identity) CanAccess(ownerID string) bool {
	return i.IsAdmin() || i.UserID == ownerID
}
