package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost はbcryptのコスト係数。
const DefaultPasswordCost = 12

// PasswordHasher はbcryptによるパスワードハッシュ化と照合を行う。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher はPasswordHasherを生成する。costが範囲外の場合はDefaultPasswordCostを使う。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash はパスワードのbcryptハッシュを返す。
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare はパスワードがハッシュと一致するかを返す。
// ハッシュが空または不正な形式の場合はfalseを返す。
func (h *PasswordHasher) Compare(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
