package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus は請求書の支払い状態を表す。
type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
)

// 請求書のデフォルト値
const (
	DefaultClientName = "Client"
	DefaultDueDays    = 30
	invoiceNumberLen  = 9
	base36Alphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// VATRate は付加価値税率(20%)。
var VATRate = decimal.NewFromFloat(0.2)

// Invoice は請求書を表す。
type Invoice struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	Amount        float64       `json:"amount"`
	VAT           float64       `json:"vat"`
	Total         float64       `json:"total"`
	Description   string        `json:"description"`
	ClientName    string        `json:"clientName"`
	InvoiceNumber string        `json:"invoiceNumber"`
	Status        InvoiceStatus `json:"status"`
	DueDate       string        `json:"dueDate"`
	PaidAt        *time.Time    `json:"paidAt"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// IsPaid は支払い済みかどうかを返す。
func (inv *Invoice) IsPaid() bool {
	return inv.Status == StatusPaid
}

// MarkPaid は請求書を支払い済みにする。既に支払い済みの場合はfalseを返し何も変更しない。
func (inv *Invoice) MarkPaid(now time.Time) bool {
	if inv.IsPaid() {
		return false
	}
	paidAt := now.UTC()
	inv.Status = StatusPaid
	inv.PaidAt = &paidAt
	inv.UpdatedAt = paidAt
	return true
}

// InvoiceParams はNewInvoiceへの入力。
// ClientNameとDueDateは空の場合デフォルト値が補完される。
type InvoiceParams struct {
	UserID      string
	Amount      float64
	Description string
	ClientName  string
	DueDate     string
}

// NewInvoice はデフォルト値を補完した新規請求書を生成する。
// 請求書のデフォルト値はこの関数でのみ決定する。
func NewInvoice(p InvoiceParams, now time.Time) (*Invoice, error) {
	now = now.UTC()

	dueDate := strings.TrimSpace(p.DueDate)
	if dueDate == "" {
		dueDate = now.AddDate(0, 0, DefaultDueDays).Format(time.RFC3339)
	} else {
		parsed, err := ParseDueDate(dueDate)
		if err != nil {
			return nil, err
		}
		dueDate = parsed.Format(time.RFC3339)
	}

	clientName := strings.TrimSpace(p.ClientName)
	if clientName == "" {
		clientName = DefaultClientName
	}

	number, err := GenerateInvoiceNumber(now)
	if err != nil {
		return nil, err
	}

	vat, total := CalculateAmounts(p.Amount)

	return &Invoice{
		UserID:        p.UserID,
		Amount:        p.Amount,
		VAT:           vat,
		Total:         total,
		Description:   p.Description,
		ClientName:    clientName,
		InvoiceNumber: number,
		Status:        StatusPending,
		DueDate:       dueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ParseDueDate は期日文字列をRFC 3339またはYYYY-MM-DDとして解釈する。
func ParseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, NewValidationError("dueDate must be an RFC 3339 timestamp or YYYY-MM-DD")
}

// CalculateAmounts は金額からVATと合計を算出する。
// 10進演算で計算するため 100 → 20 / 120 のように誤差が出ない。
func CalculateAmounts(amount float64) (vat, total float64) {
	a := decimal.NewFromFloat(amount)
	v := a.Mul(VATRate)
	return v.InexactFloat64(), a.Add(v).InexactFloat64()
}

// GenerateInvoiceNumber は "INV-<unixMillis>-<base36>" 形式の請求書番号を生成する。
func GenerateInvoiceNumber(now time.Time) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < invoiceNumberLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invoice number: %w", err)
		}
		sb.WriteByte(base36Alphabet[n.Int64()])
	}
	return fmt.Sprintf("INV-%d-%s", now.UnixMilli(), sb.String()), nil
}
