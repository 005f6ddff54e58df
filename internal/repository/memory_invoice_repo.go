package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/invoiceapi/internal/model"
)

// MemoryInvoiceRepo はプロセス内メモリに保持する請求書リポジトリ。
type MemoryInvoiceRepo struct {
	mu       sync.RWMutex
	invoices map[string]*model.Invoice
	order    []string
}

// NewMemoryInvoiceRepo はMemoryInvoiceRepoを生成する。
func NewMemoryInvoiceRepo() *MemoryInvoiceRepo {
	return &MemoryInvoiceRepo{invoices: make(map[string]*model.Invoice)}
}

// Create は請求書を保存する。IDが空の場合はUUIDを採番する。
func (r *MemoryInvoiceRepo) Create(_ context.Context, invoice *model.Invoice) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneInvoice(invoice)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := r.invoices[stored.ID]; exists {
		return nil, ErrConflict
	}
	r.invoices[stored.ID] = stored
	r.order = append(r.order, stored.ID)

	return cloneInvoice(stored), nil
}

// FindByID は指定IDの請求書を取得する。
func (r *MemoryInvoiceRepo) FindByID(_ context.Context, id string) (*model.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneInvoice(inv), nil
}

// List は全請求書を登録順に返す。
func (r *MemoryInvoiceRepo) List(_ context.Context) ([]*model.Invoice, error) {
	return r.filter(func(*model.Invoice) bool { return true }), nil
}

// ListByUser は指定ユーザーの請求書を登録順に返す。
func (r *MemoryInvoiceRepo) ListByUser(_ context.Context, userID string) ([]*model.Invoice, error) {
	return r.filter(func(inv *model.Invoice) bool { return inv.UserID == userID }), nil
}

// UpdatePayment は支払い状態を更新する。
func (r *MemoryInvoiceRepo) UpdatePayment(_ context.Context, invoice *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.invoices[invoice.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = invoice.Status
	stored.PaidAt = nil
	if invoice.PaidAt != nil {
		paidAt := *invoice.PaidAt
		stored.PaidAt = &paidAt
	}
	stored.UpdatedAt = invoice.UpdatedAt
	return nil
}

// Delete は指定IDの請求書を削除する。
func (r *MemoryInvoiceRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(r.invoices, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryInvoiceRepo) filter(keep func(*model.Invoice) bool) []*model.Invoice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Invoice, 0, len(r.order))
	for _, id := range r.order {
		inv := r.invoices[id]
		if keep(inv) {
			out = append(out, cloneInvoice(inv))
		}
	}
	return out
}

// cloneInvoice は呼び出し側との共有を避けるためにディープコピーを返す。
func cloneInvoice(inv *model.Invoice) *model.Invoice {
	out := *inv
	if inv.PaidAt != nil {
		paidAt := *inv.PaidAt
		out.PaidAt = &paidAt
	}
	return &out
}

// compile-time interface check
var _ InvoiceRepository = (*MemoryInvoiceRepo)(nil)
