package appwrite

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/invoiceapi/internal/model"
)

// invoiceData は請求書ドキュメントの属性。
type invoiceData struct {
	UserID        string              `json:"userId"`
	Amount        float64             `json:"amount"`
	VAT           float64             `json:"vat"`
	Total         float64             `json:"total"`
	Description   string              `json:"description"`
	ClientName    string              `json:"clientName"`
	InvoiceNumber string              `json:"invoiceNumber"`
	Status        model.InvoiceStatus `json:"status"`
	DueDate       string              `json:"dueDate"`
	PaidAt        *string             `json:"paidAt"`
}

// invoiceDoc はDatabases APIが返すドキュメント。メタ属性と属性がフラットに並ぶ。
type invoiceDoc struct {
	ID        string `json:"$id"`
	CreatedAt string `json:"$createdAt"`
	UpdatedAt string `json:"$updatedAt"`
	invoiceData
}

type invoiceList struct {
	Total     int          `json:"total"`
	Documents []invoiceDoc `json:"documents"`
}

type documentBody struct {
	DocumentID string `json:"documentId,omitempty"`
	Data       any    `json:"data"`
}

type paymentData struct {
	Status model.InvoiceStatus `json:"status"`
	PaidAt *string             `json:"paidAt"`
}

func formatPaidAt(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func (d invoiceDoc) toModel() *model.Invoice {
	inv := &model.Invoice{
		ID:            d.ID,
		UserID:        d.UserID,
		Amount:        d.Amount,
		VAT:           d.VAT,
		Total:         d.Total,
		Description:   d.Description,
		ClientName:    d.ClientName,
		InvoiceNumber: d.InvoiceNumber,
		Status:        d.Status,
		DueDate:       d.DueDate,
		CreatedAt:     parseTime(d.CreatedAt),
		UpdatedAt:     parseTime(d.UpdatedAt),
	}
	if d.PaidAt != nil {
		if t := parseTime(*d.PaidAt); !t.IsZero() {
			inv.PaidAt = &t
		}
	}
	return inv
}

// InvoiceRepo はAppwrite Databases APIを使うInvoiceRepository実装。
type InvoiceRepo struct {
	client *Client
	path   string
}

// NewInvoiceRepo はInvoiceRepoを生成する。
func NewInvoiceRepo(client *Client, databaseID, collectionID string) *InvoiceRepo {
	return &InvoiceRepo{
		client: client,
		path:   "/databases/" + url.PathEscape(databaseID) + "/collections/" + url.PathEscape(collectionID) + "/documents",
	}
}

func (r *InvoiceRepo) docPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// Create は請求書ドキュメントを作成する。
func (r *InvoiceRepo) Create(ctx context.Context, invoice *model.Invoice) (*model.Invoice, error) {
	data := invoiceData{
		UserID:        invoice.UserID,
		Amount:        invoice.Amount,
		VAT:           invoice.VAT,
		Total:         invoice.Total,
		Description:   invoice.Description,
		ClientName:    invoice.ClientName,
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        invoice.Status,
		DueDate:       invoice.DueDate,
		PaidAt:        formatPaidAt(invoice.PaidAt),
	}
	var doc invoiceDoc
	if err := r.client.do(ctx, http.MethodPost, r.path, nil, documentBody{DocumentID: uniqueID, Data: data}, &doc); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// FindByID は指定IDの請求書を取得する。
func (r *InvoiceRepo) FindByID(ctx context.Context, id string) (*model.Invoice, error) {
	var doc invoiceDoc
	if err := r.client.do(ctx, http.MethodGet, r.docPath(id), nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// List は全請求書を作成日時の昇順で返す。
func (r *InvoiceRepo) List(ctx context.Context) ([]*model.Invoice, error) {
	return r.list(ctx)
}

// ListByUser は指定ユーザーの請求書を作成日時の昇順で返す。
func (r *InvoiceRepo) ListByUser(ctx context.Context, userID string) ([]*model.Invoice, error) {
	return r.list(ctx, equal("userId", userID))
}

func (r *InvoiceRepo) list(ctx context.Context, filters ...query) ([]*model.Invoice, error) {
	invoices := make([]*model.Invoice, 0)
	err := listAll(ctx, func(ctx context.Context, off int) (int, int, error) {
		queries := append([]query{}, filters...)
		queries = append(queries, orderAsc("$createdAt"), limit(pageSize), offset(off))
		q, err := encodeQueries(queries...)
		if err != nil {
			return 0, 0, err
		}
		var page invoiceList
		if err := r.client.do(ctx, http.MethodGet, r.path, q, nil, &page); err != nil {
			return 0, 0, err
		}
		for _, d := range page.Documents {
			invoices = append(invoices, d.toModel())
		}
		return len(page.Documents), page.Total, nil
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// UpdatePayment はstatusとpaidAtを更新する。updatedAtはサーバーが設定した値を反映する。
func (r *InvoiceRepo) UpdatePayment(ctx context.Context, invoice *model.Invoice) error {
	var doc invoiceDoc
	body := documentBody{Data: paymentData{Status: invoice.Status, PaidAt: formatPaidAt(invoice.PaidAt)}}
	if err := r.client.do(ctx, http.MethodPatch, r.docPath(invoice.ID), nil, body, &doc); err != nil {
		return err
	}
	if t := parseTime(doc.UpdatedAt); !t.IsZero() {
		invoice.UpdatedAt = t
	}
	return nil
}

// Delete は請求書ドキュメントを削除する。
func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, http.MethodDelete, r.docPath(id), nil, nil, nil)
}
