package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/invoiceapi/internal/invoice"
	"github.com/hitoshi/invoiceapi/internal/model"
	"github.com/hitoshi/invoiceapi/internal/pdf"
)

// InvoiceServiceInterface は請求書ハンドラーが必要とするサービスインターフェース。
type InvoiceServiceInterface interface {
	Create(ctx context.Context, ownerID string, in invoice.CreateInput) (*model.Invoice, error)
	List(ctx context.Context, requester model.Identity) ([]*model.Invoice, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Invoice, error)
	Get(ctx context.Context, id string, requester model.Identity) (*model.Invoice, error)
	MarkPaid(ctx context.Context, id string, requester model.Identity) (*model.Invoice, error)
	Delete(ctx context.Context, id string, requester model.Identity) error
	Summary(ctx context.Context, requester model.Identity) (model.Summary, error)
}

// PDFRenderer は請求書PDFの生成インターフェース。
type PDFRenderer interface {
	Render(inv *model.Invoice, billerEmail string) ([]byte, error)
}

// InvoiceHandler は請求書のHTTPハンドラー。
type InvoiceHandler struct {
	service  InvoiceServiceInterface
	renderer PDFRenderer
}

// NewInvoiceHandler はInvoiceHandlerを生成する。
func NewInvoiceHandler(service InvoiceServiceInterface, renderer PDFRenderer) *InvoiceHandler {
	return &InvoiceHandler{service: service, renderer: renderer}
}

// createInvoiceRequest は請求書作成リクエストのボディ。
// amountは数値または数値文字列を受け付ける。
type createInvoiceRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
	ClientName  string          `json:"clientName"`
	DueDate     string          `json:"dueDate"`
}

// deleteResponse は削除結果。
type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// parseAmount はamountフィールドを解釈する。未指定またはnullの場合はnilを返す。
func parseAmount(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, model.NewValidationError("Amount must be a number")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, model.NewValidationError("Amount must be a number")
	}
	return &n, nil
}

// CreateInvoice は請求書を作成する。
// POST /api/invoices
func (h *InvoiceHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	inv, err := h.service.Create(r.Context(), identity.UserID, invoice.CreateInput{
		Amount:      amount,
		Description: req.Description,
		ClientName:  req.ClientName,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Invoice created successfully", inv)
}

// ListInvoices は参照可能な請求書の一覧を返す。管理者は全ユーザー分。
// GET /api/invoices
func (h *InvoiceHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	invoices, err := h.service.List(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	msg := fmt.Sprintf("Found %d invoices", len(invoices))
	if identity.IsAdmin() {
		msg += " from all users"
	}
	writeSuccess(w, http.StatusOK, msg, nonNil(invoices))
}

// ListUserInvoices は指定ユーザーの請求書一覧を返す（管理者のみ）。
// GET /api/invoices/user/{userId}
func (h *InvoiceHandler) ListUserInvoices(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	invoices, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, fmt.Sprintf("Found %d invoices for user %s", len(invoices), userID), nonNil(invoices))
}

// GetInvoice は請求書を返す。
// GET /api/invoices/{invoiceId}
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "invoiceId"), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Invoice retrieved successfully", inv)
}

// MarkPaid は請求書を支払い済みにする。
// PUT /api/invoices/{invoiceId}/paid
func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	inv, err := h.service.MarkPaid(r.Context(), chi.URLParam(r, "invoiceId"), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Invoice marked as paid successfully", inv)
}

// DeleteInvoice は請求書を削除する。
// DELETE /api/invoices/{invoiceId}
func (h *InvoiceHandler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "invoiceId")
	if err := h.service.Delete(r.Context(), id, identity); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Invoice deleted successfully", deleteResponse{ID: id, Deleted: true})
}

// Summary は集計を返す。
// GET /api/invoices/summary
func (h *InvoiceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Financial summary retrieved successfully", summary)
}

// DownloadPDF は請求書PDFを添付ファイルとして返す。
// GET /api/invoices/{invoiceId}/pdf
func (h *InvoiceHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, "attachment")
}

// PreviewPDF は請求書PDFをブラウザ内表示用に返す。
// GET /api/invoices/{invoiceId}/preview
func (h *InvoiceHandler) PreviewPDF(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, "inline")
}

func (h *InvoiceHandler) servePDF(w http.ResponseWriter, r *http.Request, disposition string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "invoiceId"), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	doc, err := h.renderer.Render(inv, identity.Email)
	if err != nil {
		handleServiceError(w, r, fmt.Errorf("failed to render pdf: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%s", disposition, pdf.Filename(inv)))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		slog.Warn("failed to write pdf", slog.String("invoice_id", inv.ID), slog.String("error", err.Error()))
	}
}

// nonNil はJSONでnullではなく空配列を返すためのヘルパー。
func nonNil(invoices []*model.Invoice) []*model.Invoice {
	if invoices == nil {
		return []*model.Invoice{}
	}
	return invoices
}
