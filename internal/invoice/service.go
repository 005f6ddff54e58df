// Package invoice は請求書のドメインロジックを提供する。
// 作成・参照・支払い登録・削除・集計と、ロールに応じたアクセス制御を扱う。
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/hitoshi/invoiceapi/internal/metrics"
	"github.com/hitoshi/invoiceapi/internal/model"
	"github.com/hitoshi/invoiceapi/internal/notify"
	"github.com/hitoshi/invoiceapi/internal/repository"
	"github.com/hitoshi/invoiceapi/internal/security"
)

// Notifier は請求書イベントの非同期通知インターフェース。
type Notifier interface {
	Dispatch(inv *model.Invoice, kind notify.Kind)
}

// CreateInput は請求書作成の入力。Amountは未指定を区別するためポインタ。
type CreateInput struct {
	Amount      *float64
	Description string
	ClientName  string
	DueDate     string
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithNotifyOnCreate は作成時に発行メールを送るかを設定する。
func WithNotifyOnCreate(enabled bool) Option {
	return func(s *Service) { s.notifyOnCreate = enabled }
}

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// Service は請求書のサービス層。
type Service struct {
	invoices       repository.InvoiceRepository
	users          repository.UserRepository
	sanitizer      security.TextSanitizerService
	notifier       Notifier
	metrics        metrics.MetricsCollector
	notifyOnCreate bool
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	invoices repository.InvoiceRepository,
	users repository.UserRepository,
	sanitizer security.TextSanitizerService,
	notifier Notifier,
	opts ...Option,
) *Service {
	s := &Service{
		invoices:  invoices,
		users:     users,
		sanitizer: sanitizer,
		notifier:  notifier,
		metrics:   metrics.NopCollector{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create は請求書を作成する。所有者はユーザーストアに存在しなければならない。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Invoice, error) {
	// 1. 入力チェック
	description := s.sanitizer.Sanitize(in.Description)
	if in.Amount == nil || description == "" {
		return nil, model.NewValidationError("Amount and description are required")
	}
	amount := *in.Amount
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return nil, model.NewValidationError("Amount must be a non-negative number")
	}

	// 2. 所有者の存在確認
	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError().WithMessage("User not found. Please register first.")
		}
		return nil, fmt.Errorf("failed to find invoice owner: %w", err)
	}

	// 3. デフォルト補完
	inv, err := model.NewInvoice(model.InvoiceParams{
		UserID:      ownerID,
		Amount:      amount,
		Description: description,
		ClientName:  s.sanitizer.Sanitize(in.ClientName),
		DueDate:     strings.TrimSpace(in.DueDate),
	}, s.now())
	if err != nil {
		return nil, err
	}

	// 4. 保存
	created, err := s.invoices.Create(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	s.metrics.RecordInvoiceCreated()

	slog.Info("invoice created",
		slog.String("invoice_id", created.ID),
		slog.String("user_id", ownerID),
		slog.String("invoice_number", created.InvoiceNumber),
	)

	if s.notifyOnCreate {
		s.notifier.Dispatch(created, notify.KindCreated)
	}
	return created, nil
}

// List は参照可能な請求書を返す。管理者は全件、一般ユーザーは自分の請求書のみ。
func (s *Service) List(ctx context.Context, requester model.Identity) ([]*model.Invoice, error) {
	var (
		invoices []*model.Invoice
		err      error
	)
	if requester.IsAdmin() {
		invoices, err = s.invoices.List(ctx)
	} else {
		invoices, err = s.invoices.ListByUser(ctx, requester.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// ListByUser は指定ユーザーの請求書を返す。管理者ルートからのみ呼ばれる。
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Invoice, error) {
	invoices, err := s.invoices.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// Get は請求書を取得する。所有者でも管理者でもない場合はACCESS_DENIED。
func (s *Service) Get(ctx context.Context, id string, requester model.Identity) (*model.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewInvoiceNotFoundError()
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	if !requester.CanAccess(inv.UserID) {
		slog.Warn("invoice access denied",
			slog.String("invoice_id", id),
			slog.String("user_id", requester.UserID),
		)
		return nil, model.NewAccessDeniedError()
	}
	return inv, nil
}

// MarkPaid は請求書を支払い済みにする。
// 既に支払い済みの場合は保存済みの内容をそのまま返し、通知も送らない。
func (s *Service) MarkPaid(ctx context.Context, id string, requester model.Identity) (*model.Invoice, error) {
	inv, err := s.Get(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if !inv.MarkPaid(s.now()) {
		return inv, nil
	}

	if err := s.invoices.UpdatePayment(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewInvoiceNotFoundError()
		}
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}
	s.metrics.RecordInvoicePaid()

	slog.Info("invoice marked as paid",
		slog.String("invoice_id", inv.ID),
		slog.String("user_id", requester.UserID),
	)

	s.notifier.Dispatch(inv, notify.KindPaid)
	return inv, nil
}

// Delete は請求書を削除する。
func (s *Service) Delete(ctx context.Context, id string, requester model.Identity) error {
	if _, err := s.Get(ctx, id, requester); err != nil {
		return err
	}
	if err := s.invoices.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewInvoiceNotFoundError()
		}
		return fmt.Errorf("failed to delete invoice: %w", err)
	}

	slog.Info("invoice deleted",
		slog.String("invoice_id", id),
		slog.String("user_id", requester.UserID),
	)
	return nil
}

// Summary は参照可能な請求書の集計を返す。
func (s *Service) Summary(ctx context.Context, requester model.Identity) (model.Summary, error) {
	invoices, err := s.List(ctx, requester)
	if err != nil {
		return model.Summary{}, err
	}
	return model.Summarize(invoices), nil
}
