// Package notify は請求書イベントのメール通知を提供する。
// 送信はベストエフォートで、失敗は呼び出し元に伝播しない。
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/invoiceapi/internal/metrics"
	"github.com/hitoshi/invoiceapi/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(
	template.New("").Funcs(template.FuncMap{
		"money": model.FormatMoney,
		"date":  model.FormatDueDate,
	}).ParseFS(templatesFS, "templates/*.html"),
)

// DefaultTimeout は1件の通知送信に許す時間。
const DefaultTimeout = 10 * time.Second

// Kind は通知の種別。
type Kind string

const (
	KindPaid    Kind = "paid"
	KindCreated Kind = "created"
)

// Message は送信するメール。宛先は外部ユーザーストアのユーザーIDで指定する。
type Message struct {
	UserIDs []string
	Subject string
	HTML    string
}

// Mailer はメール送信ゲートウェイのインターフェース。
type Mailer interface {
	SendEmail(ctx context.Context, msg Message) error
}

// Dispatcher は請求書イベントをメールに変換して送信する。
type Dispatcher struct {
	mailer  Mailer
	metrics metrics.MetricsCollector
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(mailer Mailer, m metrics.MetricsCollector) *Dispatcher {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Dispatcher{
		mailer:  mailer,
		metrics: m,
		timeout: DefaultTimeout,
	}
}

// NotifyPaid は支払い完了メールを請求書の所有者に送信する。
func (d *Dispatcher) NotifyPaid(ctx context.Context, inv *model.Invoice) error {
	return d.send(ctx, inv, "paid.html", "Payment Confirmed - "+inv.InvoiceNumber)
}

// NotifyCreated は請求書発行メールを請求書の所有者に送信する。
func (d *Dispatcher) NotifyCreated(ctx context.Context, inv *model.Invoice) error {
	return d.send(ctx, inv, "created.html", fmt.Sprintf("Invoice %s - Action Required", inv.InvoiceNumber))
}

// Dispatch は通知を非同期で送信する。
// リクエストのコンテキストとは切り離し、DefaultTimeoutで打ち切る。失敗はログとメトリクスにのみ残る。
func (d *Dispatcher) Dispatch(inv *model.Invoice, kind Kind) {
	snapshot := *inv

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		var err error
		switch kind {
		case KindPaid:
			err = d.NotifyPaid(ctx, &snapshot)
		case KindCreated:
			err = d.NotifyCreated(ctx, &snapshot)
		default:
			err = fmt.Errorf("unknown notification kind %q", kind)
		}

		if err != nil {
			d.metrics.RecordNotificationFailure(string(kind))
			slog.Warn("notification failed",
				slog.String("kind", string(kind)),
				slog.String("invoice_id", snapshot.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		d.metrics.RecordNotificationSent(string(kind))
		slog.Info("notification sent",
			slog.String("kind", string(kind)),
			slog.String("invoice_id", snapshot.ID),
		)
	}()
}

// Wait は送信中の通知が全て終わるまで待つ。シャットダウン時とテストで使う。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, inv *model.Invoice, tmpl, subject string) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, inv); err != nil {
		return fmt.Errorf("failed to render %s: %w", tmpl, err)
	}

	msg := Message{
		UserIDs: []string{inv.UserID},
		Subject: subject,
		HTML:    buf.String(),
	}
	if err := d.mailer.SendEmail(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NopMailer はメールを送信しないMailer。メモリバックエンドで使う。
type NopMailer struct{}

// SendEmail は送信内容をDEBUGログに残すだけで何もしない。
func (NopMailer) SendEmail(_ context.Context, msg Message) error {
	slog.Debug("email discarded", slog.String("subject", msg.Subject))
	return nil
}
