package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/invoiceapi/internal/model"
)

// PostgresInvoiceRepo はPostgreSQLを使用した請求書リポジトリ。
type PostgresInvoiceRepo struct {
	db *sql.DB
}

// NewPostgresInvoiceRepo はPostgresInvoiceRepoを生成する。
func NewPostgresInvoiceRepo(db *sql.DB) *PostgresInvoiceRepo {
	return &PostgresInvoiceRepo{db: db}
}

const invoiceColumns = `id, user_id, amount, vat, total, description, client_name, invoice_number,
	status, due_date, paid_at, created_at, updated_at`

// Create は請求書を保存する。
func (r *PostgresInvoiceRepo) Create(ctx context.Context, invoice *model.Invoice) (*model.Invoice, error) {
	stored := cloneInvoice(invoice)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	dueDate, err := time.Parse(time.RFC3339, stored.DueDate)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q: %w", stored.DueDate, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		stored.ID, stored.UserID, stored.Amount, stored.VAT, stored.Total, stored.Description,
		stored.ClientName, stored.InvoiceNumber, string(stored.Status), dueDate,
		nullTime(stored.PaidAt), stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	return stored, nil
}

// FindByID は指定IDの請求書を取得する。
func (r *PostgresInvoiceRepo) FindByID(ctx context.Context, id string) (*model.Invoice, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice by ID: %w", err)
	}
	return inv, nil
}

// List は全請求書を作成日時の昇順で返す。
func (r *PostgresInvoiceRepo) List(ctx context.Context) ([]*model.Invoice, error) {
	return r.query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at ASC`)
}

// ListByUser は指定ユーザーの請求書を作成日時の昇順で返す。
func (r *PostgresInvoiceRepo) ListByUser(ctx context.Context, userID string) ([]*model.Invoice, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []*model.Invoice{}, nil
	}
	return r.query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
}

// UpdatePayment は支払い状態を更新する。
func (r *PostgresInvoiceRepo) UpdatePayment(ctx context.Context, invoice *model.Invoice) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $2, paid_at = $3, updated_at = $4 WHERE id = $1`,
		invoice.ID, string(invoice.Status), nullTime(invoice.PaidAt), invoice.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice payment: %w", err)
	}
	return requireAffected(result)
}

// Delete は指定IDの請求書を削除する。
func (r *PostgresInvoiceRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return requireAffected(result)
}

func (r *PostgresInvoiceRepo) query(ctx context.Context, query string, args ...any) ([]*model.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*model.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	return invoices, nil
}

func scanInvoice(s rowScanner) (*model.Invoice, error) {
	inv := &model.Invoice{}
	var (
		status  string
		dueDate time.Time
		paidAt  sql.NullTime
	)
	err := s.Scan(
		&inv.ID, &inv.UserID, &inv.Amount, &inv.VAT, &inv.Total, &inv.Description,
		&inv.ClientName, &inv.InvoiceNumber, &status, &dueDate, &paidAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	inv.Status = model.InvoiceStatus(status)
	inv.DueDate = dueDate.UTC().Format(time.RFC3339)
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		inv.PaidAt = &t
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return inv, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ InvoiceRepository = (*PostgresInvoiceRepo)(nil)
