package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/invoiceapi/internal/database"
	"github.com/hitoshi/invoiceapi/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresInvoiceRepoはInvoiceRepositoryインターフェースを満たすことを検証
func TestPostgresInvoiceRepo_ImplementsInterface(t *testing.T) {
	var _ InvoiceRepository = (*PostgresInvoiceRepo)(nil)
}

// UUIDでないIDはDBに問い合わせずにErrNotFoundとなることを検証
func TestPostgresRepos_NonUUIDID_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	users := NewPostgresUserRepo(nil)
	invoices := NewPostgresInvoiceRepo(nil)

	if _, err := users.FindByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID err = %v, want ErrNotFound", err)
	}
	if err := users.Delete(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
	if _, err := invoices.FindByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("invoice FindByID err = %v, want ErrNotFound", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Error("expected 23505 to be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("expected 23503 not to be a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Error("expected plain error not to be a unique violation")
	}
}

// openTestDB はマイグレーション済みのテスト用DBを返す。接続できない場合はスキップする。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}
	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if _, err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE invoices, users`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresRepos_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	invoices := NewPostgresInvoiceRepo(db)

	user, err := users.Create(ctx, &model.User{Email: "a@x.com", Name: "A"}, model.Preferences{
		PasswordHash: "hash",
		Role:         "USER",
		AuthMethod:   "custom",
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("Create user returned error: %v", err)
	}

	if _, err := users.Create(ctx, &model.User{Email: "A@x.com", Name: "dup"}, model.Preferences{}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate Create err = %v, want ErrConflict", err)
	}

	if err := users.SetPasswordHash(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("SetPasswordHash returned error: %v", err)
	}
	hash, err := users.GetPasswordHash(ctx, user.ID)
	if err != nil || hash != "new-hash" {
		t.Errorf("GetPasswordHash = %q, %v; want new-hash", hash, err)
	}

	inv, _ := model.NewInvoice(model.InvoiceParams{UserID: user.ID, Amount: 100, Description: "Consulting"}, time.Now())
	created, err := invoices.Create(ctx, inv)
	if err != nil {
		t.Fatalf("Create invoice returned error: %v", err)
	}

	got, err := invoices.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if got.VAT != 20 || got.Total != 120 {
		t.Errorf("vat/total = %v/%v, want 20/120", got.VAT, got.Total)
	}

	got.MarkPaid(time.Now())
	if err := invoices.UpdatePayment(ctx, got); err != nil {
		t.Fatalf("UpdatePayment returned error: %v", err)
	}

	list, err := invoices.ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(list) != 1 || list[0].PaidAt == nil {
		t.Errorf("ListByUser = %+v, want one paid invoice", list)
	}

	if err := users.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete user returned error: %v", err)
	}
	if _, err := invoices.FindByID(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("invoice after cascade err = %v, want ErrNotFound", err)
	}
}
