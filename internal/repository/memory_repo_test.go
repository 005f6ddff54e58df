package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/invoiceapi/internal/model"
)

func TestMemoryUserRepo_CreateAndFind(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.User{Email: "a@x.com", Name: "A"}, model.Preferences{
		PasswordHash: "hash",
		Role:         "admin",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected store-assigned ID")
	}
	if created.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", created.Role, model.RoleAdmin)
	}

	byID, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if byID.Email != "a@x.com" {
		t.Errorf("Email = %q, want %q", byID.Email, "a@x.com")
	}

	byEmail, err := repo.FindByEmail(ctx, "A@X.COM")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Errorf("FindByEmail ID = %q, want %q", byEmail.ID, created.ID)
	}

	hash, err := repo.GetPasswordHash(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetPasswordHash returned error: %v", err)
	}
	if hash != "hash" {
		t.Errorf("hash = %q, want %q", hash, "hash")
	}
}

func TestMemoryUserRepo_DuplicateEmail_ReturnsConflict(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	if _, err := repo.Create(ctx, &model.User{Email: "a@x.com"}, model.Preferences{}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	_, err := repo.Create(ctx, &model.User{Email: "a@x.com"}, model.Preferences{})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestMemoryUserRepo_MissingUser_ReturnsNotFound(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID err = %v, want ErrNotFound", err)
	}
	if _, err := repo.FindByEmail(ctx, "nope@x.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByEmail err = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
	if err := repo.SetPasswordHash(ctx, "nope", "h"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPasswordHash err = %v, want ErrNotFound", err)
	}
}

func TestMemoryUserRepo_DeleteAndList(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	a, _ := repo.Create(ctx, &model.User{Email: "a@x.com"}, model.Preferences{})
	b, _ := repo.Create(ctx, &model.User{Email: "b@x.com"}, model.Preferences{})

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(users) != 1 || users[0].ID != b.ID {
		t.Errorf("List = %+v, want only %s", users, b.ID)
	}
}

func TestMemoryInvoiceRepo_Lifecycle(t *testing.T) {
	repo := NewMemoryInvoiceRepo()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	inv, err := model.NewInvoice(model.InvoiceParams{UserID: "u1", Amount: 100, Description: "Consulting"}, now)
	if err != nil {
		t.Fatalf("NewInvoice returned error: %v", err)
	}
	created, err := repo.Create(ctx, inv)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected store-assigned ID")
	}

	other, _ := model.NewInvoice(model.InvoiceParams{UserID: "u2", Amount: 50, Description: "Other"}, now)
	if _, err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	own, _ := repo.ListByUser(ctx, "u1")
	if len(own) != 1 {
		t.Errorf("ListByUser len = %d, want 1", len(own))
	}
	all, _ := repo.List(ctx)
	if len(all) != 2 {
		t.Errorf("List len = %d, want 2", len(all))
	}

	created.MarkPaid(now.Add(time.Hour))
	if err := repo.UpdatePayment(ctx, created); err != nil {
		t.Fatalf("UpdatePayment returned error: %v", err)
	}

	got, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if got.Status != model.StatusPaid || got.PaidAt == nil {
		t.Errorf("status = %q paidAt = %v, want paid with timestamp", got.Status, got.PaidAt)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := repo.FindByID(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID after delete err = %v, want ErrNotFound", err)
	}
}

// 返却値を書き換えても保存済みデータに影響しないことを検証
func TestMemoryInvoiceRepo_ReturnsCopies(t *testing.T) {
	repo := NewMemoryInvoiceRepo()
	ctx := context.Background()

	inv, _ := model.NewInvoice(model.InvoiceParams{UserID: "u1", Amount: 10, Description: "x"}, time.Now())
	created, _ := repo.Create(ctx, inv)
	created.Status = model.StatusPaid

	got, _ := repo.FindByID(ctx, created.ID)
	if got.Status != model.StatusPending {
		t.Errorf("stored status = %q, want %q", got.Status, model.StatusPending)
	}
}
