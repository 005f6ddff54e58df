package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/invoiceapi/internal/model"
	"github.com/hitoshi/invoiceapi/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	repository.UserRepository
	listFn     func(ctx context.Context) ([]*model.User, error)
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

var admin = model.Identity{UserID: "admin-1", Role: model.RoleAdmin}

func TestService_List(t *testing.T) {
	repo := &mockUserRepo{
		listFn: func(context.Context) ([]*model.User, error) {
			return []*model.User{{ID: "u1"}, {ID: "u2"}}, nil
		},
	}
	users, err := NewService(repo).List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("len(users) = %d, want 2", len(users))
	}
}

func TestService_List_StoreError(t *testing.T) {
	storeErr := errors.New("down")
	repo := &mockUserRepo{listFn: func(context.Context) ([]*model.User, error) { return nil, storeErr }}

	_, err := NewService(repo).List(context.Background())
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

func TestService_Get(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Role: model.RoleAdmin}, nil
		},
	}
	user, err := NewService(repo).Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("ID = %q, want u1", user.ID)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	_, err := NewService(&mockUserRepo{}).Get(context.Background(), "missing")
	assertCode(t, err, model.ErrCodeUserNotFound)
}

func TestService_Delete(t *testing.T) {
	var deleted string
	repo := &mockUserRepo{deleteFn: func(_ context.Context, id string) error {
		deleted = id
		return nil
	}}

	if err := NewService(repo).Delete(context.Background(), admin, "u1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deleted != "u1" {
		t.Errorf("deleted = %q, want u1", deleted)
	}
}

func TestService_Delete_Self(t *testing.T) {
	called := false
	repo := &mockUserRepo{deleteFn: func(context.Context, string) error {
		called = true
		return nil
	}}

	err := NewService(repo).Delete(context.Background(), admin, admin.UserID)
	assertCode(t, err, model.ErrCodeCannotDeleteSelf)
	if called {
		t.Error("repository Delete should not be called for self delete")
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	repo := &mockUserRepo{deleteFn: func(context.Context, string) error { return repository.ErrNotFound }}

	err := NewService(repo).Delete(context.Background(), admin, "missing")
	assertCode(t, err, model.ErrCodeUserNotFound)
}

func TestService_WithMemoryRepo(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	ctx := context.Background()
	u, err := repo.Create(ctx, &model.User{Email: "a@x.com", Name: "A"}, model.Preferences{Role: "ADMIN"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	svc := NewService(repo)
	got, err := svc.Get(ctx, u.ID)
	if err != nil || got.Role != model.RoleAdmin {
		t.Fatalf("Get = %+v, %v; want admin user", got, err)
	}
	if err := svc.Delete(ctx, admin, u.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := svc.Get(ctx, u.ID); err == nil {
		t.Error("user should be gone after Delete")
	}
}
