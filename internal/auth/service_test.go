package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/invoiceapi/internal/model"
	"github.com/hitoshi/invoiceapi/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	createFn          func(ctx context.Context, user *model.User, prefs model.Preferences) (*model.User, error)
	findByIDFn        func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn     func(ctx context.Context, email string) (*model.User, error)
	getPasswordHashFn func(ctx context.Context, id string) (string, error)
	setPasswordHashFn func(ctx context.Context, id, hash string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User, prefs model.Preferences) (*model.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, user, prefs)
	}
	return user, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) List(_ context.Context) ([]*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Delete(_ context.Context, _ string) error {
	return nil
}

func (m *mockUserRepo) GetPasswordHash(ctx context.Context, id string) (string, error) {
	if m.getPasswordHashFn != nil {
		return m.getPasswordHashFn(ctx, id)
	}
	return "", nil
}

func (m *mockUserRepo) SetPasswordHash(ctx context.Context, id, hash string) error {
	if m.setPasswordHashFn != nil {
		return m.setPasswordHashFn(ctx, id, hash)
	}
	return nil
}

func newTestService(repo repository.UserRepository) *Service {
	tokens := NewTokenService("test-secret", NewMemoryRevocationStore())
	return NewService(repo, tokens, NewPasswordHasher(bcrypt.MinCost))
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError with code %s", err, code)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

// --- Register ---

func TestRegister_StoresHashAndRoleInPreferences(t *testing.T) {
	var gotPrefs model.Preferences
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User, prefs model.Preferences) (*model.User, error) {
			gotPrefs = prefs
			out := *user
			out.ID = "u1"
			out.Role = model.ParseRole(prefs.Role)
			return &out, nil
		},
	}
	svc := newTestService(repo)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@x.com", Password: "pw123456", Name: "A", Role: "admin",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID != "u1" || user.Role != model.RoleAdmin {
		t.Errorf("user = %+v, want id u1 role ADMIN", user)
	}
	if gotPrefs.Role != "ADMIN" {
		t.Errorf("prefs.Role = %q, want ADMIN", gotPrefs.Role)
	}
	if gotPrefs.AuthMethod != "custom" {
		t.Errorf("prefs.AuthMethod = %q, want custom", gotPrefs.AuthMethod)
	}
	if gotPrefs.PasswordHash == "" || gotPrefs.PasswordHash == "pw123456" {
		t.Errorf("prefs.PasswordHash = %q, want bcrypt hash", gotPrefs.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword([]byte(gotPrefs.PasswordHash), []byte("pw123456")) != nil {
		t.Error("stored hash does not match password")
	}
}

func TestRegister_UnknownRoleDefaultsToUser(t *testing.T) {
	svc := newTestService(repository.NewMemoryUserRepo())

	user, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@x.com", Password: "pw123456", Name: "A", Role: "owner",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Role != model.RoleUser {
		t.Errorf("Role = %q, want USER", user.Role)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	inputs := []RegisterInput{
		{Password: "pw", Name: "A"},
		{Email: "a@x.com", Name: "A"},
		{Email: "a@x.com", Password: "pw"},
		{Email: "  ", Password: "pw", Name: "A"},
	}
	for _, in := range inputs {
		_, err := svc.Register(context.Background(), in)
		assertAPIErrorCode(t, err, model.ErrCodeValidation)
	}
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "pw", Name: "A"})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@x.com", Password: strings.Repeat("x", 73), Name: "A",
	})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestRegister_Conflict(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(context.Context, *model.User, model.Preferences) (*model.User, error) {
			return nil, repository.ErrConflict
		},
	}
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "pw", Name: "A"})
	assertAPIErrorCode(t, err, model.ErrCodeUserExists)
}

func TestRegister_StoreErrorIsWrapped(t *testing.T) {
	storeErr := errors.New("store down")
	repo := &mockUserRepo{
		createFn: func(context.Context, *model.User, model.Preferences) (*model.User, error) {
			return nil, storeErr
		},
	}
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "pw", Name: "A"})
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw123456", Name: "A"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	result, err := svc.Login(ctx, "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.Token == "" {
		t.Error("expected token")
	}
	if result.ExpiresIn != "24h" {
		t.Errorf("ExpiresIn = %q, want 24h", result.ExpiresIn)
	}

	identity, err := svc.tokens.Verify(ctx, result.Token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.UserID != registered.ID || identity.Role != model.RoleUser {
		t.Errorf("identity = %+v, want user %s role USER", identity, registered.ID)
	}
}

func TestLogin_WrongPasswordAndUnknownUserLookTheSame(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw123456", Name: "A"}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, errWrong := svc.Login(ctx, "a@x.com", "wrong")
	_, errUnknown := svc.Login(ctx, "b@x.com", "pw123456")

	assertAPIErrorCode(t, errWrong, model.ErrCodeInvalidCredentials)
	assertAPIErrorCode(t, errUnknown, model.ErrCodeInvalidCredentials)
	if errWrong.Error() != errUnknown.Error() {
		t.Errorf("messages differ: %q vs %q", errWrong, errUnknown)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.Login(context.Background(), "", "pw")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestLogin_EmptyStoredHash(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*model.User, error) {
			return &model.User{ID: "u1", Email: "a@x.com"}, nil
		},
		getPasswordHashFn: func(context.Context, string) (string, error) {
			return "", nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), "a@x.com", "anything")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
}

// --- Logout ---

func TestLogout_RevokesToken(t *testing.T) {
	svc := newTestService(&mockUserRepo{})
	ctx := context.Background()

	token, err := svc.tokens.Issue(model.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, err := svc.tokens.Verify(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Verify err = %v, want ErrTokenRevoked", err)
	}
}

// --- CurrentUser ---

func TestCurrentUser_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.CurrentUser(context.Background(), model.Identity{UserID: "gone"})
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

// --- ChangePassword ---

func TestChangePassword(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "old-password", Name: "A"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "new-password"); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}

	if _, err := svc.Login(ctx, "a@x.com", "old-password"); err == nil {
		t.Error("old password should no longer work")
	}
	if _, err := svc.Login(ctx, "a@x.com", "new-password"); err != nil {
		t.Errorf("new password login returned error: %v", err)
	}
}

func TestChangePassword_Validation(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	err := svc.ChangePassword(context.Background(), "u1", "")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestChangePassword_UnknownUser(t *testing.T) {
	svc := newTestService(repository.NewMemoryUserRepo())

	err := svc.ChangePassword(context.Background(), "missing", "pw")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}
