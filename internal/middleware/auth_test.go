package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/invoiceapi/internal/auth"
	"github.com/hitoshi/invoiceapi/internal/model"
)

// --- モック定義 ---

type mockVerifier struct {
	verifyFn func(ctx context.Context, token string) (*model.Identity, error)
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return nil, auth.ErrTokenInvalid
}

func verifierFor(token string, identity model.Identity) *mockVerifier {
	return &mockVerifier{
		verifyFn: func(_ context.Context, got string) (*model.Identity, error) {
			if got != token {
				return nil, auth.ErrTokenInvalid
			}
			id := identity
			return &id, nil
		},
	}
}

func mapVerifier(tokens map[string]model.Identity) *mockVerifier {
	return &mockVerifier{
		verifyFn: func(_ context.Context, token string) (*model.Identity, error) {
			id, ok := tokens[token]
			if !ok {
				return nil, auth.ErrTokenInvalid
			}
			return &id, nil
		},
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	identity := model.Identity{UserID: "u1", Email: "a@x.com", Role: model.RoleUser}
	mw := NewAuthMiddleware(verifierFor("good", identity))

	var gotIdentity model.Identity
	var gotToken string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = IdentityFromContext(r.Context())
		gotToken = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotIdentity != identity {
		t.Errorf("identity = %+v, want %+v", gotIdentity, identity)
	}
	if gotToken != "good" {
		t.Errorf("token = %q, want good", gotToken)
	}
}

func TestAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	mw := NewAuthMiddleware(&mockVerifier{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic abc", "token-only"} {
		req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
		body := decodeError(t, w)
		if body.Code != model.ErrCodeMissingToken || body.Error != "Authorization token required" {
			t.Errorf("header %q: body = %+v", header, body)
		}
	}
}

func TestAuthMiddleware_RejectedTokenReasons(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{auth.ErrTokenRevoked, "Token revoked"},
		{fmt.Errorf("%w: expired", auth.ErrTokenInvalid), "Invalid or expired token"},
	}
	for _, tt := range tests {
		mw := NewAuthMiddleware(&mockVerifier{
			verifyFn: func(context.Context, string) (*model.Identity, error) { return nil, tt.err },
		})
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
		req.Header.Set("Authorization", "Bearer x")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
		if body := decodeError(t, w); body.Error != tt.want {
			t.Errorf("error = %q, want %q", body.Error, tt.want)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		identity *model.Identity
		want     int
	}{
		{"admin", &model.Identity{UserID: "a", Role: model.RoleAdmin}, http.StatusOK},
		{"user", &model.Identity{UserID: "u", Role: model.RoleUser}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			if tt.identity != nil {
				req = req.WithContext(ContextWithIdentity(req.Context(), *tt.identity))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusForbidden {
				if body := decodeError(t, w); body.Error != "Admin access required" {
					t.Errorf("error = %q", body.Error)
				}
			}
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	ctx := ContextWithIdentity(context.Background(), model.Identity{UserID: "u1"})
	if id, err := UserIDFromContext(ctx); err != nil || id != "u1" {
		t.Errorf("UserIDFromContext = %q, %v; want u1", id, err)
	}
}
