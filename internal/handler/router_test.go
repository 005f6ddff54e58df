package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestNewRouter_RootAndHealth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/", "", "")
	var root rootResponse
	if err := json.Unmarshal(w.Body.Bytes(), &root); err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if w.Code != http.StatusOK || !strings.HasSuffix(root.Message, "is running!") || root.Timestamp == "" {
		t.Errorf("root = %d %+v", w.Code, root)
	}

	w = app.do(t, http.MethodGet, "/health", "", "")
	var health healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "OK" || health.Version != "2.0.0" {
		t.Errorf("health = %+v", health)
	}
}

func TestNewRouter_UnknownRoute(t *testing.T) {
	app := newTestApp(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/nope"},
		{http.MethodPatch, "/health"},
	} {
		w := app.do(t, tc.method, tc.path, "", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", tc.method, tc.path, w.Code)
			continue
		}
		var body notFoundResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Success || body.Error != "Endpoint not found" || len(body.AvailableEndpoints) == 0 {
			t.Errorf("%s %s: body = %+v", tc.method, tc.path, body)
		}
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	app := newTestApp(t)
	app.do(t, http.MethodGet, "/health", "", "")

	w := app.do(t, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `invoiceapi_http_requests_total{method="GET",route="/health",status_code="200"} 1`) {
		t.Errorf("metrics output missing health request counter:\n%s", w.Body.String())
	}
}

func TestNewRouter_CORSAndSecurityHeaders(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodOptions, "/api/invoices", "", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	w = app.do(t, http.MethodGet, "/api/invoices", "", "")
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestNewRouter_LoginRateLimit(t *testing.T) {
	app := newTestApp(t)

	var last int
	for i := 0; i < 11; i++ {
		last = app.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"a@x.com","password":"x"}`).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th login: status = %d, want 429", last)
	}
}
