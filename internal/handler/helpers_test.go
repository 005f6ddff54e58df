package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/invoiceapi/internal/middleware"
	"github.com/hitoshi/invoiceapi/internal/model"
)

var (
	aliceIdentity = model.Identity{UserID: "alice", Email: "alice@example.com", Name: "Alice", Role: model.RoleUser}
	adminIdentity = model.Identity{UserID: "root", Email: "root@example.com", Name: "Root", Role: model.RoleAdmin}
)

// envelope はレスポンスの共通部分をデコードするための構造体。
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newJSONRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func withIdentity(req *http.Request, identity model.Identity) *http.Request {
	return req.WithContext(middleware.ContextWithIdentity(req.Context(), identity))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data %q: %v", string(env.Data), err)
	}
}
