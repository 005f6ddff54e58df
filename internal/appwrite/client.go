// Package appwrite はAppwrite互換REST APIのアダプターを提供する。
// ユーザー（preferences含む）、請求書ドキュメント、メール送信をこのAPIに委譲する。
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/invoiceapi/internal/repository"
)

// uniqueID はサーバー側でIDを採番させるための予約値。
const uniqueID = "unique()"

// maxErrorBody はエラーレスポンスから読み取る最大バイト数。
const maxErrorBody = 64 << 10

// Config は接続設定。
type Config struct {
	Endpoint  string // 例: https://cloud.appwrite.io/v1
	ProjectID string
	APIKey    string
}

// Error はAppwriteが返したエラーレスポンス。
type Error struct {
	Status  int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("appwrite: %d %s: %s", e.Status, e.Type, e.Message)
}

// Unwrap はHTTPステータスに対応するリポジトリのエラーを返す。
// これによりerrors.Is(err, repository.ErrNotFound)のように判定できる。
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return repository.ErrNotFound
	case http.StatusConflict:
		return repository.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return repository.ErrUnauthorized
	default:
		return nil
	}
}

// Client はAppwrite REST APIのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	projectID  string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// タイムアウトはhttpClient側で設定する。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		projectID:  cfg.ProjectID,
		apiKey:     cfg.APIKey,
	}
}

// do はAPIを呼び出し、2xxの場合はレスポンスをoutにデコードする。
// outがnilの場合はボディを読み捨てる。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	// 1. リクエストURL構築
	reqURL := c.endpoint + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	// 2. リクエストボディ
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Appwrite-Project", c.projectID)
	req.Header.Set("X-Appwrite-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// 3. 実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("appwrite request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("appwrite %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	// 4. エラーステータス
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.Status = resp.StatusCode

		level := slog.LevelError
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusConflict {
			level = slog.LevelDebug
		}
		c.logger.Log(ctx, level, "appwrite returned error status",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("type", apiErr.Type),
		)
		return apiErr
	}

	// 5. デコード
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode appwrite response: %w", err)
	}
	return nil
}

// query はAppwriteのJSON形式クエリ文字列を組み立てる。
type query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

func equal(attribute string, value any) query {
	return query{Method: "equal", Attribute: attribute, Values: []any{value}}
}

func limit(n int) query {
	return query{Method: "limit", Values: []any{n}}
}

func offset(n int) query {
	return query{Method: "offset", Values: []any{n}}
}

func orderAsc(attribute string) query {
	return query{Method: "orderAsc", Attribute: attribute}
}

// encodeQueries はqueries[]パラメータを生成する。
func encodeQueries(queries ...query) (url.Values, error) {
	v := url.Values{}
	for _, q := range queries {
		b, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query: %w", err)
		}
		v.Add("queries[]", string(b))
	}
	return v, nil
}

// pageSize はリスト取得時の1ページあたりの件数。
const pageSize = 100

// listAll はoffsetページングで全件を取得する。
// fetchは1ページ分を取得し、そのページの件数とtotalを返す。
func listAll(ctx context.Context, fetch func(ctx context.Context, offset int) (n, total int, err error)) error {
	for off := 0; ; {
		n, total, err := fetch(ctx, off)
		if err != nil {
			return err
		}
		off += n
		if n < pageSize || off >= total {
			return nil
		}
	}
}
