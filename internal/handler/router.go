package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/invoiceapi/internal/metrics"
	"github.com/hitoshi/invoiceapi/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.TokenVerifier
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	Logger            *slog.Logger

	// サービス
	AuthService    AuthServiceInterface
	UserService    UserServiceInterface
	InvoiceService InvoiceServiceInterface
	PDF            PDFRenderer

	// メトリクス。Gathererがnilの場合は/metricsを公開しない
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth → RateLimit(General) → RequireAdmin
//
// /, /health, /metrics, 登録とログインは認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, m))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	healthHandler := NewHealthHandler()
	authHandler := NewAuthHandler(deps.AuthService, m)
	userHandler := NewUserHandler(deps.UserService)
	invoiceHandler := NewInvoiceHandler(deps.InvoiceService, deps.PDF)

	r.NotFound(healthHandler.NotFound)
	r.MethodNotAllowed(healthHandler.NotFound)

	// --- 認証不要のルート ---
	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Post("/api/auth/register", authHandler.Register)
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/api/auth/login", authHandler.Login)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.With(middleware.RequireAdmin).Put("/users/{userId}/password", authHandler.ChangePassword)
		})

		// 管理者向けユーザー管理
		r.Route("/api/admin/users", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/", userHandler.ListUsers)
			r.Get("/{userId}", userHandler.GetUser)
			r.Delete("/{userId}", userHandler.DeleteUser)
		})

		// 請求書
		r.Route("/api/invoices", func(r chi.Router) {
			r.Post("/", invoiceHandler.CreateInvoice)
			r.Get("/", invoiceHandler.ListInvoices)
			r.Get("/summary", invoiceHandler.Summary)
			r.With(middleware.RequireAdmin).Get("/user/{userId}", invoiceHandler.ListUserInvoices)

			r.Route("/{invoiceId}", func(r chi.Router) {
				r.Get("/", invoiceHandler.GetInvoice)
				r.Put("/paid", invoiceHandler.MarkPaid)
				r.Delete("/", invoiceHandler.DeleteInvoice)
				r.Get("/pdf", invoiceHandler.DownloadPDF)
				r.Get("/preview", invoiceHandler.PreviewPDF)
			})
		})
	})

	return r
}
