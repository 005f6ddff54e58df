// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/invoiceapi/internal/auth"
	"github.com/hitoshi/invoiceapi/internal/config"
	"github.com/hitoshi/invoiceapi/internal/database"
	"github.com/hitoshi/invoiceapi/internal/handler"
	"github.com/hitoshi/invoiceapi/internal/invoice"
	"github.com/hitoshi/invoiceapi/internal/logger"
	"github.com/hitoshi/invoiceapi/internal/metrics"
	"github.com/hitoshi/invoiceapi/internal/middleware"
	"github.com/hitoshi/invoiceapi/internal/notify"
	"github.com/hitoshi/invoiceapi/internal/pdf"
	"github.com/hitoshi/invoiceapi/internal/security"
	"github.com/hitoshi/invoiceapi/internal/user"
	"github.com/hitoshi/invoiceapi/internal/worker/sweep"
)

// shutdownTimeout はグレースフルシャットダウンの上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_backend", string(cfg.StoreBackend)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// server はワイヤリング済みのHTTPハンドラーと、停止処理が必要なコンポーネント。
type server struct {
	router      http.Handler
	dispatcher  *notify.Dispatcher
	limiter     *middleware.RateLimiter
	sweeper     *sweep.Sweeper
	revocations auth.RevocationStore
}

// close は新規リクエストの受付停止後に呼ぶ。送信中の通知を待つ。
func (s *server) close() {
	s.limiter.Stop()
	s.dispatcher.Wait()
}

// newServer は全依存関係をワイヤリングする。
func newServer(cfg *config.Config, st *stores, reg *prometheus.Registry) *server {
	collector := metrics.NewCollector(reg)

	// 1. 認証
	revocations := auth.NewMemoryRevocationStore()
	tokens := auth.NewTokenService(cfg.JWTSecret, revocations)
	authService := auth.NewService(st.users, tokens, auth.NewPasswordHasher(bcrypt.DefaultCost))

	// 2. ドメインサービス
	dispatcher := notify.NewDispatcher(st.mailer, collector)
	invoiceService := invoice.NewService(
		st.invoices, st.users, security.NewTextSanitizer(), dispatcher,
		invoice.WithNotifyOnCreate(cfg.NotifyOnCreate),
		invoice.WithMetrics(collector),
	)
	userService := user.NewService(st.users)

	// 3. ルーター
	limiter := middleware.NewRateLimiter(middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	router := handler.NewRouter(&handler.RouterDeps{
		Verifier:          tokens,
		RateLimiter:       limiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		AuthService:       authService,
		UserService:       userService,
		InvoiceService:    invoiceService,
		PDF:               pdf.NewRenderer(),
		Metrics:           collector,
		Gatherer:          reg,
	})

	return &server{
		router:      router,
		dispatcher:  dispatcher,
		limiter:     limiter,
		sweeper:     sweep.NewSweeper(revocations, slog.Default(), collector),
		revocations: revocations,
	}
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			slog.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := newServer(cfg, st, reg)
	defer srv.close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go srv.sweeper.Start(sweepCtx, cfg.RevocationSweepInterval)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires STORE_BACKEND=postgres (got %q)", cfg.StoreBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
