package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/invoiceapi/internal/appwrite"
	"github.com/hitoshi/invoiceapi/internal/config"
	"github.com/hitoshi/invoiceapi/internal/database"
	"github.com/hitoshi/invoiceapi/internal/notify"
	"github.com/hitoshi/invoiceapi/internal/repository"
)

// dbConnectTimeout は起動時のDB疎通確認の上限。
const dbConnectTimeout = 10 * time.Second

// stores は選択されたバックエンドのリポジトリとメール送信手段。
type stores struct {
	users    repository.UserRepository
	invoices repository.InvoiceRepository
	mailer   notify.Mailer
	close    func() error
}

// openStores はSTORE_BACKENDに応じてリポジトリを構築する。
// appwrite以外のバックエンドにはメール送信手段がないため、通知は破棄される。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case config.BackendAppwrite:
		client := appwrite.NewClient(
			&http.Client{Timeout: cfg.AppwriteTimeout},
			slog.Default(),
			appwrite.Config{
				Endpoint:  cfg.AppwriteEndpoint,
				ProjectID: cfg.AppwriteProjectID,
				APIKey:    cfg.AppwriteAPIKey,
			},
		)
		return &stores{
			users:    appwrite.NewUserRepo(client),
			invoices: appwrite.NewInvoiceRepo(client, cfg.AppwriteDatabaseID, cfg.InvoiceCollectionID),
			mailer:   appwrite.NewMailer(client),
			close:    func() error { return nil },
		}, nil

	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
		defer cancel()

		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return postgresStores(db), nil

	case config.BackendMemory:
		slog.Warn("using in-memory store, data is lost on restart")
		return &stores{
			users:    repository.NewMemoryUserRepo(),
			invoices: repository.NewMemoryInvoiceRepo(),
			mailer:   notify.NopMailer{},
			close:    func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func postgresStores(db *sql.DB) *stores {
	return &stores{
		users:    repository.NewPostgresUserRepo(db),
		invoices: repository.NewPostgresInvoiceRepo(db),
		mailer:   notify.NopMailer{},
		close:    db.Close,
	}
}
