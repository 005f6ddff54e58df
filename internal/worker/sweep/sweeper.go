// Package sweep は失効トークンリストの定期削除ジョブを提供する。
// 本来の有効期限を過ぎたトークンは署名検証で拒否されるため、失効リストから外してよい。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/invoiceapi/internal/metrics"
)

// DefaultInterval は削除ジョブの既定の実行間隔。
const DefaultInterval = time.Hour

// Pruner は期限切れエントリを削除するストアのインターフェース。
// auth.RevocationStoreの部分集合として定義する。
type Pruner interface {
	Prune(ctx context.Context, now time.Time) (int, error)
	Len() int
}

// Sweeper は失効リストから期限切れトークンを削除するジョブ。
type Sweeper struct {
	store   Pruner
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewSweeper は新しいSweeperを生成する。mがnilの場合はメトリクスを記録しない。
func NewSweeper(store Pruner, logger *slog.Logger, m metrics.MetricsCollector) *Sweeper {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Sweeper{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Start はinterval間隔で削除ジョブを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("revocation sweeper started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("revocation sweeper stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("revocation sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は期限切れエントリを1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()

	pruned, err := s.store.Prune(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to prune revocations: %w", err)
	}
	s.metrics.RecordRevocationsPruned(pruned)

	s.logger.Info("revocation sweep completed",
		slog.Int("pruned_count", pruned),
		slog.Int("remaining", s.store.Len()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
