// Package cleanup は保持期間を過ぎたレコードの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したレコードを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/layofflens/internal/metrics"
	"github.com/hitoshi/layofflens/internal/repository"
)

// DefaultRetentionDays はレコードの既定の保持日数。
const DefaultRetentionDays = 90

// PurgeJob は保持期間を超過したレコードの削除ジョブ。
// 削除対象がない場合も成功として扱うため、何度実行しても結果は変わらない。
type PurgeJob struct {
	store         repository.RecordPurger
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	RetentionDays int // スケジュール実行時の保持日数（デフォルト: 90）
}

// NewPurgeJob は新しいPurgeJobを生成する。
func NewPurgeJob(store repository.RecordPurger, mc metrics.MetricsCollector, logger *slog.Logger) *PurgeJob {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &PurgeJob{
		store:         store,
		metrics:       mc,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run は date < now - retentionDays のレコードを削除し、削除件数を返す。
// retentionDaysが0以下の場合は RetentionDays を使う。
func (j *PurgeJob) Run(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = j.RetentionDays
	}
	start := time.Now()

	deleted, err := j.store.PurgeOlderThan(ctx, retentionDays)
	if err != nil {
		j.logger.Error("レコード削除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", retentionDays),
			slog.Int("deleted_count", deleted),
		)
		j.metrics.RecordPurged(deleted)
		return deleted, fmt.Errorf("レコード削除の実行に失敗: %w", err)
	}

	j.metrics.RecordPurged(deleted)
	j.logger.Info("レコード削除ジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Int("retention_days", retentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}

// RunScheduled はスケジューラから呼び出すための形で Run を実行する。
func (j *PurgeJob) RunScheduled(ctx context.Context) error {
	_, err := j.Run(ctx, j.RetentionDays)
	return err
}
