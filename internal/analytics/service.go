package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/layofflens/internal/model"
	"github.com/hitoshi/layofflens/internal/repository"
)

// DefaultDays は集計期間の既定日数。
const DefaultDays = 90

// Service は集計APIのドメインロジックを提供する。
type Service struct {
	reader repository.RecordReader
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(reader repository.RecordReader, logger *slog.Logger) *Service {
	return &Service{
		reader: reader,
		logger: logger,
		now:    time.Now,
	}
}

// GetAnalytics は直近days日のニュースのうち Layoffs タグ付きのものを集計する。
// daysが1未満の場合はバリデーションエラーを返す。
// ストレージ障害時はログを残して空の集計結果を返す。
func (s *Service) GetAnalytics(ctx context.Context, days int) (*model.Stats, error) {
	if days < 1 {
		return nil, model.NewInvalidParameterError("days", "must be a positive integer")
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -days)

	records, err := s.reader.QueryRange(ctx, &since)
	if err != nil {
		s.logger.Error("集計対象の取得に失敗しました。空の結果を返します",
			slog.Int("days", days),
			slog.String("error", err.Error()),
		)
		return model.EmptyStats(), nil
	}

	targets := make([]model.FeedRecord, 0, len(records))
	for _, r := range records {
		if r.Type == model.ItemTypeNews && r.HasTag(model.TagLayoffs) {
			targets = append(targets, r)
		}
	}

	s.logger.Debug("集計対象を絞り込みました",
		slog.Int("days", days),
		slog.Int("fetched_count", len(records)),
		slog.Int("target_count", len(targets)),
	)

	return Aggregate(targets, now), nil
}
