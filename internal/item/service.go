package item

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/layofflens/internal/model"
	"github.com/hitoshi/layofflens/internal/repository"
)

const (
	// PageSize はアーカイブ表示の1ページあたりの件数。
	PageSize = 50
	// DefaultArchiveLimit は days も limit も page も指定されない場合に返す最新件数の上限。
	DefaultArchiveLimit = 500
)

// ListParams はListItemsの入力。nilのフィールドは未指定を表す。
type ListParams struct {
	Days   *int
	Limit  *int
	Page   *int
	Sector string
}

// Pagination はページネーション情報を表す。
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	PageSize    int `json:"pageSize"`
	TotalItems  int `json:"totalItems"`
}

// ListResult はListItemsの戻り値。
// Plain が true の場合（limit指定時）はItemsのみを配列として返す想定。
type ListResult struct {
	Items      []model.FeedRecord `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Plain      bool               `json:"-"`
}

// ItemService はレコード一覧取得のサービス。
type ItemService struct {
	reader repository.RecordReader
	logger *slog.Logger
	now    func() time.Time
}

// NewItemService はItemServiceの新しいインスタンスを生成する。
func NewItemService(reader repository.RecordReader, logger *slog.Logger) *ItemService {
	return &ItemService{
		reader: reader,
		logger: logger,
		now:    time.Now,
	}
}

// ListItems は保存済みレコードを日付降順（同日時はスコア降順）で返す。
//
//   - Days 指定時は直近Days日以内のレコードのみ。未指定時は最新 DefaultArchiveLimit 件まで
//   - Sector 指定時は業種が一致（大文字小文字を区別しない）するレコードのみ
//   - Limit 指定時は先頭Limit件を Plain な結果として返す（Pageは無視）
//   - Page 指定時は PageSize 件ごとのページを返す
//   - いずれも指定されない場合は全件とページ情報を返す
//
// 0以下の Days, Limit, Page はバリデーションエラー（*model.APIError）となる。
// ストレージ障害時はエラーを返さず、ログを残して空の結果を返す。
func (s *ItemService) ListItems(ctx context.Context, p ListParams) (*ListResult, error) {
	if err := validatePositive("days", p.Days); err != nil {
		return nil, err
	}
	if err := validatePositive("limit", p.Limit); err != nil {
		return nil, err
	}
	if err := validatePositive("page", p.Page); err != nil {
		return nil, err
	}

	var since *time.Time
	if p.Days != nil {
		t := s.now().UTC().AddDate(0, 0, -*p.Days)
		since = &t
	}

	records, err := s.reader.QueryRange(ctx, since)
	if err != nil {
		s.logger.Error("レコード一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		records = nil
	}

	if sector := strings.TrimSpace(p.Sector); sector != "" {
		records = filterBySector(records, sector)
	}

	if p.Days == nil && len(records) > DefaultArchiveLimit {
		records = records[:DefaultArchiveLimit]
	}

	if records == nil {
		records = []model.FeedRecord{}
	}

	total := len(records)
	result := &ListResult{
		Pagination: Pagination{
			CurrentPage: 1,
			TotalPages:  totalPages(total),
			PageSize:    PageSize,
			TotalItems:  total,
		},
	}

	switch {
	case p.Limit != nil:
		if *p.Limit < total {
			records = records[:*p.Limit]
		}
		result.Items = records
		result.Plain = true
	case p.Page != nil:
		page := *p.Page
		start := (page - 1) * PageSize
		end := start + PageSize
		if start > total {
			start = total
		}
		if end > total {
			end = total
		}
		result.Items = records[start:end]
		result.Pagination.CurrentPage = page
	default:
		result.Items = records
	}

	return result, nil
}

func validatePositive(name string, v *int) error {
	if v != nil && *v < 1 {
		return model.NewInvalidParameterError(name, "must be a positive integer")
	}
	return nil
}

func totalPages(total int) int {
	return (total + PageSize - 1) / PageSize
}

func filterBySector(records []model.FeedRecord, sector string) []model.FeedRecord {
	filtered := make([]model.FeedRecord, 0, len(records))
	for _, r := range records {
		if strings.EqualFold(r.Sector, sector) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
