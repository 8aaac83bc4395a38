package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/layofflens/internal/model"
)

// RecordStore はEntityTable上でFeedRecordを永続化するストア。
// プロセスごとに1つ生成し、取り込みパイプライン・一覧・集計・削除ジョブで共有する。
type RecordStore struct {
	table        EntityTable
	partitionKey string
	logger       *slog.Logger
	now          func() time.Time

	mu    sync.Mutex
	ready bool
}

// コンパイル時チェック
var (
	_ RecordReader = (*RecordStore)(nil)
	_ RecordWriter = (*RecordStore)(nil)
	_ RecordPurger = (*RecordStore)(nil)
)

// NewRecordStore はRecordStoreの新しいインスタンスを生成する。
// partitionKeyは全レコード共通の定数パーティションキー。
func NewRecordStore(table EntityTable, partitionKey string, logger *slog.Logger) *RecordStore {
	return &RecordStore{
		table:        table,
		partitionKey: partitionKey,
		logger:       logger,
		now:          time.Now,
	}
}

// EnsureTable はテーブルの存在を保証する。
// 成功後はストアの生存期間中は再度作成を試みない。失敗した場合は次回呼び出しで再試行する。
func (s *RecordStore) EnsureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}
	if err := s.table.CreateIfAbsent(ctx); err != nil {
		return fmt.Errorf("テーブルの作成に失敗しました: %w", err)
	}
	s.ready = true
	return nil
}

// Upsert はレコードをマージ上書きで保存する。
// レコードのPartitionKeyが空の場合はストアの定数パーティションキーを使う。
func (s *RecordStore) Upsert(ctx context.Context, rec *model.FeedRecord) error {
	if err := s.EnsureTable(ctx); err != nil {
		return err
	}
	if rec.RowKey == "" {
		return fmt.Errorf("rowKey が空のレコードは保存できません: link=%s", rec.Link)
	}

	entity := recordToEntity(rec)
	if entity.PartitionKey == "" {
		entity.PartitionKey = s.partitionKey
	}
	if err := s.table.Upsert(ctx, entity, UpdateModeMerge); err != nil {
		return fmt.Errorf("レコードの保存に失敗しました: rowKey=%s: %w", rec.RowKey, err)
	}
	return nil
}

// QueryRange は since 以降のレコードを日付降順、スコア降順、RowKey昇順で返す。
// パーティションは定数のため、期間の絞り込みは全件走査とクライアント側の日付比較で行う。
func (s *RecordStore) QueryRange(ctx context.Context, since *time.Time) ([]model.FeedRecord, error) {
	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}

	entities, err := s.table.Scan(ctx, ScanFilter{})
	if err != nil {
		return nil, fmt.Errorf("レコードの走査に失敗しました: %w", err)
	}

	records := make([]model.FeedRecord, 0, len(entities))
	for _, e := range entities {
		rec, err := entityToRecord(e)
		if err != nil {
			s.logger.Warn("レコードの復元に失敗したためスキップします",
				slog.String("row_key", e.RowKey),
				slog.String("error", err.Error()),
			)
			continue
		}
		if since != nil && rec.Date.Before(*since) {
			continue
		}
		records = append(records, rec)
	}

	SortRecords(records)
	return records, nil
}

// PurgeOlderThan は date < now - retentionDays のレコードを削除し、削除件数を返す。
// 1件ごとの削除失敗はログを残してスキップし、処理を継続する。
func (s *RecordStore) PurgeOlderThan(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("retentionDays は1以上を指定してください: %d", retentionDays)
	}
	if err := s.EnsureTable(ctx); err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)

	entities, err := s.table.Scan(ctx, ScanFilter{})
	if err != nil {
		return 0, fmt.Errorf("レコードの走査に失敗しました: %w", err)
	}

	deleted := 0
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		date, ok := parseDate(e.Properties["date"])
		if !ok {
			s.logger.Warn("日付を解釈できないレコードは削除対象外とします",
				slog.String("row_key", e.RowKey),
			)
			continue
		}
		if !date.Before(cutoff) {
			continue
		}

		if err := s.table.Delete(ctx, e.PartitionKey, e.RowKey); err != nil {
			s.logger.Warn("レコードの削除に失敗しました",
				slog.String("row_key", e.RowKey),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	return deleted, nil
}

// SortRecords はレコードを日付降順、スコア降順、RowKey昇順に並べ替える。
func SortRecords(records []model.FeedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.RowKey < b.RowKey
	})
}

// --- エンティティとの相互変換 ---

// recordToEntity はレコードをエンティティに変換する。
// タグはJSON配列文字列として保存する。任意項目は値がある場合のみ含め、
// マージ時に以前の値を空で上書きしないようにする。
func recordToEntity(rec *model.FeedRecord) Entity {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	props := map[string]any{
		"title":   rec.Title,
		"link":    rec.Link,
		"source":  rec.Source,
		"snippet": rec.Snippet,
		"date":    rec.Date.UTC().Format(time.RFC3339Nano),
		"type":    string(rec.Type),
		"tags":    string(tagsJSON),
		"score":   rec.Score,
	}
	if rec.ImageURL != "" {
		props["imageUrl"] = rec.ImageURL
	}
	if rec.CompanyName != "" {
		props["companyName"] = rec.CompanyName
	}
	if rec.LayoffCount != nil {
		props["layoffCount"] = *rec.LayoffCount
	}
	if rec.Sector != "" {
		props["sector"] = rec.Sector
	}

	return Entity{
		PartitionKey: rec.PartitionKey,
		RowKey:       rec.RowKey,
		Properties:   props,
	}
}

// entityToRecord はエンティティをレコードに復元する。
func entityToRecord(e Entity) (model.FeedRecord, error) {
	p := e.Properties
	date, ok := parseDate(p["date"])
	if !ok {
		return model.FeedRecord{}, fmt.Errorf("date を解釈できません: %v", p["date"])
	}

	tags, err := parseTags(p["tags"])
	if err != nil {
		return model.FeedRecord{}, err
	}

	itemType := model.ItemType(stringProp(p, "type"))
	if !itemType.Valid() {
		itemType = model.ItemTypeNews
	}

	rec := model.FeedRecord{
		PartitionKey: e.PartitionKey,
		RowKey:       e.RowKey,
		Title:        stringProp(p, "title"),
		Link:         stringProp(p, "link"),
		Source:       stringProp(p, "source"),
		Snippet:      stringProp(p, "snippet"),
		Date:         date,
		Type:         itemType,
		Tags:         tags,
		ImageURL:     stringProp(p, "imageUrl"),
		CompanyName:  stringProp(p, "companyName"),
		Sector:       stringProp(p, "sector"),
	}
	if score, ok := intProp(p, "score"); ok {
		rec.Score = score
	}
	if count, ok := intProp(p, "layoffCount"); ok {
		rec.LayoffCount = &count
	}
	return rec, nil
}

func stringProp(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// intProp は数値プロパティをintとして取り出す。
// JSON経由で復元した値はfloat64になるため複数の型を受け付ける。
func intProp(p map[string]any, key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC(), true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, d); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// parseTags はJSON配列文字列または配列としてのタグを復元する。未設定の場合は空スライス。
func parseTags(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if t == "" {
			return []string{}, nil
		}
		var tags []string
		if err := json.Unmarshal([]byte(t), &tags); err != nil {
			return nil, fmt.Errorf("tags を解釈できません: %w", err)
		}
		if tags == nil {
			tags = []string{}
		}
		return tags, nil
	case []string:
		return t, nil
	case []any:
		tags := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("tags の型が不正です: %T", v)
	}
}
