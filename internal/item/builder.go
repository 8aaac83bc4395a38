package item

import (
	"strings"
	"time"

	"github.com/hitoshi/layofflens/internal/model"
	"github.com/hitoshi/layofflens/internal/security"
)

// RecordBuilder は検索結果から保存用のFeedRecordを組み立てる。
// キー導出、取得元の補完、種別判定、タグ付け、画像ヒントの解決を行う。
// 画像探索・AI抽出・スコアリングは取り込みパイプライン側で後続処理として行う。
type RecordBuilder struct {
	partitionKey string
	sanitizer    security.TextSanitizer
	tagger       *Tagger
}

// NewRecordBuilder はRecordBuilderの新しいインスタンスを生成する。
func NewRecordBuilder(partitionKey string, sanitizer security.TextSanitizer) *RecordBuilder {
	return &RecordBuilder{
		partitionKey: partitionKey,
		sanitizer:    sanitizer,
		tagger:       defaultTagger,
	}
}

// Build は検索結果をFeedRecordに変換する。
// リンクがhttp(s)の絶対URLでない場合は false を返し、その結果は取り込まない。
// Dateには取り込み時刻 now（UTC）が入る。
func (b *RecordBuilder) Build(res model.SearchResult, now time.Time) (model.FeedRecord, bool) {
	link := strings.TrimSpace(res.Link)
	if !ValidLink(link) {
		return model.FeedRecord{}, false
	}

	title := b.sanitizer.Clean(res.Title)
	snippet := b.sanitizer.Clean(res.Snippet)

	rec := model.FeedRecord{
		PartitionKey: b.partitionKey,
		RowKey:       RowKey(link),
		Title:        title,
		Link:         link,
		Source:       SourceFor(res.Source, link),
		Snippet:      snippet,
		Date:         now.UTC(),
		Type:         ClassifyType(link),
		Tags:         b.tagger.Tags(title, snippet),
		ImageURL:     resolveImageHint(res, link),
	}
	return rec, true
}

// resolveImageHint はプロバイダの画像ヒント、サムネイルヒント、YouTubeサムネイルの順に
// 最初の採用可能な画像URLを返す。
func resolveImageHint(res model.SearchResult, link string) string {
	for _, candidate := range []string{res.ImageURL, res.ThumbnailURL, YouTubeThumbnail(link)} {
		if img := AcceptableImage(candidate); img != "" {
			return img
		}
	}
	return ""
}
