// Package model はドメインモデルを定義する。
package model

import "time"

// ItemType はレコードの種別（ニュース記事または動画）を表す。
type ItemType string

const (
	// ItemTypeNews はニュース記事を表す。
	ItemTypeNews ItemType = "news"
	// ItemTypeVideo は動画を表す。
	ItemTypeVideo ItemType = "video"
)

// Valid はItemTypeが定義済みの値かどうかを返す。
func (t ItemType) Valid() bool {
	return t == ItemTypeNews || t == ItemTypeVideo
}

// FeedRecord は取り込み済みの1件のニュース記事または動画を表す。
// (PartitionKey, RowKey) で一意に識別され、再取り込み時はマージ上書きされる。
type FeedRecord struct {
	PartitionKey string    `json:"partitionKey"`
	RowKey       string    `json:"rowKey"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	Source       string    `json:"source"`
	Snippet      string    `json:"snippet"`
	Date         time.Time `json:"date"`
	Type         ItemType  `json:"type"`
	Tags         []string  `json:"tags"`
	Score        int       `json:"score"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CompanyName  string    `json:"companyName,omitempty"`
	LayoffCount  *int      `json:"layoffCount,omitempty"`
	Sector       string    `json:"sector,omitempty"`
}

// HasTag はレコードが指定タグを持つかどうかを返す。
func (r *FeedRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SearchResult は検索プロバイダから取得した未加工の1件を表す。
type SearchResult struct {
	Title        string
	Link         string
	Snippet      string
	Source       string // 取得元ドメイン。プロバイダが返さない場合は空
	ImageURL     string // プロバイダが返した画像ヒント
	ThumbnailURL string // プロバイダが返したサムネイルヒント
}

// LayoffFacts はAI抽出で得られる構造化情報を表す。
// 抽出できなかった項目はゼロ値（LayoffCountはnil）となる。
type LayoffFacts struct {
	CompanyName string
	LayoffCount *int
	Sector      string
}

// TagLayoffs は人員削減関連レコードに付与されるタグ。
// 統計集計はこのタグを持つニュースのみを対象にする。
const TagLayoffs = "Layoffs"
