package model

// WeekCount はISO週ごとの件数を表す。
type WeekCount struct {
	Week      string `json:"week"`      // 例: 2025-W07
	Count     int    `json:"count"`
	StartDate string `json:"startDate"` // 月曜日 (YYYY-MM-DD)
	EndDate   string `json:"endDate"`   // 日曜日 (YYYY-MM-DD)
}

// SectorCount は業種ごとの件数と割合を表す。
type SectorCount struct {
	Sector     string `json:"sector"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// CompanyCount は企業ごとの言及件数を表す。
type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

// StatsSummary は直近の動向の要約を表す。
type StatsSummary struct {
	TotalArticlesThisWeek int    `json:"totalArticlesThisWeek"`
	TotalArticlesLastWeek int    `json:"totalArticlesLastWeek"`
	PercentChange         int    `json:"percentChange"`
	TodayCount            int    `json:"todayCount"`
	TopSector             string `json:"topSector"`
}

// Stats は人員削減ニュースの集計結果を表す。
type Stats struct {
	ByWeek       []WeekCount    `json:"byWeek"`
	BySector     []SectorCount  `json:"bySector"`
	TopCompanies []CompanyCount `json:"topCompanies"`
	Summary      StatsSummary   `json:"summary"`
}

// NoSector は業種が1件も集計できなかった場合のtopSectorの値。
const NoSector = "N/A"

// EmptyStats は空の集計結果を返す。スライスはnilではなく空で返す。
func EmptyStats() *Stats {
	return &Stats{
		ByWeek:       []WeekCount{},
		BySector:     []SectorCount{},
		TopCompanies: []CompanyCount{},
		Summary:      StatsSummary{TopSector: NoSector},
	}
}
