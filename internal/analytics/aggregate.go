// Package analytics は保存済みレコードから人員削減ニュースの集計を行う。
// 集計は読み出しのたびに再計算し、キャッシュしない。
package analytics

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/hitoshi/layofflens/internal/model"
)

// TopCompaniesLimit はtopCompaniesに含める最大件数。
const TopCompaniesLimit = 10

// TrackedCompanies は言及数を数える企業の一覧。同数の場合はこの順で並べる。
var TrackedCompanies = []string{
	"Amazon", "Meta", "Google", "Microsoft", "Apple", "Tesla",
	"Facebook", "Twitter", "Netflix", "Uber", "Lyft", "Salesforce",
	"Intel", "AMD", "Nvidia", "IBM", "Oracle", "SAP", "Dell", "HP",
}

// companyPatterns は企業名の単語単位・大文字小文字無視のパターン。"Intel" は "intelligence" に一致しない。
var companyPatterns = compileCompanyPatterns(TrackedCompanies)

func compileCompanyPatterns(names []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(names))
	for i, name := range names {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	}
	return out
}

const dateLayout = "2006-01-02"

// Aggregate はレコード群から週別・業種別・企業別の集計と要約を求める。
// recordsは集計対象に絞り込み済みであること。日付はすべてUTCの暦で扱う。
func Aggregate(records []model.FeedRecord, now time.Time) *model.Stats {
	now = now.UTC()
	stats := model.EmptyStats()

	weekly := map[string]*model.WeekCount{}
	sectors := map[string]int{}
	companies := make([]int, len(TrackedCompanies))
	today := now.Format(dateLayout)
	todayCount := 0

	for _, r := range records {
		d := r.Date.UTC()

		id := WeekID(d)
		wc, ok := weekly[id]
		if !ok {
			start, end := weekBounds(d)
			wc = &model.WeekCount{Week: id, StartDate: start.Format(dateLayout), EndDate: end.Format(dateLayout)}
			weekly[id] = wc
		}
		wc.Count++

		if s := r.Sector; s != "" && s != "null" && s != "undefined" {
			sectors[s]++
		}

		text := r.Title + " " + r.Snippet
		for i, p := range companyPatterns {
			if p.MatchString(text) {
				companies[i]++
			}
		}

		if d.Format(dateLayout) == today {
			todayCount++
		}
	}

	for _, wc := range weekly {
		stats.ByWeek = append(stats.ByWeek, *wc)
	}
	sort.Slice(stats.ByWeek, func(i, j int) bool { return stats.ByWeek[i].Week < stats.ByWeek[j].Week })

	stats.BySector = sectorDistribution(sectors)
	stats.TopCompanies = topCompanies(companies)

	thisWeek := countOf(weekly, WeekID(now))
	lastWeek := countOf(weekly, WeekID(now.AddDate(0, 0, -7)))
	stats.Summary = model.StatsSummary{
		TotalArticlesThisWeek: thisWeek,
		TotalArticlesLastWeek: lastWeek,
		PercentChange:         PercentChange(thisWeek, lastWeek),
		TodayCount:            todayCount,
		TopSector:             model.NoSector,
	}
	if len(stats.BySector) > 0 {
		stats.Summary.TopSector = stats.BySector[0].Sector
	}

	return stats
}

// WeekID はISO-8601の週番号を "YYYY-Www" 形式で返す。年はISO週の属する年。
func WeekID(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// weekBounds はtを含むISO週の月曜日と日曜日を返す。
func weekBounds(t time.Time) (time.Time, time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // 月曜日=0
	monday := day.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// PercentChange は先週比の増減率を整数に丸めて返す。先週が0件の場合は0。
func PercentChange(current, previous int) int {
	if previous <= 0 {
		return 0
	}
	return roundHalfUp(float64(current-previous) / float64(previous) * 100)
}

// roundHalfUp は .5 を正の無限大方向に丸める。
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func sectorDistribution(counts map[string]int) []model.SectorCount {
	total := 0
	for _, c := range counts {
		total += c
	}

	out := make([]model.SectorCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, model.SectorCount{
			Sector:     s,
			Count:      c,
			Percentage: roundHalfUp(float64(c) / float64(total) * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

func topCompanies(counts []int) []model.CompanyCount {
	out := make([]model.CompanyCount, 0, len(counts))
	for i, c := range counts {
		if c > 0 {
			out = append(out, model.CompanyCount{Company: TrackedCompanies[i], Count: c})
		}
	}
	// 安定ソートで同数の場合は一覧の順を保つ
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > TopCompaniesLimit {
		out = out[:TopCompaniesLimit]
	}
	return out
}

func countOf(weekly map[string]*model.WeekCount, id string) int {
	if wc, ok := weekly[id]; ok {
		return wc.Count
	}
	return 0
}
