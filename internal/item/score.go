package item

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cloudflare/ahocorasick"
)

// relevanceKeywords はスコアの関連度に寄与するキーワード。
// 部分一致で判定するため "layoffs" を含むテキストは "layoff" にも一致する。
var relevanceKeywords = []string{
	"layoff",
	"layoffs",
	"job cuts",
	"unemployment",
	"hiring freeze",
	"downsizing",
	"redundancy",
	"furlough",
	"ai automation",
	"job market",
}

const (
	freshnessWeight    = 0.4
	relevanceWeight    = 0.6
	freshnessDecayRate = 2.0 // 1時間あたりの減点
	relevancePerHit    = 10
	maxScore           = 100
)

var (
	relevanceMu      sync.Mutex
	relevanceMatcher = ahocorasick.NewStringMatcher(relevanceKeywords)
)

// Score は鮮度と関連度から0〜100のランキングスコアを算出する。
//
//	freshness = max(0, 100 - 経過時間[h]*2)
//	relevance = min(100, 一致したキーワード数*10)
//	score     = round(freshness*0.4 + relevance*0.6)
//
// dateがnowより未来の場合は経過時間0として扱う。
func Score(title, snippet string, date, now time.Time) int {
	hours := now.Sub(date).Hours()
	if hours < 0 {
		hours = 0
	}
	freshness := math.Max(0, maxScore-hours*freshnessDecayRate)

	relevance := math.Min(maxScore, float64(relevanceHits(title, snippet)*relevancePerHit))

	score := int(math.Round(freshness*freshnessWeight + relevance*relevanceWeight))
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// relevanceHits は関連キーワードのうちテキストに含まれる種類数を返す。
func relevanceHits(title, snippet string) int {
	text := strings.ToLower(title + " " + snippet)

	relevanceMu.Lock()
	indices := relevanceMatcher.Match([]byte(text))
	relevanceMu.Unlock()

	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		seen[idx] = true
	}
	return len(seen)
}
