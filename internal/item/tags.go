package item

import (
	"strings"
	"sync"
	"unicode"

	"github.com/cloudflare/ahocorasick"
)

// TagRule はキーワードとタグラベルの対応を表す。
// Phrases は部分一致、Words は単語単位の完全一致で判定する。
// "ai" や "ats" のような短い語は部分一致だと "said" や "stats" に誤反応するため Words に置く。
type TagRule struct {
	Label   string
	Phrases []string
	Words   []string
}

// DefaultTagRules はタグ抽出ルール表。出力されるタグの順序はこの表の順序に従う。
var DefaultTagRules = []TagRule{
	{Label: "Layoffs", Phrases: []string{"layoff", "laid off", "job cut", "job loss", "lay off"}},
	{Label: "AI", Phrases: []string{"artificial intelligence", "generative ai"}, Words: []string{"ai"}},
	{Label: "Automation", Phrases: []string{"automation", "automated", "robots"}},
	{Label: "Unemployment", Phrases: []string{"unemployment", "jobless"}},
	{Label: "Hiring Freeze", Phrases: []string{"hiring freeze", "hiring pause"}},
	{Label: "Resume Writing", Phrases: []string{"resume", "résumé", "cover letter"}, Words: []string{"cv"}},
	{Label: "ATS", Phrases: []string{"applicant tracking"}, Words: []string{"ats"}},
	{Label: "Interview Tips", Phrases: []string{"interview"}},
	{Label: "Job Search", Phrases: []string{"job search", "job hunt", "job seeker", "job market"}},
	{Label: "Career Advice", Phrases: []string{"career advice", "career tips", "career change", "career growth"}},
	{Label: "Networking", Phrases: []string{"networking", "linkedin"}},
}

// Tagger はルール表に基づいてテキストにタグを付与する。
// 部分一致はAho-Corasickで一括照合する。
type Tagger struct {
	rules []TagRule

	// ahocorasick.Matcher は照合ごとに内部カウンタを更新するため排他が必要
	mu         sync.Mutex
	matcher    *ahocorasick.Matcher
	phraseRule []int            // 辞書インデックス -> ルールインデックス
	wordRule   map[string][]int // 単語 -> ルールインデックス
}

// NewTagger はルール表からTaggerを構築する。
func NewTagger(rules []TagRule) *Tagger {
	t := &Tagger{
		rules:    rules,
		wordRule: make(map[string][]int),
	}
	var dict []string
	for i, r := range rules {
		for _, p := range r.Phrases {
			dict = append(dict, strings.ToLower(p))
			t.phraseRule = append(t.phraseRule, i)
		}
		for _, w := range r.Words {
			w = strings.ToLower(w)
			t.wordRule[w] = append(t.wordRule[w], i)
		}
	}
	if len(dict) > 0 {
		t.matcher = ahocorasick.NewStringMatcher(dict)
	}
	return t
}

var defaultTagger = NewTagger(DefaultTagRules)

// ExtractTags はタイトルとスニペットから既定ルール表でタグを抽出する。
// 一致がなくても nil ではなく空スライスを返す。
func ExtractTags(title, snippet string) []string {
	return defaultTagger.Tags(title, snippet)
}

// Tags はタイトルとスニペットを小文字化して連結したテキストにルール表を適用する。
// 各ルールは高々1回だけラベルを出力し、出力順はルール表の順序となる。
func (t *Tagger) Tags(title, snippet string) []string {
	text := strings.ToLower(title + " " + snippet)
	hit := make([]bool, len(t.rules))

	if t.matcher != nil {
		t.mu.Lock()
		indices := t.matcher.Match([]byte(text))
		t.mu.Unlock()
		for _, idx := range indices {
			hit[t.phraseRule[idx]] = true
		}
	}

	if len(t.wordRule) > 0 {
		for _, w := range words(text) {
			for _, ri := range t.wordRule[w] {
				hit[ri] = true
			}
		}
	}

	tags := make([]string, 0, len(t.rules))
	for i, r := range t.rules {
		if hit[i] {
			tags = append(tags, r.Label)
		}
	}
	return tags
}

// words はテキストを英数字以外の文字で区切った単語列を返す。
func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
