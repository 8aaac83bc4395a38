package item

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/hitoshi/layofflens/internal/model"
)

// videoDomains は動画プラットフォームとみなす登録可能ドメインの集合。
var videoDomains = map[string]bool{
	"youtube.com":     true,
	"youtu.be":        true,
	"vimeo.com":       true,
	"tiktok.com":      true,
	"dailymotion.com": true,
	"twitch.tv":       true,
}

// ClassifyType はリンクのホストから種別を判定する。
// 動画プラットフォームのリンクは取得元のクエリに関わらず video となる。
func ClassifyType(link string) model.ItemType {
	host := hostOf(link)
	if host == "" {
		return model.ItemTypeNews
	}
	if videoDomains[registrableDomain(host)] {
		return model.ItemTypeVideo
	}
	return model.ItemTypeNews
}

// SourceFor は表示用の取得元を返す。
// プロバイダが取得元を返した場合はそれを優先し、なければリンクのホスト名（www.を除く）を使う。
func SourceFor(provided, link string) string {
	if s := strings.TrimSpace(provided); s != "" {
		return s
	}
	return strings.TrimPrefix(hostOf(link), "www.")
}

// YouTubeThumbnail はYouTubeのリンクからサムネイル画像URLを導出する。
// YouTube以外のリンクや動画IDを取り出せない場合は空文字列を返す。
func YouTubeThumbnail(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	var id string
	switch registrableDomain(host) {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		}
	}

	if i := strings.IndexAny(id, "/?&"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return ""
	}
	return "https://img.youtube.com/vi/" + id + "/maxresdefault.jpg"
}

// ValidLink はリンクが取り込み対象となるhttp(s)の絶対URLかどうかを返す。
func ValidLink(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
}

func hostOf(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// registrableDomain はホストの登録可能ドメイン（eTLD+1）を返す。
// 判定できない場合はホストをそのまま返す。
func registrableDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}
