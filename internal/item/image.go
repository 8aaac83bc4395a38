package item

import (
	"net/url"
	"path"
	"strings"
)

// lowQualityMarkers はURLに含まれていればファビコンや汎用アイコンとみなす文字列。
var lowQualityMarkers = []string{
	"favicon",
	"/s2/favicons",
	"apple-touch-icon",
	"android-chrome-",
	"mstile-",
	"default-avatar",
	"placeholder",
	"/logo-default",
	"blank.gif",
	"spacer.gif",
	"pixel.gif",
}

// IsLowQualityImage はレコード画像として採用できないURLかどうかを判定する。
// ファビコン、.ico、data URI、汎用プレースホルダは低品質とみなす。
// 空文字列やhttp(s)以外のURLも採用できないため true を返す。
func IsLowQualityImage(imageURL string) bool {
	raw := strings.TrimSpace(imageURL)
	if raw == "" {
		return true
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:") {
		return true
	}

	u, err := url.Parse(lower)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return true
	}
	if path.Ext(u.Path) == ".ico" {
		return true
	}
	for _, m := range lowQualityMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// AcceptableImage は低品質でなければURLをそのまま返し、低品質なら空文字列を返す。
func AcceptableImage(imageURL string) string {
	if IsLowQualityImage(imageURL) {
		return ""
	}
	return strings.TrimSpace(imageURL)
}
