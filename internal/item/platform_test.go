package item

import (
	"testing"

	"github.com/hitoshi/layofflens/internal/model"
)

func TestClassifyType(t *testing.T) {
	tests := []struct {
		link string
		want model.ItemType
	}{
		{"https://www.youtube.com/watch?v=abc123", model.ItemTypeVideo},
		{"https://m.youtube.com/watch?v=abc123", model.ItemTypeVideo},
		{"https://youtu.be/abc123", model.ItemTypeVideo},
		{"https://vimeo.com/123456", model.ItemTypeVideo},
		{"https://www.tiktok.com/@user/video/1", model.ItemTypeVideo},
		{"https://www.dailymotion.com/video/x8", model.ItemTypeVideo},
		{"https://www.twitch.tv/videos/1", model.ItemTypeVideo},
		{"https://www.reuters.com/business/layoffs", model.ItemTypeNews},
		{"https://notyoutube.com/watch?v=abc", model.ItemTypeNews},
		{"https://youtube.com.evil.example/watch", model.ItemTypeNews},
		{"not a url", model.ItemTypeNews},
		{"", model.ItemTypeNews},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			if got := ClassifyType(tt.link); got != tt.want {
				t.Errorf("ClassifyType(%q) = %q, want %q", tt.link, got, tt.want)
			}
		})
	}
}

func TestSourceFor(t *testing.T) {
	if got := SourceFor("Reuters", "https://www.reuters.com/x"); got != "Reuters" {
		t.Errorf("provided source should win, got %q", got)
	}
	if got := SourceFor("", "https://www.reuters.com/x"); got != "reuters.com" {
		t.Errorf("SourceFor = %q, want reuters.com", got)
	}
	if got := SourceFor("  ", "https://news.ycombinator.com/item?id=1"); got != "news.ycombinator.com" {
		t.Errorf("SourceFor = %q, want news.ycombinator.com", got)
	}
}

func TestYouTubeThumbnail(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{"https://youtu.be/dQw4w9WgXcQ", "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{"https://youtu.be/dQw4w9WgXcQ?si=share", "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{"https://www.youtube.com/shorts/abcDEF12345", "https://img.youtube.com/vi/abcDEF12345/maxresdefault.jpg"},
		{"https://www.youtube.com/embed/abcDEF12345", "https://img.youtube.com/vi/abcDEF12345/maxresdefault.jpg"},
		{"https://www.youtube.com/watch", ""},
		{"https://www.youtube.com/@channel", ""},
		{"https://vimeo.com/123456", ""},
		{"https://example.com/watch?v=abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			if got := YouTubeThumbnail(tt.link); got != tt.want {
				t.Errorf("YouTubeThumbnail(%q) = %q, want %q", tt.link, got, tt.want)
			}
		})
	}
}

func TestValidLink(t *testing.T) {
	valid := []string{"https://example.com/a", "http://example.com", " https://example.com/x "}
	invalid := []string{"", "example.com/a", "ftp://example.com", "javascript:alert(1)", "https://"}

	for _, l := range valid {
		if !ValidLink(l) {
			t.Errorf("ValidLink(%q) = false, want true", l)
		}
	}
	for _, l := range invalid {
		if ValidLink(l) {
			t.Errorf("ValidLink(%q) = true, want false", l)
		}
	}
}
