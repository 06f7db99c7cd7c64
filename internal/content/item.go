package content

import "strings"

type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformUnknown   Platform = "unknown"
)

func ParsePlatform(s string) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tiktok":
		return PlatformTikTok
	case "youtube", "yt":
		return PlatformYouTube
	case "instagram", "ig":
		return PlatformInstagram
	default:
		return PlatformUnknown
	}
}

// Item is one post or video submitted for analysis. Items are treated as
// immutable once validated and are only referenced by ID afterwards.
type Item struct {
	ID          string   `json:"video_id"`
	Influencer  string   `json:"influencer"`
	Platform    Platform `json:"platform"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    float64  `json:"duration"`
	Transcript  string   `json:"transcript,omitempty"`
	OCRText     string   `json:"ocr_text,omitempty"`
}

// IDs returns item ids in order.
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// Index builds an id lookup. The first item wins on duplicate ids.
func Index(items []Item) map[string]Item {
	lookup := make(map[string]Item, len(items))
	for _, item := range items {
		if _, ok := lookup[item.ID]; !ok {
			lookup[item.ID] = item
		}
	}
	return lookup
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
