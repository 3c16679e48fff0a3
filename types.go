package xfeed

import "encoding/json"

// MediaType is the kind of media attached to a tweet.
type MediaType string

const (
	MediaPhoto       MediaType = "photo"
	MediaVideo       MediaType = "video"
	MediaAnimatedGIF MediaType = "animated_gif"
	MediaUnknown     MediaType = "unknown"
)

// Media is one attachment of a timeline item.
type Media struct {
	Type         MediaType `json:"type"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	ExpandedURL  string    `json:"expandedUrl"`
}

// TimelineItem is a normalized tweet.
type TimelineItem struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	CreatedAt    string `json:"createdAt"` // ISO-8601, empty if unknown
	AuthorName   string `json:"authorName"`
	AuthorHandle string `json:"authorHandle"`
	Lang         string `json:"lang"`
	ReplyTo      string `json:"replyTo"`

	QuoteCount   int64  `json:"quoteCount"`
	ReplyCount   int64  `json:"replyCount"`
	RetweetCount int64  `json:"retweetCount"`
	LikeCount    int64  `json:"likeCount"`
	ViewCount    *int64 `json:"viewCount"` // nil when X does not show views

	IsRetweet   bool   `json:"isRetweet"`
	IsQuote     bool   `json:"isQuote"`
	RetweetedBy string `json:"retweetedBy,omitempty"`

	URL   string  `json:"url"`
	Media []Media `json:"media"`
}

// TimelineBatch is the result of one timeline fetch.
type TimelineBatch struct {
	Items []TimelineItem
	// NextCursor is empty on the last page.
	NextCursor string
	// EntriesCount is the number of timeline entries in the raw page,
	// including cursors and non-tweet modules.
	EntriesCount int
}

// MarshalJSON renders an empty cursor as null.
func (b TimelineBatch) MarshalJSON() ([]byte, error) {
	var cursor *string
	if b.NextCursor != "" {
		cursor = &b.NextCursor
	}
	items := b.Items
	if items == nil {
		items = []TimelineItem{}
	}
	return json.Marshal(struct {
		Items      []TimelineItem `json:"items"`
		NextCursor *string        `json:"nextCursor"`
	}{items, cursor})
}

// TimelineRequest selects one page of the following timeline.
type TimelineRequest struct {
	// Count is the page size asked from X. Zero means DefaultCount.
	Count int
	// Cursor continues from a previous batch's NextCursor.
	Cursor string
	// CookieString is an encoded session token. When empty the client's
	// Resolver supplies credentials.
	CookieString string
}
