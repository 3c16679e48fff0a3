package xfeed

import (
	"strings"
	"time"
)

// createdAtLayouts are tried in order; X uses the first.
var createdAtLayouts = []string{
	time.RubyDate, // Mon Jan 02 15:04:05 -0700 2006
	time.RFC1123Z,
	time.RFC3339,
}

const isoMillis = "2006-01-02T15:04:05.000Z"

// Normalize projects a HomeLatestTimeline payload into a batch. It never
// fails: missing or odd sub-structures degrade to zero values.
//
// Tweets are found by their "TimelineTweet" type tag anywhere in the tree, so
// the instruction/entry/module nesting is not hard-coded. The first
// occurrence of an id wins.
func Normalize(payload *Value) TimelineBatch {
	items := []TimelineItem{}
	seen := make(map[string]bool)
	for _, node := range Collect(payload, HasField("__typename", "TimelineTweet")) {
		item, ok := extractTweet(node)
		if !ok || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return TimelineBatch{
		Items:        items,
		NextCursor:   bottomCursor(payload),
		EntriesCount: countEntries(payload),
	}
}

// NormalizeBytes parses and normalizes a raw payload. Invalid JSON yields an
// empty batch.
func NormalizeBytes(body []byte) TimelineBatch {
	v, err := ParseValue(body)
	if err != nil {
		return TimelineBatch{Items: []TimelineItem{}}
	}
	return Normalize(v)
}

// extractTweet projects a TimelineTweet node.
//
// For a retweet the item keeps the wrapper's id, created_at and media, while
// text, author, language, reply target and counters come from the retweeted
// tweet. RetweetedBy names the retweeting account.
func extractTweet(node *Value) (TimelineItem, bool) {
	result := unwrapVisibility(node.Path("tweet_results", "result"))
	legacy := result.Get("legacy")
	id := result.Get("rest_id").Str()
	if legacy.Kind() != KindObject || id == "" {
		return TimelineItem{}, false
	}

	source := result
	inner := unwrapVisibility(legacy.Path("retweeted_status_result", "result"))
	isRetweet := inner.Get("rest_id").Str() != ""
	if isRetweet && inner.Get("legacy").Kind() == KindObject {
		source = inner
	}
	srcLegacy := source.Get("legacy")

	handle, name := author(source)
	if handle == "" && name == "" {
		handle, name = author(result)
	}
	text := tweetText(source)
	if text == "" {
		text = tweetText(result)
	}

	item := TimelineItem{
		ID:           id,
		Text:         text,
		CreatedAt:    isoDate(legacy.Get("created_at").Str()),
		AuthorName:   name,
		AuthorHandle: handle,
		Lang:         srcLegacy.Get("lang").Str(),
		ReplyTo:      srcLegacy.Get("in_reply_to_status_id_str").Str(),
		QuoteCount:   srcLegacy.Get("quote_count").Int(),
		ReplyCount:   srcLegacy.Get("reply_count").Int(),
		RetweetCount: srcLegacy.Get("retweet_count").Int(),
		LikeCount:    srcLegacy.Get("favorite_count").Int(),
		ViewCount:    viewCount(source),
		IsRetweet:    isRetweet,
		IsQuote: legacy.Get("is_quote_status").Truthy() ||
			result.Path("quoted_status_result", "result", "rest_id").Str() != "",
		Media: extractMedia(legacy),
	}
	// Without the retweeted tweet's body the wrapper speaks for itself, so
	// there is no second account to name.
	if isRetweet && source != result {
		item.RetweetedBy, _ = author(result)
	}
	if handle != "" {
		item.URL = "https://x.com/" + handle + "/status/" + id
	}
	return item, true
}

// unwrapVisibility strips the TweetWithVisibilityResults wrapper.
func unwrapVisibility(v *Value) *Value {
	if v.Get("__typename").Str() == "TweetWithVisibilityResults" ||
		(v.Get("rest_id") == nil && v.Get("tweet").Kind() == KindObject) {
		return v.Get("tweet")
	}
	return v
}

// author returns the screen name and display name of a tweet result. Newer
// payloads carry them under user.core, older ones under user.legacy.
func author(tweet *Value) (handle, name string) {
	user := tweet.Path("core", "user_results", "result")
	handle = firstString(user.Path("core", "screen_name"), user.Path("legacy", "screen_name"))
	name = firstString(user.Path("core", "name"), user.Path("legacy", "name"))
	return handle, name
}

// tweetText prefers long-form note text over the legacy text fields.
func tweetText(tweet *Value) string {
	return firstString(
		tweet.Path("note_tweet", "note_tweet_results", "result", "text"),
		tweet.Path("legacy", "full_text"),
		tweet.Path("legacy", "text"),
	)
}

// viewCount is nil when the payload does not show a count.
func viewCount(tweet *Value) *int64 {
	count := tweet.Path("views", "count")
	if _, ok := count.Number(); !ok {
		return nil
	}
	v := count.Int()
	return &v
}

func isoDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(isoMillis)
		}
	}
	return ""
}

func extractMedia(legacy *Value) []Media {
	out := []Media{}
	for _, m := range legacy.Path("extended_entities", "media").Items() {
		if m.Kind() != KindObject {
			continue
		}
		typ := mediaType(m.Get("type").Str())
		media := Media{Type: typ, ExpandedURL: m.Get("expanded_url").Str()}
		if typ == MediaPhoto {
			media.URL = m.Get("media_url_https").Str()
		} else {
			media.URL = bestVariant(m.Path("video_info", "variants").Items())
			media.ThumbnailURL = m.Get("media_url_https").Str()
		}
		if media.URL == "" && media.ExpandedURL == "" {
			continue
		}
		out = append(out, media)
	}
	return out
}

func mediaType(s string) MediaType {
	switch t := MediaType(s); t {
	case MediaPhoto, MediaVideo, MediaAnimatedGIF:
		return t
	}
	return MediaUnknown
}

// bestVariant picks the highest-bitrate mp4 (first one at the max), falling
// back to the first variant with a URL.
func bestVariant(variants []*Value) string {
	var best, first string
	bestRate := -1.0
	for _, v := range variants {
		url := v.Get("url").Str()
		if url == "" {
			continue
		}
		if first == "" {
			first = url
		}
		if !strings.Contains(v.Get("content_type").Str(), "mp4") {
			continue
		}
		if rate, _ := v.Get("bitrate").Number(); rate > bestRate {
			best, bestRate = url, rate
		}
	}
	if best != "" {
		return best
	}
	return first
}

// bottomCursor returns the value of the first "Bottom" cursor node, falling
// back to an entry whose id starts with cursor-bottom.
func bottomCursor(payload *Value) string {
	if nodes := Collect(payload, HasField("cursorType", "Bottom")); len(nodes) > 0 {
		if v := nodes[0].Get("value").Str(); v != "" {
			return v
		}
	}
	entries := Collect(payload, func(n *Value) bool {
		return strings.HasPrefix(n.Get("entryId").Str(), "cursor-bottom")
	})
	for _, e := range entries {
		if v := firstString(e.Path("content", "value"), e.Path("content", "itemContent", "value")); v != "" {
			return v
		}
	}
	return ""
}

// countEntries counts the entries of all TimelineAddEntries instructions.
func countEntries(payload *Value) int {
	n := 0
	for _, inst := range Collect(payload, HasField("type", "TimelineAddEntries")) {
		n += len(inst.Get("entries").Items())
	}
	return n
}

func firstString(vals ...*Value) string {
	for _, v := range vals {
		if s := v.Str(); s != "" {
			return s
		}
	}
	return ""
}
