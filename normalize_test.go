package xfeed

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const tweetParseBody = `{
	"data": {
		"home": {
			"home_timeline_urt": {
				"instructions": [
					{
						"type": "TimelineAddEntries",
						"entries": [
							{
								"entryId": "tweet-111",
								"content": {
									"entryType": "TimelineTimelineItem",
									"itemContent": {
										"__typename": "TimelineTweet",
										"tweet_results": {
											"result": {
												"__typename": "Tweet",
												"rest_id": "111",
												"core": {"user_results": {"result": {"legacy": {"name": "Alice", "screen_name": "alice"}}}},
												"views": {"count": "99"},
												"legacy": {
													"full_text": "hello from x",
													"created_at": "Thu Feb 20 12:34:56 +0000 2025",
													"lang": "en",
													"favorite_count": 5,
													"retweet_count": "2",
													"reply_count": 1,
													"quote_count": 0
												}
											}
										}
									}
								}
							},
							{
								"entryId": "cursor-bottom-1",
								"content": {"entryType": "TimelineTimelineCursor", "cursorType": "Bottom", "value": "cursor-abc"}
							}
						]
					}
				]
			}
		}
	}
}`

func mustParse(t *testing.T, body string) *Value {
	t.Helper()
	v, err := ParseValue([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestNormalizeTweet(t *testing.T) {
	batch := Normalize(mustParse(t, tweetParseBody))

	if len(batch.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(batch.Items))
	}
	views := int64(99)
	want := TimelineItem{
		ID:           "111",
		Text:         "hello from x",
		CreatedAt:    "2025-02-20T12:34:56.000Z",
		AuthorName:   "Alice",
		AuthorHandle: "alice",
		Lang:         "en",
		ReplyCount:   1,
		RetweetCount: 2,
		LikeCount:    5,
		ViewCount:    &views,
		URL:          "https://x.com/alice/status/111",
		Media:        []Media{},
	}
	if diff := cmp.Diff(want, batch.Items[0]); diff != "" {
		t.Fatalf("item mismatch (-want +got):\n%s", diff)
	}
	if batch.NextCursor != "cursor-abc" {
		t.Fatalf("expected cursor-abc, got %q", batch.NextCursor)
	}
	if batch.EntriesCount != 2 {
		t.Fatalf("expected 2 entries, got %d", batch.EntriesCount)
	}
}

const retweetBody = `{
	"data": {"home": {"home_timeline_urt": {"instructions": [{"type": "TimelineAddEntries", "entries": [{
		"entryId": "tweet-222",
		"content": {"itemContent": {
			"__typename": "TimelineTweet",
			"tweet_results": {"result": {
				"__typename": "TweetWithVisibilityResults",
				"tweet": {
					"rest_id": "222",
					"core": {"user_results": {"result": {"core": {"screen_name": "bob", "name": "Bob"}}}},
					"legacy": {
						"created_at": "Fri Feb 21 08:00:00 +0000 2025",
						"retweeted_status_result": {"result": {
							"rest_id": "333",
							"core": {"user_results": {"result": {"legacy": {"screen_name": "carol", "name": "Carol"}}}},
							"views": {"count": "1200"},
							"legacy": {"full_text": "Retweeted message", "favorite_count": 40, "lang": "en"}
						}}
					}
				}
			}}
		}}
	}]}]}}}
}`

// Retweets keep the wrapper id but speak for the retweeted author.
func TestNormalizeRetweetUnwrap(t *testing.T) {
	batch := Normalize(mustParse(t, retweetBody))
	if len(batch.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(batch.Items))
	}
	it := batch.Items[0]
	if it.ID != "222" {
		t.Fatalf("expected outer id 222, got %s", it.ID)
	}
	if it.AuthorHandle != "carol" || it.AuthorName != "Carol" {
		t.Fatalf("expected retweeted author carol, got %s/%s", it.AuthorHandle, it.AuthorName)
	}
	if it.Text != "Retweeted message" {
		t.Fatalf("unexpected text %q", it.Text)
	}
	if !it.IsRetweet || it.RetweetedBy != "bob" {
		t.Fatalf("expected retweet by bob, got %v/%q", it.IsRetweet, it.RetweetedBy)
	}
	if it.LikeCount != 40 || it.ViewCount == nil || *it.ViewCount != 1200 {
		t.Fatalf("expected counters of the retweeted tweet, got likes=%d views=%v", it.LikeCount, it.ViewCount)
	}
	if it.CreatedAt != "2025-02-21T08:00:00.000Z" {
		t.Fatalf("expected retweet time, got %s", it.CreatedAt)
	}
	if it.URL != "https://x.com/carol/status/222" {
		t.Fatalf("unexpected url %s", it.URL)
	}
}

func TestNormalizeRetweetWithoutInnerLegacy(t *testing.T) {
	body := `{"data": {"entries": [{"itemContent": {
		"__typename": "TimelineTweet",
		"tweet_results": {"result": {
			"rest_id": "444",
			"core": {"user_results": {"result": {"legacy": {"screen_name": "bob", "name": "Bob"}}}},
			"legacy": {
				"full_text": "RT @carol: Retweeted message",
				"retweeted_status_result": {"result": {"rest_id": "555"}}
			}
		}}
	}}]}}`
	batch := Normalize(mustParse(t, body))
	if len(batch.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(batch.Items))
	}
	it := batch.Items[0]
	if it.AuthorHandle != "bob" || it.Text != "RT @carol: Retweeted message" {
		t.Fatalf("expected the wrapper's author and text, got %s/%q", it.AuthorHandle, it.Text)
	}
	if !it.IsRetweet || it.RetweetedBy != "" {
		t.Fatalf("expected retweet without a retweeter, got %v/%q", it.IsRetweet, it.RetweetedBy)
	}
}

func TestNormalizeMissingInstructions(t *testing.T) {
	for _, body := range []string{`{}`, `{"data":{"home":{}}}`, `[]`, `null`, `"text"`} {
		batch := Normalize(mustParse(t, body))
		if len(batch.Items) != 0 || batch.NextCursor != "" {
			t.Fatalf("%s: expected empty batch, got %+v", body, batch)
		}
		out, err := json.Marshal(batch)
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != `{"items":[],"nextCursor":null}` {
			t.Fatalf("%s: unexpected JSON %s", body, out)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	v := mustParse(t, tweetParseBody)
	a, _ := json.Marshal(Normalize(v))
	b, _ := json.Marshal(Normalize(v))
	if string(a) != string(b) {
		t.Fatalf("normalization is not deterministic:\n%s\n%s", a, b)
	}
	c, _ := json.Marshal(NormalizeBytes([]byte(tweetParseBody)))
	if string(a) != string(c) {
		t.Fatal("re-parsing changed the output")
	}
}

func tweetNode(id, handle, text string) string {
	return fmt.Sprintf(`{"__typename":"TimelineTweet","tweet_results":{"result":{"rest_id":%q,
		"core":{"user_results":{"result":{"legacy":{"screen_name":%q}}}},
		"legacy":{"full_text":%q}}}}`, id, handle, text)
}

func TestNormalizeDedupFirstWins(t *testing.T) {
	body := fmt.Sprintf(`{"entries":[%s,{"module":{"items":[%s,%s]}},%s]}`,
		tweetNode("1", "a", "first"),
		tweetNode("2", "b", "two"),
		tweetNode("1", "a", "second"),
		tweetNode("3", "c", "three"))
	batch := Normalize(mustParse(t, body))

	var ids []string
	for _, it := range batch.Items {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	if batch.Items[0].Text != "first" {
		t.Fatalf("expected first occurrence to win, got %q", batch.Items[0].Text)
	}
}

func TestNormalizeFieldCoercion(t *testing.T) {
	body := `{"__typename":"TimelineTweet","tweet_results":{"result":{
		"rest_id":"9",
		"note_tweet":{"note_tweet_results":{"result":{"text":"long form body"}}},
		"quoted_status_result":{"result":{"rest_id":"10"}},
		"views":{"state":"Enabled"},
		"legacy":{"full_text":"short","created_at":"not a date","quote_count":"x","reply_count":null,
			"in_reply_to_status_id_str":"8"}}}}`
	it := Normalize(mustParse(t, body)).Items[0]

	if it.Text != "long form body" {
		t.Fatalf("expected note text, got %q", it.Text)
	}
	if it.CreatedAt != "" {
		t.Fatalf("expected empty createdAt, got %q", it.CreatedAt)
	}
	if it.QuoteCount != 0 || it.ReplyCount != 0 {
		t.Fatal("expected unparseable counters to be 0")
	}
	if it.ViewCount != nil {
		t.Fatal("expected nil view count")
	}
	if !it.IsQuote || it.ReplyTo != "8" {
		t.Fatalf("expected quote reply, got %v %q", it.IsQuote, it.ReplyTo)
	}
	if it.URL != "" {
		t.Fatalf("expected empty url without handle, got %s", it.URL)
	}
}

func TestNormalizeSkipsNodesWithoutID(t *testing.T) {
	body := `[{"__typename":"TimelineTweet","tweet_results":{"result":{"legacy":{"full_text":"x"}}}},
		{"__typename":"TimelineTweet","tweet_results":{"result":{"rest_id":"1"}}},
		{"__typename":"TimelineTweet"}]`
	if n := len(Normalize(mustParse(t, body)).Items); n != 0 {
		t.Fatalf("expected 0 items, got %d", n)
	}
}

func TestExtractMedia(t *testing.T) {
	legacy := mustParse(t, `{"extended_entities":{"media":[
		{"type":"photo","media_url_https":"https://pbs/p.jpg","expanded_url":"https://x.com/a/photo/1"},
		{"type":"video","media_url_https":"https://pbs/thumb.jpg","video_info":{"variants":[
			{"content_type":"application/x-mpegURL","url":"https://v/playlist.m3u8"},
			{"content_type":"video/mp4","bitrate":832000,"url":"https://v/832.mp4"},
			{"content_type":"video/mp4","bitrate":2176000,"url":"https://v/2176.mp4"},
			{"content_type":"video/mp4","bitrate":2176000,"url":"https://v/2176-b.mp4"}
		]}},
		{"type":"animated_gif","video_info":{"variants":[{"content_type":"application/x-mpegURL","url":"https://v/gif.m3u8"}]}},
		{"type":"card","expanded_url":"https://example.com/article"},
		{"type":"video","video_info":{"variants":[]}},
		"garbage"
	]}}`)

	want := []Media{
		{Type: MediaPhoto, URL: "https://pbs/p.jpg", ExpandedURL: "https://x.com/a/photo/1"},
		{Type: MediaVideo, URL: "https://v/2176.mp4", ThumbnailURL: "https://pbs/thumb.jpg"},
		{Type: MediaAnimatedGIF, URL: "https://v/gif.m3u8"},
		{Type: MediaUnknown, ExpandedURL: "https://example.com/article"},
	}
	if diff := cmp.Diff(want, extractMedia(legacy)); diff != "" {
		t.Fatalf("media (-want +got):\n%s", diff)
	}
}

func TestBottomCursor(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"first bottom wins", `[{"cursorType":"Top","value":"t"},{"cursorType":"Bottom","value":"b1"},{"cursorType":"Bottom","value":"b2"}]`, "b1"},
		{"entry id fallback", `{"entries":[{"entryId":"cursor-bottom-0","content":{"itemContent":{"value":"legacy"}}}]}`, "legacy"},
		{"none", `{"entries":[{"cursorType":"Top","value":"t"}]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bottomCursor(mustParse(t, tt.body)); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
