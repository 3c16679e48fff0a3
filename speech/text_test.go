package speech

import (
	"testing"

	xfeed "github.com/anatolykoptev/go-xfeed"
)

func TestBuildText(t *testing.T) {
	tests := []struct {
		name string
		item xfeed.TimelineItem
		want string
	}{
		{"plain", xfeed.TimelineItem{AuthorHandle: "alice", Text: "hello"}, "@alice says: hello"},
		{"handle with at", xfeed.TimelineItem{AuthorHandle: " @bob ", Text: "hi"}, "@bob says: hi"},
		{"no handle", xfeed.TimelineItem{Text: "hi"}, "Unknown user says: hi"},
		{"links dropped", xfeed.TimelineItem{AuthorHandle: "a", Text: "look https://t.co/abc at\n\nthis http://x.y/z"}, "@a says: look at this"},
		{"only a link", xfeed.TimelineItem{AuthorHandle: "a", Text: "https://t.co/abc"}, "@a says: No text available."},
		{"empty", xfeed.TimelineItem{AuthorHandle: "a"}, "@a says: No text available."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildText(tt.item); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
