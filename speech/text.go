package speech

import (
	"regexp"
	"strings"

	xfeed "github.com/anatolykoptev/go-xfeed"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

const (
	unknownUser = "Unknown user"
	noText      = "No text available."
)

// BuildText renders an item as "@handle says: body". Links are dropped since
// they read badly.
func BuildText(item xfeed.TimelineItem) string {
	return speakerHandle(item.AuthorHandle) + " says: " + body(item.Text)
}

func speakerHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	switch {
	case handle == "":
		return unknownUser
	case strings.HasPrefix(handle, "@"):
		return handle
	}
	return "@" + handle
}

func body(text string) string {
	cleaned := strings.Join(strings.Fields(urlPattern.ReplaceAllString(text, "")), " ")
	if cleaned == "" {
		return noText
	}
	return cleaned
}
