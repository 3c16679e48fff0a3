package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	xfeed "github.com/anatolykoptev/go-xfeed"
	"github.com/spf13/cobra"
)

const previewLen = 140

func newFetchCmd(a *app) *cobra.Command {
	var (
		apiKey string
		count  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one page of the following timeline",
		Example: `  xfeed fetch --count 5
  API_KEY=$(xfeed session show --token) xfeed fetch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return errors.New("invalid --count value")
			}
			c, done, err := a.client(nil)
			if err != nil {
				return err
			}
			defer done()

			batch, err := c.FetchFollowingTimeline(cmd.Context(), xfeed.TimelineRequest{
				Count:        count,
				Cursor:       cursor,
				CookieString: a.apiKey(apiKey),
			})
			if err != nil {
				return failure(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fetched entries=%d tweets=%d\n", batch.EntriesCount, len(batch.Items))
			printItems(out, batch.Items)
			if batch.NextCursor != "" {
				fmt.Fprintf(out, "nextCursor: %s\n", batch.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "base64 session token (default $API_KEY or the stored session)")
	cmd.Flags().IntVar(&count, "count", 5, "number of timeline entries to request")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after this bottom cursor")
	return cmd
}

// printItems writes numbered one-line previews.
func printItems(w io.Writer, items []xfeed.TimelineItem) {
	for i, it := range items {
		handle := it.AuthorHandle
		if handle == "" {
			handle = "unknown"
		}
		line := fmt.Sprintf("%d. @%s: %s", i+1, handle, preview(it.Text))
		if it.RetweetedBy != "" {
			line += " (retweeted by @" + it.RetweetedBy + ")"
		}
		fmt.Fprintln(w, line)
		if it.URL != "" {
			fmt.Fprintf(w, "   %s\n", it.URL)
		}
	}
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewLen {
		return text
	}
	r := []rune(text)
	return string(r[:previewLen]) + "…"
}
