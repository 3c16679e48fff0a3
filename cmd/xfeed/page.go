package main

import (
	"errors"
	"fmt"
	"log/slog"

	xfeed "github.com/anatolykoptev/go-xfeed"
	"github.com/spf13/cobra"
)

func newPageCmd(a *app) *cobra.Command {
	var (
		apiKey   string
		count    int
		maxPages int
		quiet    bool
	)
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Page through the timeline until it ends, stalls or hits --max-pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxPages <= 0 {
				return errors.New("--max-pages must be positive")
			}
			c, done, err := a.client(nil)
			if err != nil {
				return err
			}
			defer done()

			p := c.NewPaginator(xfeed.TimelineRequest{Count: count, CookieString: a.apiKey(apiKey)}, maxPages)
			res, err := p.Drain(cmd.Context())
			out := cmd.OutOrStdout()
			if !quiet {
				printItems(out, res.Items)
			}
			fmt.Fprintf(out, "Fetched pages=%d tweets=%d stopped=%s\n", res.Pages, len(res.Items), res.StoppedBecause)
			if res.Cursor != "" {
				fmt.Fprintf(out, "nextCursor: %s\n", res.Cursor)
			}
			if err != nil {
				slog.Warn("paging interrupted", slog.Int("pages", res.Pages))
				return failure(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "base64 session token (default $API_KEY or the stored session)")
	cmd.Flags().IntVar(&count, "count", xfeed.DefaultCount, "entries per page")
	cmd.Flags().IntVar(&maxPages, "max-pages", 10, "stop after this many pages")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print totals only")
	return cmd
}
