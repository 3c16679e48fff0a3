package main

import (
	"fmt"
	"log/slog"

	xfeed "github.com/anatolykoptev/go-xfeed"
	"github.com/anatolykoptev/go-xfeed/speech"
	"github.com/spf13/cobra"
)

func newReadCmd(a *app) *cobra.Command {
	var (
		apiKey string
		count  int
		start  int
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the latest timeline page aloud (Ctrl-C stops)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := a.client(nil)
			if err != nil {
				return err
			}
			defer done()

			ctx := cmd.Context()
			batch, err := c.FetchFollowingTimeline(ctx, xfeed.TimelineRequest{Count: count, CookieString: a.apiKey(apiKey)})
			if err != nil {
				return failure(err)
			}
			out := cmd.OutOrStdout()
			if len(batch.Items) == 0 {
				fmt.Fprintln(out, "Nothing to read.")
				return nil
			}

			engine := &speech.CommandEngine{Command: a.cfg.Speech.Command, Args: a.cfg.Speech.Args}
			finished := make(chan error, 1)
			q := speech.NewQueue(engine, speech.Events{
				OnIndexChange: func(i int, it xfeed.TimelineItem) {
					fmt.Fprintf(out, "[%d/%d] @%s\n", i+1, len(batch.Items), it.AuthorHandle)
				},
				OnDone:  func() { report(finished, nil) },
				OnError: func(err error) { report(finished, err) },
			})
			q.Play(batch.Items, start)

			select {
			case err := <-finished:
				if err != nil {
					return fmt.Errorf("speech: %w", err)
				}
				return nil
			case <-ctx.Done():
				q.Stop()
				slog.Info("playback stopped", slog.Int("index", q.Index()))
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "base64 session token (default $API_KEY or the stored session)")
	cmd.Flags().IntVar(&count, "count", 10, "number of timeline entries to read")
	cmd.Flags().IntVar(&start, "start", 0, "index of the first item to read")
	return cmd
}

// report hands the first playback outcome to the waiting command.
func report(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
