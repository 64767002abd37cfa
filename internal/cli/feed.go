package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/khanglvm/reelfeed/internal/model"
)

// NewFeedCmd creates the 'feed' command, which plays through a feed session.
func NewFeedCmd(opts *Options) *cobra.Command {
	var (
		steps     int
		track     bool
		duration  float64
		watch     float64
		likeEvery int
		refresh   bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Play through the feed",
		Long: `Start a feed session and advance through it one item at a time.

With --track every item is recorded as watched, so later items and later
sessions are ranked with the updated preferences.`,
		Example: `  reelfeed feed
  reelfeed feed --steps 25 --track
  reelfeed feed --steps 40 --track --watch 14 --like-every 3 --metrics
  reelfeed feed --refresh`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			sess, closeAll, err := opts.openSession(ctx)
			if err != nil {
				return err
			}
			defer closeAll()

			window, err := sess.Start(ctx)
			if err != nil {
				return err
			}
			if refresh {
				if window, err = sess.Queue().RefreshFeed(ctx); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "Session %s\n", sess.ID())
			printWindow(out, window, sess.Queue().Cursor())
			fmt.Fprintln(out)

			q := sess.Queue()
			for i := 0; i < steps; i++ {
				item, ok := q.Current()
				if !ok {
					fmt.Fprintln(out, "End of feed")
					break
				}

				liked := likeEvery > 0 && (i+1)%likeEvery == 0
				marker := " "
				if track {
					sess.TrackView(ctx, item.ID, watch, duration, liked, false, false)
					marker = "✓"
				}
				fmt.Fprintf(out, "%s %3d  %-4s @%-14s %s\n", marker, q.Cursor(), item.ID, item.Creator.Username, item.Description)

				q.Advance(ctx)
				// Keep the simulated viewer behind the prefetcher.
				q.Wait()
			}

			fmt.Fprintf(out, "\nQueue: %d items, cursor %d, %s\n", q.Len(), q.Cursor(), q.State())
			return nil
		},
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 10, "Number of items to advance through")
	cmd.Flags().BoolVarP(&track, "track", "t", false, "Record each item as watched")
	cmd.Flags().Float64Var(&duration, "duration", 15, "Simulated item length in seconds")
	cmd.Flags().Float64Var(&watch, "watch", 12, "Simulated watch time in seconds")
	cmd.Flags().IntVar(&likeEvery, "like-every", 0, "Like every Nth item (0 disables)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Rebuild the feed before playing")

	return cmd
}

// printWindow lists the visible window and marks the cursor.
func printWindow(out io.Writer, items []model.Item, cursor int) {
	fmt.Fprintf(out, "Visible window (%d):\n", len(items))
	for i, item := range items {
		marker := " "
		if i == cursor {
			marker = "▶"
		}
		fmt.Fprintf(out, "%s %3d  %-4s @%-14s %s\n", marker, i, item.ID, item.Creator.Username, item.Description)
	}
}
