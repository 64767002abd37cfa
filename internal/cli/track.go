package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTrackCmd creates the 'track' command for recording a single view.
func NewTrackCmd(opts *Options) *cobra.Command {
	var (
		watch     float64
		duration  float64
		liked     bool
		commented bool
		shared    bool
	)

	cmd := &cobra.Command{
		Use:   "track <item-id>",
		Short: "Record a view of an item",
		Long: `Record one end-of-view event. Repeated views of the same item merge into
one record: the longest watch wins and actions are never undone.`,
		Example: `  reelfeed track 4 --watch 15 --duration 15 --liked
  reelfeed track 7 --watch 2 --duration 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeAll, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			rec, ok := sess.TrackView(cmd.Context(), args[0], watch, duration, liked, commented, shared)
			if !ok {
				return fmt.Errorf("item %q is not in the catalog", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tracked %s: watched %.1fs, %.0f%% complete", rec.ItemID, rec.WatchTimeSeconds, rec.CompletionRate)
			if rec.Liked {
				fmt.Fprint(out, ", liked")
			}
			if rec.Commented {
				fmt.Fprint(out, ", commented")
			}
			if rec.Shared {
				fmt.Fprint(out, ", shared")
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&watch, "watch", "w", 0, "Seconds watched")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 15, "Item length in seconds")
	cmd.Flags().BoolVar(&liked, "liked", false, "The viewer liked the item")
	cmd.Flags().BoolVar(&commented, "commented", false, "The viewer commented")
	cmd.Flags().BoolVar(&shared, "shared", false, "The viewer shared the item")

	return cmd
}
