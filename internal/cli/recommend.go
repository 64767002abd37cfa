package cli

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/khanglvm/reelfeed/internal/catalog"
)

// recommendation is the JSON form of one ranked item.
type recommendation struct {
	ID       string   `json:"id"`
	Creator  string   `json:"creator"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// NewRecommendCmd creates the 'recommend' command.
func NewRecommendCmd(opts *Options) *cobra.Command {
	var (
		count      int
		expr       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "recommend",
		Aliases: []string{"rec"},
		Short:   "Rank the catalog for the viewer and explain each pick",
		Long: `Score every catalog item against the viewer's history and print the top
picks with the reasons behind each score.

--filter takes a CEL expression over the item fields id, creator, username,
description, likes, comments, shares, followers and hashtags.`,
		Example: `  reelfeed recommend
  reelfeed recommend --count 5 --json
  reelfeed recommend --filter '"#travel" in hashtags'
  reelfeed recommend --filter 'likes > 100000 && creator != "u3"'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *catalog.Filter
			if expr != "" {
				f, err := catalog.NewFilter(expr)
				if err != nil {
					return err
				}
				filter = f
			}

			sess, closeAll, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			ranked := sess.Explain(count, filter)
			out := cmd.OutOrStdout()

			if jsonOutput {
				recs := make([]recommendation, 0, len(ranked))
				for _, r := range ranked {
					recs = append(recs, recommendation{
						ID:       r.Item.ID,
						Creator:  r.Item.Creator.ID,
						Score:    r.Result.Score,
						Reasons:  r.Result.Reasons,
						Hashtags: r.Item.Hashtags(),
					})
				}
				data, err := json.MarshalIndent(recs, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal recommendations: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(ranked) == 0 {
				fmt.Fprintln(out, "No items to recommend.")
				return nil
			}

			fmt.Fprintf(out, "Top %d for this viewer:\n\n", len(ranked))
			for i, r := range ranked {
				fmt.Fprintf(out, "%2d. [%6.1f] %-4s @%s\n", i+1, r.Result.Score, r.Item.ID, r.Item.Creator.Username)
				fmt.Fprintf(out, "    %s\n", r.Item.Description)
				fmt.Fprintf(out, "    → %s\n", strings.Join(r.Result.Reasons, ", "))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of items")
	cmd.Flags().StringVarP(&expr, "filter", "f", "", "CEL filter expression")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
