package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/reelfeed/internal/catalog"
	"github.com/khanglvm/reelfeed/internal/model"
)

// NewSearchCmd creates the 'search' command over the catalog index.
func NewSearchCmd(opts *Options) *cobra.Command {
	var (
		limit    int
		hashtag  bool
		creator  string
		personal bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over the catalog",
		Long: `Search item descriptions and creator names.

--hashtag treats the query as an exact hashtag. --personal blends the text
relevance with the viewer's ranking score.`,
		Example: `  reelfeed search sunset
  reelfeed search travel --hashtag
  reelfeed search recipe --creator u7
  reelfeed search nature --personal`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeAll, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			index, err := openIndex(opts.config().Catalog.IndexPath)
			if err != nil {
				return err
			}
			defer index.Close()

			if err := index.IndexItems(sess.Queue().Catalog()); err != nil {
				return err
			}

			query := args[0]
			var results []catalog.Result
			switch {
			case hashtag:
				results, err = index.SearchByHashtag(query, limit)
			case creator != "":
				results, err = index.SearchByCreator(query, creator, limit)
			case personal:
				prefs := sess.Store().Preferences()
				interactions := sess.Store().Interactions()
				scorer := func(item model.Item) float64 {
					return sess.Engine().Score(item, prefs, interactions, nil).Score
				}
				results, err = index.SearchPersonal(query, limit, scorer, catalog.DefaultFusionConfig)
			default:
				results, err = index.Search(query, limit)
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "No items match %q.\n", query)
				return nil
			}

			fmt.Fprintf(out, "Results for %q (%d):\n\n", query, len(results))
			for _, r := range results {
				fmt.Fprintf(out, "[%.3f] %-4s @%-14s %s\n", r.Score, r.Item.ID, r.Item.Creator.Username, r.Item.Description)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum results")
	cmd.Flags().BoolVar(&hashtag, "hashtag", false, "Match the query as a hashtag")
	cmd.Flags().StringVar(&creator, "creator", "", "Restrict to one creator id")
	cmd.Flags().BoolVarP(&personal, "personal", "p", false, "Blend in the viewer's ranking score")

	return cmd
}

func openIndex(path string) (*catalog.Index, error) {
	if path == "" {
		return catalog.NewIndex()
	}
	return catalog.NewIndexWithPath(path)
}
