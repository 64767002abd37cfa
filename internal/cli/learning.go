package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/khanglvm/reelfeed/internal/model"
)

// NewLearningCmd creates the learning command group.
func NewLearningCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Inspect or reset the viewer's watch history",
		Long: `The learning store keeps one merged record per watched item and derives the
viewer's favorite creators and hashtags from them.

Commands:
  status  Show totals and favorites
  export  Export interactions and preferences as JSON
  clear   Delete all history`,
	}

	cmd.AddCommand(newLearningStatusCmd(opts))
	cmd.AddCommand(newLearningExportCmd(opts))
	cmd.AddCommand(newLearningClearCmd(opts))

	return cmd
}

// newLearningStatusCmd shows learning statistics.
func newLearningStatusCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show learning statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeAll, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			prefs := sess.Store().Preferences()
			interactions := sess.Store().Interactions()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Learning Status")
			fmt.Fprintln(out, "===============")
			fmt.Fprintf(out, "Storage:            %s\n", opts.config().Storage.Driver)
			fmt.Fprintf(out, "Records:            %d (cap %d)\n", len(interactions), opts.config().Learning.MaxInteractions)
			fmt.Fprintf(out, "Items watched:      %d\n", prefs.TotalItemsWatched)
			fmt.Fprintf(out, "Avg watch time:     %.1fs\n", prefs.AvgWatchTimeSeconds)
			fmt.Fprintf(out, "Favorite creators:  %s\n", listOrNone(model.SortedKeys(prefs.FavoriteCreators)))
			fmt.Fprintf(out, "Favorite hashtags:  %s\n", listOrNone(model.SortedKeys(prefs.FavoriteHashtags)))

			if len(interactions) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Recent views:")
				for _, rec := range interactions[:min(5, len(interactions))] {
					fmt.Fprintf(out, "  %-4s %5.0f%%  %s\n", rec.ItemID, rec.CompletionRate, rec.LastUpdated.Format(time.DateTime))
				}
			}
			return nil
		},
	}
}

// exportDoc is the JSON export layout.
type exportDoc struct {
	Interactions []model.InteractionRecord `json:"interactions"`
	Preferences  exportPreferences         `json:"preferences"`
}

type exportPreferences struct {
	FavoriteCreators    []string           `json:"favoriteCreators"`
	FavoriteHashtags    []string           `json:"favoriteHashtags"`
	CategoryScores      map[string]float64 `json:"categoryScores"`
	AvgWatchTimeSeconds float64            `json:"avgWatchTime"`
	TotalItemsWatched   int                `json:"totalVideosWatched"`
}

// newLearningExportCmd exports the history as JSON.
func newLearningExportCmd(opts *Options) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export interactions and preferences as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeAll, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			prefs := sess.Store().Preferences()
			doc := exportDoc{
				Interactions: sess.Store().Interactions(),
				Preferences: exportPreferences{
					FavoriteCreators:    model.SortedKeys(prefs.FavoriteCreators),
					FavoriteHashtags:    model.SortedKeys(prefs.FavoriteHashtags),
					CategoryScores:      prefs.CategoryScores,
					AvgWatchTimeSeconds: prefs.AvgWatchTimeSeconds,
					TotalItemsWatched:   prefs.TotalItemsWatched,
				},
			}
			if doc.Interactions == nil {
				doc.Interactions = []model.InteractionRecord{}
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal export: %w", err)
			}

			if outputFile == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if err := os.WriteFile(outputFile, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(doc.Interactions), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

// newLearningClearCmd deletes all learning data.
func newLearningClearCmd(opts *Options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all learning data",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if !yes {
				fmt.Fprint(out, "This will delete all learning data. Continue? (y/N): ")
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(response)
				if response != "y" && response != "Y" {
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
			}

			sess, closeAll, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			if err := sess.Store().Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear learning data: %w", err)
			}

			fmt.Fprintln(out, "Learning data cleared successfully")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func listOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
