package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/courseai-go/internal/logging"
)

// NewStatsCmd constructs the `courseai stats` command, which prints the
// number of indexed courses and their titles.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vector index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			vectors, err := openVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer vectors.Close()

			stats, err := vectors.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			fmt.Printf("Indexed courses: %d\n", stats.CourseCount)
			for _, title := range stats.CourseTitles {
				fmt.Printf("  - %s\n", title)
			}
			return nil
		},
	}
}
