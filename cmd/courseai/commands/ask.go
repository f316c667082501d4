package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/courseai-go/internal/agent"
	"github.com/54b3r/courseai-go/internal/logging"
	"github.com/54b3r/courseai-go/internal/provider"
)

// NewAskCmd constructs the `courseai ask` command, which answers a single
// question against the indexed course materials and prints the result.
func NewAskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the indexed course materials",
		Long: `Ask the assistant a natural language question about the indexed courses.

The assistant decides whether to search course content, fetch a course
outline, or answer from general knowledge.

Examples:
  courseai ask "what does lesson 3 of the MCP course cover?"
  courseai ask --sources "how does retrieval-augmented generation work?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			vectors, err := openVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer vectors.Close()

			catalog, err := openCatalog(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer catalog.Close()

			assistant, err := agent.New(ctx, agentConfigFromEnv(&agent.Config{
				ChatModel: chatModel,
				Tools:     buildManager(vectors, catalog),
			}))
			if err != nil {
				return fmt.Errorf("ask: failed to initialise assistant: %w", err)
			}

			ans, err := assistant.Query(ctx, args[0], "")
			if err != nil {
				return err //nolint:wrapcheck // CLI entry point — error goes directly to cobra
			}

			fmt.Println(ans.Text)
			if showSources && len(ans.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range ans.Sources {
					line := "  - " + src.CourseTitle
					if src.LessonNumber != nil {
						line += fmt.Sprintf(", lesson %d", *src.LessonNumber)
					}
					if src.Link != "" {
						line += " (" + src.Link + ")"
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the course materials consulted")

	return cmd
}
