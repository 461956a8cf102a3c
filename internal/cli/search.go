package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchOpen  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over all messages",
	Long: `Search message text in every thread. Queries of three or more
characters use the trigram index; shorter ones scan the messages directly.

Examples:
  mammal search "buffered channel"
  mammal search go --limit 5
  mammal search mutex --open`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the full-text index",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "max results")
	searchCmd.Flags().BoolVar(&searchOpen, "open", false, "show the thread of the best hit")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	results, err := manager.Search(ctx, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	if searchOpen {
		if _, err := manager.OpenSearchResult(ctx, results[0].Path); err != nil {
			return fmt.Errorf("open result: %w", err)
		}
		printThread(out, manager.ActiveThread())
		return nil
	}

	fmt.Fprintf(out, "Found %d results:\n\n", len(results))
	for _, r := range results {
		fmt.Fprintf(out, "%-12s [%s] %s\n", r.Path, r.Data.Role, r.Snippet)
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	if err := manager.Reindex(context.Background()); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Index rebuilt.")
	return nil
}
