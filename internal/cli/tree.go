package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Show messages as a tree",
	Long: `Print the message at path and everything below it, indented by depth.
Without a path every thread is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	RunE:  runList,
}

var titleCmd = &cobra.Command{
	Use:   "title <thread> [title]",
	Short: "Show or set a conversation title",
	Long: `Show the title of a thread, or replace it.

Examples:
  mammal title 3
  mammal title 3 "Channel semantics"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTitle,
}

func runTree(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}

	view, err := manager.Tree().GetTree(context.Background(), path)
	if err != nil {
		return fmt.Errorf("get tree: %w", err)
	}
	if view == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages.")
		return nil
	}
	printView(cmd.OutOrStdout(), view)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	roots, err := manager.RefreshRoots(context.Background())
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(roots) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return nil
	}
	for _, r := range roots {
		fmt.Fprintf(out, "%4d  %-40s %s  %s\n", r.ThreadID, preview(r.Title), r.Path, r.Latest.CreatedAt)
	}
	return nil
}

func runTitle(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	threadID, err := parseThreadID(args[0])
	if err != nil {
		return err
	}

	if len(args) > 1 {
		if err := manager.UpdateThreadTitle(ctx, threadID, strings.Join(args[1:], " ")); err != nil {
			return fmt.Errorf("update title: %w", err)
		}
	}

	title, err := manager.Title(ctx, threadID)
	if err != nil {
		return fmt.Errorf("get title: %w", err)
	}
	if title == "" {
		return fmt.Errorf("thread has no title: %d", threadID)
	}
	fmt.Fprintln(cmd.OutOrStdout(), title)
	return nil
}
