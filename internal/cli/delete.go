package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete a message and all replies below it",
	Long: `Delete a message and its whole subtree (cascade delete).
Deleting a thread's first message removes the conversation and its title.
Requires confirmation unless --force is used.

Examples:
  mammal delete 2.1.3
  mammal delete 2.1 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var moveCmd = &cobra.Command{
	Use:   "move <path> <new-parent>",
	Short: "Move a message and its replies below another message",
	Long: `Re-parent a message. The message and everything below it get new
paths under the new parent. An empty new parent ("") starts a new thread.

Examples:
  mammal move 5.1.2 7.1
  mammal move 5.1.2 ""`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := context.Background()

	msg, err := manager.GetMessage(ctx, path)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("message not found: %s", path)
	}

	// Confirm deletion
	if !deleteForce {
		count, err := msg.DescendantCount(ctx)
		if err != nil {
			return fmt.Errorf("count replies: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "About to delete %s and %d replies: %s\n", path, count, preview(msg.Data.Message))
		fmt.Fprint(cmd.OutOrStdout(), "\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	if err := manager.CascadeDelete(ctx, path); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted: %s\n", path)
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	msg, err := manager.MoveMessage(context.Background(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("move message: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved: %s -> %s\n", args[0], msg.Path)
	return nil
}
