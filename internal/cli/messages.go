package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kittclouds/mammal/internal/conversation"
)

var (
	addParent   string
	addRole     string
	addProvider string
	addModel    string

	siblingOffset int
)

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a message",
	Long: `Add a message below a parent, or start a new thread.

Examples:
  mammal add "How do channels work?"
  mammal add --parent 1.1 --role assistant "Channels connect goroutines."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <path> <text>",
	Short: "Edit a message as a new branch",
	Long: `Store edited text as a new sibling of the message. The original and
everything below it are kept.

Examples:
  mammal edit 1.1 "How do buffered channels work?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEdit,
}

var threadCmd = &cobra.Command{
	Use:   "thread <path>",
	Short: "Show the thread ending at a message",
	Args:  cobra.ExactArgs(1),
	RunE:  runThread,
}

var latestCmd = &cobra.Command{
	Use:   "latest <path>",
	Short: "Show the freshest branch below a message",
	Long: `Follow the newest reply at every level below the message and print
the thread ending at the leaf reached.`,
	Args: cobra.ExactArgs(1),
	RunE: runLatest,
}

var siblingCmd = &cobra.Command{
	Use:   "sibling <path>",
	Short: "Switch to another branch of a message",
	Long: `Move along the alternatives of a message (edits and regenerations)
and show the freshest thread below the one reached.

Examples:
  mammal sibling 1.1.1
  mammal sibling 1.1.2 --offset=-1`,
	Args: cobra.ExactArgs(1),
	RunE: runSibling,
}

func init() {
	addCmd.Flags().StringVarP(&addParent, "parent", "p", "", "parent path (empty starts a new thread)")
	addCmd.Flags().StringVarP(&addRole, "role", "r", string(conversation.RoleUser), "message role (user, assistant, system, data)")
	addCmd.Flags().StringVar(&addProvider, "provider", "", "provider that produced the message")
	addCmd.Flags().StringVar(&addModel, "model", "", "model that produced the message")

	siblingCmd.Flags().IntVarP(&siblingOffset, "offset", "o", 1, "branches to move (negative goes back)")
}

func parseRole(s string) (conversation.Role, error) {
	switch r := conversation.Role(strings.ToLower(s)); r {
	case conversation.RoleUser, conversation.RoleAssistant, conversation.RoleSystem, conversation.RoleData:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role: %s", s)
	}
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	role, err := parseRole(addRole)
	if err != nil {
		return err
	}
	data := conversation.NewMessage(role, strings.Join(args, " "))
	if addProvider != "" || addModel != "" {
		data.Metadata = &conversation.Metadata{Provider: addProvider, Model: addModel}
	}

	msg, err := manager.AddMessage(ctx, addParent, data)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg.Path)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	msg, err := manager.EditMessage(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg.Path)
	return nil
}

func runThread(cmd *cobra.Command, args []string) error {
	thread, err := manager.GetThreadEndingAt(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get thread: %w", err)
	}
	printThread(cmd.OutOrStdout(), thread)
	return nil
}

func runLatest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	leaf, err := manager.SetThreadFor(ctx, args[0])
	if err != nil {
		return fmt.Errorf("resolve latest branch: %w", err)
	}
	if leaf == nil {
		return fmt.Errorf("message not found: %s", args[0])
	}
	printThread(cmd.OutOrStdout(), manager.ActiveThread())
	return nil
}

func runSibling(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	leaf, err := manager.GoToSibling(ctx, args[0], siblingOffset)
	if err != nil {
		return fmt.Errorf("switch branch: %w", err)
	}
	if leaf == nil {
		return fmt.Errorf("message not found: %s", args[0])
	}

	out := cmd.OutOrStdout()
	thread := manager.ActiveThread()
	for _, msg := range thread {
		index, count, err := manager.SiblingPosition(ctx, msg.Path)
		if err != nil {
			return fmt.Errorf("sibling position: %w", err)
		}
		if count > 1 {
			fmt.Fprintf(out, "%-12s [%s] (%d/%d) %s\n", msg.Path, msg.Data.Role, index+1, count, preview(msg.Data.Message))
			continue
		}
		printMessage(out, msg)
	}
	return nil
}
