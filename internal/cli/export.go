package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var exportList bool

var exportCmd = &cobra.Command{
	Use:   "export [thread]",
	Short: "Export a conversation to a JSON archive",
	Long: `Write a thread, with every branch and its title, to
<archive-dir>/thread-<id>.json.

Examples:
  mammal export 3
  mammal export 3 --archive-dir backups
  mammal export --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a conversation archive as a new thread",
	Long: `Restore an exported thread under a new thread id. Branches, paths
below the thread and the title are kept.

A bare file name is looked up in the archive dir.

Examples:
  mammal import thread-3.json --archive-dir backups
  mammal import ./old/thread-7.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().BoolVarP(&exportList, "list", "l", false, "list archives instead of exporting")
}

func runExport(cmd *cobra.Command, args []string) error {
	archives, err := archiveStore()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if exportList {
		names, err := archives.List()
		if err != nil {
			return fmt.Errorf("list archives: %w", err)
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("thread id required")
	}
	threadID, err := parseThreadID(args[0])
	if err != nil {
		return err
	}

	name, err := archives.Export(context.Background(), threadID)
	if err != nil {
		return fmt.Errorf("export thread: %w", err)
	}
	fmt.Fprintf(out, "Exported thread %d to /%s\n", threadID, name)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	archives, err := archiveStore()
	if err != nil {
		return err
	}

	name := args[0]
	if strings.ContainsRune(name, filepath.Separator) {
		abs, err := filepath.Abs(name)
		if err != nil {
			return fmt.Errorf("resolve archive: %w", err)
		}
		name = strings.TrimPrefix(filepath.ToSlash(abs), "/")
	}

	threadID, err := archives.Import(context.Background(), name)
	if err != nil {
		return fmt.Errorf("import thread: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported as thread %d\n", threadID)
	return nil
}
