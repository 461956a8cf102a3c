// Package cli provides the command-line interface for mammal.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	osfs "github.com/hack-pad/hackpadfs/os"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kittclouds/mammal/internal/archive"
	"github.com/kittclouds/mammal/internal/config"
	"github.com/kittclouds/mammal/internal/conversation"
	"github.com/kittclouds/mammal/internal/store"
	"github.com/kittclouds/mammal/pkg/mptree"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configFile string

	// Global config, store and manager
	cfg     config.Config
	db      *store.SQLiteStore
	manager *conversation.Manager
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mammal",
	Short: "Branching conversation store",
	Long: `Mammal keeps chat conversations as trees of messages in SQLite.

Every message has a materialized path such as "3.1.2": thread 3, first
message, second reply. Editing a message adds a sibling branch, so earlier
answers are never lost, and a thread can always be replayed from its first
message to any leaf.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		v := viper.New()
		if err := config.Setup(v, configFile, cmd.Root().PersistentFlags()); err != nil {
			return err
		}
		cfg = config.Load(v)

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		var err error
		if cfg.DB == ":memory:" {
			db, err = store.NewSQLiteStore()
		} else {
			db, err = store.NewSQLiteStoreWithDSN(cfg.DB)
		}
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}

		var adapter mptree.Adapter = db
		if cfg.TraceSQL {
			adapter = store.NewLogged(db)
		}

		manager, err = conversation.NewManager(context.Background(), adapter, cfg.Table)
		if err != nil {
			return fmt.Errorf("open conversations: %w", err)
		}
		log.Debug().Str("db", cfg.DB).Str("table", cfg.Table).Msg("store opened")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
			db = nil
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./config.yaml, $HOME/.mammal/config.yaml)")
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(siblingCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(titleCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// archiveStore opens the archive directory on the host filesystem.
func archiveStore() (*archive.Store, error) {
	abs, err := filepath.Abs(cfg.ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("resolve archive dir: %w", err)
	}
	// hackpadfs paths are rooted at "/" without the leading slash.
	dir := strings.TrimPrefix(filepath.ToSlash(abs), "/")
	return archive.NewStore(osfs.NewFS(), dir, manager), nil
}

// parseThreadID accepts "3" as well as any path inside thread 3.
func parseThreadID(s string) (int64, error) {
	if !mptree.ValidPath(s) {
		return 0, fmt.Errorf("invalid thread id: %s", s)
	}
	return mptree.ThreadID(s), nil
}
