// Package handlers defines the pheme CLI commands.
package handlers

import (
	"fmt"
	"os"

	"pheme/internal/config"
	"pheme/internal/logger"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pheme",
		Short: "Aggregate news sources into a topic-organized daily digest",
		Long: `Pheme fetches articles from configured feeds, boards, and web pages,
filters and organizes them into topics, summarizes each article with a
local LLM, and produces a single deduplicated daily digest.

Examples:
  # Run the digest pipeline now and print the result
  pheme digest

  # Run as a daemon on the configured cron schedule
  pheme serve

  # Manage configuration
  pheme sources add --name "Hacker News" --kind feed --url https://news.ycombinator.com/rss
  pheme topics add --name Tech --keywords ai,golang --priority 50
  pheme blocklist add "sponsored"`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .pheme.yaml)")

	rootCmd.AddCommand(NewDigestCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewSourcesCmd())
	rootCmd.AddCommand(NewTopicsCmd())
	rootCmd.AddCommand(NewBlocklistCmd())

	cobra.OnInitialize(initConfig)
	return rootCmd
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return
	}
	logger.SetLevel(cfg.Logging.Level)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
