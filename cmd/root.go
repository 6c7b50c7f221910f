package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/presence-board/internal/cache"
	"github.com/bnema/presence-board/internal/config"
	"github.com/bnema/presence-board/internal/logger"
)

var (
	cacheDir          string
	verbose           bool
	clientSecretsPath string
	cfgDir            string
	cfg               *config.Config

	// Version information
	version    string
	commitHash string
	buildTime  string
)

var rootCmd = &cobra.Command{
	Use:   "presence-board",
	Short: "Shared in/out board backed by a Google Sheet, for Waybar",
	Long: `A CLI tool that keeps a small team's in/out board in sync with a shared
Google Sheet and shows it in Waybar.

Every member's presence and comment live in a two-row range of the sheet.
presence-board polls that range, highlights what other people changed, and
writes your own toggles and comments back without clobbering anybody else's.

Today's Google Calendar agenda can be shown next to the board.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, commit, buildTimeStr string) {
	version = v
	commitHash = commit
	buildTime = buildTimeStr

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commitHash, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (default: ~/.cache/presence-board)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "directory holding config.toml (default: ~/.config/presence-board)")
	rootCmd.PersistentFlags().StringVar(&clientSecretsPath, "client-secrets", "", "path to an OAuth client secrets JSON file")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(calendarsCmd)
	rootCmd.AddCommand(authCmd)
}

func initConfig() {
	logger.Init(verbose)

	if cacheDir == "" {
		defaultCacheDir, err := cache.GetDefaultCacheDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting default cache directory: %v\n", err)
			os.Exit(1)
		}
		cacheDir = defaultCacheDir
	}

	var err error
	cfg, err = config.Load(cfgDir)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
