package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/config"
)

var (
	// global flags
	configPath   string
	sourceName   string
	mprisService string
	syncOffset   float64
	hideHeader   bool
	lrclibURL    string
	noCache      bool
	logLevel     string
	logFile      string
)

var rootCmd = &cobra.Command{
	Use:   "lyrisync",
	Short: "terminal-based synchronized lyrics viewer",
	Long: `lyrisync follows what your music player is playing and shows time-synced lyrics.
playback can come from an mpris player, the spotify web api or mpd.

when run without a subcommand, it starts the interactive TUI viewer.`,
	Version: "1.0.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		// default behavior: run the TUI viewer
		return runViewer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyrisync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sourceName, "source", "", "playback source: mpris, spotify or mpd")
	rootCmd.PersistentFlags().StringVarP(&mprisService, "mpris-service", "m", "", "mpris service name (e.g., org.mpris.MediaPlayer2.spotify)")
	rootCmd.PersistentFlags().Float64VarP(&syncOffset, "sync-offset", "s", 0, "initial sync offset in seconds")
	rootCmd.PersistentFlags().BoolVarP(&hideHeader, "hide-header", "H", false, "hide header section")
	rootCmd.PersistentFlags().StringVar(&lrclibURL, "lrclib-url", "", "custom lrclib api url")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "keep lyrics in memory only")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file")
}

// loadConfig reads the config file and environment, then applies any flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if sourceName != "" {
		cfg.Source = sourceName
	}
	if mprisService != "" {
		cfg.Mpris.Service = mprisService
	}
	if lrclibURL != "" {
		cfg.Lyrics.LrclibURL = lrclibURL
	}
	if flags.Changed("sync-offset") {
		cfg.UI.SyncOffset = time.Duration(syncOffset * float64(time.Second))
	}
	if flags.Changed("hide-header") {
		cfg.UI.HideHeader = hideHeader
	}
	if noCache {
		cfg.Cache.Backend = "none"
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
