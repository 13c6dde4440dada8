package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/logging"
	"karolbroda.com/lyrisync/internal/playback"
	"karolbroda.com/lyrisync/internal/player"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "playback source utilities",
	Long:  `discover mpris players and check what the configured source reports.`,
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list available mpris players",
	Long:  `list all mpris-compatible music players currently running on the system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		services, err := player.ListPlayers(bus)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(services) == 0 {
			fmt.Fprintln(out, "no mpris players found")
			fmt.Fprintln(out, "\ncheck if your music player is running and supports mpris")
			return nil
		}

		fmt.Fprintf(out, "found %d mpris player(s):\n\n", len(services))
		for _, service := range services {
			if identity := player.Identity(bus, service); identity != "" {
				fmt.Fprintf(out, "  %s (%s)\n", service, identity)
			} else {
				fmt.Fprintf(out, "  %s\n", service)
			}
		}

		fmt.Fprintln(out, "\nuse --mpris-service flag to specify which player to use")
		return nil
	},
}

var playerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "show currently playing track",
	Long:  `query the configured playback source once and print the track and position.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger, err := logging.NewConsole(cfg.Log.Level)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Poll.Timeout)
		defer cancel()

		src, err := openSource(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer src.close()

		reading, err := src.source.Fetch(ctx)
		if err != nil {
			logger.Debug("fetch failed", zap.Stringer("kind", playback.KindOf(err)), zap.Error(err))
			return fmt.Errorf("failed to query %s: %w", src.source.Name(), err)
		}

		printReading(cmd.OutOrStdout(), src.source.Name(), reading)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.AddCommand(playerListCmd)
	playerCmd.AddCommand(playerCurrentCmd)
}

func printReading(w io.Writer, source string, r playback.Reading) {
	if r.Track == nil {
		fmt.Fprintf(w, "no track currently playing on %s\n", source)
		return
	}

	fmt.Fprintf(w, "source:   %s\n", source)
	fmt.Fprintf(w, "title:    %s\n", r.Track.Title)
	fmt.Fprintf(w, "artist:   %s\n", r.Track.Artist)
	if r.Track.Album != "" {
		fmt.Fprintf(w, "album:    %s\n", r.Track.Album)
	}
	if r.DurationMs > 0 {
		fmt.Fprintf(w, "duration: %s\n", formatDuration(r.DurationMs))
	}
	if r.Playing {
		fmt.Fprintf(w, "state:    playing\n")
	} else {
		fmt.Fprintf(w, "state:    paused\n")
	}
	fmt.Fprintf(w, "position: %s\n", formatDuration(r.PositionMs))
}

func formatDuration(ms int64) string {
	if ms < 0 {
		return "0:00"
	}
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
