package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/logging"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/track"
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "lyrics search and management",
	Long:  `pre-fetch lyrics to the cache or preview them in the terminal.`,
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch <artist> <title>",
	Short: "pre-fetch and cache lyrics",
	Long:  `fetch synced lyrics from the configured providers and save them to the local cache for instant loading.`,
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, args []string, store cache.Store) error {
		id := track.Identity{Artist: args[0], Title: args[1]}
		out := cmd.OutOrStdout()

		if _, err := store.Get(id); err == nil {
			fmt.Fprintf(out, "'%s' is already cached\n", id.String())
			return nil
		}

		provider, err := cliProvider(cmd)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "fetching: %s\n", id.String())
		doc, err := provider.Fetch(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to fetch lyrics: %w", err)
		}

		if err := store.Put(id, doc); err != nil {
			return fmt.Errorf("failed to cache lyrics: %w", err)
		}

		fmt.Fprintf(out, "cached successfully from %s: %d synced lines\n", doc.Provider, len(doc.Lines))
		return nil
	}),
}

var lyricsPreviewCmd = &cobra.Command{
	Use:   "preview <artist> <title>",
	Short: "preview lyrics in terminal",
	Long:  `display synced lyrics with timestamps, from the cache when available.`,
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, args []string, store cache.Store) error {
		id := track.Identity{Artist: args[0], Title: args[1]}
		out := cmd.OutOrStdout()

		doc, err := store.Get(id)
		if err == nil {
			fmt.Fprintln(out, "(from cache)")
		} else {
			provider, perr := cliProvider(cmd)
			if perr != nil {
				return perr
			}
			doc, err = provider.Fetch(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("lyrics not found: %w", err)
			}
		}

		fmt.Fprintf(out, "\n%s\n", id.String())
		fmt.Fprintln(out, strings.Repeat("─", 60))
		printDocument(out, doc)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.AddCommand(lyricsFetchCmd)
	lyricsCmd.AddCommand(lyricsPreviewCmd)
}

func cliProvider(cmd *cobra.Command) (lyrics.Provider, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewConsole(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return newLyricsProvider(cfg, logger)
}

// printDocument lists every line with its timestamp, and word timings for
// enhanced lyrics.
func printDocument(w io.Writer, doc *lyrics.Document) {
	meta := doc.Metadata
	if meta.Title != "" || meta.Artist != "" {
		fmt.Fprintf(w, "title:  %s\nartist: %s\n", meta.Title, meta.Artist)
	}
	if meta.Album != "" {
		fmt.Fprintf(w, "album:  %s\n", meta.Album)
	}
	if doc.OffsetMs != 0 {
		fmt.Fprintf(w, "offset: %dms\n", doc.OffsetMs)
	}

	fmt.Fprintf(w, "\n%s lyrics (%d lines):\n\n", doc.Format, len(doc.Lines))
	for _, line := range doc.Lines {
		fmt.Fprintf(w, "[%s] %s\n", formatTimestamp(line.StartMs), line.Text)
		if len(line.Words) > 1 {
			for _, word := range line.Words {
				fmt.Fprintf(w, "           <%s> %s\n", formatTimestamp(word.StartMs), word.Text)
			}
		}
	}
}

func formatTimestamp(ms int64) string {
	minutes := ms / 60_000
	secs := float64(ms%60_000) / 1000
	return fmt.Sprintf("%d:%05.2f", minutes, secs)
}
