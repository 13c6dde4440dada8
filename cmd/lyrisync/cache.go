package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/cache"
)

var (
	// flags for cache list
	cacheSortBy  string
	cacheConfirm bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "manage the lyrics cache",
	Long:  `manage cached lyrics data, including viewing statistics, listing entries, and clearing the cache.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show cache statistics",
	Long:  `display cache statistics including number of entries, total size, and cache location.`,
	RunE: withStore(func(cmd *cobra.Command, args []string, store cache.Store) error {
		stats, err := store.Stats()
		if err != nil {
			return fmt.Errorf("failed to get cache stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "cache statistics:")
		fmt.Fprintf(out, "  location: %s\n", stats.Location)
		fmt.Fprintf(out, "  entries:  %d\n", stats.Entries)
		fmt.Fprintf(out, "  size:     %s\n", formatBytes(stats.SizeBytes))
		return nil
	}),
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "list all cached songs",
	Long:  `list all songs in the cache with their provider and cache date.`,
	RunE: withStore(func(cmd *cobra.Command, args []string, store cache.Store) error {
		entries, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "cache is empty")
			return nil
		}

		sortCacheEntries(entries, cacheSortBy)
		writeEntryTable(out, entries, time.Now())

		fmt.Fprintf(out, "\ntotal: %d songs\n", len(entries))
		return nil
	}),
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show cached entry for specific song",
	Long:  `display detailed information about a cached song.`,
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, args []string, store cache.Store) error {
		entry, err := lookupEntry(cmd, store, args[0], args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "artist:    %s\n", entry.Artist)
		fmt.Fprintf(out, "title:     %s\n", entry.Title)
		fmt.Fprintf(out, "album:     %s\n", entry.Album)
		fmt.Fprintf(out, "source:    %s\n", entry.Source)
		fmt.Fprintf(out, "duration:  %s\n", formatDuration(entry.DurationMs))
		fmt.Fprintf(out, "provider:  %s\n", entry.Provider)
		fmt.Fprintf(out, "key:       %s\n", entry.Key)
		fmt.Fprintf(out, "cached:    %s\n", time.Unix(entry.CreatedAt, 0).Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "expires:   %s\n", time.Unix(entry.ExpiresAt, 0).Format("2006-01-02 15:04:05"))

		doc, err := entry.Document()
		if err != nil {
			fmt.Fprintf(out, "\nlyrics unreadable: %v\n", err)
			return nil
		}
		fmt.Fprintf(out, "\nsynced lyrics: %d lines (%s)\n", len(doc.Lines), doc.Format)
		return nil
	}),
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "clear all cached entries",
	Long:  `remove all cached lyrics data. use --confirm to skip confirmation prompt.`,
	RunE: withStore(func(cmd *cobra.Command, args []string, store cache.Store) error {
		out := cmd.OutOrStdout()
		if !cacheConfirm && !confirm(cmd.InOrStdin(), out, "are you sure you want to clear all cache? (y/n): ") {
			fmt.Fprintln(out, "cancelled")
			return nil
		}

		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Fprintln(out, "cache cleared successfully")
		return nil
	}),
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "remove expired cache entries",
	Long:  `remove all expired cache entries to free up disk space.`,
	RunE: withStore(func(cmd *cobra.Command, args []string, store cache.Store) error {
		pruned, err := store.Prune()
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", pruned)
		return nil
	}),
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "remove specific song from cache",
	Long:  `remove a specific song from the cache by artist and title.`,
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, args []string, store cache.Store) error {
		entry, err := lookupEntry(cmd, store, args[0], args[1])
		if err != nil {
			return err
		}

		if err := store.Delete(entry.Key); err != nil {
			return fmt.Errorf("failed to delete from cache: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "deleted '%s - %s' from cache\n", entry.Artist, entry.Title)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)

	cacheListCmd.Flags().StringVar(&cacheSortBy, "sort", "date", "sort by: date, artist, title")
	cacheClearCmd.Flags().BoolVar(&cacheConfirm, "confirm", false, "skip confirmation prompt")
}

// withStore opens the configured cache around a command.
func withStore(run func(cmd *cobra.Command, args []string, store cache.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		return run(cmd, args, store)
	}
}

var errNotCached = errors.New("song not found in cache")

// lookupEntry finds an entry by artist and title, printing suggestions to
// stderr when there is no exact match.
func lookupEntry(cmd *cobra.Command, store cache.Store, artist string, title string) (*cache.Entry, error) {
	entries, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}

	for _, e := range entries {
		if strings.EqualFold(e.Artist, artist) && strings.EqualFold(e.Title, title) {
			return e, nil
		}
	}

	if suggestions := findSimilarCachedSongs(entries, artist, title); len(suggestions) > 0 {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "song not found in cache\n\n")
		fmt.Fprintf(errOut, "did you mean one of these?\n")
		for _, s := range suggestions {
			fmt.Fprintf(errOut, "  %s - %s\n", s.Artist, s.Title)
		}
	}
	return nil, errNotCached
}

func writeEntryTable(w io.Writer, entries []*cache.Entry, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTIST\tTITLE\tPROVIDER\tCACHED")

	for _, entry := range entries {
		cacheDate := time.Unix(entry.CreatedAt, 0).Format("2006-01-02")
		if entry.ExpiresAt <= now.Unix() {
			cacheDate += " (expired)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", entry.Artist, entry.Title, entry.Provider, cacheDate)
	}

	tw.Flush()
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func sortCacheEntries(entries []*cache.Entry, sortBy string) {
	switch sortBy {
	case "artist":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Artist) < strings.ToLower(entries[j].Artist)
		})
	case "title":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
		})
	case "date":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CreatedAt > entries[j].CreatedAt
		})
	}
}

func findSimilarCachedSongs(entries []*cache.Entry, artist string, title string) []*cache.Entry {
	const maxSuggestions = 5

	artistLower := strings.ToLower(artist)
	titleLower := strings.ToLower(title)
	similar := func(a, b string) bool {
		return strings.Contains(a, b) || strings.Contains(b, a)
	}

	// exact artist with a fuzzy title first
	var matches []*cache.Entry
	for _, e := range entries {
		if strings.ToLower(e.Artist) == artistLower && similar(strings.ToLower(e.Title), titleLower) {
			matches = append(matches, e)
		}
	}

	if len(matches) == 0 {
		for _, e := range entries {
			if similar(strings.ToLower(e.Artist), artistLower) && similar(strings.ToLower(e.Title), titleLower) {
				matches = append(matches, e)
			}
		}
	}

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	return matches
}
