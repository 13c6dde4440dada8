package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/track"
)

const (
	entryVersion = 2
	DefaultTTL   = 30 * 24 * time.Hour
	cacheDirName = "lyrisync"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// Entry is one persisted lyrics document. Lyrics are stored as raw LRC and
// re-parsed on read, so the timing model never depends on the storage format.
type Entry struct {
	Version      uint8
	Key          string
	Source       string
	TrackID      string
	Title        string
	Artist       string
	Album        string
	DurationMs   int64
	Provider     string
	SyncedLyrics string
	CreatedAt    int64
	ExpiresAt    int64
}

func newEntry(id track.Identity, doc *lyrics.Document, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Version:      entryVersion,
		Key:          id.Key(),
		Source:       id.Source,
		TrackID:      id.ID,
		Title:        id.Title,
		Artist:       id.Artist,
		Album:        id.Album,
		DurationMs:   id.DurationMs,
		Provider:     doc.Provider,
		SyncedLyrics: doc.Raw,
		CreatedAt:    now.Unix(),
		ExpiresAt:    now.Add(ttl).Unix(),
	}
}

// Document re-parses the stored lyrics.
func (e *Entry) Document() (*lyrics.Document, error) {
	doc, err := lyrics.Parse(e.SyncedLyrics)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	doc.Provider = e.Provider
	return doc, nil
}

func (e *Entry) expired(now time.Time) bool {
	return e.ExpiresAt <= now.Unix()
}

type Stats struct {
	Entries   int
	SizeBytes int64
	Location  string
}

// Store is a lyrics cache with maintenance operations.
type Store interface {
	lyrics.Cache
	Delete(key string) error
	Clear() error
	Prune() (int, error)
	Stats() (Stats, error)
	List() ([]*Entry, error)
	Close() error
}

type Backend string

const (
	BackendDisk   Backend = "disk"
	BackendSQLite Backend = "sqlite"
	BackendNone   Backend = "none"
)

// Open builds the configured backend. An empty path selects the default
// location under the user cache directory.
func Open(backend Backend, path string, ttl time.Duration) (Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	switch backend {
	case BackendDisk, "":
		if path == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "lyrics")
		}
		return NewDiskCache(path, ttl)

	case BackendSQLite:
		if path == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "lyrics.db")
		}
		return OpenSQLite(path, ttl)

	case BackendNone:
		return NewMemoryCache(ttl), nil
	}

	return nil, fmt.Errorf("unknown cache backend %q", backend)
}

// DefaultDir is $XDG_CACHE_HOME/lyrisync or ~/.cache/lyrisync.
func DefaultDir() (string, error) {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, cacheDirName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cache", cacheDirName), nil
}
