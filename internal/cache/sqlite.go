package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/track"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS lyrics (
	key TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	track_id TEXT NOT NULL,
	artist TEXT NOT NULL,
	title TEXT NOT NULL,
	album TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	provider TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lyrics_artist_title ON lyrics(artist, title);
CREATE INDEX IF NOT EXISTS idx_lyrics_expires ON lyrics(expires_at);
`

// SQLiteStore keeps lyrics in a single SQLite table keyed by track key.
type SQLiteStore struct {
	db   *sql.DB
	path string
	ttl  time.Duration
	now  func() time.Time
}

func OpenSQLite(path string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SQLiteStore{db: db, path: path, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(id track.Identity) (*lyrics.Document, error) {
	if !id.IsValid() {
		return nil, ErrCacheMiss
	}

	row := s.db.QueryRow(`
		SELECT key, source, track_id, artist, title, album, duration_ms, provider, content, created_at, expires_at
		FROM lyrics
		WHERE key = ?
	`, id.Key())

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	if entry.expired(s.now()) {
		_, _ = s.db.Exec(`DELETE FROM lyrics WHERE key = ?`, entry.Key)
		return nil, ErrCacheExpired
	}
	return entry.Document()
}

func (s *SQLiteStore) Put(id track.Identity, doc *lyrics.Document) error {
	if !id.IsValid() || doc == nil || doc.Raw == "" {
		return errors.New("invalid cache entry")
	}

	e := newEntry(id, doc, s.now(), s.ttl)
	_, err := s.db.Exec(`
		INSERT INTO lyrics (key, source, track_id, artist, title, album, duration_ms, provider, content, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			artist = excluded.artist,
			title = excluded.title,
			album = excluded.album,
			duration_ms = excluded.duration_ms,
			provider = excluded.provider,
			content = excluded.content,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, e.Key, e.Source, e.TrackID, e.Artist, e.Title, e.Album, e.DurationMs, e.Provider, e.SyncedLyrics, e.CreatedAt, e.ExpiresAt)
	return err
}

func (s *SQLiteStore) Delete(key string) error {
	res, err := s.db.Exec(`DELETE FROM lyrics WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCacheMiss
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM lyrics`)
	return err
}

func (s *SQLiteStore) Prune() (int, error) {
	res, err := s.db.Exec(`DELETE FROM lyrics WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Stats() (Stats, error) {
	stats := Stats{Location: s.path}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM lyrics`).Scan(&stats.Entries); err != nil {
		return stats, err
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

func (s *SQLiteStore) List() ([]*Entry, error) {
	rows, err := s.db.Query(`
		SELECT key, source, track_id, artist, title, album, duration_ms, provider, content, created_at, expires_at
		FROM lyrics
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{Version: entryVersion}
	err := row.Scan(&e.Key, &e.Source, &e.TrackID, &e.Artist, &e.Title, &e.Album,
		&e.DurationMs, &e.Provider, &e.SyncedLyrics, &e.CreatedAt, &e.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
