package cache

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/track"
)

// DiskCache keeps one gob file per track plus an in-memory layer. With an
// empty base path it is memory-only.
type DiskCache struct {
	basePath string
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	memCache map[string]*Entry
}

func NewDiskCache(basePath string, ttl time.Duration) (*DiskCache, error) {
	if basePath != "" {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, err
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DiskCache{
		basePath: basePath,
		ttl:      ttl,
		now:      time.Now,
		memCache: make(map[string]*Entry),
	}, nil
}

// NewMemoryCache lives for the process only.
func NewMemoryCache(ttl time.Duration) *DiskCache {
	c, _ := NewDiskCache("", ttl)
	return c
}

func (c *DiskCache) getFilePath(key string) string {
	if c.basePath == "" {
		return ""
	}
	return filepath.Join(c.basePath, key+".bin")
}

func (c *DiskCache) Get(id track.Identity) (*lyrics.Document, error) {
	if !id.IsValid() {
		return nil, ErrCacheMiss
	}
	entry, err := c.GetEntry(id.Key())
	if err != nil {
		return nil, err
	}
	return entry.Document()
}

func (c *DiskCache) GetEntry(key string) (*Entry, error) {
	now := c.now()

	c.mu.RLock()
	entry, exists := c.memCache[key]
	c.mu.RUnlock()

	if exists {
		if !entry.expired(now) {
			return entry, nil
		}
		c.mu.Lock()
		delete(c.memCache, key)
		c.mu.Unlock()
	}

	if c.basePath == "" {
		if exists {
			return nil, ErrCacheExpired
		}
		return nil, ErrCacheMiss
	}

	filePath := c.getFilePath(key)
	entry, err := c.readFromDisk(filePath)
	if err != nil {
		return nil, err
	}

	if entry.expired(now) {
		_ = os.Remove(filePath)
		return nil, ErrCacheExpired
	}

	c.mu.Lock()
	c.memCache[key] = entry
	c.mu.Unlock()

	return entry, nil
}

func (c *DiskCache) Put(id track.Identity, doc *lyrics.Document) error {
	if !id.IsValid() || doc == nil || doc.Raw == "" {
		return errors.New("invalid cache entry")
	}

	entry := newEntry(id, doc, c.now(), c.ttl)

	c.mu.Lock()
	c.memCache[entry.Key] = entry
	c.mu.Unlock()

	if c.basePath == "" {
		return nil
	}
	return c.writeToDisk(c.getFilePath(entry.Key), entry)
}

func (c *DiskCache) readFromDisk(filePath string) (*Entry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer file.Close()

	var entry Entry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		return nil, ErrCacheCorrupt
	}

	// older layouts are unreadable, drop them
	if entry.Version != entryVersion {
		_ = os.Remove(filePath)
		return nil, ErrCacheCorrupt
	}

	return &entry, nil
}

func (c *DiskCache) writeToDisk(filePath string, entry *Entry) error {
	tmpPath := filePath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(file).Encode(entry); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, filePath)
}

func (c *DiskCache) Delete(key string) error {
	if key == "" {
		return errors.New("empty cache key")
	}

	c.mu.Lock()
	_, inMemory := c.memCache[key]
	delete(c.memCache, key)
	c.mu.Unlock()

	if c.basePath == "" {
		if !inMemory {
			return ErrCacheMiss
		}
		return nil
	}

	err := os.Remove(c.getFilePath(key))
	if os.IsNotExist(err) {
		if inMemory {
			return nil
		}
		return ErrCacheMiss
	}
	return err
}

func (c *DiskCache) Clear() error {
	c.mu.Lock()
	c.memCache = make(map[string]*Entry)
	c.mu.Unlock()

	if c.basePath == "" {
		return nil
	}

	files, err := c.binFiles()
	if err != nil {
		return err
	}
	for _, name := range files {
		_ = os.Remove(filepath.Join(c.basePath, name))
	}
	return nil
}

// Prune removes expired and unreadable entries and reports how many went.
func (c *DiskCache) Prune() (int, error) {
	now := c.now()
	pruned := 0

	c.mu.Lock()
	for key, entry := range c.memCache {
		if entry.expired(now) {
			delete(c.memCache, key)
			if c.basePath == "" {
				pruned++
			}
		}
	}
	c.mu.Unlock()

	if c.basePath == "" {
		return pruned, nil
	}

	files, err := c.binFiles()
	if err != nil {
		return pruned, err
	}

	for _, name := range files {
		filePath := filepath.Join(c.basePath, name)
		entry, err := c.readFromDisk(filePath)
		if err != nil || entry.expired(now) {
			_ = os.Remove(filePath)
			pruned++
		}
	}
	return pruned, nil
}

func (c *DiskCache) Stats() (Stats, error) {
	stats := Stats{Location: c.basePath}
	if c.basePath == "" {
		c.mu.RLock()
		stats.Entries = len(c.memCache)
		c.mu.RUnlock()
		stats.Location = "memory"
		return stats, nil
	}

	entries, err := os.ReadDir(c.basePath)
	if err != nil {
		return stats, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".bin") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.SizeBytes += info.Size()
	}
	return stats, nil
}

func (c *DiskCache) List() ([]*Entry, error) {
	if c.basePath == "" {
		c.mu.RLock()
		defer c.mu.RUnlock()
		result := make([]*Entry, 0, len(c.memCache))
		for _, entry := range c.memCache {
			result = append(result, entry)
		}
		return result, nil
	}

	files, err := c.binFiles()
	if err != nil {
		return nil, err
	}

	var result []*Entry
	for _, name := range files {
		entry, err := c.readFromDisk(filepath.Join(c.basePath, name))
		if err != nil {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (c *DiskCache) Close() error { return nil }

func (c *DiskCache) binFiles() ([]string, error) {
	entries, err := os.ReadDir(c.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".bin") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
