package lyrics

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/playback"
	"karolbroda.com/lyrisync/internal/track"
)

const resultBuffer = 4

// Cache is the persistent lyrics store keyed by track identity.
type Cache interface {
	Get(id track.Identity) (*Document, error)
	Put(id track.Identity, doc *Document) error
}

// Result is one finished lookup. Doc is nil when Err is set.
type Result struct {
	Track     *track.Identity
	Doc       *Document
	Err       error
	FromCache bool
}

// Fetcher reacts to track changes by loading lyrics, cache first, then the
// provider. It runs on its own goroutine so lookups never stall polling.
type Fetcher struct {
	provider Provider
	cache    Cache
	logger   *zap.Logger
	results  chan Result
	loaded   *track.Identity
}

func NewFetcher(provider Provider, cache Cache, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		provider: provider,
		cache:    cache,
		logger:   logger,
		results:  make(chan Result, resultBuffer),
	}
}

// Results delivers lookups in completion order. Stale results are dropped
// when the reader falls behind.
func (f *Fetcher) Results() <-chan Result {
	return f.results
}

// Run consumes engine events until ctx ends or the stream closes. initial is
// the engine state at subscription time, covering a track that was already
// playing.
func (f *Fetcher) Run(ctx context.Context, events <-chan playback.Event, initial playback.State) error {
	if initial.Track != nil {
		f.load(ctx, initial.Track)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case playback.EventTrackChanged, playback.EventStarted:
				if ev.Track != nil {
					f.load(ctx, ev.Track)
				}
			}
		}
	}
}

func (f *Fetcher) load(ctx context.Context, id *track.Identity) {
	if f.loaded.IsSameTrack(id) {
		return
	}
	// set again only once this track has lyrics
	f.loaded = nil

	if f.cache != nil {
		doc, err := f.lookup(id)
		if err == nil && doc != nil {
			f.logger.Debug("lyrics cache hit", zap.Stringer("track", id))
			f.loaded = id
			f.publish(Result{Track: id, Doc: doc, FromCache: true})
			return
		}
		if err != nil {
			f.logger.Debug("lyrics cache miss", zap.Stringer("track", id), zap.Error(err))
		}
	}

	f.logger.Info("fetching lyrics", zap.Stringer("track", id), zap.String("provider", f.provider.Name()))

	doc, err := f.provider.Fetch(ctx, *id)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(err, ErrNotFound) {
			f.logger.Warn("lyrics fetch failed", zap.Stringer("track", id), zap.Error(err))
		}
		f.publish(Result{Track: id, Err: err})
		return
	}

	f.loaded = id
	if f.cache != nil {
		if err := f.cache.Put(*id, doc); err != nil {
			f.logger.Warn("failed to cache lyrics", zap.Stringer("track", id), zap.Error(err))
		}
	}
	f.publish(Result{Track: id, Doc: doc})
}

// lookup tries the source-specific key first, then the plain artist and
// title key that manual prefetches are stored under.
func (f *Fetcher) lookup(id *track.Identity) (*Document, error) {
	doc, err := f.cache.Get(*id)
	if err == nil || id.ID == "" {
		return doc, err
	}
	if fallback, ferr := f.cache.Get(track.Identity{Title: id.Title, Artist: id.Artist}); ferr == nil {
		return fallback, nil
	}
	return nil, err
}

func (f *Fetcher) publish(r Result) {
	for {
		select {
		case f.results <- r:
			return
		default:
		}
		select {
		case <-f.results:
		default:
		}
	}
}
