package lyrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"karolbroda.com/lyrisync/internal/playback"
	"karolbroda.com/lyrisync/internal/track"
)

type stubProvider struct {
	name string
	mu   sync.Mutex
	docs map[string]*Document
	err  error
	hits []string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(ctx context.Context, id track.Identity) (*Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits = append(p.hits, id.Title)
	if p.err != nil {
		return nil, p.err
	}
	if doc, ok := p.docs[id.Title]; ok {
		return doc, nil
	}
	return nil, ErrNotFound
}

func (p *stubProvider) Hits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.hits...)
}

type memoryCache struct {
	mu   sync.Mutex
	docs map[string]*Document
}

func (c *memoryCache) Get(id track.Identity) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc, ok := c.docs[id.Key()]; ok {
		return doc, nil
	}
	return nil, errors.New("cache miss")
}

func (c *memoryCache) Put(id track.Identity, doc *Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.docs == nil {
		c.docs = map[string]*Document{}
	}
	c.docs[id.Key()] = doc
	return nil
}

func song(title string) *track.Identity {
	return &track.Identity{Source: "test", ID: title, Title: title, Artist: "Band"}
}

func docWith(text string) *Document {
	return &Document{Lines: []Line{{StartMs: 0, Text: text}}}
}

func waitResult(t *testing.T, f *Fetcher) Result {
	t.Helper()
	select {
	case r := <-f.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("no fetch result")
		return Result{}
	}
}

func TestChainFirstDocumentWins(t *testing.T) {
	broken := &stubProvider{name: "broken", err: errors.New("network down")}
	empty := &stubProvider{name: "empty"}
	good := &stubProvider{name: "good", docs: map[string]*Document{"a": docWith("hello")}}
	never := &stubProvider{name: "never", docs: map[string]*Document{"a": docWith("other")}}

	chain := NewChain(nil, broken, empty, good, never)
	doc, err := chain.Fetch(context.Background(), *song("a"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Lines[0].Text != "hello" || doc.Provider != "good" {
		t.Fatalf("doc = %+v", doc)
	}
	if len(never.Hits()) != 0 {
		t.Fatalf("provider after the winner was queried")
	}
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(nil, &stubProvider{name: "a", err: errors.New("boom")}, &stubProvider{name: "b"})
	if _, err := chain.Fetch(context.Background(), *song("x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestFetcherLoadsOnTrackChangeAndCaches(t *testing.T) {
	provider := &stubProvider{name: "stub", docs: map[string]*Document{"a": docWith("la la")}}
	cache := &memoryCache{}
	f := NewFetcher(provider, cache, nil)

	events := make(chan playback.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx, events, playback.State{}) }()

	events <- playback.Event{Kind: playback.EventTrackChanged, Track: song("a")}
	r := waitResult(t, f)
	if r.Err != nil || r.Doc == nil || r.Doc.Lines[0].Text != "la la" || r.FromCache {
		t.Fatalf("result = %+v", r)
	}
	if _, err := cache.Get(*song("a")); err != nil {
		t.Fatalf("document was not cached: %v", err)
	}
}

func TestFetcherSkipsSameTrack(t *testing.T) {
	provider := &stubProvider{name: "stub", docs: map[string]*Document{"a": docWith("x"), "b": docWith("y")}}
	f := NewFetcher(provider, nil, nil)

	events := make(chan playback.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx, events, playback.State{Track: song("a"), Playing: true}) }()

	waitResult(t, f)

	events <- playback.Event{Kind: playback.EventStarted, Track: song("a")}
	events <- playback.Event{Kind: playback.EventPositionResynced, Track: song("a")}
	events <- playback.Event{Kind: playback.EventTrackChanged, Track: song("b")}
	r := waitResult(t, f)
	if r.Track.ID != "b" {
		t.Fatalf("result for %v, want b", r.Track)
	}

	hits := provider.Hits()
	if len(hits) != 2 || hits[0] != "a" || hits[1] != "b" {
		t.Fatalf("provider hits = %v, want [a b]", hits)
	}
}

func TestFetcherServesFromCache(t *testing.T) {
	provider := &stubProvider{name: "stub"}
	cache := &memoryCache{}
	_ = cache.Put(*song("a"), docWith("cached"))
	f := NewFetcher(provider, cache, nil)

	events := make(chan playback.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx, events, playback.State{}) }()

	events <- playback.Event{Kind: playback.EventTrackChanged, Track: song("a")}
	r := waitResult(t, f)
	if !r.FromCache || r.Doc.Lines[0].Text != "cached" {
		t.Fatalf("result = %+v", r)
	}
	if len(provider.Hits()) != 0 {
		t.Fatalf("provider queried despite cache hit")
	}
}

func TestFetcherFallsBackToArtistTitleKey(t *testing.T) {
	provider := &stubProvider{name: "stub"}
	cache := &memoryCache{}
	_ = cache.Put(track.Identity{Title: "a", Artist: "Band"}, docWith("prefetched"))
	f := NewFetcher(provider, cache, nil)

	events := make(chan playback.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx, events, playback.State{}) }()

	events <- playback.Event{Kind: playback.EventTrackChanged, Track: song("a")}
	r := waitResult(t, f)
	if !r.FromCache || r.Doc.Lines[0].Text != "prefetched" {
		t.Fatalf("result = %+v", r)
	}
	if len(provider.Hits()) != 0 {
		t.Fatalf("provider queried despite prefetched entry")
	}
}

func TestFetcherReportsNotFoundAndRetries(t *testing.T) {
	provider := &stubProvider{name: "stub"}
	f := NewFetcher(provider, nil, nil)

	events := make(chan playback.Event, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx, events, playback.State{}) }()

	events <- playback.Event{Kind: playback.EventTrackChanged, Track: song("a")}
	if r := waitResult(t, f); !errors.Is(r.Err, ErrNotFound) {
		t.Fatalf("result error = %v, want ErrNotFound", r.Err)
	}

	events <- playback.Event{Kind: playback.EventStarted, Track: song("a")}
	waitResult(t, f)
	if len(provider.Hits()) != 2 {
		t.Fatalf("failed lookup should be retried on the next start")
	}
}

func TestFetcherReloadsTrackAfterMissOnAnotherTrack(t *testing.T) {
	provider := &stubProvider{name: "stub", docs: map[string]*Document{"a": docWith("la la")}}
	f := NewFetcher(provider, nil, nil)

	events := make(chan playback.Event, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx, events, playback.State{}) }()

	events <- playback.Event{Kind: playback.EventTrackChanged, Track: song("a")}
	if r := waitResult(t, f); r.Doc == nil {
		t.Fatalf("first result = %+v, want lyrics for a", r)
	}

	events <- playback.Event{Kind: playback.EventTrackChanged, From: song("a"), Track: song("b")}
	if r := waitResult(t, f); !errors.Is(r.Err, ErrNotFound) {
		t.Fatalf("second result error = %v, want ErrNotFound", r.Err)
	}

	events <- playback.Event{Kind: playback.EventTrackChanged, From: song("b"), Track: song("a")}
	r := waitResult(t, f)
	if r.Track.ID != "a" || r.Doc == nil || r.Doc.Lines[0].Text != "la la" {
		t.Fatalf("returning to a = %+v", r)
	}
	if hits := provider.Hits(); len(hits) != 3 {
		t.Fatalf("provider hits = %v, want [a b a]", hits)
	}
}

func TestFetcherStopsOnClosedStream(t *testing.T) {
	f := NewFetcher(&stubProvider{name: "stub"}, nil, nil)
	events := make(chan playback.Event)
	close(events)

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background(), events, playback.State{}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after the stream closed")
	}
}
