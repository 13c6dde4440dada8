package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/config"
	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/mpd"
	"karolbroda.com/lyrisync/internal/player"
	"karolbroda.com/lyrisync/internal/poller"
	"karolbroda.com/lyrisync/internal/spotify"
)

// sourceHandle is an opened playback source plus whatever it needs torn
// down. wake is nil for sources that can only be polled.
type sourceHandle struct {
	source poller.Source
	wake   <-chan struct{}
	close  func()
}

func openSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sourceHandle, error) {
	switch cfg.Source {
	case "mpris":
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}

		svc, err := player.NewService(bus, cfg.Mpris.Service)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("failed to create player service: %w", err)
		}
		if err := svc.Start(); err != nil {
			logger.Warn("could not set up dbus signals, falling back to polling", zap.Error(err))
		}

		return &sourceHandle{
			source: svc,
			wake:   svc.Wake(),
			close: func() {
				svc.Stop()
				bus.Close()
			},
		}, nil

	case "spotify":
		tokenPath, err := cfg.SpotifyTokenPath()
		if err != nil {
			return nil, err
		}

		src, err := spotify.New(ctx, &spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			TokenPath:    tokenPath,
		}, logger.Named("spotify"))
		if errors.Is(err, spotify.ErrNoToken) {
			return nil, fmt.Errorf("%w: save an oauth2 token to %s first", err, tokenPath)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create spotify source: %w", err)
		}
		return &sourceHandle{source: src, close: func() {}}, nil

	case "mpd":
		src := mpd.New(mpd.Config{
			Network:  cfg.Mpd.Network,
			Address:  cfg.Mpd.Address,
			Password: cfg.Mpd.Password,
		}, logger.Named("mpd"))
		if err := src.StartWatcher(); err != nil {
			logger.Warn("could not watch mpd, falling back to polling", zap.Error(err))
		}
		return &sourceHandle{source: src, wake: src.Wake(), close: src.Stop}, nil
	}

	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}

func newLyricsProvider(cfg *config.Config, logger *zap.Logger) (lyrics.Provider, error) {
	var providers []lyrics.Provider
	for _, name := range cfg.Lyrics.Providers {
		switch name {
		case "lrclib":
			p, err := lyrics.NewLRCLIB(cfg.Lyrics.LrclibURL, cfg.Lyrics.Timeout,
				lyrics.WithProviderLogger(logger.Named("lrclib")))
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown lyrics provider %q", name)
		}
	}
	return lyrics.NewChain(logger.Named("lyrics"), providers...), nil
}

func openStore(cfg *config.Config) (cache.Store, error) {
	store, err := cache.Open(cache.Backend(cfg.Cache.Backend), cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.Cache.Backend, err)
	}
	return store, nil
}

// pipeline is the source → poller → engine → fetcher chain shared by the
// viewer and pipe mode.
type pipeline struct {
	source  *sourceHandle
	store   cache.Store
	engine  *engine.Engine
	poller  *poller.Poller
	fetcher *lyrics.Fetcher
	// fetcherSub is taken before polling starts so no transition is missed.
	fetcherSub *engine.Subscription
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline, error) {
	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		src.close()
		return nil, err
	}

	provider, err := newLyricsProvider(cfg, logger)
	if err != nil {
		src.close()
		store.Close()
		return nil, err
	}

	eng := engine.New(engine.Config{
		DriftThreshold:   cfg.Sync.DriftThreshold,
		SubscriberBuffer: cfg.Sync.SubscriberBuffer,
	}, logger.Named("engine"))

	opts := []poller.Option{poller.WithLogger(logger.Named("poller"))}
	if src.wake != nil {
		opts = append(opts, poller.WithWake(src.wake))
	}
	p, err := poller.New(src.source, eng, poller.Config{
		Interval:    cfg.Poll.Interval,
		Timeout:     cfg.Poll.Timeout,
		BaseBackoff: cfg.Poll.BaseBackoff,
		MaxBackoff:  cfg.Poll.MaxBackoff,
	}, opts...)
	if err != nil {
		src.close()
		store.Close()
		return nil, err
	}

	return &pipeline{
		source:     src,
		store:      store,
		engine:     eng,
		poller:     p,
		fetcher:    lyrics.NewFetcher(provider, store, logger.Named("fetcher")),
		fetcherSub: eng.Subscribe(),
	}, nil
}

// start runs the poller and the lyrics fetcher on g.
func (p *pipeline) start(ctx context.Context, g *errgroup.Group) {
	initial := p.engine.CurrentState()
	g.Go(func() error {
		return p.fetcher.Run(ctx, p.fetcherSub.Events(), initial)
	})
	g.Go(func() error {
		return p.poller.Run(ctx)
	})
}

func (p *pipeline) Close() {
	p.engine.Close()
	p.source.close()
	_ = p.store.Close()
}
