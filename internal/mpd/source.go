// Package mpd reads playback state from a Music Player Daemon.
package mpd

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/playback"
	"karolbroda.com/lyrisync/internal/track"
)

const (
	SourceName     = "mpd"
	DefaultNetwork = "tcp"
	DefaultAddress = "localhost:6600"
)

type Config struct {
	Network  string
	Address  string
	Password string
}

type client interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	Close() error
}

type dialFunc func(network, addr, password string) (client, error)

func dialMPD(network, addr, password string) (client, error) {
	if password != "" {
		return mpd.DialAuthenticated(network, addr, password)
	}
	return mpd.Dial(network, addr)
}

// Source opens a short-lived connection per fetch, so an idle timeout on the
// server side never leaves it holding a dead socket.
type Source struct {
	cfg    Config
	logger *zap.Logger
	dial   dialFunc

	watcher  *mpd.Watcher
	wakeChan chan struct{}
	stopOnce sync.Once
	stopChan chan struct{}
}

func New(cfg Config, logger *zap.Logger) *Source {
	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		cfg:      cfg,
		logger:   logger,
		dial:     dialMPD,
		wakeChan: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

func (s *Source) Name() string { return SourceName }

type result struct {
	reading playback.Reading
	err     error
}

// Fetch queries status and the current song. The client library has no
// context support, so the query runs on its own goroutine and ctx bounds the
// wait.
func (s *Source) Fetch(ctx context.Context) (playback.Reading, error) {
	done := make(chan result, 1)
	go func() {
		r, err := s.query(ctx)
		done <- result{r, err}
	}()

	select {
	case <-ctx.Done():
		return playback.Reading{}, playback.NewFetchError(playback.FetchNetwork, ctx.Err())
	case res := <-done:
		return res.reading, res.err
	}
}

func (s *Source) query(ctx context.Context) (playback.Reading, error) {
	c, err := s.dial(s.cfg.Network, s.cfg.Address, s.cfg.Password)
	if err != nil {
		return playback.Reading{}, classify(fmt.Errorf("mpd dial failed: %w", err))
	}

	// closing the connection unblocks a query the caller gave up on
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = c.Close() }) }
	stop := context.AfterFunc(ctx, closeConn)
	defer func() {
		stop()
		closeConn()
	}()
	if ctx.Err() != nil {
		return playback.Reading{}, playback.NewFetchError(playback.FetchNetwork, ctx.Err())
	}

	status, err := c.Status()
	if err != nil {
		return playback.Reading{}, classify(fmt.Errorf("mpd status failed: %w", err))
	}
	if status["state"] == "stop" || status["state"] == "" {
		return playback.Reading{}, nil
	}

	song, err := c.CurrentSong()
	if err != nil {
		return playback.Reading{}, classify(fmt.Errorf("mpd currentsong failed: %w", err))
	}

	return readingFromAttrs(status, song)
}

func readingFromAttrs(status, song mpd.Attrs) (playback.Reading, error) {
	file := song["file"]
	if file == "" {
		return playback.Reading{}, nil
	}

	elapsed, err := secondsToMs(status["elapsed"])
	if err != nil {
		return playback.Reading{}, playback.NewFetchError(playback.FetchMalformed,
			fmt.Errorf("bad elapsed %q: %w", status["elapsed"], err))
	}

	duration, _ := secondsToMs(status["duration"])
	if duration == 0 {
		duration, _ = secondsToMs(song["duration"])
	}
	if duration == 0 {
		// legacy "time" field is "elapsed:total" in whole seconds
		if _, total, ok := strings.Cut(status["time"], ":"); ok {
			duration, _ = secondsToMs(total)
		}
	}

	title := song["Title"]
	if title == "" {
		title = strings.TrimSuffix(path.Base(file), path.Ext(file))
	}

	id := &track.Identity{
		Source:     SourceName,
		ID:         file,
		Title:      title,
		Artist:     song["Artist"],
		Album:      song["Album"],
		DurationMs: duration,
	}

	return playback.Reading{
		Track:      id,
		PositionMs: elapsed,
		DurationMs: duration,
		Playing:    status["state"] == "play",
	}, nil
}

func secondsToMs(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, errors.New("negative time")
	}
	return int64(secs * 1000), nil
}

func classify(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "incorrect password") || strings.Contains(msg, "permission") {
		return playback.NewFetchError(playback.FetchUnauthorized, err)
	}
	return playback.NewFetchError(playback.FetchNetwork, err)
}

// StartWatcher opens an idle connection on the player subsystem; each event
// wakes the poller.
func (s *Source) StartWatcher() error {
	w, err := mpd.NewWatcher(s.cfg.Network, s.cfg.Address, s.cfg.Password, "player")
	if err != nil {
		return fmt.Errorf("mpd watcher: %w", err)
	}
	s.watcher = w

	go func() {
		for {
			select {
			case <-s.stopChan:
				return
			case err, ok := <-w.Error:
				if !ok {
					return
				}
				s.logger.Debug("mpd watcher error", zap.Error(err))
			case _, ok := <-w.Event:
				if !ok {
					return
				}
				select {
				case s.wakeChan <- struct{}{}:
				default:
				}
			}
		}
	}()
	return nil
}

func (s *Source) Wake() <-chan struct{} {
	return s.wakeChan
}

func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
	})
}
