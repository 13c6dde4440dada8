package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/playback"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultTimeout     = 5 * time.Second
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = 30 * time.Second
)

// Source is an authenticated playback query. Implementations return a
// *playback.FetchError to distinguish failure kinds.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (playback.Reading, error)
}

// Sink receives compensated snapshots in the order they were produced.
type Sink interface {
	Ingest(snap playback.Snapshot)
	Unauthorized(err error)
}

type Config struct {
	Interval    time.Duration
	Timeout     time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	return c
}

type Poller struct {
	source   Source
	sink     Sink
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	wake     <-chan struct{}
	failures int
}

type Option func(*Poller)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// WithWake lets a source cut the current wait short, e.g. on a player
// signal.
func WithWake(wake <-chan struct{}) Option {
	return func(p *Poller) {
		p.wake = wake
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

func New(source Source, sink Sink, cfg Config, opts ...Option) (*Poller, error) {
	if source == nil {
		return nil, errors.New("nil playback source")
	}
	if sink == nil {
		return nil, errors.New("nil snapshot sink")
	}

	p := &Poller{
		source: source,
		sink:   sink,
		cfg:    cfg.withDefaults(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run polls until ctx is cancelled. Fetch failures never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting playback poller",
		zap.String("source", p.source.Name()),
		zap.Duration("interval", p.cfg.Interval))

	for {
		if ctx.Err() != nil {
			p.logger.Info("playback poller stopped")
			return nil
		}

		delay := p.cfg.Interval
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("playback poller stopped")
				return nil
			}
			p.failures++
			delay = Backoff(p.cfg.BaseBackoff, p.cfg.MaxBackoff, p.failures)
			p.logger.Warn("poll failed",
				zap.Int("attempt", p.failures),
				zap.Duration("backoff", delay),
				zap.Stringer("kind", playback.KindOf(err)),
				zap.Error(err))
		} else {
			p.failures = 0
		}

		// player signals do not cut a backoff short
		wake := p.wake
		if p.failures > 0 {
			wake = nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("playback poller stopped")
			return nil
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// PollOnce performs a single fetch and hands the compensated snapshot to the
// sink. The reported position is assumed valid halfway through the round
// trip.
func (p *Poller) PollOnce(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	t0 := p.now()
	reading, err := p.source.Fetch(fetchCtx)
	if err != nil {
		if playback.IsUnauthorized(err) {
			p.sink.Unauthorized(err)
		}
		return err
	}
	t1 := p.now()

	if err := validate(reading); err != nil {
		return err
	}

	rtt := t1.Sub(t0)
	if rtt < 0 {
		rtt = 0
	}

	snap := playback.Snapshot{
		Track:           reading.Track,
		PositionMs:      reading.PositionMs,
		DurationMs:      reading.DurationMs,
		Playing:         reading.Playing,
		ObservedAt:      t1,
		ServerTimestamp: t0.Add(rtt / 2),
	}

	p.logger.Debug("polled playback",
		zap.Stringer("track", reading.Track),
		zap.Bool("playing", reading.Playing),
		zap.Int64("position_ms", reading.PositionMs),
		zap.Duration("rtt", rtt))

	p.sink.Ingest(snap)
	return nil
}

// Failures is the current consecutive failure count.
func (p *Poller) Failures() int {
	return p.failures
}

func validate(r playback.Reading) error {
	if r.PositionMs < 0 || r.DurationMs < 0 {
		return playback.NewFetchError(playback.FetchMalformed,
			fmt.Errorf("negative position %d or duration %d", r.PositionMs, r.DurationMs))
	}
	if r.Track != nil && !r.Track.IsValid() {
		return playback.NewFetchError(playback.FetchMalformed, errors.New("track without id or title/artist"))
	}
	return nil
}

// Backoff returns the delay after the given number of consecutive failures:
// base, 2*base, 4*base, ... capped at max.
func Backoff(base, max time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
