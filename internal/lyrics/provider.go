package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/track"
)

var (
	ErrNotFound = errors.New("lyrics not found")
)

// Provider fetches synced lyrics for a track. Unsynced or empty results are
// reported as ErrNotFound.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, id track.Identity) (*Document, error)
}

// Chain tries providers in order. The first document wins; failures are
// logged and the next provider is tried.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Fetch(ctx context.Context, id track.Identity) (*Document, error) {
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		doc, err := p.Fetch(ctx, id)
		if err == nil && doc != nil && len(doc.Lines) > 0 {
			if doc.Provider == "" {
				doc.Provider = p.Name()
			}
			return doc, nil
		}

		if err != nil && !errors.Is(err, ErrNotFound) {
			c.logger.Warn("lyrics provider failed",
				zap.String("provider", p.Name()),
				zap.Stringer("track", &id),
				zap.Error(err))
		} else {
			c.logger.Debug("lyrics provider had nothing",
				zap.String("provider", p.Name()),
				zap.Stringer("track", &id))
		}
	}
	return nil, fmt.Errorf("%s: %w", id.String(), ErrNotFound)
}
