// Package spotify reads playback state from the Spotify Web API.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"karolbroda.com/lyrisync/internal/playback"
	"karolbroda.com/lyrisync/internal/track"
)

const (
	SourceName = "spotify"
	// FilePermission is the permission for token files
	FilePermission = 0600
)

var (
	ErrNoToken = errors.New("no saved spotify token")
)

type Config struct {
	ClientID     string
	ClientSecret string
	TokenPath    string
}

// TokenData is the on-disk token layout.
type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

// Source polls the currently playing item. Token refresh happens inside the
// oauth2 transport; refreshed tokens are written back to TokenPath.
type Source struct {
	config *Config
	logger *zap.Logger
	client *spotify.Client

	mu        sync.Mutex
	lastToken string
}

// New builds a source from a previously saved token. The authorization flow
// itself is out of scope; a missing token returns ErrNoToken.
func New(ctx context.Context, config *Config, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	token, err := loadToken(config.TokenPath)
	if err != nil {
		return nil, err
	}

	auth := spotifyauth.New(
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadCurrentlyPlaying,
			spotifyauth.ScopeUserReadPlaybackState,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	s := NewWithClient(spotify.New(auth.Client(ctx, token)), logger)
	s.config = config
	s.lastToken = token.AccessToken
	return s, nil
}

// NewWithClient wraps an already authenticated client.
func NewWithClient(client *spotify.Client, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{client: client, logger: logger}
}

func (s *Source) Name() string { return SourceName }

func (s *Source) Fetch(ctx context.Context) (playback.Reading, error) {
	state, err := s.client.PlayerState(ctx)
	if err != nil {
		return playback.Reading{}, classify(err)
	}
	s.persistRefreshedToken()

	if state == nil || state.Item == nil {
		return playback.Reading{}, nil
	}

	item := state.Item
	artists := make([]string, 0, len(item.Artists))
	for _, a := range item.Artists {
		artists = append(artists, a.Name)
	}

	id := &track.Identity{
		Source:     SourceName,
		ID:         string(item.ID),
		Title:      item.Name,
		Artist:     strings.Join(artists, ", "),
		Album:      item.Album.Name,
		DurationMs: int64(item.Duration),
	}

	return playback.Reading{
		Track:      id,
		PositionMs: int64(state.Progress),
		DurationMs: int64(item.Duration),
		Playing:    state.Playing,
	}, nil
}

// persistRefreshedToken saves the token when the transport has rotated it.
func (s *Source) persistRefreshedToken() {
	if s.config == nil || s.config.TokenPath == "" {
		return
	}

	token, err := s.client.Token()
	if err != nil || token == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken == s.lastToken {
		return
	}

	if err := saveToken(s.config.TokenPath, token); err != nil {
		s.logger.Warn("Failed to save refreshed spotify token", zap.Error(err))
		return
	}
	s.lastToken = token.AccessToken
	s.logger.Debug("Saved refreshed spotify token")
}

// classify maps API and transport errors onto the fetch error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return playback.NewFetchError(playback.FetchUnauthorized, err)
	}

	status := 0
	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Status
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return playback.NewFetchError(playback.FetchUnauthorized, err)
	case status == http.StatusTooManyRequests:
		return playback.NewFetchError(playback.FetchRateLimited, err)
	case status != 0:
		return playback.NewFetchError(playback.FetchNetwork, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return playback.NewFetchError(playback.FetchMalformed, err)
	}
	return playback.NewFetchError(playback.FetchNetwork, err)
}

func loadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, ErrNoToken
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoToken, path)
		}
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, fmt.Errorf("failed to decode spotify token: %w", err)
	}
	if tokenData.Token == nil {
		return nil, fmt.Errorf("%w at %s", ErrNoToken, path)
	}
	return tokenData.Token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, FilePermission)
}
