package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/track"
)

const (
	DefaultLRCLIBURL  = "https://lrclib.net/api/get"
	defaultUserAgent  = "lyrisync/1.0 (https://karolbroda.com/lyrisync)"
	strategyPause     = 100 * time.Millisecond
	defaultLRCTimeout = 10 * time.Second
)

var errStatusNotFound = errors.New("status 404")

type lrclibResponse struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

type searchStrategy struct {
	artist      string
	title       string
	album       string
	durationSec int64
}

// LRCLIB queries the lrclib.net get endpoint with progressively looser
// search variations until one returns synced lyrics.
type LRCLIB struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	pause   time.Duration
	logger  *zap.Logger
}

type LRCLIBOption func(*LRCLIB)

func WithHTTPClient(client *http.Client) LRCLIBOption {
	return func(l *LRCLIB) {
		l.client = client
	}
}

func WithStrategyPause(d time.Duration) LRCLIBOption {
	return func(l *LRCLIB) {
		l.pause = d
	}
}

func WithProviderLogger(logger *zap.Logger) LRCLIBOption {
	return func(l *LRCLIB) {
		l.logger = logger
	}
}

func NewLRCLIB(baseURL string, timeout time.Duration, opts ...LRCLIBOption) (*LRCLIB, error) {
	if baseURL == "" {
		baseURL = DefaultLRCLIBURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = defaultLRCTimeout
	}

	l := &LRCLIB{
		baseURL: baseURL,
		timeout: timeout,
		pause:   strategyPause,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		l.client = newHTTPClient(timeout)
	}
	return l, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 2 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func (l *LRCLIB) Name() string { return "lrclib" }

func (l *LRCLIB) Fetch(ctx context.Context, id track.Identity) (*Document, error) {
	if id.Title == "" || id.Artist == "" {
		return nil, errors.New("track title or artist is empty")
	}

	strategies := buildStrategies(id)
	if len(strategies) == 0 {
		return nil, errors.New("track title or artist is empty after normalization")
	}

	parsedURL, err := url.Parse(l.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", l.baseURL, err)
	}

	var lastErr error
	for i, strategy := range strategies {
		if i > 0 && l.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.pause):
			}
		}

		query := url.Values{}
		query.Set("artist_name", strategy.artist)
		query.Set("track_name", strategy.title)
		if strategy.album != "" {
			query.Set("album_name", strategy.album)
		}
		if strategy.durationSec > 0 {
			query.Set("duration", strconv.FormatInt(strategy.durationSec, 10))
		}
		parsedURL.RawQuery = query.Encode()

		payload, err := l.doFetchRequest(ctx, parsedURL.String())
		if err != nil {
			lastErr = err
			if isTimeoutError(err) {
				return nil, fmt.Errorf("lyrics server took too long to respond: %w", err)
			}
			continue
		}

		if payload.SyncedLyrics == "" {
			// plain-only or instrumental entries are useless for sync
			lastErr = ErrNotFound
			continue
		}

		doc, err := Parse(payload.SyncedLyrics)
		if err != nil {
			lastErr = err
			continue
		}
		doc.Provider = l.Name()

		l.logger.Debug("lrclib match",
			zap.Int("strategy", i+1),
			zap.String("artist", payload.ArtistName),
			zap.String("title", payload.TrackName),
			zap.Int("lines", len(doc.Lines)))
		return doc, nil
	}

	if lastErr == nil || errors.Is(lastErr, errStatusNotFound) || errors.Is(lastErr, ErrNoValidLines) {
		return nil, ErrNotFound
	}
	if errors.Is(lastErr, ErrNotFound) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no lyrics found for %s: %w", id.String(), lastErr)
}

func (l *LRCLIB) doFetchRequest(parentCtx context.Context, requestURL string) (*lrclibResponse, error) {
	ctx, cancel := context.WithTimeout(parentCtx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errStatusNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lrclib returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload lrclibResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode lrclib json: %w", err)
	}
	return &payload, nil
}

// buildStrategies lists unique search variations, most specific first.
func buildStrategies(id track.Identity) []searchStrategy {
	artist := normalizeString(id.Artist)
	title := normalizeString(id.Title)
	if artist == "" || title == "" {
		return nil
	}
	durationSec := id.DurationMs / 1000

	candidates := []searchStrategy{
		{artist, title, id.Album, durationSec},
		{artist, title, "", durationSec},
		{artist, title, "", 0},
		{stripVersionInfo(id.Artist), stripVersionInfo(id.Title), "", 0},
		{strings.ToUpper(artist), strings.ToUpper(title), "", 0},
		{strings.ToLower(artist), strings.ToLower(title), "", 0},
		{toTitleCase(artist), toTitleCase(title), "", 0},
		{id.Artist, id.Title, "", 0},
	}

	seen := make(map[string]bool)
	var unique []searchStrategy
	for _, s := range candidates {
		if s.artist == "" || s.title == "" {
			continue
		}
		key := fmt.Sprintf("%s|%s|%s|%d", s.artist, s.title, s.album, s.durationSec)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, s)
	}
	return unique
}

// normalizeString collapses runs of whitespace.
func normalizeString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripVersionInfo removes parenthesized and bracketed qualifiers such as
// remix or live tags.
func stripVersionInfo(s string) string {
	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}} {
		for {
			start := strings.Index(s, pair[0])
			end := strings.Index(s, pair[1])
			if start < 0 || end <= start {
				break
			}
			s = s[:start] + " " + s[end+1:]
		}
	}
	return normalizeString(s)
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		words[i] = strings.ToUpper(string(runes[0])) + strings.ToLower(string(runes[1:]))
	}
	return strings.Join(words, " ")
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
