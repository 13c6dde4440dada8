package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"karolbroda.com/lyrisync/internal/playback"
)

const playerStateJSON = `{
	"timestamp": 1700000000000,
	"progress_ms": 42000,
	"is_playing": true,
	"item": {
		"id": "4uLU6hMCjMI75M1A2tKUQC",
		"name": "Song",
		"duration_ms": 215000,
		"artists": [{"name": "Band"}, {"name": "Guest"}],
		"album": {"name": "Record"}
	}
}`

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))
	return NewWithClient(client, nil)
}

func errorBody(status int) string {
	return fmt.Sprintf(`{"error":{"status":%d,"message":"%s"}}`, status, http.StatusText(status))
}

func TestFetchPlayerState(t *testing.T) {
	var path string
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(playerStateJSON))
	})

	r, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if path != "/me/player" {
		t.Fatalf("requested %q, want /me/player", path)
	}
	if !r.Playing || r.PositionMs != 42_000 || r.DurationMs != 215_000 {
		t.Fatalf("reading = %+v", r)
	}
	if r.Track.ID != "4uLU6hMCjMI75M1A2tKUQC" || r.Track.Artist != "Band, Guest" || r.Track.Album != "Record" {
		t.Fatalf("track = %+v", r.Track)
	}
}

func TestFetchNothingPlaying(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if r.Track != nil {
		t.Fatalf("expected no track, got %+v", r.Track)
	}
}

func TestFetchErrorKinds(t *testing.T) {
	cases := map[int]playback.FetchErrorKind{
		http.StatusUnauthorized:        playback.FetchUnauthorized,
		http.StatusForbidden:           playback.FetchUnauthorized,
		http.StatusTooManyRequests:     playback.FetchRateLimited,
		http.StatusInternalServerError: playback.FetchNetwork,
	}
	for status, want := range cases {
		s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(errorBody(status)))
		})

		_, err := s.Fetch(context.Background())
		if got := playback.KindOf(err); got != want {
			t.Fatalf("status %d: kind = %v, want %v (err %v)", status, got, want, err)
		}
	}
}

func TestClassifyRefreshFailure(t *testing.T) {
	err := fmt.Errorf("Get: %w", &oauth2.RetrieveError{Response: &http.Response{StatusCode: 400}})
	if !playback.IsUnauthorized(classify(err)) {
		t.Fatalf("refresh failure should be unauthorized")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}

	if err := saveToken(path, want); err != nil {
		t.Fatalf("saveToken() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if info.Mode().Perm() != FilePermission {
		t.Fatalf("token permissions = %v, want %v", info.Mode().Perm(), os.FileMode(FilePermission))
	}

	got, err := loadToken(path)
	if err != nil {
		t.Fatalf("loadToken() error = %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Fatalf("loadToken() = %+v, want %+v", got, want)
	}
}

func TestNewWithoutToken(t *testing.T) {
	_, err := New(context.Background(), &Config{TokenPath: filepath.Join(t.TempDir(), "missing.json")}, nil)
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("New() error = %v, want ErrNoToken", err)
	}
}
