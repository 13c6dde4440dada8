package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LYRISYNC_SOURCE", "MPRIS_SERVICE", "LRCLIB_GET_URL", "SYNC_OFFSET", "HIDE_HEADER"} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source != "mpris" || cfg.Mpris.Service != "org.mpris.MediaPlayer2.spotify" {
		t.Fatalf("source defaults = %q %q", cfg.Source, cfg.Mpris.Service)
	}
	if cfg.Poll.Interval != 2*time.Second || cfg.Poll.Timeout != 5*time.Second ||
		cfg.Poll.BaseBackoff != time.Second || cfg.Poll.MaxBackoff != 30*time.Second {
		t.Fatalf("poll defaults = %+v", cfg.Poll)
	}
	if cfg.Sync.DriftThreshold != 1500*time.Millisecond || cfg.Sync.SubscriberBuffer != 16 {
		t.Fatalf("sync defaults = %+v", cfg.Sync)
	}
	if len(cfg.Lyrics.Providers) != 1 || cfg.Lyrics.Providers[0] != "lrclib" {
		t.Fatalf("providers = %v", cfg.Lyrics.Providers)
	}
	if cfg.Cache.Backend != "disk" || cfg.Cache.TTL != 720*time.Hour {
		t.Fatalf("cache defaults = %+v", cfg.Cache)
	}
	if cfg.UI.Framerate != 30 || cfg.Pipe.Overflow != "word" || cfg.Log.Level != "info" {
		t.Fatalf("ui/pipe/log defaults = %+v %+v %+v", cfg.UI, cfg.Pipe, cfg.Log)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
source: mpd
mpd:
  address: music.local:6600
  password: hunter2
poll:
  interval: 500ms
sync:
  drift_threshold: 2s
cache:
  backend: sqlite
  ttl: 48h
ui:
  sync_offset: -250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "mpd" || cfg.Mpd.Address != "music.local:6600" || cfg.Mpd.Password != "hunter2" {
		t.Fatalf("mpd config = %+v", cfg.Mpd)
	}
	if cfg.Mpd.Network != "tcp" {
		t.Fatalf("unset field lost its default: %q", cfg.Mpd.Network)
	}
	if cfg.Poll.Interval != 500*time.Millisecond || cfg.Poll.Timeout != 5*time.Second {
		t.Fatalf("poll = %+v", cfg.Poll)
	}
	if cfg.Sync.DriftThreshold != 2*time.Second {
		t.Fatalf("drift threshold = %v", cfg.Sync.DriftThreshold)
	}
	if cfg.Cache.Backend != "sqlite" || cfg.Cache.TTL != 48*time.Hour {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.UI.SyncOffset != -250*time.Millisecond {
		t.Fatalf("sync offset = %v", cfg.UI.SyncOffset)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LYRISYNC_SOURCE", "spotify")
	t.Setenv("MPRIS_SERVICE", "org.mpris.MediaPlayer2.vlc")
	t.Setenv("LRCLIB_GET_URL", "http://localhost:3000/api/get")
	t.Setenv("SYNC_OFFSET", "0.5")
	t.Setenv("HIDE_HEADER", "yes")

	cfg, err := Load(writeConfig(t, "source: mpd\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "spotify" {
		t.Fatalf("env should win over file, got %q", cfg.Source)
	}
	if cfg.Mpris.Service != "org.mpris.MediaPlayer2.vlc" || cfg.Lyrics.LrclibURL != "http://localhost:3000/api/get" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Mpris, cfg.Lyrics)
	}
	if cfg.UI.SyncOffset != 500*time.Millisecond || !cfg.UI.HideHeader {
		t.Fatalf("ui overrides = %+v", cfg.UI)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"unknown source":   "source: winamp\n",
		"unknown backend":  "cache:\n  backend: redis\n",
		"unknown overflow": "pipe:\n  overflow: wrap\n",
		"unknown provider": "lyrics:\n  providers: [musixmatch]\n",
		"unknown key":      "colour: blue\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: Load() should fail", name)
		}
	}
}

func TestExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config") {
		t.Fatalf("Load() error = %v", err)
	}
}
