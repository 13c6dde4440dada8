package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v2"
)

const (
	appDirName     = "lyrisync"
	configFileName = "config.yaml"
)

type Config struct {
	Source  string        `yaml:"source" default:"mpris"`
	Mpris   MprisConfig   `yaml:"mpris"`
	Spotify SpotifyConfig `yaml:"spotify"`
	Mpd     MpdConfig     `yaml:"mpd"`
	Poll    PollConfig    `yaml:"poll"`
	Sync    SyncConfig    `yaml:"sync"`
	Lyrics  LyricsConfig  `yaml:"lyrics"`
	Cache   CacheConfig   `yaml:"cache"`
	UI      UIConfig      `yaml:"ui"`
	Pipe    PipeConfig    `yaml:"pipe"`
	Log     LogConfig     `yaml:"log"`
}

type MprisConfig struct {
	Service string `yaml:"service" default:"org.mpris.MediaPlayer2.spotify"`
}

type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenPath    string `yaml:"token_path"`
}

type MpdConfig struct {
	Network  string `yaml:"network" default:"tcp"`
	Address  string `yaml:"address" default:"localhost:6600"`
	Password string `yaml:"password"`
}

type PollConfig struct {
	Interval    time.Duration `yaml:"interval" default:"2s"`
	Timeout     time.Duration `yaml:"timeout" default:"5s"`
	BaseBackoff time.Duration `yaml:"base_backoff" default:"1s"`
	MaxBackoff  time.Duration `yaml:"max_backoff" default:"30s"`
}

type SyncConfig struct {
	DriftThreshold   time.Duration `yaml:"drift_threshold" default:"1500ms"`
	SubscriberBuffer int           `yaml:"subscriber_buffer" default:"16"`
}

type LyricsConfig struct {
	Providers []string      `yaml:"providers" default:"[\"lrclib\"]"`
	LrclibURL string        `yaml:"lrclib_url" default:"https://lrclib.net/api/get"`
	Timeout   time.Duration `yaml:"timeout" default:"10s"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend" default:"disk"`
	Path    string        `yaml:"path"`
	TTL     time.Duration `yaml:"ttl" default:"720h"`
}

type UIConfig struct {
	Framerate  int           `yaml:"framerate" default:"30"`
	SyncOffset time.Duration `yaml:"sync_offset"`
	HideHeader bool          `yaml:"hide_header"`
}

type PipeConfig struct {
	Length   int    `yaml:"length"`
	Overflow string `yaml:"overflow" default:"word"`
}

type LogConfig struct {
	Level string `yaml:"level" default:"info"`
	File  string `yaml:"file"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

// Load reads path (or the default location when empty), fills defaults and
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, configFileName)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Source = getEnvOrDefault("LYRISYNC_SOURCE", cfg.Source)
	cfg.Mpris.Service = getEnvOrDefault("MPRIS_SERVICE", cfg.Mpris.Service)
	cfg.Lyrics.LrclibURL = getEnvOrDefault("LRCLIB_GET_URL", cfg.Lyrics.LrclibURL)

	// SYNC_OFFSET is in seconds, e.g. "0.25" or "-1"
	if raw := os.Getenv("SYNC_OFFSET"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.UI.SyncOffset = time.Duration(secs * float64(time.Second))
		}
	}

	hideHeader := strings.ToLower(os.Getenv("HIDE_HEADER"))
	if hideHeader == "1" || hideHeader == "true" || hideHeader == "yes" {
		cfg.UI.HideHeader = true
	}
}

func (c *Config) Validate() error {
	switch c.Source {
	case "mpris", "spotify", "mpd":
	default:
		return fmt.Errorf("unknown source %q (want mpris, spotify or mpd)", c.Source)
	}

	switch c.Cache.Backend {
	case "disk", "sqlite", "none":
	default:
		return fmt.Errorf("unknown cache backend %q (want disk, sqlite or none)", c.Cache.Backend)
	}

	switch c.Pipe.Overflow {
	case "word", "none", "ellipsis":
	default:
		return fmt.Errorf("unknown pipe overflow %q (want word, none or ellipsis)", c.Pipe.Overflow)
	}

	for _, p := range c.Lyrics.Providers {
		if p != "lrclib" {
			return fmt.Errorf("unknown lyrics provider %q", p)
		}
	}

	if c.Poll.Interval <= 0 || c.Poll.Timeout <= 0 {
		return errors.New("poll interval and timeout must be positive")
	}
	if c.UI.Framerate <= 0 {
		return errors.New("ui framerate must be positive")
	}
	return nil
}

// Dir is $XDG_CONFIG_HOME/lyrisync or ~/.config/lyrisync.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appDirName), nil
}

// SpotifyTokenPath falls back to a token file next to the config.
func (c *Config) SpotifyTokenPath() (string, error) {
	if c.Spotify.TokenPath != "" {
		return c.Spotify.TokenPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "spotify_token.json"), nil
}

func getEnvOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
