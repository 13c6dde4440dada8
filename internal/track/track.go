package track

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Identity identifies a track across polls. Values are treated as immutable
// once a source has produced them.
type Identity struct {
	// Source names the playback source, e.g. "mpris", "spotify" or "mpd".
	Source     string
	ID         string
	Title      string
	Artist     string
	Album      string
	DurationMs int64
}

func (t *Identity) IsValid() bool {
	if t == nil {
		return false
	}
	return t.ID != "" || (t.Title != "" && t.Artist != "")
}

// IsSameTrack compares by source id when both sides carry one and falls back
// to title and artist otherwise. Two nil identities are the same track.
func (t *Identity) IsSameTrack(other *Identity) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.ID != "" && other.ID != "" {
		return t.Source == other.Source && t.ID == other.ID
	}
	return strings.EqualFold(t.Title, other.Title) && strings.EqualFold(t.Artist, other.Artist)
}

// Key is the stable cache key for the track.
func (t *Identity) Key() string {
	if t == nil {
		return ""
	}
	var normalized string
	if t.ID != "" {
		normalized = t.Source + ":" + t.ID
	} else {
		normalized = strings.ToLower(t.Artist) + "|" + strings.ToLower(t.Title)
	}
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:12])
}

func (t *Identity) String() string {
	if t == nil {
		return "<none>"
	}
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
