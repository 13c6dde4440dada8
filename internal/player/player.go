package player

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyrisync/internal/playback"
	"karolbroda.com/lyrisync/internal/track"
)

const (
	SourceName       = "mpris"
	DefaultService   = "org.mpris.MediaPlayer2.spotify"
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	noTrackPath      = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
)

// propertyReader reads one player property, bounded by ctx.
type propertyReader interface {
	Property(ctx context.Context, name string) (dbus.Variant, error)
}

// busProperties goes through Properties.Get directly because
// BusObject.GetProperty takes no context.
type busProperties struct {
	obj dbus.BusObject
}

func (b busProperties) Property(ctx context.Context, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := b.obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, mprisPlayerIface, name).Store(&v)
	return v, err
}

// Service reads playback state from one MPRIS player on the session bus.
// It satisfies poller.Source; Start additionally watches property signals so
// the poller can be woken early.
type Service struct {
	bus     *dbus.Conn
	service string
	obj     propertyReader

	signalChan chan *dbus.Signal
	stopChan   chan struct{}
	stopOnce   sync.Once
	wakeChan   chan struct{}
}

func NewService(bus *dbus.Conn, mprisService string) (*Service, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if mprisService == "" {
		return nil, errors.New("empty mpris service name")
	}

	return &Service{
		bus:      bus,
		service:  mprisService,
		obj:      busProperties{obj: bus.Object(mprisService, mprisPath)},
		wakeChan: make(chan struct{}, 1),
	}, nil
}

func (s *Service) Name() string { return SourceName }

// Fetch reads Metadata, Position and PlaybackStatus. A player that is not on
// the bus reports nothing playing rather than an error.
func (s *Service) Fetch(ctx context.Context) (playback.Reading, error) {
	if err := ctx.Err(); err != nil {
		return playback.Reading{}, err
	}

	metaVariant, err := s.obj.Property(ctx, "Metadata")
	if err != nil {
		if ctx.Err() != nil {
			return playback.Reading{}, playback.NewFetchError(playback.FetchNetwork, ctx.Err())
		}
		if isPlayerGone(err) {
			return playback.Reading{}, nil
		}
		return playback.Reading{}, playback.NewFetchError(playback.FetchNetwork,
			fmt.Errorf("failed to get metadata property: %w", err))
	}

	metadata, ok := metaVariant.Value().(map[string]dbus.Variant)
	if !ok {
		return playback.Reading{}, playback.NewFetchError(playback.FetchMalformed,
			fmt.Errorf("unexpected metadata type %T", metaVariant.Value()))
	}

	id := trackFromMetadata(metadata)
	if id == nil {
		return playback.Reading{}, nil
	}

	status, err := s.playbackStatus(ctx)
	if err != nil {
		return playback.Reading{}, err
	}
	if status == "Stopped" {
		return playback.Reading{}, nil
	}

	pos, err := s.positionMs(ctx)
	if err != nil {
		return playback.Reading{}, err
	}

	return playback.Reading{
		Track:      id,
		PositionMs: pos,
		DurationMs: id.DurationMs,
		Playing:    status == "Playing",
	}, nil
}

func (s *Service) playbackStatus(ctx context.Context) (string, error) {
	prop, err := s.obj.Property(ctx, "PlaybackStatus")
	if err != nil {
		return "", playback.NewFetchError(playback.FetchNetwork,
			fmt.Errorf("failed to get playback status: %w", err))
	}
	status, ok := prop.Value().(string)
	if !ok {
		return "", playback.NewFetchError(playback.FetchMalformed,
			fmt.Errorf("unexpected playback status type %T", prop.Value()))
	}
	return status, nil
}

func (s *Service) positionMs(ctx context.Context) (int64, error) {
	prop, err := s.obj.Property(ctx, "Position")
	if err != nil {
		return 0, playback.NewFetchError(playback.FetchNetwork,
			fmt.Errorf("failed to get position property: %w", err))
	}

	positionMicroseconds, ok := prop.Value().(int64)
	if !ok {
		return 0, playback.NewFetchError(playback.FetchMalformed,
			fmt.Errorf("unexpected position type %T", prop.Value()))
	}
	if positionMicroseconds < 0 {
		return 0, nil
	}
	return positionMicroseconds / 1000, nil
}

// Start subscribes to PropertiesChanged and Seeked for the player.
func (s *Service) Start() error {
	s.signalChan = make(chan *dbus.Signal, 10)
	s.stopChan = make(chan struct{})

	s.bus.Signal(s.signalChan)

	matchPropertiesChanged := fmt.Sprintf(
		"type='signal',sender='%s',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='%s'",
		s.service, mprisPath,
	)
	matchSeeked := fmt.Sprintf(
		"type='signal',sender='%s',interface='%s',member='Seeked',path='%s'",
		s.service, mprisPlayerIface, mprisPath,
	)

	if err := s.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchPropertiesChanged).Err; err != nil {
		return fmt.Errorf("failed to add properties match: %w", err)
	}
	if err := s.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchSeeked).Err; err != nil {
		return fmt.Errorf("failed to add seeked match: %w", err)
	}

	go s.signalLoop()
	return nil
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.signalChan != nil {
			s.bus.RemoveSignal(s.signalChan)
		}
		if s.stopChan != nil {
			close(s.stopChan)
		}
	})
}

// Wake fires when the player announces a change worth polling for.
func (s *Service) Wake() <-chan struct{} {
	return s.wakeChan
}

func (s *Service) signalLoop() {
	for {
		select {
		case sig, ok := <-s.signalChan:
			if !ok {
				return
			}
			if relevantSignal(sig) {
				s.wake()
			}
		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) wake() {
	select {
	case s.wakeChan <- struct{}{}:
	default:
	}
}

func relevantSignal(sig *dbus.Signal) bool {
	if sig == nil {
		return false
	}

	switch sig.Name {
	case mprisPlayerIface + ".Seeked":
		return true
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 2 {
			return false
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != mprisPlayerIface {
			return false
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return false
		}
		_, metadata := changed["Metadata"]
		_, status := changed["PlaybackStatus"]
		return metadata || status
	}
	return false
}

func trackFromMetadata(metadata map[string]dbus.Variant) *track.Identity {
	id := &track.Identity{
		Source:     SourceName,
		ID:         extractTrackID(metadata, "mpris:trackid"),
		Title:      extractString(metadata, "xesam:title"),
		Artist:     extractArtist(metadata, "xesam:artist"),
		Album:      extractString(metadata, "xesam:album"),
		DurationMs: extractDurationMs(metadata, "mpris:length"),
	}
	// title and artist are needed for lyrics lookups regardless of the id
	if id.Title == "" || id.Artist == "" {
		return nil
	}
	return id
}

func isPlayerGone(err error) bool {
	var name string
	var dbusErr dbus.Error
	var dbusErrPtr *dbus.Error
	switch {
	case errors.As(err, &dbusErr):
		name = dbusErr.Name
	case errors.As(err, &dbusErrPtr):
		name = dbusErrPtr.Name
	default:
		return false
	}
	return name == "org.freedesktop.DBus.Error.ServiceUnknown" ||
		name == "org.freedesktop.DBus.Error.NameHasNoOwner"
}

// ListPlayers returns the MPRIS bus names currently registered.
func ListPlayers(bus *dbus.Conn) ([]string, error) {
	var names []string
	if err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list dbus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players, nil
}

// Identity is the player's human readable name, or "" if unavailable.
func Identity(bus *dbus.Conn, serviceName string) string {
	variant, err := bus.Object(serviceName, mprisPath).GetProperty("org.mpris.MediaPlayer2.Identity")
	if err != nil {
		return ""
	}
	identity, _ := variant.Value().(string)
	return identity
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	text, _ := variant.Value().(string)
	return text
}

func extractTrackID(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	var id string
	switch typed := variant.Value().(type) {
	case dbus.ObjectPath:
		id = string(typed)
	case string:
		id = typed
	}
	if id == noTrackPath {
		return ""
	}
	return id
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case []string:
		return strings.Join(typed, ", ")
	case string:
		return typed
	default:
		return ""
	}
}

func extractDurationMs(metadata map[string]dbus.Variant, key string) int64 {
	variant, exists := metadata[key]
	if !exists {
		return 0
	}

	switch typed := variant.Value().(type) {
	case int64:
		if typed <= 0 {
			return 0
		}
		return typed / 1000
	case uint64:
		return int64(typed / 1000)
	case int32:
		if typed <= 0 {
			return 0
		}
		return int64(typed) / 1000
	default:
		return 0
	}
}
