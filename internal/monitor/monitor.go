//go:build linux
// +build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// MprisObserver reads the now-playing state from the browser's media session
// over D-Bus MPRIS instead of the page DOM
type MprisObserver struct {
	logger    *zap.Logger
	mu        sync.Mutex
	conn      DBusClient // Interface for testability
	dial      func() (DBusClient, error)
	players   []string
	pageMatch string
	now       func() time.Time
}

// playerReading is one player's properties at a point in time
type playerReading struct {
	name     string
	title    string
	artist   string
	artURL   string
	url      string
	status   string
	position time.Duration
	length   time.Duration
}

// NewMprisObserver creates an observer restricted to players whose bus name
// contains one of players (any player when empty). When pageMatch is set,
// players that expose a page URL must match it.
func NewMprisObserver(logger *zap.Logger, players []string, pageMatch string) *MprisObserver {
	return &MprisObserver{
		logger:    logger,
		players:   players,
		pageMatch: pageMatch,
		now:       time.Now,
		dial: func() (DBusClient, error) {
			c, err := NewStdDBusClient()
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// Observe returns the first Playing player's track, else the first paused one
func (m *MprisObserver) Observe(ctx context.Context) (domain.SongObservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		return domain.SongObservation{}, false
	}

	conn, err := m.connectLocked()
	if err != nil {
		m.logger.Debug("Session bus unavailable", zap.Error(err))
		return domain.SongObservation{}, false
	}

	names, err := m.listPlayers(conn)
	if err != nil {
		m.logger.Debug("Failed to list MPRIS players", zap.Error(err))
		m.dropLocked()
		return domain.SongObservation{}, false
	}

	var fallback *playerReading
	for _, name := range names {
		r, err := m.readPlayer(conn, name)
		if err != nil {
			m.logger.Debug("Failed to read player", zap.String("player", name), zap.Error(err))
			continue
		}
		if !m.usable(r) {
			continue
		}
		if r.status == "Playing" {
			return m.toObservation(r)
		}
		if fallback == nil {
			fallback = &r
		}
	}

	if fallback != nil {
		return m.toObservation(*fallback)
	}
	return domain.SongObservation{}, false
}

// Inspect lists every MPRIS player on the bus and how it was judged
func (m *MprisObserver) Inspect(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.connectLocked()
	if err != nil {
		return "", fmt.Errorf("session bus connection failed: %w", err)
	}

	all, err := conn.ListNames()
	if err != nil {
		m.dropLocked()
		return "", fmt.Errorf("failed to list bus names: %w", err)
	}

	var b strings.Builder
	b.WriteString("=== MPRIS Player Debug ===\n")
	count := 0
	for _, name := range all {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		count++

		owner, err := conn.GetNameOwner(name)
		if err != nil {
			owner = "?"
		}
		fmt.Fprintf(&b, "%s (%s) matched=%t\n", name, owner, m.matchesPlayer(name))

		r, err := m.readPlayer(conn, name)
		if err != nil {
			fmt.Fprintf(&b, "  error: %v\n", err)
			continue
		}
		fmt.Fprintf(&b, "  status=%s title=%q artist=%q url=%q usable=%t\n",
			r.status, r.title, r.artist, r.url, m.usable(r))
	}
	if count == 0 {
		b.WriteString("No MPRIS players on the session bus\n")
	}
	return b.String(), nil
}

// Close releases the D-Bus connection
func (m *MprisObserver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func (m *MprisObserver) connectLocked() (DBusClient, error) {
	if m.conn != nil {
		return m.conn, nil
	}
	conn, err := m.dial()
	if err != nil {
		return nil, err
	}
	m.conn = conn
	m.logger.Info("Connected to session bus for MPRIS")
	return conn, nil
}

func (m *MprisObserver) dropLocked() {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(); err != nil {
		m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
	}
	m.conn = nil
}

// listPlayers returns the MPRIS names allowed by the player filter
func (m *MprisObserver) listPlayers(conn DBusClient) ([]string, error) {
	names, err := conn.ListNames()
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) && m.matchesPlayer(name) {
			players = append(players, name)
		}
	}
	return players, nil
}

func (m *MprisObserver) matchesPlayer(name string) bool {
	if len(m.players) == 0 {
		return true
	}
	suffix := strings.ToLower(strings.TrimPrefix(name, mprisPrefix))
	for _, p := range m.players {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(suffix, p) {
			return true
		}
	}
	return false
}

// usable rejects players with nothing loaded or on another site
func (m *MprisObserver) usable(r playerReading) bool {
	if strings.TrimSpace(r.title) == "" {
		return false
	}
	if r.status != "Playing" && r.status != "Paused" {
		return false
	}
	if m.pageMatch != "" && r.url != "" && !strings.Contains(r.url, m.pageMatch) {
		return false
	}
	return true
}

// readPlayer fetches metadata, status and position of one player
func (m *MprisObserver) readPlayer(conn DBusClient, name string) (playerReading, error) {
	r := playerReading{name: name}

	variant, err := conn.GetProperty(name, mprisObjectPath, playerInterface+".Metadata")
	if err != nil {
		return r, fmt.Errorf("failed to get metadata: %w", err)
	}

	// SAFE CAST: players with nothing loaded may return an empty or odd variant
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return r, errors.New("metadata is not a map")
	}

	statusVariant, err := conn.GetProperty(name, mprisObjectPath, playerInterface+".PlaybackStatus")
	if err != nil {
		return r, fmt.Errorf("failed to get playback status: %w", err)
	}
	if r.status, ok = statusVariant.Value().(string); !ok {
		return r, errors.New("invalid playback status format")
	}

	m.parseMetadata(metadata, &r)

	// Position is optional; browsers without seek support fail the call
	if posVariant, err := conn.GetProperty(name, mprisObjectPath, playerInterface+".Position"); err == nil {
		if us, ok := microseconds(posVariant.Value()); ok {
			r.position = time.Duration(us) * time.Microsecond
		}
	}

	return r, nil
}

// parseMetadata fills the reading from the xesam/mpris metadata map
func (m *MprisObserver) parseMetadata(metadata map[string]dbus.Variant, r *playerReading) {
	if titleVar, ok := metadata["xesam:title"]; ok {
		if title, ok := titleVar.Value().(string); ok {
			r.title = title
		}
	}

	// Extract artist (can be an array)
	if artistVar, ok := metadata["xesam:artist"]; ok {
		switch artists := artistVar.Value().(type) {
		case []string:
			if len(artists) > 0 {
				r.artist = artists[0]
			}
		case string:
			r.artist = artists
		default:
			m.logger.Debug("Unexpected artist type in metadata",
				zap.String("type", fmt.Sprintf("%T", artistVar.Value())))
		}
	}

	if artVar, ok := metadata["mpris:artUrl"]; ok {
		if artURL, ok := artVar.Value().(string); ok {
			r.artURL = artURL
		}
	}

	if urlVar, ok := metadata["xesam:url"]; ok {
		if u, ok := urlVar.Value().(string); ok {
			r.url = u
		}
	}

	if lengthVar, ok := metadata["mpris:length"]; ok {
		if us, ok := microseconds(lengthVar.Value()); ok {
			r.length = time.Duration(us) * time.Microsecond
		}
	}
}

func (m *MprisObserver) toObservation(r playerReading) (domain.SongObservation, bool) {
	var position, duration string
	if r.length > 0 {
		position = formatClock(r.position)
		duration = formatClock(r.length)
	}
	return domain.NewSongObservation(r.title, r.artist, r.artURL, r.status == "Playing", position, duration, m.now())
}

// microseconds accepts the integer widths players use for MPRIS times
func microseconds(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// formatClock renders a duration the way the player bar does: "3:07" or "1:02:03"
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, mnt, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mnt, s)
	}
	return fmt.Sprintf("%d:%02d", mnt, s)
}
