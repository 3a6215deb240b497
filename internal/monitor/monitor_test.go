//go:build linux
// +build linux

package monitor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/genricoloni/ytmpresence/internal/monitor/mocks"
	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	chromium = "org.mpris.MediaPlayer2.chromium.instance1234"
	brave    = "org.mpris.MediaPlayer2.brave.instance77"
	vlc      = "org.mpris.MediaPlayer2.vlc"
	metaProp = "org.mpris.MediaPlayer2.Player.Metadata"
	statProp = "org.mpris.MediaPlayer2.Player.PlaybackStatus"
	posProp  = "org.mpris.MediaPlayer2.Player.Position"
)

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestObserver(client DBusClient, dials *int) *MprisObserver {
	m := NewMprisObserver(zap.NewNop(), []string{"chromium", "brave"}, "music.youtube.com")
	m.now = func() time.Time { return fixedNow }
	m.dial = func() (DBusClient, error) {
		if dials != nil {
			*dials++
		}
		return client, nil
	}
	return m
}

func expectPlayer(m *mocks.MockDBusClient, name string, meta map[string]dbus.Variant, status string, positionUS int64) {
	m.EXPECT().GetProperty(name, mprisObjectPath, metaProp).Return(dbus.MakeVariant(meta), nil)
	m.EXPECT().GetProperty(name, mprisObjectPath, statProp).Return(dbus.MakeVariant(status), nil)
	m.EXPECT().GetProperty(name, mprisObjectPath, posProp).Return(dbus.MakeVariant(positionUS), nil)
}

func ytmMeta(title, artist string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant(title),
		"xesam:artist": dbus.MakeVariant([]string{artist}),
		"mpris:artUrl": dbus.MakeVariant("https://lh3.googleusercontent.com/x=w60-h60"),
		"xesam:url":    dbus.MakeVariant("https://music.youtube.com/watch?v=abc"),
		"mpris:length": dbus.MakeVariant(int64(210_000_000)),
	}
}

func TestObserve(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*mocks.MockDBusClient)
		expectOK    bool
		expectTitle string
		expectPlay  bool
		expectPos   string
		expectDur   string
	}{
		{
			name: "Prefers Playing Player",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{"org.freedesktop.DBus", chromium, brave}, nil)
				expectPlayer(m, chromium, ytmMeta("Paused Song", "A"), "Paused", 0)
				expectPlayer(m, brave, ytmMeta("Playing Song", "B"), "Playing", 65_000_000)
			},
			expectOK:    true,
			expectTitle: "Playing Song",
			expectPlay:  true,
			expectPos:   "1:05",
			expectDur:   "3:30",
		},
		{
			name: "Falls Back To Paused Player",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{chromium}, nil)
				expectPlayer(m, chromium, ytmMeta("Paused Song", "A"), "Paused", 0)
			},
			expectOK:    true,
			expectTitle: "Paused Song",
			expectPlay:  false,
			expectPos:   "0:00",
			expectDur:   "3:30",
		},
		{
			name: "Ignores Players Outside Filter",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{vlc}, nil)
			},
			expectOK: false,
		},
		{
			name: "Ignores Other Sites",
			setupMock: func(m *mocks.MockDBusClient) {
				meta := ytmMeta("Video", "Channel")
				meta["xesam:url"] = dbus.MakeVariant("https://www.youtube.com/watch?v=zzz")
				m.EXPECT().ListNames().Return([]string{chromium}, nil)
				expectPlayer(m, chromium, meta, "Playing", 0)
			},
			expectOK: false,
		},
		{
			name: "Ignores Stopped Player",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{chromium}, nil)
				expectPlayer(m, chromium, ytmMeta("Song", "A"), "Stopped", 0)
			},
			expectOK: false,
		},
		{
			name: "Skips Invalid Metadata",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{chromium, brave}, nil)
				m.EXPECT().GetProperty(chromium, mprisObjectPath, metaProp).Return(dbus.MakeVariant(12345), nil)
				expectPlayer(m, brave, ytmMeta("Song", "B"), "Playing", 0)
			},
			expectOK:    true,
			expectTitle: "Song",
			expectPlay:  true,
			expectPos:   "0:00",
			expectDur:   "3:30",
		},
		{
			name: "Missing Position Leaves Time Empty",
			setupMock: func(m *mocks.MockDBusClient) {
				meta := ytmMeta("Song", "A")
				delete(meta, "mpris:length")
				m.EXPECT().ListNames().Return([]string{chromium}, nil)
				m.EXPECT().GetProperty(chromium, mprisObjectPath, metaProp).Return(dbus.MakeVariant(meta), nil)
				m.EXPECT().GetProperty(chromium, mprisObjectPath, statProp).Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty(chromium, mprisObjectPath, posProp).Return(dbus.Variant{}, fmt.Errorf("not supported"))
			},
			expectOK:    true,
			expectTitle: "Song",
			expectPlay:  true,
		},
		{
			name: "No Players",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{"org.freedesktop.DBus"}, nil)
			},
			expectOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mocks.NewMockDBusClient(ctrl)
			tt.setupMock(mockClient)

			obs, ok := newTestObserver(mockClient, nil).Observe(context.Background())
			if ok != tt.expectOK {
				t.Fatalf("expected ok=%v, got %v (%+v)", tt.expectOK, ok, obs)
			}
			if !ok {
				return
			}
			if obs.Title != tt.expectTitle {
				t.Errorf("Title: expected '%s', got '%s'", tt.expectTitle, obs.Title)
			}
			if obs.IsPlaying != tt.expectPlay {
				t.Errorf("IsPlaying: expected %v, got %v", tt.expectPlay, obs.IsPlaying)
			}
			if obs.CurrentPosition != tt.expectPos || obs.TotalDuration != tt.expectDur {
				t.Errorf("Time: expected %s/%s, got %s/%s", tt.expectPos, tt.expectDur, obs.CurrentPosition, obs.TotalDuration)
			}
			if !obs.ObservedAt.Equal(fixedNow) {
				t.Errorf("ObservedAt: expected %v, got %v", fixedNow, obs.ObservedAt)
			}
		})
	}
}

func TestObserve_ReconnectsAfterBusError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockDBusClient(ctrl)
	gomock.InOrder(
		mockClient.EXPECT().ListNames().Return(nil, fmt.Errorf("connection reset")),
		mockClient.EXPECT().Close().Return(nil),
		mockClient.EXPECT().ListNames().Return([]string{}, nil),
	)

	dials := 0
	obs := newTestObserver(mockClient, &dials)

	if _, ok := obs.Observe(context.Background()); ok {
		t.Error("expected no observation on bus error")
	}
	if _, ok := obs.Observe(context.Background()); ok {
		t.Error("expected no observation with no players")
	}
	if dials != 2 {
		t.Errorf("expected 2 dials, got %d", dials)
	}
}

func TestObserve_DialFailure(t *testing.T) {
	obs := NewMprisObserver(zap.NewNop(), nil, "")
	obs.dial = func() (DBusClient, error) { return nil, fmt.Errorf("no session bus") }

	if _, ok := obs.Observe(context.Background()); ok {
		t.Error("expected no observation when the bus is unavailable")
	}
	if err := obs.Close(); err != nil {
		t.Errorf("Close without connection should succeed, got %v", err)
	}
}

func TestObserve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Any D-Bus call would fail the test through gomock
	ctrl := gomock.NewController(t)
	obs := newTestObserver(mocks.NewMockDBusClient(ctrl), nil)
	if _, ok := obs.Observe(ctx); ok {
		t.Error("expected no observation for a cancelled context")
	}
}

func TestInspect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockDBusClient(ctrl)
	mockClient.EXPECT().ListNames().Return([]string{chromium, vlc}, nil)
	mockClient.EXPECT().GetNameOwner(chromium).Return(":1.100", nil)
	mockClient.EXPECT().GetNameOwner(vlc).Return("", fmt.Errorf("gone"))
	expectPlayer(mockClient, chromium, ytmMeta("Song", "Artist"), "Playing", 0)
	mockClient.EXPECT().GetProperty(vlc, mprisObjectPath, metaProp).Return(dbus.Variant{}, fmt.Errorf("timeout"))

	report, err := newTestObserver(mockClient, nil).Inspect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		chromium + " (:1.100) matched=true",
		vlc + " (?) matched=false",
		`title="Song"`,
		"usable=true",
		"error: failed to get metadata",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{5 * time.Second, "0:05"},
		{187 * time.Second, "3:07"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		if got := formatClock(tt.in); got != tt.want {
			t.Errorf("formatClock(%v): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestMicroseconds(t *testing.T) {
	for _, v := range []interface{}{int64(7), uint64(7), int32(7), uint32(7), float64(7)} {
		if got, ok := microseconds(v); !ok || got != 7 {
			t.Errorf("microseconds(%T): expected 7, got %d (%v)", v, got, ok)
		}
	}
	if _, ok := microseconds("7"); ok {
		t.Error("expected strings to be rejected")
	}
}
