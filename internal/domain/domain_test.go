package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewSongObservation(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		title  string
		artist string
		wantOK bool
	}{
		{name: "Valid", title: "Song", artist: "Artist", wantOK: true},
		{name: "Trimmed", title: "  Song  ", artist: " Artist ", wantOK: true},
		{name: "Empty Title", title: "", artist: "Artist", wantOK: false},
		{name: "Whitespace Title", title: " \t\n", artist: "Artist", wantOK: false},
		{name: "Missing Artist Is Fine", title: "Song", artist: "", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, ok := NewSongObservation(tt.title, tt.artist, "", true, "", "", at)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				if obs != (SongObservation{}) {
					t.Errorf("rejected observation should be zero, got %+v", obs)
				}
				return
			}
			if obs.Title != "Song" {
				t.Errorf("expected trimmed title 'Song', got %q", obs.Title)
			}
			if !obs.ObservedAt.Equal(at) {
				t.Errorf("expected ObservedAt %v, got %v", at, obs.ObservedAt)
			}
		})
	}
}

func TestSameState(t *testing.T) {
	base, _ := NewSongObservation("Song", "Artist", "", true, "0:10", "3:00", time.Now())

	tests := []struct {
		name      string
		other     func() SongObservation
		wantTrack bool
		wantState bool
	}{
		{
			name:      "Only Position Moved",
			other:     func() SongObservation { o := base; o.CurrentPosition = "0:11"; return o },
			wantTrack: true,
			wantState: true,
		},
		{
			name:      "Different Art Only",
			other:     func() SongObservation { o := base; o.AlbumArtURL = "https://x"; return o },
			wantTrack: true,
			wantState: true,
		},
		{
			name:      "Paused",
			other:     func() SongObservation { o := base; o.IsPlaying = false; return o },
			wantTrack: true,
			wantState: false,
		},
		{
			name:      "Other Artist",
			other:     func() SongObservation { o := base; o.Artist = "Cover Band"; return o },
			wantTrack: false,
			wantState: false,
		},
		{
			name:      "Other Title",
			other:     func() SongObservation { o := base; o.Title = "Next"; return o },
			wantTrack: false,
			wantState: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := tt.other()
			if got := base.SameTrack(other); got != tt.wantTrack {
				t.Errorf("SameTrack: expected %v, got %v", tt.wantTrack, got)
			}
			if got := base.SameState(other); got != tt.wantState {
				t.Errorf("SameState: expected %v, got %v", tt.wantState, got)
			}
		})
	}
}

func TestPresenceState_Clone(t *testing.T) {
	obs, _ := NewSongObservation("Song", "Artist", "", true, "", "", time.Now())
	s := PresenceState{Current: &obs, Connection: Connected}

	c := s.Clone()
	c.Current.Title = "Mutated"

	if s.Current.Title != "Song" {
		t.Errorf("clone shares Current with the original")
	}
	if c.Connection != Connected {
		t.Errorf("expected connection to be copied, got %s", c.Connection)
	}

	empty := PresenceState{}.Clone()
	if empty.Current != nil {
		t.Error("expected nil Current to stay nil")
	}
}

func TestSongUpdate_RoundTrip(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	obs, _ := NewSongObservation("Song", "Artist", "https://art", true, "1:00", "2:00", at)

	msg, err := NewSongUpdateMessage(UpdateFromObservation(obs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeSongUpdate {
		t.Fatalf("expected %s, got %s", TypeSongUpdate, msg.Type)
	}

	var u SongUpdate
	if err := json.Unmarshal(msg.Data, &u); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if u.Stopped() {
		t.Fatal("a playing update must not be the stopped variant")
	}

	back, ok := u.Observation()
	if !ok {
		t.Fatal("expected an observation")
	}
	if back != obs {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, obs)
	}
}

func TestStoppedMessage(t *testing.T) {
	msg := StoppedMessage()
	if msg.Type != TypeSongUpdate {
		t.Fatalf("expected %s, got %s", TypeSongUpdate, msg.Type)
	}

	var u SongUpdate
	if err := json.Unmarshal(msg.Data, &u); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if !u.Stopped() {
		t.Error("expected the stopped variant")
	}
	if _, ok := u.Observation(); ok {
		t.Error("the stopped variant has no observation")
	}

	// A paused song is not the stopped variant
	paused := SongUpdate{Title: "Song", IsPlaying: false}
	if paused.Stopped() {
		t.Error("a paused song must not read as stopped")
	}
}
