package domain

import (
	"strings"
	"time"
)

// SongObservation is a single reading of the player taken on one poll tick.
// Build it with NewSongObservation; the zero value is never a valid observation.
type SongObservation struct {
	// Title of the track, never empty
	Title string
	// Artist is best-effort and may be empty
	Artist string
	// AlbumArtURL is the thumbnail source, if any
	AlbumArtURL string
	// IsPlaying is the verdict of the playback-state cascade
	IsPlaying bool
	// CurrentPosition and TotalDuration are display text such as "1:23"
	CurrentPosition string
	TotalDuration   string
	// ObservedAt is the capture time
	ObservedAt time.Time
}

// NewSongObservation returns an observation, or false when title is blank.
func NewSongObservation(title, artist, albumArtURL string, isPlaying bool, position, duration string, observedAt time.Time) (SongObservation, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return SongObservation{}, false
	}
	return SongObservation{
		Title:           title,
		Artist:          strings.TrimSpace(artist),
		AlbumArtURL:     strings.TrimSpace(albumArtURL),
		IsPlaying:       isPlaying,
		CurrentPosition: strings.TrimSpace(position),
		TotalDuration:   strings.TrimSpace(duration),
		ObservedAt:      observedAt,
	}, true
}

// SameTrack reports whether both observations name the same (title, artist) pair
func (o SongObservation) SameTrack(other SongObservation) bool {
	return o.Title == other.Title && o.Artist == other.Artist
}

// SameState compares the fields that drive emission. Position and duration are
// ignored since they move on every tick.
func (o SongObservation) SameState(other SongObservation) bool {
	return o.SameTrack(other) && o.IsPlaying == other.IsPlaying
}

// ConnectionState is the presence transport lifecycle
type ConnectionState string

const (
	// Disconnected means no usable transport connection
	Disconnected ConnectionState = "Disconnected"
	// Connecting means a dial/handshake is in flight
	Connecting ConnectionState = "Connecting"
	// Connected means activities can be sent
	Connected ConnectionState = "Connected"
)

// PresenceState is the relay's view of what the external display shows.
// A relay owns exactly one and only its event loop mutates it.
type PresenceState struct {
	Current       *SongObservation
	ActivitySince time.Time
	Connection    ConnectionState
	// RetriesExhausted is set once the relay stops reconnecting
	RetriesExhausted bool
}

// Clone returns a copy that shares nothing with the receiver
func (s PresenceState) Clone() PresenceState {
	out := s
	if s.Current != nil {
		cur := *s.Current
		out.Current = &cur
	}
	return out
}

// Activity is the presence payload sent to the display service
type Activity struct {
	Details        string `json:"details"`
	State          string `json:"state"`
	LargeImageKey  string `json:"largeImageKey,omitempty"`
	LargeImageText string `json:"largeImageText,omitempty"`
	SmallImageKey  string `json:"smallImageKey,omitempty"`
	SmallImageText string `json:"smallImageText,omitempty"`
	StartTimestamp int64  `json:"startTimestamp"`
	Instance       bool   `json:"instance"`
}

// PlayRecord is one entry of the listening history
type PlayRecord struct {
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	AlbumArtURL string    `json:"albumArtUrl,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
}
