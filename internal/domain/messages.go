package domain

import (
	"encoding/json"
	"time"
)

// MessageType names a cross-boundary message
type MessageType string

const (
	// TypeSongUpdate carries a full song state from the scraper to the relay
	TypeSongUpdate MessageType = "SONG_UPDATE"
	// TypeGetCurrentSong asks the scraper for a fresh observation
	TypeGetCurrentSong MessageType = "GET_CURRENT_SONG"
	// TypeDebugPage asks the scraper to log a selector report
	TypeDebugPage MessageType = "DEBUG_PAGE"
)

// Message is the envelope exchanged between the scraper and the relay
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SongUpdate is the SONG_UPDATE payload. The stopped variant only carries
// isPlaying=false.
type SongUpdate struct {
	Title           string `json:"title,omitempty"`
	Artist          string `json:"artist,omitempty"`
	AlbumArtURL     string `json:"albumArtUrl,omitempty"`
	IsPlaying       bool   `json:"isPlaying"`
	CurrentPosition string `json:"currentPosition,omitempty"`
	TotalDuration   string `json:"totalDuration,omitempty"`
	ObservedAt      int64  `json:"observedAt,omitempty"`
}

// Stopped reports whether this is the "not playing anything" signal
func (u SongUpdate) Stopped() bool {
	return u.Title == "" && !u.IsPlaying
}

// Observation converts the update back into an observation.
// It returns false for the stopped variant.
func (u SongUpdate) Observation() (SongObservation, bool) {
	var at time.Time
	if u.ObservedAt > 0 {
		at = time.UnixMilli(u.ObservedAt)
	}
	return NewSongObservation(u.Title, u.Artist, u.AlbumArtURL, u.IsPlaying, u.CurrentPosition, u.TotalDuration, at)
}

// UpdateFromObservation builds the wire payload for an observation
func UpdateFromObservation(o SongObservation) SongUpdate {
	u := SongUpdate{
		Title:           o.Title,
		Artist:          o.Artist,
		AlbumArtURL:     o.AlbumArtURL,
		IsPlaying:       o.IsPlaying,
		CurrentPosition: o.CurrentPosition,
		TotalDuration:   o.TotalDuration,
	}
	if !o.ObservedAt.IsZero() {
		u.ObservedAt = o.ObservedAt.UnixMilli()
	}
	return u
}

// NewSongUpdateMessage wraps an update in a SONG_UPDATE envelope
func NewSongUpdateMessage(u SongUpdate) (Message, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeSongUpdate, Data: data}, nil
}

// StoppedMessage is the envelope emitted once when the page goes away
func StoppedMessage() Message {
	return Message{Type: TypeSongUpdate, Data: json.RawMessage(`{"isPlaying":false}`)}
}

// DebugStatus is the DEBUG_PAGE reply
type DebugStatus struct {
	Status string `json:"status"`
}
