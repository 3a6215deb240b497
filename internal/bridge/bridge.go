// Package bridge carries messages between the scraper and the relay.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/genricoloni/ytmpresence/internal/domain"
)

// ErrInvalidMessage marks an envelope that failed validation
var ErrInvalidMessage = errors.New("invalid message")

// Decode parses and validates an envelope
func Decode(data []byte) (domain.Message, error) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch msg.Type {
	case domain.TypeSongUpdate:
		if _, err := DecodeUpdate(msg); err != nil {
			return domain.Message{}, err
		}
	case domain.TypeGetCurrentSong, domain.TypeDebugPage:
	case "":
		return domain.Message{}, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return domain.Message{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}
	return msg, nil
}

// DecodeUpdate extracts the SONG_UPDATE payload. A playing update without a
// title is rejected; the stopped variant is not.
func DecodeUpdate(msg domain.Message) (domain.SongUpdate, error) {
	if msg.Type != domain.TypeSongUpdate {
		return domain.SongUpdate{}, fmt.Errorf("%w: expected %s, got %s", ErrInvalidMessage, domain.TypeSongUpdate, msg.Type)
	}
	if len(msg.Data) == 0 {
		return domain.SongUpdate{}, fmt.Errorf("%w: missing data", ErrInvalidMessage)
	}

	var u domain.SongUpdate
	if err := json.Unmarshal(msg.Data, &u); err != nil {
		return domain.SongUpdate{}, fmt.Errorf("%w: bad song update: %v", ErrInvalidMessage, err)
	}
	if u.Stopped() {
		return u, nil
	}
	if _, ok := u.Observation(); !ok {
		return domain.SongUpdate{}, fmt.Errorf("%w: playing update without title", ErrInvalidMessage)
	}
	return u, nil
}

// Encode renders an envelope for the wire
func Encode(msg domain.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}
