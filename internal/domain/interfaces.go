package domain

import "context"

// Observer produces the current song reading.
// Implementations must not fail loudly: an unreadable player is simply "no observation".
type Observer interface {
	// Observe returns the current observation, or false when nothing is loaded
	Observe(ctx context.Context) (SongObservation, bool)
}

// Channel delivers messages across the scraper/relay boundary
type Channel interface {
	// Send delivers a message. Callers treat it as fire-and-forget.
	Send(ctx context.Context, msg Message) error
}

// PresenceTransport is the connection to the presence display service
//
//go:generate mockgen -destination=mocks/presence_transport_mock.go -package=mocks github.com/genricoloni/ytmpresence/internal/domain PresenceTransport
type PresenceTransport interface {
	// Connect dials, authenticates and waits for the ready event.
	// The returned channel receives one value (or is closed) when the
	// connection is lost afterwards.
	Connect(ctx context.Context) (<-chan error, error)

	// SetActivity replaces the displayed activity
	SetActivity(ctx context.Context, activity Activity) error

	// ClearActivity removes the displayed activity
	ClearActivity(ctx context.Context) error

	// Close tears the current connection down
	Close() error
}

// ArtworkResolver turns a raw thumbnail URL into one fit for display
type ArtworkResolver interface {
	// Resolve returns the URL to show, or an error if the art is unusable
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// HistoryStore persists the listening history
type HistoryStore interface {
	// Record appends a play
	Record(rec PlayRecord) error

	// Recent returns up to limit plays, newest first
	Recent(limit int) ([]PlayRecord, error)

	// Close releases the underlying file
	Close() error
}

// Fetcher defines the interface for retrieving album artwork
type Fetcher interface {
	// Fetch downloads image data from a URL
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageProcessor validates in-memory image data
type ImageProcessor interface {
	// Process decodes the image and reports its dimensions
	Process(ctx context.Context, imageData []byte) (ImageInfo, error)
}

// ImageInfo describes a decoded image
type ImageInfo struct {
	Width  int
	Height int
	Format string
}
