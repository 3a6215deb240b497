// Package extractor reads the now-playing state out of a YouTube Music DOM snapshot.
package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"github.com/genricoloni/ytmpresence/internal/page"
	"go.uber.org/zap"
)

// Extractor turns a DOM snapshot into a SongObservation
type Extractor struct {
	logger   *zap.Logger
	resolver *Resolver
	now      func() time.Time
}

// NewExtractor creates an extractor with the given pause-label tokens
func NewExtractor(logger *zap.Logger, pauseTokens []string) *Extractor {
	return &Extractor{
		logger:   logger,
		resolver: NewResolver(pauseTokens),
		now:      time.Now,
	}
}

// Extract reads the player. It returns false when no track is loaded or the
// player is not displayed. It never panics.
func (e *Extractor) Extract(doc page.Node) (obs domain.SongObservation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Extraction aborted", zap.String("panic", fmt.Sprint(r)))
			obs, ok = domain.SongObservation{}, false
		}
	}()

	if doc == nil {
		return domain.SongObservation{}, false
	}

	player, ok := resolvePlayer(doc)
	if !ok {
		e.logger.Debug("Player bar not visible or not found")
		return domain.SongObservation{}, false
	}

	// A player without a title has no track loaded, which is not "paused"
	title, ok := resolveTitle(doc)
	if !ok {
		e.logger.Debug("No song title found, player might not be active")
		return domain.SongObservation{}, false
	}

	artist, _ := resolveArtist(doc)
	art, _ := resolveAlbumArt(doc)
	position, duration, _ := resolveTime(doc)

	isPlaying, signal := e.resolver.Resolve(PlaybackInput{
		Doc:      doc,
		Player:   player,
		Position: position,
	})

	obs, ok = domain.NewSongObservation(title, artist, art, isPlaying, position, duration, e.now())
	if ok {
		e.logger.Debug("Song extracted",
			zap.String("title", obs.Title),
			zap.String("artist", obs.Artist),
			zap.Bool("playing", obs.IsPlaying),
			zap.String("signal", signal))
	}
	return obs, ok
}

// DOMObserver pairs a page source with an extractor
type DOMObserver struct {
	logger    *zap.Logger
	source    page.Source
	extractor *Extractor
}

// NewDOMObserver creates an observer that snapshots source on every call
func NewDOMObserver(logger *zap.Logger, source page.Source, extractor *Extractor) *DOMObserver {
	return &DOMObserver{logger: logger, source: source, extractor: extractor}
}

// Observe snapshots the page and extracts. Snapshot failures count as "no observation".
func (o *DOMObserver) Observe(ctx context.Context) (domain.SongObservation, bool) {
	doc, err := o.source.Snapshot(ctx)
	if err != nil {
		o.logger.Debug("Snapshot failed", zap.Error(err))
		return domain.SongObservation{}, false
	}
	return o.extractor.Extract(doc)
}

// Inspect renders the selector report for the current page
func (o *DOMObserver) Inspect(ctx context.Context) (string, error) {
	doc, err := o.source.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot failed: %w", err)
	}
	return o.extractor.Inspect(doc).String(), nil
}

// Close releases the page source
func (o *DOMObserver) Close() error {
	return o.source.Close()
}
