package server

import (
	"context"
	"net/http"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

// Scraper answers the page-side queries
type Scraper interface {
	Current(ctx context.Context) *domain.SongObservation
	Debug(ctx context.Context) domain.DebugStatus
}

type scraperRoutes struct {
	logger  *zap.Logger
	scraper Scraper
}

// NewScraperServer serves GET_CURRENT_SONG and DEBUG_PAGE
func NewScraperServer(logger *zap.Logger, scraper Scraper) *Server {
	s := newServer(logger)
	h := &scraperRoutes{logger: logger, scraper: scraper}

	s.router.Get("/healthz", s.health)
	s.router.Post("/messages", h.postMessage)
	s.router.Get("/current-song", h.getCurrentSong)
	return s
}

func (h *scraperRoutes) postMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := readMessage(r)
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	switch msg.Type {
	case domain.TypeGetCurrentSong:
		h.getCurrentSong(w, r)
	case domain.TypeDebugPage:
		writeJSON(h.logger, w, http.StatusOK, h.scraper.Debug(r.Context()))
	default:
		writeError(h.logger, w, http.StatusBadRequest, "scraper does not accept "+string(msg.Type))
	}
}

// getCurrentSong replies with the fresh observation, or null when nothing plays
func (h *scraperRoutes) getCurrentSong(w http.ResponseWriter, r *http.Request) {
	obs := h.scraper.Current(r.Context())
	if obs == nil {
		writeJSON(h.logger, w, http.StatusOK, nil)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, domain.UpdateFromObservation(*obs))
}
