package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/genricoloni/ytmpresence/internal/bridge"
	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Presence is the relay surface the HTTP ingress drives
type Presence interface {
	Update(ctx context.Context, u domain.SongUpdate) error
	Snapshot(ctx context.Context) (domain.PresenceState, error)
}

type relayRoutes struct {
	logger   *zap.Logger
	presence Presence
	history  domain.HistoryStore
}

// legacyStatus is the body the legacy browser extension posts to /update-status
type legacyStatus struct {
	SongTitle string `json:"songTitle"`
	Artist    string `json:"artist"`
	AlbumArt  string `json:"albumArt"`
}

type statusResponse struct {
	Connection       domain.ConnectionState `json:"connection"`
	Current          *domain.SongUpdate     `json:"current"`
	ActivitySince    *time.Time             `json:"activitySince,omitempty"`
	RetriesExhausted bool                   `json:"retriesExhausted,omitempty"`
}

// NewRelayServer serves the daemon's ingress. history may be nil.
func NewRelayServer(logger *zap.Logger, presence Presence, history domain.HistoryStore) *Server {
	s := newServer(logger)
	h := &relayRoutes{logger: logger, presence: presence, history: history}

	s.router.Get("/healthz", s.health)
	s.router.Post("/messages", h.postMessage)
	s.router.Post("/update-status", h.postLegacyStatus)
	s.router.Get("/status", h.getStatus)
	s.router.Get("/history", h.getHistory)
	return s
}

func (h *relayRoutes) postMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := readMessage(r)
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	if msg.Type != domain.TypeSongUpdate {
		writeError(h.logger, w, http.StatusBadRequest, "relay only accepts "+string(domain.TypeSongUpdate))
		return
	}

	u, err := bridge.DecodeUpdate(msg)
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	h.accept(w, r, u)
}

func (h *relayRoutes) postLegacyStatus(w http.ResponseWriter, r *http.Request) {
	var body legacyStatus
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid body")
		return
	}

	u := domain.SongUpdate{
		Title:       body.SongTitle,
		Artist:      body.Artist,
		AlbumArtURL: body.AlbumArt,
		IsPlaying:   body.SongTitle != "",
	}
	if _, ok := u.Observation(); !ok {
		u = domain.SongUpdate{}
	}
	h.accept(w, r, u)
}

func (h *relayRoutes) accept(w http.ResponseWriter, r *http.Request, u domain.SongUpdate) {
	if err := h.presence.Update(r.Context(), u); err != nil {
		h.logger.Warn("Relay rejected update", zap.Error(err))
		writeError(h.logger, w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, map[string]bool{"success": true})
}

func (h *relayRoutes) getStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.presence.Snapshot(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(h.logger, w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}

	resp := statusResponse{Connection: state.Connection, RetriesExhausted: state.RetriesExhausted}
	if state.Current != nil {
		cur := domain.UpdateFromObservation(*state.Current)
		resp.Current = &cur
	}
	if !state.ActivitySince.IsZero() {
		since := state.ActivitySince
		resp.ActivitySince = &since
	}
	writeJSON(h.logger, w, http.StatusOK, resp)
}

func (h *relayRoutes) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(h.logger, w, http.StatusNotFound, "history disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(h.logger, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	plays, err := h.history.Recent(limit)
	if err != nil {
		h.logger.Error("Reading history failed", zap.Error(err))
		writeError(h.logger, w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, plays)
}
