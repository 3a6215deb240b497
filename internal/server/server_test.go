package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePresence struct {
	updates []domain.SongUpdate
	state   domain.PresenceState
	err     error
}

func (f *fakePresence) Update(_ context.Context, u domain.SongUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, u)
	return nil
}

func (f *fakePresence) Snapshot(context.Context) (domain.PresenceState, error) {
	return f.state, f.err
}

type fakeHistory struct {
	plays []domain.PlayRecord
	limit int
}

func (f *fakeHistory) Record(rec domain.PlayRecord) error {
	f.plays = append(f.plays, rec)
	return nil
}

func (f *fakeHistory) Recent(limit int) ([]domain.PlayRecord, error) {
	f.limit = limit
	return f.plays, nil
}

func (f *fakeHistory) Close() error { return nil }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRelayServer_Messages(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		expected []domain.SongUpdate
	}{
		{
			name:     "song update",
			body:     `{"type":"SONG_UPDATE","data":{"title":"Song A","artist":"Artist","isPlaying":true}}`,
			status:   http.StatusOK,
			expected: []domain.SongUpdate{{Title: "Song A", Artist: "Artist", IsPlaying: true}},
		},
		{
			name:     "stopped",
			body:     `{"type":"SONG_UPDATE","data":{"isPlaying":false}}`,
			status:   http.StatusOK,
			expected: []domain.SongUpdate{{}},
		},
		{
			name:   "playing without title",
			body:   `{"type":"SONG_UPDATE","data":{"isPlaying":true}}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "query type",
			body:   `{"type":"GET_CURRENT_SONG"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "not json",
			body:   `nope`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePresence{}
			srv := NewRelayServer(zap.NewNop(), p, nil)

			w := do(t, srv, http.MethodPost, "/messages", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.expected, p.updates)
		})
	}
}

func TestRelayServer_LegacyStatus(t *testing.T) {
	p := &fakePresence{}
	srv := NewRelayServer(zap.NewNop(), p, nil)

	w := do(t, srv, http.MethodPost, "/update-status", `{"songTitle":"Song A","artist":"Artist","albumArt":"https://example.com/a.jpg"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = do(t, srv, http.MethodPost, "/update-status", `{"songTitle":"   "}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, p.updates, 2)
	assert.Equal(t, domain.SongUpdate{Title: "Song A", Artist: "Artist", AlbumArtURL: "https://example.com/a.jpg", IsPlaying: true}, p.updates[0])
	assert.True(t, p.updates[1].Stopped())
}

func TestRelayServer_ShutDownRelay(t *testing.T) {
	p := &fakePresence{err: errors.New("relay shut down")}
	srv := NewRelayServer(zap.NewNop(), p, nil)

	w := do(t, srv, http.MethodPost, "/messages", `{"type":"SONG_UPDATE","data":{"isPlaying":false}}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, srv, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRelayServer_Status(t *testing.T) {
	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	obs, ok := domain.NewSongObservation("Song A", "Artist", "", true, "0:10", "3:00", time.Time{})
	require.True(t, ok)

	p := &fakePresence{state: domain.PresenceState{Current: &obs, ActivitySince: since, Connection: domain.Connected}}
	srv := NewRelayServer(zap.NewNop(), p, nil)

	w := do(t, srv, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"connection": "Connected",
		"current": {"title":"Song A","artist":"Artist","isPlaying":true,"currentPosition":"0:10","totalDuration":"3:00"},
		"activitySince": "2024-05-01T12:00:00Z"
	}`, w.Body.String())

	p.state = domain.PresenceState{Connection: domain.Disconnected}
	w = do(t, srv, http.MethodGet, "/status", "")
	assert.JSONEq(t, `{"connection":"Disconnected","current":null}`, w.Body.String())

	p.state = domain.PresenceState{Connection: domain.Disconnected, RetriesExhausted: true}
	w = do(t, srv, http.MethodGet, "/status", "")
	assert.JSONEq(t, `{"connection":"Disconnected","current":null,"retriesExhausted":true}`, w.Body.String())
}

func TestRelayServer_History(t *testing.T) {
	hist := &fakeHistory{plays: []domain.PlayRecord{
		{Title: "Song B", Artist: "Artist", StartedAt: time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)},
	}}
	srv := NewRelayServer(zap.NewNop(), &fakePresence{}, hist)

	w := do(t, srv, http.MethodGet, "/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, hist.limit)

	var plays []domain.PlayRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&plays))
	require.Len(t, plays, 1)
	assert.Equal(t, "Song B", plays[0].Title)

	do(t, srv, http.MethodGet, "/history", "")
	assert.Equal(t, defaultHistoryLimit, hist.limit)

	do(t, srv, http.MethodGet, "/history?limit=100000", "")
	assert.Equal(t, maxHistoryLimit, hist.limit)

	w = do(t, srv, http.MethodGet, "/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	noHist := NewRelayServer(zap.NewNop(), &fakePresence{}, nil)
	w = do(t, noHist, http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	for _, srv := range []*Server{
		NewRelayServer(zap.NewNop(), &fakePresence{}, nil),
		NewScraperServer(zap.NewNop(), &fakeScraper{}),
	} {
		w := do(t, srv, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	}
}

type fakeScraper struct {
	current *domain.SongObservation
	debugs  int
}

func (f *fakeScraper) Current(context.Context) *domain.SongObservation { return f.current }

func (f *fakeScraper) Debug(context.Context) domain.DebugStatus {
	f.debugs++
	return domain.DebugStatus{Status: "Debug info logged"}
}

func TestScraperServer(t *testing.T) {
	obs, ok := domain.NewSongObservation("Song A", "Artist", "https://example.com/a.jpg", false, "", "", time.Time{})
	require.True(t, ok)

	sc := &fakeScraper{}
	srv := NewScraperServer(zap.NewNop(), sc)

	w := do(t, srv, http.MethodPost, "/messages", `{"type":"GET_CURRENT_SONG"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))

	sc.current = &obs
	w = do(t, srv, http.MethodGet, "/current-song", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"title":"Song A","artist":"Artist","albumArtUrl":"https://example.com/a.jpg","isPlaying":false}`, w.Body.String())

	w = do(t, srv, http.MethodPost, "/messages", `{"type":"DEBUG_PAGE"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"Debug info logged"}`, w.Body.String())
	assert.Equal(t, 1, sc.debugs)

	w = do(t, srv, http.MethodPost, "/messages", `{"type":"SONG_UPDATE","data":{"isPlaying":false}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	srv := NewRelayServer(zap.NewNop(), &fakePresence{}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
