package extractor

import (
	"strings"
	"testing"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"github.com/genricoloni/ytmpresence/internal/page"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	e := NewExtractor(zap.NewNop(), nil)
	e.now = func() time.Time { return fixedNow }
	return e
}

func mustParse(t *testing.T, body string) page.Document {
	t.Helper()
	doc, err := page.ParseString("<html><body>" + body + "</body></html>")
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return doc
}

const fullPlayer = `
<ytmusic-player-bar class="style-scope ytmusic-app">
  <div class="image style-scope ytmusic-player-bar"><img src="https://lh3.googleusercontent.com/abc=w60-h60-l90-rj"></div>
  <div class="content-info-wrapper style-scope ytmusic-player-bar">
    <yt-formatted-string class="title style-scope ytmusic-player-bar"> Bohemian Rhapsody </yt-formatted-string>
    <span class="subtitle style-scope ytmusic-player-bar"><a href="/channel/x">Queen</a> • <a href="/browse/y">A Night at the Opera</a> • 1975</span>
  </div>
  <span class="time-info style-scope ytmusic-player-bar">1:23 / 5:55</span>
  <tp-yt-paper-icon-button class="play-pause-button style-scope ytmusic-player-bar" aria-label="Pause"></tp-yt-paper-icon-button>
</ytmusic-player-bar>`

func TestExtract_FullPlayer(t *testing.T) {
	e := newTestExtractor()
	obs, ok := e.Extract(mustParse(t, fullPlayer))
	if !ok {
		t.Fatal("expected an observation")
	}

	want := domain.SongObservation{
		Title:           "Bohemian Rhapsody",
		Artist:          "Queen",
		AlbumArtURL:     "https://lh3.googleusercontent.com/abc=w60-h60-l90-rj",
		IsPlaying:       true,
		CurrentPosition: "1:23",
		TotalDuration:   "5:55",
		ObservedAt:      fixedNow,
	}
	if obs != want {
		t.Errorf("observation mismatch:\n got %+v\nwant %+v", obs, want)
	}
}

func TestExtract_Absent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "No Player Bar",
			body: `<div class="title">Orphan</div>`,
		},
		{
			name: "Player Hidden Inline",
			body: `<ytmusic-player-bar style="display: none"><div class="title">Song</div></ytmusic-player-bar>`,
		},
		{
			name: "Player Hidden Computed",
			body: `<ytmusic-player-bar data-ytmp-display="none"><div class="title">Song</div></ytmusic-player-bar>`,
		},
		{
			name: "No Title Element",
			body: `<ytmusic-player-bar><span class="subtitle">Queen</span><span class="time-info">1:00 / 2:00</span></ytmusic-player-bar>`,
		},
		{
			name: "Blank Title",
			body: `<ytmusic-player-bar><div class="title">   </div><span class="subtitle">Queen</span></ytmusic-player-bar>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, ok := newTestExtractor().Extract(mustParse(t, tt.body))
			if ok {
				t.Errorf("expected no observation, got %+v", obs)
			}
			if obs.Title != "" {
				t.Errorf("absent observation must not carry a title, got %q", obs.Title)
			}
		})
	}
}

func TestExtract_NilDocument(t *testing.T) {
	if _, ok := newTestExtractor().Extract(nil); ok {
		t.Error("expected no observation for a nil document")
	}
}

func TestExtract_FieldFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(*testing.T, domain.SongObservation)
	}{
		{
			name: "Title From Second Selector",
			body: `<ytmusic-player-bar><div class="content-info-wrapper"><div class="title">Fallback</div></div></ytmusic-player-bar>`,
			check: func(t *testing.T, o domain.SongObservation) {
				if o.Title != "Fallback" {
					t.Errorf("expected 'Fallback', got %q", o.Title)
				}
			},
		},
		{
			name: "Artist Without Link Split On Bullet",
			body: `<ytmusic-player-bar><div class="title">Song</div><span class="subtitle">Daft Punk • Discovery • 2001</span></ytmusic-player-bar>`,
			check: func(t *testing.T, o domain.SongObservation) {
				if o.Artist != "Daft Punk" {
					t.Errorf("expected 'Daft Punk', got %q", o.Artist)
				}
			},
		},
		{
			name: "Artist Missing Is Tolerated",
			body: `<ytmusic-player-bar><div class="title">Song</div></ytmusic-player-bar>`,
			check: func(t *testing.T, o domain.SongObservation) {
				if o.Artist != "" {
					t.Errorf("expected empty artist, got %q", o.Artist)
				}
			},
		},
		{
			name: "Image Skips Empty Src",
			body: `<ytmusic-player-bar><div class="title">Song</div><div class="image"><img src=""></div><img class="ytmusic-player-bar" src="https://img/2"></ytmusic-player-bar>`,
			check: func(t *testing.T, o domain.SongObservation) {
				if o.AlbumArtURL != "https://img/2" {
					t.Errorf("expected second image, got %q", o.AlbumArtURL)
				}
			},
		},
		{
			name: "Time Without Separator Is Ignored",
			body: `<ytmusic-player-bar><div class="title">Song</div><span class="time-info">1:23</span></ytmusic-player-bar>`,
			check: func(t *testing.T, o domain.SongObservation) {
				if o.CurrentPosition != "" || o.TotalDuration != "" {
					t.Errorf("expected no time, got %q/%q", o.CurrentPosition, o.TotalDuration)
				}
			},
		},
		{
			name: "Time With Three Segments Is Ignored",
			body: `<ytmusic-player-bar><div class="title">Song</div><span class="time-info">1:23 / 4:00 / 9:00</span></ytmusic-player-bar>`,
			check: func(t *testing.T, o domain.SongObservation) {
				if o.CurrentPosition != "" {
					t.Errorf("expected no position, got %q", o.CurrentPosition)
				}
			},
		},
		{
			name: "Paused Player",
			body: `<ytmusic-player-bar><div class="title">Song</div><span class="time-info">0:00 / 3:00</span><div class="play-pause-button" aria-label="Play"></div></ytmusic-player-bar>`,
			check: func(t *testing.T, o domain.SongObservation) {
				if o.IsPlaying {
					t.Error("expected paused")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, ok := newTestExtractor().Extract(mustParse(t, tt.body))
			if !ok {
				t.Fatal("expected an observation")
			}
			tt.check(t, obs)
		})
	}
}

func TestInspect_Report(t *testing.T) {
	e := newTestExtractor()
	report := e.Inspect(mustParse(t, fullPlayer))

	if len(report.Groups) != 6 {
		t.Fatalf("expected 6 selector groups, got %d", len(report.Groups))
	}

	out := report.String()
	for _, want := range []string{
		"Player Bar:",
		"ytmusic-player-bar: ✓",
		`aria-label="Pause"`,
		`title="Bohemian Rhapsody"`,
		"Media elements: none",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
