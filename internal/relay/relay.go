// Package relay projects song updates onto the presence transport.
//
// All state lives in a single event loop. Connect attempts, artwork lookups
// and timers run elsewhere and report back as events, so PresenceState is
// never touched concurrently.
package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/genricoloni/ytmpresence/internal/bridge"
	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrShutdown is returned once the loop has exited
var ErrShutdown = errors.New("relay shut down")

// Paused behaviors
const (
	PausedClear = "clear"
	PausedShow  = "show"
)

const eventBuffer = 64

// Options configures the relay
type Options struct {
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	AuthRetryDelay  time.Duration
	RefreshInterval time.Duration
	ConnectTimeout  time.Duration
	SendTimeout     time.Duration

	// UpdateBurst activity updates are allowed per UpdateWindow
	UpdateBurst  int
	UpdateWindow time.Duration

	DefaultImageKey string
	LargeImageText  string
	UnknownArtist   string
	PausedBehavior  string
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		MaxRetries:      10,
		RetryBaseDelay:  time.Second,
		RetryMaxDelay:   30 * time.Second,
		AuthRetryDelay:  15 * time.Second,
		RefreshInterval: 60 * time.Second,
		ConnectTimeout:  10 * time.Second,
		SendTimeout:     5 * time.Second,
		UpdateBurst:     5,
		UpdateWindow:    20 * time.Second,
		DefaultImageKey: "ytm_logo",
		LargeImageText:  "YouTube Music",
		UnknownArtist:   "Unknown Artist",
		PausedBehavior:  PausedClear,
	}
}

// Relay owns one PresenceState and the transport connection behind it
type Relay struct {
	logger    *zap.Logger
	transport domain.PresenceTransport
	artwork   domain.ArtworkResolver
	history   domain.HistoryStore
	opts      Options

	events  chan event
	done    chan struct{}
	started atomic.Bool

	// Seams for tests
	after func(d time.Duration, f func()) (stop func() bool)
	now   func() time.Time
	spawn func(f func())

	limiter *rate.Limiter

	// Loop-owned below this line
	state        domain.PresenceState
	pending      *domain.SongUpdate
	resend       bool
	retries      int
	shuttingDown bool
	generation   int
	dialCancel   context.CancelFunc
	artSource    string
	artURL       string

	reconnectStop func() bool
	flushStop     func() bool
	refreshStop   func() bool
}

// New creates a relay. artwork and history may be nil.
func New(logger *zap.Logger, transport domain.PresenceTransport, artwork domain.ArtworkResolver, history domain.HistoryStore, opts Options) *Relay {
	defaults := DefaultOptions()
	if opts.UpdateBurst <= 0 {
		opts.UpdateBurst = defaults.UpdateBurst
	}
	if opts.UpdateWindow <= 0 {
		opts.UpdateWindow = defaults.UpdateWindow
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaults.SendTimeout
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}
	if opts.PausedBehavior == "" {
		opts.PausedBehavior = PausedClear
	}

	per := opts.UpdateWindow / time.Duration(opts.UpdateBurst)
	return &Relay{
		logger:    logger,
		transport: transport,
		artwork:   artwork,
		history:   history,
		opts:      opts,
		events:    make(chan event, eventBuffer),
		done:      make(chan struct{}),
		after: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		now:     time.Now,
		spawn:   func(f func()) { go f() },
		limiter: rate.NewLimiter(rate.Every(per), opts.UpdateBurst),
		state:   domain.PresenceState{Connection: domain.Disconnected},
	}
}

// Start launches the event loop and the first connect attempt. It returns immediately.
func (r *Relay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	r.logger.Info("Presence relay starting")
	go r.run()
	r.post(connectDueEvent{})
	return nil
}

// Update hands a full-state update to the loop
func (r *Relay) Update(ctx context.Context, u domain.SongUpdate) error {
	select {
	case <-r.done:
		return ErrShutdown
	default:
	}

	select {
	case r.events <- updateEvent{update: u}:
		return nil
	case <-r.done:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage accepts a bridge envelope; anything but SONG_UPDATE is ignored
func (r *Relay) HandleMessage(ctx context.Context, msg domain.Message) {
	if msg.Type != domain.TypeSongUpdate {
		r.logger.Debug("Ignoring message", zap.String("type", string(msg.Type)))
		return
	}
	u, err := bridge.DecodeUpdate(msg)
	if err != nil {
		r.logger.Warn("Dropping invalid song update", zap.Error(err))
		return
	}
	if err := r.Update(ctx, u); err != nil {
		r.logger.Warn("Song update not accepted", zap.Error(err))
	}
}

// Snapshot returns a copy of the presence state
func (r *Relay) Snapshot(ctx context.Context) (domain.PresenceState, error) {
	reply := make(chan domain.PresenceState, 1)
	select {
	case r.events <- stateQueryEvent{reply: reply}:
	case <-r.done:
		return domain.PresenceState{}, ErrShutdown
	case <-ctx.Done():
		return domain.PresenceState{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-r.done:
		return domain.PresenceState{}, ErrShutdown
	case <-ctx.Done():
		return domain.PresenceState{}, ctx.Err()
	}
}

// Shutdown stops every timer, clears the activity if connected and closes the transport
func (r *Relay) Shutdown(ctx context.Context) error {
	ev := shutdownEvent{ctx: ctx}
	if !r.started.Load() {
		r.handle(ev)
		return nil
	}

	select {
	case r.events <- ev:
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-r.done:
		r.logger.Info("Presence relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) run() {
	defer close(r.done)
	for ev := range r.events {
		if stop := r.handle(ev); stop {
			return
		}
	}
}

// post delivers an event from a timer or worker goroutine
func (r *Relay) post(ev event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}
