// Package tracker polls the player and publishes state changes across the bridge.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

// ErrStopped is returned by Start after Stop
var ErrStopped = errors.New("tracker stopped")

const (
	defaultQueueSize       = 16
	defaultSendTimeout     = 5 * time.Second
	defaultStopSendTimeout = 2 * time.Second
	debugStatus            = "Debug info logged"
)

// Inspector is implemented by observers that can describe what they see
type Inspector interface {
	Inspect(ctx context.Context) (string, error)
}

// Options tunes the polling loop
type Options struct {
	PollInterval time.Duration
	StartupDelay time.Duration
	QueueSize    int
}

// Tracker is the change detector: it polls an Observer on a fixed interval and
// hands a SONG_UPDATE to the outbox whenever title, artist or play state move.
type Tracker struct {
	logger   *zap.Logger
	observer domain.Observer
	channel  domain.Channel
	opts     Options

	sendTimeout     time.Duration
	stopSendTimeout time.Duration

	runMu    sync.Mutex // serializes Start and Stop
	cancel   context.CancelFunc
	loopDone chan struct{}

	mu              sync.Mutex
	baseline        *domain.SongObservation
	stopped         bool
	lastDropWarning time.Time

	outbox     chan outgoing
	senderOnce sync.Once
	senderDone chan struct{}
}

// outgoing is a queued update and the observation it was built from
type outgoing struct {
	msg domain.Message
	obs domain.SongObservation
}

// New creates a tracker. Nothing runs until Start.
func New(logger *zap.Logger, observer domain.Observer, channel domain.Channel, opts Options) *Tracker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Tracker{
		logger:          logger,
		observer:        observer,
		channel:         channel,
		opts:            opts,
		sendTimeout:     defaultSendTimeout,
		stopSendTimeout: defaultStopSendTimeout,
		outbox:          make(chan outgoing, opts.QueueSize),
		senderDone:      make(chan struct{}),
	}
}

// Start launches the polling loop and returns immediately. Calling it while a
// loop is running replaces that loop; the last emitted state is kept.
func (t *Tracker) Start(ctx context.Context) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	if t.cancel != nil {
		t.logger.Info("Restarting tracker loop")
		t.cancel()
		<-t.loopDone
	}

	t.senderOnce.Do(func() { go t.runSender() })

	// The loop outlives the caller's (startup) context
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	t.cancel, t.loopDone = cancel, done

	go t.runLoop(loopCtx, done)

	t.logger.Info("Tracker started",
		zap.Duration("interval", t.opts.PollInterval),
		zap.Duration("startupDelay", t.opts.StartupDelay))
	return nil
}

// Stop cancels the loop, flushes pending messages and sends the final stopped
// update. Errors of that last send are swallowed. Safe to call more than once.
func (t *Tracker) Stop(ctx context.Context) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		<-t.loopDone
		t.cancel = nil
	}

	// Drain whatever the loop queued before the stop marker goes out
	t.senderOnce.Do(func() { go t.runSender() })
	close(t.outbox)
	select {
	case <-t.senderDone:
	case <-ctx.Done():
		t.logger.Warn("Outbox not drained before shutdown deadline")
	}

	sendCtx, cancel := context.WithTimeout(ctx, t.stopSendTimeout)
	defer cancel()
	if err := t.channel.Send(sendCtx, domain.StoppedMessage()); err != nil {
		t.logger.Debug("Final stopped update not delivered", zap.Error(err))
	}

	t.logger.Info("Tracker stopped")
	return nil
}

// Current takes a fresh reading for GET_CURRENT_SONG. Nil means nothing is loaded.
func (t *Tracker) Current(ctx context.Context) *domain.SongObservation {
	obs, ok := t.observer.Observe(ctx)
	if !ok {
		return nil
	}
	return &obs
}

// Debug logs the observer's diagnostic report for DEBUG_PAGE
func (t *Tracker) Debug(ctx context.Context) domain.DebugStatus {
	inspector, ok := t.observer.(Inspector)
	if !ok {
		t.logger.Warn("Observer does not support inspection")
		return domain.DebugStatus{Status: debugStatus}
	}

	report, err := inspector.Inspect(ctx)
	if err != nil {
		t.logger.Warn("Debug inspection failed", zap.Error(err))
	} else {
		t.logger.Info("Page debug report", zap.String("report", report))
	}
	return domain.DebugStatus{Status: debugStatus}
}

// runLoop waits out the startup delay then ticks until cancelled
func (t *Tracker) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	delay := time.NewTimer(t.opts.StartupDelay)
	defer delay.Stop()

	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Tracker loop stopped")
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick runs one poll. It reports whether an update was queued.
func (t *Tracker) tick(ctx context.Context) bool {
	// A reading that outlives the interval is abandoned
	observeCtx, cancel := context.WithTimeout(ctx, t.opts.PollInterval)
	obs, ok := t.observer.Observe(observeCtx)
	cancel()
	if !ok {
		// One unreadable poll is not a stop; only Stop emits that
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}
	if t.baseline != nil && t.baseline.SameState(obs) {
		return false
	}

	msg, err := domain.NewSongUpdateMessage(domain.UpdateFromObservation(obs))
	if err != nil {
		t.logger.Error("Failed to encode song update", zap.Error(err))
		return false
	}

	select {
	case t.outbox <- outgoing{msg: msg, obs: obs}:
	default:
		t.logQueueFullWarning()
		return false
	}

	t.baseline = &obs
	t.logger.Info("Song state changed",
		zap.String("title", obs.Title),
		zap.String("artist", obs.Artist),
		zap.Bool("playing", obs.IsPlaying))
	return true
}

// runSender delivers queued messages one at a time. A failed delivery is
// dropped and forgets the baseline it set, so the next tick sends it again.
func (t *Tracker) runSender() {
	defer close(t.senderDone)

	for out := range t.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), t.sendTimeout)
		err := t.channel.Send(ctx, out.msg)
		cancel()
		if err != nil {
			t.logger.Warn("Failed to deliver update, retrying next tick", zap.Error(err))
			t.forget(out.obs)
		}
	}
}

// forget clears the baseline if it still holds obs
func (t *Tracker) forget(obs domain.SongObservation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.baseline != nil && t.baseline.SameState(obs) {
		t.baseline = nil
	}
}

// logQueueFullWarning is rate limited to avoid log spam while the relay is
// unreachable. Caller holds t.mu.
func (t *Tracker) logQueueFullWarning() {
	const warningInterval = 5 * time.Second
	now := time.Now()

	if now.Sub(t.lastDropWarning) >= warningInterval {
		t.logger.Warn("Outbox full, dropping update (relay may be slow or unreachable)",
			zap.Int("capacity", cap(t.outbox)))
		t.lastDropWarning = now
	}
}
