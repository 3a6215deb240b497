package relay

import (
	"context"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"github.com/genricoloni/ytmpresence/internal/rpc"
	"go.uber.org/zap"
)

const artworkTimeout = 15 * time.Second

// handle applies one event. It reports true when the loop must exit.
func (r *Relay) handle(ev event) bool {
	switch ev := ev.(type) {
	case updateEvent:
		r.onUpdate(ev.update)
	case connectDueEvent, reconnectDueEvent:
		r.reconnectStop = nil
		r.beginConnect()
	case connectedEvent:
		r.onConnected(ev)
	case connectFailedEvent:
		r.onConnectFailed(ev)
	case connectionLostEvent:
		r.onConnectionLost(ev.gen, ev.err)
	case flushDueEvent:
		r.flushStop = nil
		r.flush()
	case refreshTickEvent:
		r.refreshStop = nil
		r.onRefresh()
	case artworkResolvedEvent:
		r.onArtwork(ev)
	case stateQueryEvent:
		ev.reply <- r.state.Clone()
	case shutdownEvent:
		r.onShutdown(ev.ctx)
		return true
	default:
		r.logger.Warn("Unknown relay event")
	}
	return false
}

// onUpdate keeps only the newest update; it is applied now if possible
func (r *Relay) onUpdate(u domain.SongUpdate) {
	if r.shuttingDown {
		return
	}
	r.pending = &u
	if r.state.Connection != domain.Connected {
		r.logger.Debug("Not connected, buffering latest update",
			zap.String("connection", string(r.state.Connection)))
		return
	}
	r.flush()
}

// flush applies the pending update, or re-sends the current activity, when
// the rate limiter has a token. Otherwise a flush is scheduled.
func (r *Relay) flush() {
	if r.pending == nil && !r.resend {
		return
	}
	if r.state.Connection != domain.Connected {
		return
	}
	if !r.reserve() {
		return
	}

	if r.pending != nil {
		u := *r.pending
		r.pending = nil
		r.resend = false
		r.apply(u)
		return
	}

	r.resend = false
	if r.state.Current != nil {
		r.send()
	}
}

// reserve takes a rate-limit token or schedules a flush for when one frees up
func (r *Relay) reserve() bool {
	now := r.now()
	res := r.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false
	}
	delay := res.DelayFrom(now)
	if delay <= 0 {
		return true
	}
	res.CancelAt(now)

	if r.flushStop == nil {
		r.logger.Debug("Activity update throttled", zap.Duration("retryIn", delay))
		r.flushStop = r.after(delay, func() { r.post(flushDueEvent{}) })
	}
	return false
}

// apply projects a full-state update onto PresenceState and the transport
func (r *Relay) apply(u domain.SongUpdate) {
	if u.Stopped() {
		r.clear("stopped")
		return
	}

	obs, ok := u.Observation()
	if !ok {
		r.logger.Warn("Ignoring update without title")
		return
	}

	if !obs.IsPlaying && r.opts.PausedBehavior != PausedShow {
		r.clear("paused")
		return
	}

	if r.state.Current == nil || !r.state.Current.SameTrack(obs) {
		r.state.ActivitySince = r.now()
		r.recordPlay(obs)
		r.logger.Info("Now playing",
			zap.String("title", obs.Title),
			zap.String("artist", obs.Artist))
	}
	r.state.Current = &obs

	if obs.AlbumArtURL != r.artSource {
		r.artSource = obs.AlbumArtURL
		r.artURL = ""
		r.resolveArtwork(obs.AlbumArtURL)
	}

	r.send()
}

// clear removes the activity and forgets the current song
func (r *Relay) clear(reason string) {
	r.state.Current = nil
	r.state.ActivitySince = time.Time{}
	r.artSource, r.artURL = "", ""
	r.stopTimer(&r.refreshStop)

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.SendTimeout)
	defer cancel()
	if err := r.transport.ClearActivity(ctx); err != nil {
		r.handleSendError(err)
		return
	}
	r.logger.Info("Presence cleared", zap.String("reason", reason))
}

// send pushes the activity for the current song
func (r *Relay) send() {
	activity := r.buildActivity()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.SendTimeout)
	defer cancel()
	if err := r.transport.SetActivity(ctx, activity); err != nil {
		r.handleSendError(err)
		return
	}
	r.logger.Debug("Activity sent", zap.String("details", activity.Details))
	r.scheduleRefresh()
}

func (r *Relay) handleSendError(err error) {
	if rpc.IsConnectionLost(err) {
		r.logger.Warn("Presence connection lost while sending", zap.Error(err))
		r.onConnectionLost(r.generation, err)
		return
	}
	// Next change or refresh will retry
	r.logger.Warn("Activity update failed, dropping", zap.Error(err))
}

func (r *Relay) beginConnect() {
	if r.shuttingDown || r.state.Connection != domain.Disconnected {
		return
	}

	r.state.Connection = domain.Connecting
	r.generation++
	gen := r.generation

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ConnectTimeout)
	r.dialCancel = cancel

	r.logger.Debug("Connecting presence transport", zap.Int("attempt", r.retries+1))
	r.spawn(func() {
		defer cancel()
		lost, err := r.transport.Connect(ctx)
		if err != nil {
			r.post(connectFailedEvent{gen: gen, err: err})
			return
		}
		r.post(connectedEvent{gen: gen, lost: lost})
	})
}

func (r *Relay) onConnected(ev connectedEvent) {
	if ev.gen != r.generation || r.shuttingDown {
		return
	}

	r.state.Connection = domain.Connected
	r.retries = 0
	r.state.RetriesExhausted = false
	r.dialCancel = nil
	r.logger.Info("Presence transport connected")

	if ev.lost != nil {
		gen := ev.gen
		go func() {
			err, ok := <-ev.lost
			if !ok || err == nil {
				err = rpc.ErrConnectionClosed
			}
			r.post(connectionLostEvent{gen: gen, err: err})
		}()
	}

	// Restore what was showing before the drop unless something newer arrived
	if r.pending == nil && r.state.Current != nil {
		r.resend = true
	}
	r.flush()
}

func (r *Relay) onConnectFailed(ev connectFailedEvent) {
	if ev.gen != r.generation {
		return
	}
	r.dialCancel = nil
	r.state.Connection = domain.Disconnected
	if r.shuttingDown {
		return
	}

	r.retries++
	if r.opts.MaxRetries > 0 && r.retries >= r.opts.MaxRetries {
		r.state.RetriesExhausted = true
		r.logger.Error("Presence transport unreachable, giving up; manual restart required",
			zap.Int("attempts", r.retries),
			zap.Error(ev.err))
		return
	}

	delay := r.backoff(r.retries, ev.err)
	r.logger.Warn("Presence transport connect failed",
		zap.Int("attempt", r.retries),
		zap.Duration("retryIn", delay),
		zap.Error(ev.err))
	r.scheduleReconnect(delay)
}

func (r *Relay) onConnectionLost(gen int, err error) {
	if gen != r.generation || r.state.Connection != domain.Connected {
		return
	}

	r.state.Connection = domain.Disconnected
	r.stopTimer(&r.refreshStop)
	if closeErr := r.transport.Close(); closeErr != nil {
		r.logger.Debug("Transport close after loss failed", zap.Error(closeErr))
	}
	if r.shuttingDown {
		return
	}

	delay := r.backoff(0, err)
	r.logger.Warn("Presence connection lost, reconnecting",
		zap.Duration("retryIn", delay),
		zap.Error(err))
	r.scheduleReconnect(delay)
}

func (r *Relay) scheduleReconnect(delay time.Duration) {
	r.stopTimer(&r.reconnectStop)
	r.reconnectStop = r.after(delay, func() { r.post(reconnectDueEvent{}) })
}

// backoff doubles from the base per failed attempt up to the max. Credential
// rejections wait at least AuthRetryDelay.
func (r *Relay) backoff(failures int, err error) time.Duration {
	delay := r.opts.RetryBaseDelay
	for i := 1; i < failures && delay < r.opts.RetryMaxDelay; i++ {
		delay *= 2
	}
	if delay > r.opts.RetryMaxDelay {
		delay = r.opts.RetryMaxDelay
	}
	if rpc.IsAuthentication(err) && delay < r.opts.AuthRetryDelay {
		delay = r.opts.AuthRetryDelay
	}
	return delay
}

func (r *Relay) scheduleRefresh() {
	r.stopTimer(&r.refreshStop)
	if r.opts.RefreshInterval <= 0 || r.state.Current == nil {
		return
	}
	r.refreshStop = r.after(r.opts.RefreshInterval, func() { r.post(refreshTickEvent{}) })
}

// onRefresh re-sends the unchanged activity to keep the display alive
func (r *Relay) onRefresh() {
	if r.state.Connection != domain.Connected || r.state.Current == nil {
		return
	}
	if !r.limiter.AllowN(r.now(), 1) {
		// Busy window; try again next interval
		r.scheduleRefresh()
		return
	}
	r.logger.Debug("Refreshing activity")
	r.send()
}

func (r *Relay) resolveArtwork(source string) {
	if r.artwork == nil || source == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), artworkTimeout)
		defer cancel()
		resolved, err := r.artwork.Resolve(ctx, source)
		r.post(artworkResolvedEvent{source: source, resolved: resolved, err: err})
	}()
}

// onArtwork swaps the image in if the song it was resolved for is still showing
func (r *Relay) onArtwork(ev artworkResolvedEvent) {
	if ev.source != r.artSource || r.state.Current == nil {
		return
	}
	if ev.err != nil || ev.resolved == "" {
		r.logger.Debug("Artwork unavailable, keeping default image", zap.Error(ev.err))
		return
	}

	r.artURL = ev.resolved
	if r.state.Connection == domain.Connected {
		r.resend = true
		r.flush()
	}
}

func (r *Relay) recordPlay(obs domain.SongObservation) {
	if r.history == nil {
		return
	}
	rec := domain.PlayRecord{
		Title:       obs.Title,
		Artist:      obs.Artist,
		AlbumArtURL: obs.AlbumArtURL,
		StartedAt:   r.state.ActivitySince,
	}
	if err := r.history.Record(rec); err != nil {
		r.logger.Warn("Failed to record play", zap.Error(err))
	}
}

func (r *Relay) onShutdown(ctx context.Context) {
	r.shuttingDown = true
	r.stopTimer(&r.reconnectStop)
	r.stopTimer(&r.flushStop)
	r.stopTimer(&r.refreshStop)
	if r.dialCancel != nil {
		r.dialCancel()
		r.dialCancel = nil
	}

	if r.state.Connection == domain.Connected {
		if err := r.transport.ClearActivity(ctx); err != nil {
			r.logger.Debug("Failed to clear activity on shutdown", zap.Error(err))
		}
	}
	if err := r.transport.Close(); err != nil {
		r.logger.Warn("Failed to close presence transport", zap.Error(err))
	}
	r.state.Connection = domain.Disconnected
}

func (r *Relay) stopTimer(stop *func() bool) {
	if *stop != nil {
		(*stop)()
		*stop = nil
	}
}
