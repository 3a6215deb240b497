package relay

import (
	"context"

	"github.com/genricoloni/ytmpresence/internal/domain"
)

// event is anything the loop reacts to
type event interface{}

type updateEvent struct {
	update domain.SongUpdate
}

// connectDueEvent starts the first attempt; reconnectDueEvent follows a backoff
type connectDueEvent struct{}

type reconnectDueEvent struct{}

// gen ties connection events to the attempt that produced them
type connectedEvent struct {
	gen  int
	lost <-chan error
}

type connectFailedEvent struct {
	gen int
	err error
}

type connectionLostEvent struct {
	gen int
	err error
}

type flushDueEvent struct{}

type refreshTickEvent struct{}

type artworkResolvedEvent struct {
	source   string
	resolved string
	err      error
}

type stateQueryEvent struct {
	reply chan domain.PresenceState
}

type shutdownEvent struct {
	ctx context.Context
}
