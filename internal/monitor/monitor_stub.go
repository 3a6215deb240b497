//go:build !linux
// +build !linux

package monitor

import (
	"context"
	"fmt"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

// MprisObserver stub for non-Linux platforms
type MprisObserver struct {
	logger *zap.Logger
}

// NewMprisObserver creates a stub observer that never observes anything
func NewMprisObserver(logger *zap.Logger, players []string, pageMatch string) *MprisObserver {
	logger.Warn("MPRIS observation is only supported on Linux systems")
	return &MprisObserver{logger: logger}
}

// Observe always reports no observation
func (m *MprisObserver) Observe(ctx context.Context) (domain.SongObservation, bool) {
	return domain.SongObservation{}, false
}

// Inspect returns an error indicating MPRIS is not available
func (m *MprisObserver) Inspect(ctx context.Context) (string, error) {
	return "", fmt.Errorf("MPRIS monitoring is only supported on Linux systems")
}

// Close is a no-op on non-Linux platforms
func (m *MprisObserver) Close() error {
	return nil
}
