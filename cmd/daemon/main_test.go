package main

import (
	"path/filepath"
	"testing"

	"github.com/genricoloni/ytmpresence/internal/config"
	"go.uber.org/fx"
)

// TestAppGraphValidity verifies that the dependency graph is resolvable.
// This test will fail if you forget an fx.Provide for a required interface.
func TestAppGraphValidity(t *testing.T) {
	err := fx.ValidateApp(AppOptions)
	if err != nil {
		t.Errorf("Dependency graph is not valid: %v", err)
	}
}

// TestNewLogger specifically verifies the logger configuration
func TestNewLogger(t *testing.T) {
	logger, err := newLogger(&config.AppConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	logger.Info("Test logger initialization")

	if _, err := newLogger(&config.AppConfig{LogLevel: "loud"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

// TestEndToEndStartup starts and stops the daemon with no Discord client around.
// The relay keeps retrying in the background; startup must not depend on it.
func TestEndToEndStartup(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv("TMPDIR", dir)
	t.Setenv("YTMP_RELAY_CLIENT_ID", "1234567890")
	t.Setenv("YTMP_RELAY_ADDR", "127.0.0.1:0")
	t.Setenv("YTMP_HISTORY_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("YTMP_ARTWORK_ENABLED", "false")

	app := fx.New(
		AppOptions,
		fx.NopLogger, // Silence Fx logs during tests
	)
	if err := app.Err(); err != nil {
		t.Fatalf("App failed to build: %v", err)
	}

	if err := app.Start(t.Context()); err != nil {
		t.Fatalf("App failed to start: %v", err)
	}

	if err := app.Stop(t.Context()); err != nil {
		t.Fatalf("App failed to stop: %v", err)
	}
}

func TestMissingClientID(t *testing.T) {
	t.Setenv("YTMP_RELAY_CLIENT_ID", "")
	t.Setenv("YTMP_HISTORY_ENABLED", "false")

	app := fx.New(AppOptions, fx.NopLogger)
	if app.Err() == nil {
		t.Fatal("expected the graph to fail without a client id")
	}
}
