package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/ytmpresence/internal/artwork"
	"github.com/genricoloni/ytmpresence/internal/bridge"
	"github.com/genricoloni/ytmpresence/internal/config"
	"github.com/genricoloni/ytmpresence/internal/domain"
	"github.com/genricoloni/ytmpresence/internal/fetcher"
	"github.com/genricoloni/ytmpresence/internal/history"
	"github.com/genricoloni/ytmpresence/internal/processor"
	"github.com/genricoloni/ytmpresence/internal/relay"
	"github.com/genricoloni/ytmpresence/internal/rpc"
	"github.com/genricoloni/ytmpresence/internal/server"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AppOptions wires the presence daemon
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		config.NewAppConfig,
		newPresenceTransport,
		newArtworkResolver,
		newHistoryStore,
		newRelay,
		newRelayServer,
	),

	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for a signal, or for a component to ask for shutdown
	select {
	case <-ctx.Done():
	case <-app.Wait():
	}

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a production zap logger at the configured level
func newLogger(appCfg *config.AppConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(appCfg.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

func newPresenceTransport(logger *zap.Logger, cfg *config.AppConfig) (domain.PresenceTransport, error) {
	if err := cfg.ValidateRelay(); err != nil {
		return nil, err
	}
	return rpc.NewPresenceTransport(logger, cfg.Relay.Transport, cfg.Relay.ClientID, cfg.Relay.BotToken)
}

// newArtworkResolver returns nil when artwork lookups are disabled
func newArtworkResolver(logger *zap.Logger, cfg *config.AppConfig) domain.ArtworkResolver {
	if !cfg.Artwork.Enabled {
		return nil
	}
	return artwork.NewResolver(logger,
		fetcher.NewHTTPFetcher(logger),
		processor.NewArtworkProcessor(logger, cfg.Artwork.MinSize),
		cfg.Artwork.Size)
}

// newHistoryStore returns nil when history is disabled
func newHistoryStore(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig) (domain.HistoryStore, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.NewBboltStore(logger, cfg.History.Path, cfg.History.MaxEntries)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func newRelay(logger *zap.Logger, transport domain.PresenceTransport, art domain.ArtworkResolver, hist domain.HistoryStore, cfg *config.AppConfig) *relay.Relay {
	opts := relay.DefaultOptions()
	opts.MaxRetries = cfg.Relay.MaxRetries
	opts.RetryBaseDelay = cfg.Relay.RetryBaseDelay
	opts.RetryMaxDelay = cfg.Relay.RetryMaxDelay
	opts.AuthRetryDelay = cfg.Relay.AuthRetryDelay
	opts.RefreshInterval = cfg.Relay.RefreshInterval
	opts.PausedBehavior = cfg.Relay.PausedBehavior
	opts.DefaultImageKey = cfg.Relay.DefaultImageKey
	opts.LargeImageText = cfg.Relay.LargeImageText
	opts.UnknownArtist = cfg.Relay.UnknownArtist
	return relay.New(logger, transport, art, hist, opts)
}

func newRelayServer(logger *zap.Logger, r *relay.Relay, hist domain.HistoryStore) *server.Server {
	return server.NewRelayServer(logger, r, hist)
}

// registerHooks starts the relay before its ingress and stops it after
func registerHooks(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *zap.Logger, cfg *config.AppConfig, r *relay.Relay, srv *server.Server) {
	var (
		cancel context.CancelFunc
		group  *errgroup.Group
	)
	cfg.LogSummary(logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("ytmpresence daemon started")
			return r.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return r.Shutdown(ctx)
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var baseCtx, runCtx context.Context
			baseCtx, cancel = context.WithCancel(context.Background())
			group, runCtx = errgroup.WithContext(baseCtx)

			group.Go(func() error {
				return srv.ListenAndServe(runCtx, cfg.Relay.Addr)
			})
			if cfg.Bridge.Kind == "redis" {
				group.Go(func() error {
					return subscribe(runCtx, logger, cfg.Bridge, r.HandleMessage)
				})
			}

			go func() {
				if err := group.Wait(); err != nil && baseCtx.Err() == nil {
					logger.Error("Ingress failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	})
}

// subscribe feeds SONG_UPDATEs published on the redis bridge into the relay
func subscribe(ctx context.Context, logger *zap.Logger, cfg config.BridgeConfig, handle bridge.Handler) error {
	client, err := bridge.NewRedisClient(ctx, bridge.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Channel:  cfg.RedisChannel,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	return bridge.NewRedisSubscriber(logger, client, cfg.RedisChannel).Run(ctx, handle)
}
