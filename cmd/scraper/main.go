package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/ytmpresence/internal/bridge"
	"github.com/genricoloni/ytmpresence/internal/config"
	"github.com/genricoloni/ytmpresence/internal/domain"
	"github.com/genricoloni/ytmpresence/internal/extractor"
	"github.com/genricoloni/ytmpresence/internal/monitor"
	"github.com/genricoloni/ytmpresence/internal/page"
	"github.com/genricoloni/ytmpresence/internal/server"
	"github.com/genricoloni/ytmpresence/internal/tracker"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AppOptions wires the page-side scraper
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		config.NewAppConfig,
		newObserver,
		newChannel,
		newTracker,
		newScraperServer,
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

type closableObserver interface {
	domain.Observer
	Close() error
}

// newObserver picks the observation source named by YTMP_SCRAPER_SOURCE
func newObserver(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig) (domain.Observer, error) {
	var obs closableObserver

	switch cfg.Scraper.Source {
	case "devtools":
		src := page.NewDevToolsSource(logger, cfg.Scraper.DevtoolsURL, cfg.Scraper.PageMatch)
		obs = extractor.NewDOMObserver(logger, src, extractor.NewExtractor(logger, cfg.Scraper.PauseTokens))
	case "file":
		src := page.NewFileSource(logger, cfg.Scraper.File)
		obs = extractor.NewDOMObserver(logger, src, extractor.NewExtractor(logger, cfg.Scraper.PauseTokens))
	case "mpris":
		obs = monitor.NewMprisObserver(logger, cfg.Scraper.MprisPlayers, cfg.Scraper.PageMatch)
	default:
		return nil, fmt.Errorf("unknown scraper source %q", cfg.Scraper.Source)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return obs.Close()
		},
	})
	return obs, nil
}

// newChannel builds the publisher side of the bridge
func newChannel(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig) (domain.Channel, error) {
	switch cfg.Bridge.Kind {
	case "http":
		return bridge.NewHTTPChannel(logger, cfg.Bridge.RelayURL), nil
	case "redis":
		client, err := bridge.NewRedisClient(context.Background(), bridge.RedisConfig{
			Addr:     cfg.Bridge.RedisAddr,
			Password: cfg.Bridge.RedisPassword,
			DB:       cfg.Bridge.RedisDB,
			Channel:  cfg.Bridge.RedisChannel,
		})
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		return bridge.NewRedisChannel(logger, client, cfg.Bridge.RedisChannel), nil
	default:
		return nil, fmt.Errorf("unknown bridge %q", cfg.Bridge.Kind)
	}
}

func newTracker(logger *zap.Logger, observer domain.Observer, channel domain.Channel, cfg *config.AppConfig) *tracker.Tracker {
	return tracker.New(logger, observer, channel, tracker.Options{
		PollInterval: cfg.Scraper.PollInterval,
		StartupDelay: cfg.Scraper.StartupDelay,
		QueueSize:    cfg.Scraper.QueueSize,
	})
}

func newScraperServer(logger *zap.Logger, t *tracker.Tracker) *server.Server {
	return server.NewScraperServer(logger, t)
}

// registerHooks runs the poller and the query server for the app's lifetime
func registerHooks(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *zap.Logger, cfg *config.AppConfig, t *tracker.Tracker, srv *server.Server) {
	var (
		cancel context.CancelFunc
		group  *errgroup.Group
	)
	cfg.LogSummary(logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("ytmpresence scraper started", zap.String("source", cfg.Scraper.Source))
			return t.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return t.Stop(ctx)
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var baseCtx, runCtx context.Context
			baseCtx, cancel = context.WithCancel(context.Background())
			group, runCtx = errgroup.WithContext(baseCtx)

			group.Go(func() error {
				return srv.ListenAndServe(runCtx, cfg.Scraper.Addr)
			})

			go func() {
				if err := group.Wait(); err != nil && baseCtx.Err() == nil {
					logger.Error("Query server failed", zap.Error(err))
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
