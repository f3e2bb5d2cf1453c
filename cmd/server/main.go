package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"streamcast/internal/infrastructure/config"
	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
	"streamcast/internal/infrastructure/server"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger is not up yet.
		panic(err)
	}

	log := logger.New(cfg.Log)

	ctx := context.Background()
	sctx := WithSignal(ctx)

	hubInstance := hub.New(hub.Options{
		QueueCapacity:  cfg.Hub.QueueCapacity,
		DefaultChannel: cfg.Hub.DefaultChannel,
	}, log)
	if err := hubInstance.Start(ctx); err != nil {
		log.Errorf("failed to start hub: %v", err)
		return
	}

	router := InitRouter(hubInstance, log)
	httpSrv := server.NewHTTPServer(router, server.Options{
		Addr:        cfg.Server.Addr,
		IdleTimeout: cfg.Server.IdleTimeout,
	})

	app := newApplication(cfg, *configPath, log, httpSrv, hubInstance)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
	}
}

type Application struct {
	cfg        *config.Config
	configPath string
	logger     logger.Logger
	httpSrv    server.Server
	hub        *hub.Hub
}

func newApplication(
	cfg *config.Config,
	configPath string,
	log logger.Logger,
	httpSrv *server.HTTPServer,
	hubInstance *hub.Hub,
) *Application {
	return &Application{
		cfg:        cfg,
		configPath: configPath,
		logger:     log.WithField("app", "streamcast"),
		httpSrv:    httpSrv,
		hub:        hubInstance,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg := errgroup.Group{}

	eg.Go(func() error {
		app.logger.Infof("listening on %s", app.cfg.Server.Addr)
		return app.httpSrv.Start(ctx)
	})

	if app.cfg.LiveReload && app.configPath != "" {
		watcher := config.NewWatcher(app.configPath, app.logger, app.applyConfig)
		eg.Go(func() error {
			err := watcher.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	eg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			app.cfg.Server.ShutdownGrace,
		)
		defer cancel()

		// Stop the hub first so connections drain before the server goes.
		if err := app.hub.Stop(shutdownCtx); err != nil {
			app.logger.Errorf("failed to stop hub: %v", err)
		}
		return app.httpSrv.Stop(shutdownCtx)
	})

	return eg.Wait()
}

// applyConfig picks up the runtime-adjustable settings from a reloaded
// config: log level and the queue bound for new listeners.
func (app *Application) applyConfig(cfg *config.Config) {
	app.logger.SetLevel(cfg.Log.Level)
	app.hub.SetQueueCapacity(cfg.Hub.QueueCapacity)
	app.logger.Infof(
		"applied reloaded config: log level %s, queue capacity %d",
		cfg.Log.Level, cfg.Hub.QueueCapacity,
	)
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
