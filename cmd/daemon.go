package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/server"
	"github.com/urfave/cli/v3"
)

// Daemon starts the scheduler loop, and the status API when enabled, and blocks until SIGINT
// or SIGTERM. Running tasks keep their context on shutdown; the loop gets the configured stop
// timeout to finish its sweep.
func (r *Runner) Daemon(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx := context.WithoutCancel(ctx)

	loop := scheduler.NewLoop(r.registry, r.config.Scheduler, r.logger)
	if err := loop.Start(runCtx); err != nil {
		return err
	}

	serverCfg := r.config.Server
	if cmd.Bool("server") {
		serverCfg.Enabled = true
	}
	if cmd.IsSet("port") {
		serverCfg.Port = cmd.Int("port")
	}

	var srv *server.Server
	if serverCfg.Enabled {
		srv = server.NewServer(serverCfg.Addr(), serverCfg.AuthToken, r.registry, r.orchestrator.Tracks, r.logger)
		go func() {
			if err := srv.Start(runCtx); err != nil {
				r.logger.Error("status api stopped", "err", err)
			}
		}()
	}

	r.logger.Info("daemon running", "env", r.config.App.Env, "server", serverCfg.Enabled)
	<-signalCtx.Done()
	r.logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("status api shutdown", "err", err)
		}
	}
	if err := loop.Stop(r.config.Scheduler.StopTimeout()); err != nil {
		r.logger.Warn("scheduler stop", "err", err)
	}
	return nil
}
