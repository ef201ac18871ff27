package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/httpapi"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/scheduler"
	"leadgen-engine/internal/secrets"
)

const (
	pruneEvery      = 10 * time.Minute
	shutdownTimeout = 15 * time.Second

	// sendLogKeep is how much sqlite send history survives pruning; the
	// limiter only ever looks back 24h.
	sendLogKeep = 7 * 24 * time.Hour
)

func serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background task workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, warnings, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.App.Addr = addr
			}
			return serve(cmd.Context(), cfg, path, warnings)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides app.addr)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, cfgPath string, warnings []string) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	for _, w := range warnings {
		log.Warn("config warning", logger.String("detail", w))
	}

	// One engine per data dir: the sqlite file and the send log assume a
	// single writer.
	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.App.DataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("another engine is already running on %s", cfg.App.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng, err := newEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("close backends", logger.Error(err))
		}
	}()

	router := httpapi.NewRouter(httpapi.Deps{
		Tasks:      eng.tasks,
		Hub:        eng.hub,
		Secrets:    secrets.Keyring{},
		Log:        log,
		Metrics:    promhttp.HandlerFor(eng.reg, promhttp.HandlerOpts{}),
		Config:     cfg,
		ConfigPath: cfgPath,
	})

	ln, err := net.Listen("tcp", cfg.App.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("engine listening",
			logger.String("addr", "http://"+ln.Addr().String()),
			logger.String("backend", cfg.App.Backend),
			logger.String("config", cfgPath))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Every(gctx, log, pruneEvery, "prune_tasks", func(context.Context) error {
			if n := eng.tasks.Prune(cfg.App.TaskRetention); n > 0 {
				log.Info("pruned finished tasks", logger.Int("count", n))
			}
			return nil
		})
		return nil
	})
	if eng.db != nil {
		g.Go(func() error {
			scheduler.Every(gctx, log, time.Hour, "prune_send_log", func(ctx context.Context) error {
				_, err := eng.db.PruneSendLog(ctx, time.Now().UTC().Add(-sendLogKeep))
				return err
			})
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	// Running tasks are interrupted and record their final status.
	cancel()
	eng.tasks.Wait()
	return err
}
