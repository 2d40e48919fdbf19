package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/rps-client/internal/channel"
	"github.com/DoyleJ11/rps-client/internal/config"
	"github.com/DoyleJ11/rps-client/internal/history"
	"github.com/DoyleJ11/rps-client/internal/httpapi"
	"github.com/DoyleJ11/rps-client/internal/logging"
	"github.com/DoyleJ11/rps-client/internal/metrics"
	"github.com/DoyleJ11/rps-client/internal/session"
	"github.com/DoyleJ11/rps-client/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rps-client:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("session_id", uuid.NewString()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	dialer, err := ws.NewDialer(cfg.Transport)
	if err != nil {
		return multierr.Append(err, store.Close())
	}
	recorder := history.NewRecorder(store, log, 16)

	mgr := channel.NewManager(ctx, channel.Options{
		Dialer:         dialer,
		ReconnectDelay: cfg.ReconnectDelay,
		DialTimeout:    cfg.DialTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		Metrics:        met,
		Logger:         log,
	})
	sess := session.New(ctx, session.Options{
		Sender:             mgr,
		ResultDisplayDelay: cfg.ResultDisplayDelay,
		Recorder:           recorder,
		Metrics:            met,
		Logger:             log,
	})

	// reverse order of construction; the manager goes first so no signal
	// reaches a stopped session
	defer func() {
		err = multierr.Combine(err, mgr.Stop())
		sess.Shutdown()
		recorder.Close()
		err = multierr.Append(err, store.Close())
	}()

	log.Info("starting client",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("transport", cfg.Transport),
		zap.Duration("reconnect_delay", cfg.ReconnectDelay))
	mgr.Start(cfg.Endpoint, sess)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: httpapi.SetupRoutes(httpapi.Deps{
				Session:      sess,
				History:      store,
				HistoryLimit: cfg.HistoryLimit,
				Gatherer:     reg,
				Logger:       log,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	log.Info("shutting down")
	return err
}

func openStore(cfg config.Config, log *zap.Logger) (history.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL, keeping round history in memory", zap.Int("limit", cfg.HistoryLimit))
		return history.NewMemoryStore(cfg.HistoryLimit), nil
	}
	store, err := history.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("round history in postgres")
	return store, nil
}
