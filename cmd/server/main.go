package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lsy88/uptime-sentry/internal/api"
	"github.com/lsy88/uptime-sentry/internal/checker"
	"github.com/lsy88/uptime-sentry/internal/config"
	"github.com/lsy88/uptime-sentry/internal/docker"
	"github.com/lsy88/uptime-sentry/internal/incident"
	"github.com/lsy88/uptime-sentry/internal/notify"
	"github.com/lsy88/uptime-sentry/internal/scheduler"
	"github.com/lsy88/uptime-sentry/internal/stats"
	"github.com/lsy88/uptime-sentry/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	dockerClient, err := docker.NewClient()
	if err != nil {
		if !errors.Is(err, docker.ErrDockerUnavailable) {
			logger.Fatal("init docker", zap.Error(err))
		}
		logger.Warn("docker daemon unavailable, container monitors will report down")
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherDeps{
		Store:  st,
		Logger: logger,
		SMTP: notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			SSL:      cfg.SMTP.SSL,
		},
	})

	tracker := incident.NewTracker(incident.TrackerDeps{
		Store:      st,
		Logger:     logger,
		Dispatcher: dispatcher,
	})

	sched := scheduler.New(scheduler.Deps{
		Store:     st,
		Checker:   checker.New(dockerClient),
		Tracker:   tracker,
		Logger:    logger,
		BatchSize: cfg.BatchSize,
	})

	c := cron.New()
	if _, err := c.AddFunc(cfg.CycleSchedule, func() {
		res, err := sched.RunCycle(context.Background())
		if err != nil {
			if errors.Is(err, scheduler.ErrCycleInProgress) {
				logger.Warn("skipping tick, previous cycle still running")
				return
			}
			logger.Error("check cycle failed", zap.Error(err))
			return
		}
		logger.Debug("check cycle complete", zap.Int("checked", res.Checked))
	}); err != nil {
		logger.Fatal("invalid cycle schedule", zap.String("schedule", cfg.CycleSchedule), zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	r := api.NewRouter(api.Deps{
		Logger:    logger,
		Store:     st,
		Scheduler: sched,
		Stats:     stats.NewAggregator(st),
		Config:    cfg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
}
