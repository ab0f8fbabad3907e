package api

import (
	"go.uber.org/zap"

	"github.com/lsy88/uptime-sentry/internal/config"
	"github.com/lsy88/uptime-sentry/internal/scheduler"
	"github.com/lsy88/uptime-sentry/internal/stats"
	"github.com/lsy88/uptime-sentry/internal/store"
)

type Deps struct {
	Logger    *zap.Logger
	Store     store.Store
	Scheduler *scheduler.Scheduler
	Stats     *stats.Aggregator
	Config    *config.Config
}
