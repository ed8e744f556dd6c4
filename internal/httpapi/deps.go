package httpapi

import (
	"context"
	"sync/atomic"

	"ctsmirror/internal/config"
	"ctsmirror/internal/events"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/metrics"
	"ctsmirror/internal/poll"
	"ctsmirror/internal/resolve"
	"ctsmirror/internal/store"
)

type Deps struct {
	// Base outlives individual requests; background batch runs hang off it.
	Base context.Context

	DB       *store.DB
	Hub      *events.Hub
	Resolver *resolve.Resolver
	Runner   *poll.Runner
	Metrics  *metrics.Metrics
	Log      *logging.Logger

	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// AllowedOrigins feeds CORS; empty allows any origin.
	AllowedOrigins []string
}
