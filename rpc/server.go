package rpc

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"baselend/native/market"
	"baselend/observability"
)

// Options tunes the HTTP surface.
type Options struct {
	// RequestsPerSecond caps mutating requests per client address. Zero
	// disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	// Registry receives the prometheus collectors and backs /metrics. Nil
	// disables the metrics endpoint.
	Registry *prometheus.Registry
}

// Server exposes the market engine over HTTP. All amounts cross the wire as
// decimal strings in the asset's smallest unit.
type Server struct {
	engine  *market.Engine
	log     *slog.Logger
	metrics *observability.MarketMetrics
	opts    Options
}

// NewServer wires an HTTP server around the engine.
func NewServer(engine *market.Engine, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := observability.Metrics()
	if opts.Registry != nil {
		metrics.Register(opts.Registry)
	}
	return &Server{engine: engine, log: logger, metrics: metrics, opts: opts}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/market", s.handleMarket)
		v1.Get("/market/rates", s.handleRates)
		v1.Get("/market/reserves", s.handleReserves)
		v1.Get("/market/assets", s.handleAssets)
		v1.Get("/market/assets/{asset}", s.handleAssetTotals)
		v1.Get("/market/assets/{asset}/reserves", s.handleAssetReserves)
		v1.Get("/market/assets/{asset}/quote", s.handleQuote)

		v1.Get("/accounts/{address}", s.handleAccount)
		v1.Get("/accounts/{address}/collateral/{asset}", s.handleAccountCollateral)
		v1.Get("/accounts/{address}/points", s.handlePoints)

		v1.Group(func(mut chi.Router) {
			if s.opts.RequestsPerSecond > 0 {
				mut.Use(s.rateLimit())
			}
			mut.Post("/accrue", s.handleAccrue)
			mut.Post("/supply", s.handleSupply)
			mut.Post("/withdraw", s.handleWithdraw)
			mut.Post("/transfer", s.handleTransfer)
			mut.Post("/absorb", s.handleAbsorb)
			mut.Post("/buy", s.handleBuy)
			mut.Post("/allow", s.handleAllow)
			mut.Post("/pause", s.handlePause)
		})
	})
	return r
}
