package observability

import (
	"context"
	"net/http"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RegisterInstrumentation serves the Prometheus scrape endpoint. Wired only
// by entrypoints that should expose one.
func RegisterInstrumentation(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics listener stopped", zap.Error(err))
				}
			}()
			log.Info("metrics endpoint listening", zap.String("addr", cfg.MetricsAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
