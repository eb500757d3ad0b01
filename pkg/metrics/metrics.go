// Package metrics provides the Prometheus registry shared by the fetch jobs.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, undp, sdg) to maintain modularity and avoid circular
// dependencies. Batch runs dump the registry to a text file at the end;
// long runs can additionally expose it over HTTP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the fetch jobs.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes the current state of the registry in the Prometheus
// text format, suitable for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Fetch Metrics (pkg/client):
//   - devdata_fetch_requests_total{host, status} (Counter): Requests by host and outcome
//   - devdata_fetch_duration_seconds{host} (Histogram): Request duration by host
//   - devdata_fetch_errors_total{class} (Counter): Errors by class (transient, http, other)
//   - devdata_fetch_retries_total{error_class} (Counter): Retry attempts
//   - devdata_fetch_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - devdata_fetch_retry_exhausted_total{error_class} (Counter): Exhausted retries
//
// Response Cache Metrics (pkg/cache):
//   - devdata_cache_hits_total{layer="redis"} (Counter)
//   - devdata_cache_misses_total (Counter)
//   - devdata_cache_stored_bytes_total{layer="redis"} (Counter): Compressed bytes written
//   - devdata_cache_errors_total{operation} (Counter)
//
// Pacer Metrics (pkg/ratelimit):
//   - devdata_pacer_waits_total (Counter)
//   - devdata_pacer_wait_seconds (Histogram)
//
// Walker Metrics (internal/undp, internal/sdg):
//   - devdata_undp_items_total{kind, outcome} (Counter)
//   - devdata_sdg_rows_total (Counter)
//   - devdata_sdg_series_total{status} (Counter)
//   - devdata_sdg_slice_errors_total (Counter)
