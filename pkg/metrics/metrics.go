// Package metrics exposes the Prometheus metrics of the storefront client.
// All metrics are defined in their respective packages (client, cache, cart)
// via promauto to keep packages independent.
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

// Registry is the default Prometheus registry used by the storefront client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - storefront_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - storefront_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - storefront_errors_total{class} (Counter): Failures by class (unreachable, unauthorized, not_found, server, unknown)
//
// Retry Metrics (pkg/client):
//   - storefront_retries_total{error_class} (Counter): Retry attempts by error class
//   - storefront_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - storefront_retry_exhausted_total{error_class} (Counter): Reads that exhausted max retries
//
// Session Metrics (pkg/cache):
//   - storefront_session_reads_total{cache, state} (Counter): Reads by observed state
//   - storefront_session_refreshes_total{cache, result} (Counter): Refresh outcomes
//   - storefront_session_store_errors_total{operation} (Counter): Durable store failures
//
// Cart Metrics (pkg/cart):
//   - storefront_cart_mutations_total{op, result} (Counter): Cart writes by operation and result
//
// Example Prometheus Queries:
//
//   # Stale reads ratio
//   sum(rate(storefront_session_reads_total{state="stale"}[5m])) /
//   sum(rate(storefront_session_reads_total[5m]))
//
//   # Unreachable API
//   rate(storefront_errors_total{class="unreachable"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(storefront_request_duration_seconds_bucket[5m]))
