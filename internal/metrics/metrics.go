// Package metrics exposes Prometheus counters and a small HTTP server
// serving /metrics and /healthz.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsPlaced counts accepted wagers.
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betbook_bets_placed_total",
		Help: "Number of accepted bets.",
	})

	// BetsRejected counts rejected wagers by reason.
	BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betbook_bets_rejected_total",
		Help: "Number of rejected bets by reason.",
	}, []string{"reason"})

	// DepositsCredited counts verified blockchain deposits.
	DepositsCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposits_credited_total",
		Help: "Number of verified and credited deposits.",
	})

	// SettlementsCompleted counts resolved lines.
	SettlementsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlements_completed_total",
		Help: "Number of resolved daily lines.",
	})

	// SettlementCreditFailures counts winners that could not be paid
	// and need manual reconciliation.
	SettlementCreditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_credit_failures_total",
		Help: "Number of winning bets whose payout credit failed.",
	})
)

// HealthFunc reports whether the service's dependencies are reachable.
type HealthFunc func(ctx context.Context) error

// StartServer runs a lightweight HTTP server for /metrics and /healthz
// in a background goroutine and returns it for shutdown.
func StartServer(port int, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
