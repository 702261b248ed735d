// Package metrics defines the Prometheus collectors of the bot.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Dialog workflow lifecycle
	WorkflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freightbot",
			Subsystem: "dialog",
			Name:      "workflows_total",
			Help:      "Workflow lifecycle events by workflow and event",
		},
		[]string{"workflow", "event"},
	)

	// Rejected answers
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freightbot",
			Subsystem: "dialog",
			Name:      "rejections_total",
			Help:      "Answers rejected by a step validator",
		},
		[]string{"workflow", "step"},
	)

	ListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freightbot",
			Subsystem: "listings",
			Name:      "mutations_total",
			Help:      "Listing mutations by kind and operation",
		},
		[]string{"kind", "operation"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freightbot",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Executed search queries by kind",
		},
		[]string{"kind"},
	)

	SearchResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "freightbot",
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of matches per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"kind"},
	)

	BroadcastMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freightbot",
			Subsystem: "broadcast",
			Name:      "messages_total",
			Help:      "Broadcast deliveries by status",
		},
		[]string{"status"},
	)

	// Swallowed transport failures
	TransportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freightbot",
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Failed transport operations",
		},
		[]string{"operation"},
	)
)

// RecordWorkflow records a workflow lifecycle event (started, completed, ...).
func RecordWorkflow(workflow, event string) {
	WorkflowsTotal.WithLabelValues(workflow, event).Inc()
}

// RecordRejection records a rejected answer.
func RecordRejection(workflow, step string) {
	RejectionsTotal.WithLabelValues(workflow, step).Inc()
}

// RecordListing records a create/update/delete of a cargo or truck listing.
func RecordListing(kind, operation string) {
	ListingsTotal.WithLabelValues(kind, operation).Inc()
}

// RecordSearch records a search and its total match count.
func RecordSearch(kind string, total int) {
	SearchesTotal.WithLabelValues(kind).Inc()
	SearchResults.WithLabelValues(kind).Observe(float64(total))
}

// RecordBroadcast records one broadcast delivery attempt.
func RecordBroadcast(status string) {
	BroadcastMessagesTotal.WithLabelValues(status).Inc()
}

// RecordTransportError records a swallowed transport failure.
func RecordTransportError(operation string) {
	TransportErrorsTotal.WithLabelValues(operation).Inc()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
