package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client-side observability surface: push channel health,
// event throughput and send outcomes.
type Metrics struct {
	registry *prometheus.Registry

	PushState         prometheus.Gauge
	ReconnectAttempts prometheus.Counter
	EventsApplied     *prometheus.CounterVec
	SendFailures      prometheus.Counter
	Resyncs           prometheus.Counter
	UnreadNotices     prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		PushState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "linkgrid",
			Subsystem: "push",
			Name:      "connection_state",
			Help:      "Push channel state: 0 disconnected, 1 connecting, 2 connected.",
		}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "linkgrid",
			Subsystem: "push",
			Name:      "reconnect_attempts_total",
			Help:      "Push channel dial attempts, including the first connect.",
		}),
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkgrid",
			Subsystem: "push",
			Name:      "events_applied_total",
			Help:      "Inbound push events applied to local state, by type.",
		}, []string{"type"}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "linkgrid",
			Subsystem: "messaging",
			Name:      "send_failures_total",
			Help:      "Outbound messages parked in failed state.",
		}),
		Resyncs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "linkgrid",
			Subsystem: "sync",
			Name:      "resyncs_total",
			Help:      "Full state re-fetches after a push channel gap.",
		}),
		UnreadNotices: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "linkgrid",
			Subsystem: "inbox",
			Name:      "unread_notifications",
			Help:      "Cached unread notification count.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics listener started", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
