// Package metrics exports dispatch observations to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"hirenotify/internal/domain/notification"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hirenotify"

var _ notification.Metrics = (*Prometheus)(nil)

// Prometheus implements notification.Metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	channelSends    *prometheus.CounterVec
	channelDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	events          *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors.
func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		channelSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_sends_total",
			Help:      "Channel send attempts by channel and result.",
		}, []string{"channel", "result"}),
		channelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_send_seconds",
			Help:      "Channel send latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Recorded notification status transitions by target status.",
		}, []string{"status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Processed hiring events by kind and result.",
		}, []string{"kind", "result"}),
	}

	p.registry.MustRegister(
		p.channelSends,
		p.channelDuration,
		p.transitions,
		p.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// ObserveChannelSend records one channel send.
func (p *Prometheus) ObserveChannelSend(channel notification.ChannelKind, err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	p.channelSends.WithLabelValues(string(channel), result).Inc()
	p.channelDuration.WithLabelValues(string(channel)).Observe(elapsed.Seconds())
}

// ObserveTransition records a persisted status change.
func (p *Prometheus) ObserveTransition(to notification.Status) {
	p.transitions.WithLabelValues(string(to)).Inc()
}

// ObserveEvent records the result of processing one event.
func (p *Prometheus) ObserveEvent(kind notification.Kind, result string) {
	if !notification.IsValidKind(kind) {
		kind = "UNKNOWN"
	}
	p.events.WithLabelValues(string(kind), result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (p *Prometheus) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
