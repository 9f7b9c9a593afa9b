// Package metrics exposes command, backend and relay metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/latoulicious/Spotifm/pkg/radio"
)

const namespace = "spotifm"

// OutcomeOK labels successful commands and requests.
const OutcomeOK = "ok"

// Recorder records gateway metrics. A nil *Recorder discards everything.
type Recorder struct {
	commands *prometheus.CounterVec
	backend  *prometheus.HistogramVec
	relay    *prometheus.GaugeVec
}

// New registers the gateway's collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Chat commands handled, by front-end, verb and outcome.",
		}, []string{"frontend", "verb", "outcome"}),
		backend: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of playback backend requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "outcome"}),
		relay: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_state",
			Help:      "Current audio relay state (1 for the active state).",
		}, []string{"state"}),
	}
}

// Outcome labels err: OutcomeOK for nil, otherwise its error kind.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return radio.KindOf(err).String()
}

// CommandHandled counts one handled chat command.
func (r *Recorder) CommandHandled(frontend, verb, outcome string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(frontend, verb, outcome).Inc()
}

// BackendRequest observes one playback backend request. Its signature
// matches playback.Observer.
func (r *Recorder) BackendRequest(endpoint string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.backend.WithLabelValues(endpoint, Outcome(err)).Observe(elapsed.Seconds())
}

// RelayState marks state as the relay's current state.
func (r *Recorder) RelayState(state string) {
	if r == nil {
		return
	}
	r.relay.Reset()
	r.relay.WithLabelValues(state).Set(1)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
