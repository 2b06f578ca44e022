package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/ldsn-cm/ldsn/core/metrics"
	"github.com/ldsn-cm/ldsn/core/model"
)

// PromSink records pipeline events in Prometheus metrics.
type PromSink struct {
	reports *prometheus.CounterVec
	pending *prometheus.GaugeVec
	replays *prometheus.CounterVec
	routes  *prometheus.HistogramVec
}

// NewPromSink registers triage metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_reports_total",
		Help: "Total number of reports processed by the triage pipeline",
	}, []string{"priority", "buffered"})
	pending := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "triage_alerts_pending",
		Help: "Pending alerts in the triage queue by priority level",
	}, []string{"priority"})
	replays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_replay_entries_total",
		Help: "Buffered entries processed during offline replay",
	}, []string{"outcome"})
	routes := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "route_computation_seconds",
		Help:    "Time spent computing safe routes",
		Buckets: prometheus.DefBuckets,
	}, []string{"rainy", "found"})

	if err := register(reg, &reports); err != nil {
		return nil, err
	}
	if err := register(reg, &pending); err != nil {
		return nil, err
	}
	if err := register(reg, &replays); err != nil {
		return nil, err
	}
	if err := register(reg, &routes); err != nil {
		return nil, err
	}
	return &PromSink{reports: reports, pending: pending, replays: replays, routes: routes}, nil
}

// register handles AlreadyRegisteredError by reusing the existing collector.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	if err := reg.Register(*c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*c = are.ExistingCollector.(C)
			return nil
		}
		return err
	}
	return nil
}

// RecordReport increments the report counter and tracks queue depth.
func (s *PromSink) RecordReport(res coremetrics.ReportResult) error {
	s.reports.WithLabelValues(res.Alert.Priority.String(), strconv.FormatBool(res.Buffered)).Inc()
	s.pending.WithLabelValues(res.Alert.Priority.String()).Inc()
	return nil
}

// RecordPop decrements the pending gauge when an alert leaves the queue.
func (s *PromSink) RecordPop(level model.PriorityLevel) error {
	s.pending.WithLabelValues(level.String()).Dec()
	return nil
}

// RecordReplay counts replayed and failed entries of a drain cycle.
func (s *PromSink) RecordReplay(ev coremetrics.ReplayEvent) error {
	s.replays.WithLabelValues("replayed").Add(float64(ev.Replayed))
	s.replays.WithLabelValues("failed").Add(float64(ev.Failed))
	return nil
}

// RecordRoute observes one safe-route computation.
func (s *PromSink) RecordRoute(ev coremetrics.RouteEvent) error {
	s.routes.WithLabelValues(strconv.FormatBool(ev.Rainy), strconv.FormatBool(ev.Found)).
		Observe(ev.Duration.Seconds())
	return nil
}
