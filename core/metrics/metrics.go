// Package metrics defines the observability contract for the triage
// pipeline. Sinks live in infra/metrics.
package metrics

import (
	"time"

	"github.com/ldsn-cm/ldsn/core/model"
)

// ReportResult captures the outcome of one report through the pipeline.
type ReportResult struct {
	Alert     model.Alert
	State     model.ReportState
	Buffered  bool
	Duration  time.Duration
	Processed time.Time
}

// MetricsSink records pipeline outcomes for observability purposes.
type MetricsSink interface {
	RecordReport(res ReportResult) error
}

// ReplayEvent captures one offline drain cycle.
type ReplayEvent struct {
	Replayed int
	Failed   int
	Time     time.Time
}

// ReplayRecorder records offline replay cycles.
type ReplayRecorder interface {
	RecordReplay(ev ReplayEvent) error
}

// RouteEvent captures one safe-route computation.
type RouteEvent struct {
	Start    string
	End      string
	Rainy    bool
	Duration time.Duration
	Found    bool
}

// RouteRecorder records route computations.
type RouteRecorder interface {
	RecordRoute(ev RouteEvent) error
}

// QueueRecorder records alerts leaving the triage queue, balancing the
// pending depth tracked by RecordReport.
type QueueRecorder interface {
	RecordPop(level model.PriorityLevel) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordReport(ReportResult) error     { return nil }
func (NopSink) RecordReplay(ReplayEvent) error      { return nil }
func (NopSink) RecordRoute(RouteEvent) error        { return nil }
func (NopSink) RecordPop(model.PriorityLevel) error { return nil }
