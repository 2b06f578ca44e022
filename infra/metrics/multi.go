package metrics

import (
	coremetrics "github.com/ldsn-cm/ldsn/core/metrics"
	"github.com/ldsn-cm/ldsn/core/model"
)

// MultiSink fans pipeline events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordReport forwards the result to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordReport(res coremetrics.ReportResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordReport(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordReplay forwards replay events to sinks that record them.
func (m *MultiSink) RecordReplay(ev coremetrics.ReplayEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ReplayRecorder); ok {
			if err := rec.RecordReplay(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRoute forwards route events to sinks that record them.
func (m *MultiSink) RecordRoute(ev coremetrics.RouteEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.RouteRecorder); ok {
			if err := rec.RecordRoute(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPop forwards queue pops to sinks that track pending depth.
func (m *MultiSink) RecordPop(level model.PriorityLevel) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.QueueRecorder); ok {
			if err := rec.RecordPop(level); err != nil {
				return err
			}
		}
	}
	return nil
}
