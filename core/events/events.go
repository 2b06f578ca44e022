// Package events defines the event types published on the internal bus.
package events

import "github.com/ldsn-cm/ldsn/core/model"

// ReportEvent is published when a field report passes validation.
type ReportEvent struct {
	Report model.FieldReport
}

// AlertEvent is published when the pipeline emits a classified alert.
type AlertEvent struct {
	Alert    model.Alert
	Buffered bool
}

// ConnectivityEvent is published on Online/Offline transitions.
type ConnectivityEvent struct {
	State model.ConnState
}

// ReplayEvent is published after an offline drain completes.
type ReplayEvent struct {
	Replayed int
	Failed   int
}
