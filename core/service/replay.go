package service

import (
	"context"

	"github.com/ldsn-cm/ldsn/core/events"
	coremetrics "github.com/ldsn-cm/ldsn/core/metrics"
	"github.com/ldsn-cm/ldsn/core/model"
)

// Connectivity returns the current connectivity state.
func (s *Service) Connectivity() model.ConnState {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// SetConnectivity applies an externally-signalled transition. Moving from
// Offline to Online drains the offline ledger in insertion order.
func (s *Service) SetConnectivity(ctx context.Context, state model.ConnState) {
	s.connMu.Lock()
	prev := s.conn
	s.conn = state
	s.connMu.Unlock()
	if prev == state {
		return
	}
	s.log.Infof("connectivity: %s -> %s", prev, state)
	if s.bus != nil {
		s.bus.Publish(events.ConnectivityEvent{State: state})
	}
	if prev == model.Offline && state == model.Online {
		s.drainOffline(ctx)
	}
}

// Run consumes connectivity transitions until the context is cancelled.
func (s *Service) Run(ctx context.Context, conn <-chan model.ConnState) {
	for {
		select {
		case state, ok := <-conn:
			if !ok {
				return
			}
			s.SetConnectivity(ctx, state)
		case <-ctx.Done():
			return
		}
	}
}

// drainOffline replays buffered entries strictly in original insertion
// order. Each entry is handed off first and marked replayed only on
// success; the store dedupes on the alert identifier, so a crash between
// the two steps re-applies as a no-op. A hand-off failure leaves the entry
// buffered in place, flips the service back Offline and stops the drain,
// keeping the next reconnect cycle in order.
func (s *Service) drainOffline(ctx context.Context) {
	if s.offline == nil {
		return
	}
	entries, err := s.offline.Drain(ctx)
	if err != nil {
		s.log.Errorf("offline drain: %v", err)
		return
	}
	replayed, failed := 0, 0
	for _, e := range entries {
		if e.Replayed {
			continue
		}
		// Cluster membership is re-linked on replay; re-adding an existing
		// location is a no-op. Mortality was applied when the report was
		// first classified and is not re-applied here.
		s.clusters.Add(e.Report.Location)
		if s.store != nil {
			if err := s.persist(ctx, e.Report, e.Alert); err != nil {
				s.log.Warnf("replay hand-off failed for %s: %v", e.ID, err)
				failed++
				s.connMu.Lock()
				s.conn = model.Offline
				s.connMu.Unlock()
				break
			}
		}
		if err := s.offline.MarkReplayed(ctx, e.ID); err != nil {
			s.log.Errorf("mark replayed %s: %v", e.ID, err)
			failed++
			continue
		}
		replayed++
	}
	s.log.Infof("offline replay finished: %d replayed, %d failed", replayed, failed)
	if s.bus != nil {
		s.bus.Publish(events.ReplayEvent{Replayed: replayed, Failed: failed})
	}
	if rec, ok := s.sink.(coremetrics.ReplayRecorder); ok {
		if err := rec.RecordReplay(coremetrics.ReplayEvent{Replayed: replayed, Failed: failed, Time: s.now()}); err != nil {
			s.log.Warnf("metrics sink: %v", err)
		}
	}
}
