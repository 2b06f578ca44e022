package service

import (
	"context"
	"time"

	"github.com/ldsn-cm/ldsn/core/cluster"
	coremetrics "github.com/ldsn-cm/ldsn/core/metrics"
	"github.com/ldsn-cm/ldsn/core/model"
	"github.com/ldsn-cm/ldsn/core/mortality"
	"github.com/ldsn-cm/ldsn/core/route"
)

// Suggest returns up to limit known disease names sharing prefix, shortest
// first. An empty prefix enumerates the taxonomy.
func (s *Service) Suggest(prefix string, limit int) []string {
	var out []string
	for name := range s.index.Autocomplete(prefix, limit) {
		out = append(out, name)
	}
	return out
}

// KnownDisease reports whether the exact term is in the taxonomy.
func (s *Service) KnownDisease(name string) bool { return s.index.Search(name) }

// MortalityRange returns the total over [start, end], inclusive bounds.
func (s *Service) MortalityRange(start, end int) (int64, error) {
	return s.ledger.RangeTotal(start, end)
}

// MortalityBySeason returns the dry/rainy/total split.
func (s *Service) MortalityBySeason() mortality.SeasonTotals {
	return s.ledger.SeasonTotals()
}

// Clusters lists every outbreak cluster, largest first.
func (s *Service) Clusters() []cluster.Group { return s.clusters.Clusters() }

// ClusterOf returns the cluster containing the location.
func (s *Service) ClusterOf(name string) (cluster.Group, error) {
	return s.clusters.ClusterOf(name)
}

// LinkLocations records an epidemiological connection (shared water point,
// market, border corridor) between two registered locations. Returns true
// when two distinct clusters were merged.
func (s *Service) LinkLocations(a, b string) (bool, error) {
	return s.clusters.Union(a, b)
}

// Alerts returns pending alerts in triage order, optionally filtered to a
// priority level (0 means all) and capped at limit (0 means no cap).
func (s *Service) Alerts(level model.PriorityLevel, limit int) []model.Alert {
	return s.queue.Pending(level, limit)
}

// NextAlert pops the most urgent pending alert.
func (s *Service) NextAlert() (model.Alert, error) {
	a, err := s.queue.Pop()
	if err != nil {
		return model.Alert{}, err
	}
	if rec, ok := s.sink.(coremetrics.QueueRecorder); ok {
		if rerr := rec.RecordPop(a.Priority); rerr != nil {
			s.log.Warnf("metrics sink: %v", rerr)
		}
	}
	return a, nil
}

// CriticalCount returns the number of pending P1 alerts.
func (s *Service) CriticalCount() int {
	return s.queue.CountAtLevel(model.P1Critical)
}

// RouteBetween computes the season-aware safe route between two locations.
// The computation is cancellable through ctx.
func (s *Service) RouteBetween(ctx context.Context, start, end string, rainy bool) (route.Route, error) {
	began := s.now()
	r, err := s.network.SafeRoute(ctx, start, end, rainy)
	if rec, ok := s.sink.(coremetrics.RouteRecorder); ok {
		if rerr := rec.RecordRoute(coremetrics.RouteEvent{
			Start:    start,
			End:      end,
			Rainy:    rainy,
			Duration: s.now().Sub(began),
			Found:    err == nil,
		}); rerr != nil {
			s.log.Warnf("metrics sink: %v", rerr)
		}
	}
	return r, err
}

// SeasonalImpact compares dry and rainy routes for the same pair.
func (s *Service) SeasonalImpact(ctx context.Context, start, end string) (route.SeasonalImpact, error) {
	return s.network.AnalyzeSeasonalImpact(ctx, start, end)
}

// Stats summarizes the engine state for the dashboard.
type Stats struct {
	Diseases       int       `json:"diseases"`
	Locations      int       `json:"locations"`
	Clusters       int       `json:"clusters"`
	PendingAlerts  int       `json:"pending_alerts"`
	CriticalAlerts int       `json:"critical_alerts"`
	TotalMortality int64     `json:"total_mortality"`
	Connectivity   string    `json:"connectivity"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Stats returns a snapshot of component counters.
func (s *Service) Stats() Stats {
	return Stats{
		Diseases:       s.index.Len(),
		Locations:      s.network.Len(),
		Clusters:       s.clusters.Count(),
		PendingAlerts:  s.queue.Len(),
		CriticalAlerts: s.CriticalCount(),
		TotalMortality: s.ledger.Total(),
		Connectivity:   s.Connectivity().String(),
		GeneratedAt:    s.now(),
	}
}

// Healthy reports whether every core structure is initialized and loaded.
func (s *Service) Healthy() bool {
	return s.index.Len() > 0 && s.network.Len() > 0 && s.clusters.Len() > 0
}
