// Package service orchestrates the triage pipeline: each incoming field
// report is validated against the prefix index, recorded in the mortality
// ledger, linked in the cluster registry, scored, queued and handed off to
// persistence, or buffered in the offline ledger while disconnected.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ldsn-cm/ldsn/core/cluster"
	"github.com/ldsn-cm/ldsn/core/events"
	"github.com/ldsn-cm/ldsn/core/faults"
	"github.com/ldsn-cm/ldsn/core/index"
	"github.com/ldsn-cm/ldsn/core/ledger"
	"github.com/ldsn-cm/ldsn/core/logger"
	coremetrics "github.com/ldsn-cm/ldsn/core/metrics"
	"github.com/ldsn-cm/ldsn/core/model"
	"github.com/ldsn-cm/ldsn/core/mortality"
	"github.com/ldsn-cm/ldsn/core/route"
	"github.com/ldsn-cm/ldsn/core/store"
	"github.com/ldsn-cm/ldsn/core/triage"
	"github.com/ldsn-cm/ldsn/internal/eventbus"
)

// Config tunes the hand-off behavior of the service.
type Config struct {
	HandoffTimeoutMS   int `json:"handoff_timeout_ms"`
	HandoffRetries     int `json:"handoff_retries"`
	HandoffBackoffMS   int `json:"handoff_backoff_ms"`
	MortalityThreshold int `json:"mortality_threshold"`
	// OutbreakPenaltyKM is the extra route weight attached to a location
	// once it sits in a HIGH-risk cluster.
	OutbreakPenaltyKM float64 `json:"outbreak_penalty_km"`
}

// SetDefaults fills unset config values.
func (c *Config) SetDefaults() {
	if c.HandoffTimeoutMS <= 0 {
		c.HandoffTimeoutMS = 2000
	}
	if c.HandoffRetries <= 0 {
		c.HandoffRetries = 3
	}
	if c.HandoffBackoffMS <= 0 {
		c.HandoffBackoffMS = 200
	}
	if c.MortalityThreshold <= 0 {
		c.MortalityThreshold = 50
	}
	if c.OutbreakPenaltyKM <= 0 {
		c.OutbreakPenaltyKM = 25
	}
}

// Service is the triage orchestrator. It owns the shared structures; each
// structure guards itself with its own lock held per operation, never
// across the whole pipeline.
type Service struct {
	index    *index.PrefixIndex
	ledger   *mortality.Ledger
	clusters *cluster.Registry
	network  *route.Network
	scorer   *triage.Scorer
	queue    *triage.Queue
	offline  ledger.OfflineLedger
	store    store.PersistenceStore
	sink     coremetrics.MetricsSink
	bus      eventbus.EventBus
	log      logger.Logger

	handoffTimeout  time.Duration
	retries         int
	backoff         time.Duration
	outbreakPenalty float64

	connMu sync.Mutex
	conn   model.ConnState

	now func() time.Time
}

// New creates a Service. The index, ledger, clusters, network, scorer and
// queue are required; offline ledger, store, sink and bus may be nil, in
// which case buffering, persistence and observability degrade to no-ops.
func New(cfg Config, ix *index.PrefixIndex, ml *mortality.Ledger, cr *cluster.Registry, net *route.Network, sc *triage.Scorer, q *triage.Queue, off ledger.OfflineLedger, ps store.PersistenceStore, sink coremetrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Service, error) {
	if ix == nil || ml == nil || cr == nil || net == nil || sc == nil || q == nil {
		return nil, fmt.Errorf("service: nil core structure provided to New")
	}
	if log == nil {
		return nil, fmt.Errorf("service: nil logger provided to New")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Service{
		index:           ix,
		ledger:          ml,
		clusters:        cr,
		network:         net,
		scorer:          sc,
		queue:           q,
		offline:         off,
		store:           ps,
		sink:            sink,
		bus:             bus,
		log:             log,
		handoffTimeout:  time.Duration(cfg.HandoffTimeoutMS) * time.Millisecond,
		retries:         cfg.HandoffRetries,
		backoff:         time.Duration(cfg.HandoffBackoffMS) * time.Millisecond,
		outbreakPenalty: cfg.OutbreakPenaltyKM,
		conn:            model.Online,
		now:             time.Now,
	}, nil
}

// SubmitReport runs one report through the pipeline and returns the
// emitted alert. Validation failures abort before any structure is
// mutated.
func (s *Service) SubmitReport(ctx context.Context, r model.FieldReport) (model.Alert, error) {
	start := s.now()
	r.Normalize()
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = start
	}

	// Validated
	if err := s.validate(&r); err != nil {
		return model.Alert{}, err
	}
	if s.bus != nil {
		s.bus.Publish(events.ReportEvent{Report: r})
	}

	// Classified: mortality delta lands on the report's calendar day.
	day := dayIndex(r.ReceivedAt, s.ledger.Horizon())
	if err := s.ledger.Record(day, r.Mortality); err != nil {
		return model.Alert{}, err
	}

	// Clustered: the location joins the registry as a singleton if new.
	s.clusters.Add(r.Location)
	risk, err := s.clusters.Risk(r.Location)
	if err != nil {
		return model.Alert{}, err
	}
	boost := risk == model.RiskHigh
	if boost {
		// Surface the outbreak on the route network so subsequent safe
		// routes steer around the cluster. Locations outside the corridor
		// network are skipped.
		if err := s.network.SetRisk(r.Location, s.outbreakPenalty); err == nil {
			s.log.Debugf("risk raised for %s", r.Location)
		}
	}

	// Queued
	priority := s.scorer.ComputePriority(r.Disease, r.Mortality, boost)
	alert := model.NewAlert(r, priority, boost, s.now())
	s.queue.Push(alert)

	// Handed-off, or buffered while offline.
	buffered, err := s.handOffOrBuffer(ctx, r, alert)
	if err != nil {
		return model.Alert{}, err
	}

	if s.bus != nil {
		s.bus.Publish(events.AlertEvent{Alert: alert, Buffered: buffered})
	}
	if err := s.sink.RecordReport(coremetrics.ReportResult{
		Alert:     alert,
		State:     model.StateHandedOff,
		Buffered:  buffered,
		Duration:  s.now().Sub(start),
		Processed: s.now(),
	}); err != nil {
		s.log.Warnf("metrics sink: %v", err)
	}
	return alert, nil
}

// validate checks structural fields and resolves the disease name against
// the prefix index, falling back to the unique prefix completion when the
// exact term is unknown.
func (s *Service) validate(r *model.FieldReport) error {
	if r.Disease == "" || r.Location == "" || r.ReporterID == "" {
		return fmt.Errorf("%w: disease, location and reporter_id are required", faults.ErrValidation)
	}
	if r.Mortality < 0 {
		return fmt.Errorf("%w: negative mortality count", faults.ErrValidation)
	}
	if s.index.Search(r.Disease) {
		return nil
	}
	var resolved string
	for name := range s.index.Autocomplete(r.Disease, 2) {
		if resolved != "" {
			// Ambiguous prefix: refuse to guess between candidates.
			return fmt.Errorf("%w: ambiguous disease name %q", faults.ErrValidation, r.Disease)
		}
		resolved = name
	}
	if resolved == "" {
		return fmt.Errorf("%w: unknown disease name %q", faults.ErrValidation, r.Disease)
	}
	s.log.Debugf("resolved disease %q to %q", r.Disease, resolved)
	r.Disease = resolved
	return nil
}

// handOffOrBuffer persists the report and alert, or appends them to the
// offline ledger when disconnected or when persistence stays unreachable
// after bounded retries. Returns whether the entry was buffered.
func (s *Service) handOffOrBuffer(ctx context.Context, r model.FieldReport, a model.Alert) (bool, error) {
	if s.Connectivity() == model.Online && s.store != nil {
		if err := s.persist(ctx, r, a); err == nil {
			return false, nil
		}
		s.log.Warnf("hand-off failed, buffering report from %s", r.Location)
	}
	if s.offline == nil {
		if s.store == nil {
			return false, nil
		}
		return false, faults.ErrOffline
	}
	if err := s.offline.Enqueue(ctx, ledger.NewEntry(r, a, s.now())); err != nil {
		return false, fmt.Errorf("offline enqueue: %w", err)
	}
	return true, nil
}

// persist saves report then alert with per-attempt timeout and backoff.
func (s *Service) persist(ctx context.Context, r model.FieldReport, a model.Alert) error {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff):
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, s.handoffTimeout)
		err := s.store.SaveReport(attemptCtx, a.ID, r)
		if err == nil {
			err = s.store.SaveAlert(attemptCtx, a)
		}
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", faults.ErrOffline, lastErr)
}

func dayIndex(t time.Time, horizon int) int {
	day := t.YearDay() - 1
	if day >= horizon {
		day = horizon - 1
	}
	return day
}
