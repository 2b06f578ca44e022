package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ldsn-cm/ldsn/core/cluster"
	"github.com/ldsn-cm/ldsn/core/faults"
	"github.com/ldsn-cm/ldsn/core/index"
	coremetrics "github.com/ldsn-cm/ldsn/core/metrics"
	"github.com/ldsn-cm/ldsn/core/model"
	"github.com/ldsn-cm/ldsn/core/mortality"
	"github.com/ldsn-cm/ldsn/core/route"
	"github.com/ldsn-cm/ldsn/core/store"
	"github.com/ldsn-cm/ldsn/core/triage"
	"github.com/ldsn-cm/ldsn/infra/logger"
)

// failStore rejects every save, simulating an unreachable database.
type failStore struct{ calls int }

func (f *failStore) SaveReport(context.Context, string, model.FieldReport) error {
	f.calls++
	return errors.New("connection refused")
}
func (f *failStore) SaveAlert(context.Context, model.Alert) error { return errors.New("unreachable") }
func (f *failStore) Close() error                                 { return nil }

// flakyStore fails the first few report saves, then behaves normally.
type flakyStore struct {
	*store.MemoryStore
	failures int
}

func (f *flakyStore) SaveReport(ctx context.Context, id string, r model.FieldReport) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}
	return f.MemoryStore.SaveReport(ctx, id, r)
}

// alertFailStore accepts reports but fails the first few alert saves.
type alertFailStore struct {
	*store.MemoryStore
	failures int
}

func (f *alertFailStore) SaveAlert(ctx context.Context, a model.Alert) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("disk full")
	}
	return f.MemoryStore.SaveAlert(ctx, a)
}

type fixture struct {
	svc     *Service
	store   *store.MemoryStore
	offline *store.MemoryLedger
	queue   *triage.Queue
	ledger  *mortality.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ix := index.NewPrefixIndex()
	for name := range triage.DefaultSeverityTable() {
		if err := ix.Insert(name); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	ml := mortality.NewLedger(mortality.DefaultHorizon)
	registry := cluster.NewRegistry(cluster.Thresholds{})
	network := route.NewNetwork(route.SeasonalTable{"Adamawa": 2.5})
	network.AddEdge("Maroua", "Garoua", 180, "")
	queue := triage.NewQueue()
	ms := store.NewMemoryStore()
	ol := store.NewMemoryLedger()

	cfg := Config{HandoffTimeoutMS: 100, HandoffRetries: 1, HandoffBackoffMS: 1, MortalityThreshold: 50}
	svc, err := New(cfg, ix, ml, registry, network, triage.NewScorer(nil, cfg.MortalityThreshold),
		queue, ol, ms, nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, store: ms, offline: ol, queue: queue, ledger: ml}
}

func report(disease, location string, mortality int) model.FieldReport {
	return model.FieldReport{
		Disease:    disease,
		Location:   location,
		ReporterID: "chw-007",
		Mortality:  mortality,
		ReceivedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestSubmitReportPipeline(t *testing.T) {
	f := newFixture(t)
	alert, err := f.svc.SubmitReport(context.Background(), report("anthrax", "Maroua", 10))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if alert.Priority != model.P1Critical {
		t.Fatalf("anthrax is P1, got %v", alert.Priority)
	}
	if alert.ID == "" {
		t.Fatalf("alert must carry an identifier")
	}
	if f.queue.Len() != 1 {
		t.Fatalf("alert must be queued")
	}
	if len(f.store.Reports) != 1 || len(f.store.Alerts) != 1 {
		t.Fatalf("online submission must persist, got %d/%d", len(f.store.Reports), len(f.store.Alerts))
	}

	// Mortality lands on the report's calendar day (10 March = day 68).
	day := report("anthrax", "Maroua", 0).ReceivedAt.YearDay() - 1
	got, err := f.ledger.Day(day)
	if err != nil || got != 10 {
		t.Fatalf("expected 10 deaths on day %d, got %d (%v)", day, got, err)
	}
}

func TestSubmitReportValidation(t *testing.T) {
	f := newFixture(t)
	cases := []model.FieldReport{
		report("", "Maroua", 0),
		report("anthrax", "", 0),
		{Disease: "anthrax", Location: "Maroua", Mortality: 0},
		report("anthrax", "Maroua", -5),
	}
	for i, r := range cases {
		if _, err := f.svc.SubmitReport(context.Background(), r); !errors.Is(err, faults.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if f.queue.Len() != 0 || f.ledger.Total() != 0 {
		t.Fatalf("rejected reports must not mutate any structure")
	}
}

func TestSubmitReportPrefixResolution(t *testing.T) {
	f := newFixture(t)
	alert, err := f.svc.SubmitReport(context.Background(), report("anthr", "Maroua", 0))
	if err != nil {
		t.Fatalf("unique prefix must resolve: %v", err)
	}
	if alert.Disease != "anthrax" {
		t.Fatalf("expected resolved name, got %q", alert.Disease)
	}
}

func TestSubmitReportAmbiguousPrefix(t *testing.T) {
	f := newFixture(t)
	// No completion at all.
	if _, err := f.svc.SubmitReport(context.Background(), report("unknownitis", "Maroua", 0)); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("unknown disease must fail validation, got %v", err)
	}
	// "a" completes to both anthrax and african swine fever.
	if _, err := f.svc.SubmitReport(context.Background(), report("a", "Maroua", 0)); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("ambiguous prefix must fail validation, got %v", err)
	}
}

func TestClusterBoostEscalates(t *testing.T) {
	f := newFixture(t)
	locations := []string{"wp-1", "wp-2", "wp-3", "wp-4", "wp-5"}
	for _, loc := range locations {
		if _, err := f.svc.SubmitReport(context.Background(), report("sheep pox", loc, 0)); err != nil {
			t.Fatalf("submit %s: %v", loc, err)
		}
	}
	for _, loc := range locations[1:] {
		if _, err := f.svc.LinkLocations(locations[0], loc); err != nil {
			t.Fatalf("link: %v", err)
		}
	}

	// The cluster now has 5 members: HIGH risk, one escalation level.
	alert, err := f.svc.SubmitReport(context.Background(), report("sheep pox", "wp-3", 0))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !alert.ClusterBoost {
		t.Fatalf("expected cluster boost flag")
	}
	if alert.Priority != model.P3Moderate {
		t.Fatalf("sheep pox P4 boosted to P3, got %v", alert.Priority)
	}
}

func TestOutbreakPenaltyWeightsRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locations := []string{"wp-1", "wp-2", "wp-3", "wp-4", "Garoua"}
	for _, loc := range locations {
		if _, err := f.svc.SubmitReport(ctx, report("sheep pox", loc, 0)); err != nil {
			t.Fatalf("submit %s: %v", loc, err)
		}
	}
	for _, loc := range locations[:4] {
		if _, err := f.svc.LinkLocations("Garoua", loc); err != nil {
			t.Fatalf("link: %v", err)
		}
	}

	// Garoua now sits in a 5-member HIGH cluster; the next report there
	// attaches the configured outbreak penalty to its network vertex.
	if _, err := f.svc.SubmitReport(ctx, report("sheep pox", "Garoua", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	r, err := f.svc.RouteBetween(ctx, "Maroua", "Garoua", false)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if r.TotalWeight != 180+25 {
		t.Fatalf("expected base 180 plus penalty 25, got %f", r.TotalWeight)
	}
}

func TestMortalityEscalationInPipeline(t *testing.T) {
	f := newFixture(t)
	alert, err := f.svc.SubmitReport(context.Background(), report("sheep pox", "Maroua", 51))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if alert.Priority != model.P3Moderate {
		t.Fatalf("mortality above threshold escalates P4 to P3, got %v", alert.Priority)
	}
}

func TestOfflineBuffering(t *testing.T) {
	f := newFixture(t)
	f.svc.SetConnectivity(context.Background(), model.Offline)

	alert, err := f.svc.SubmitReport(context.Background(), report("rabies", "Maroua", 3))
	if err != nil {
		t.Fatalf("offline submit must succeed: %v", err)
	}
	if alert.Priority != model.P2High {
		t.Fatalf("classification still runs offline, got %v", alert.Priority)
	}
	if len(f.store.Reports) != 0 {
		t.Fatalf("no hand-off while offline")
	}
	entries, err := f.offline.Drain(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one buffered entry, got %d (%v)", len(entries), err)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("alert must still be queued while offline")
	}
}

func TestReplayOnReconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.SetConnectivity(ctx, model.Offline)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.SubmitReport(ctx, report("rabies", fmt.Sprintf("loc-%d", i), 1)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	f.svc.SetConnectivity(ctx, model.Online)

	if len(f.store.Reports) != 3 || len(f.store.Alerts) != 3 {
		t.Fatalf("replay must hand off all buffered entries, got %d/%d", len(f.store.Reports), len(f.store.Alerts))
	}
	// Insertion order is preserved.
	for i, r := range f.store.Reports {
		if r.Location != fmt.Sprintf("loc-%d", i) {
			t.Fatalf("replay out of order: %v", f.store.Reports)
		}
	}

	// A second reconnect cycle must not replay anything again.
	f.svc.SetConnectivity(ctx, model.Offline)
	f.svc.SetConnectivity(ctx, model.Online)
	if len(f.store.Reports) != 3 {
		t.Fatalf("replay must be at-most-once, got %d", len(f.store.Reports))
	}
}

func TestHandOffFailureFallsBackToBuffer(t *testing.T) {
	ix := index.NewPrefixIndex()
	if err := ix.Insert("rabies"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ol := store.NewMemoryLedger()
	cfg := Config{HandoffTimeoutMS: 10, HandoffRetries: 2, HandoffBackoffMS: 1, MortalityThreshold: 50}
	fs := &failStore{}
	svc, err := New(cfg, ix, mortality.NewLedger(0), cluster.NewRegistry(cluster.Thresholds{}),
		route.NewNetwork(nil), triage.NewScorer(nil, 50), triage.NewQueue(),
		ol, fs, nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := svc.SubmitReport(context.Background(), report("rabies", "Maroua", 0)); err != nil {
		t.Fatalf("failed hand-off must fall back to the buffer: %v", err)
	}
	if fs.calls != 2 {
		t.Fatalf("expected bounded retries, got %d attempts", fs.calls)
	}
	entries, _ := ol.Drain(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected buffered entry after failed hand-off, got %d", len(entries))
	}
}

func TestReplayFailureFlipsBackOffline(t *testing.T) {
	ix := index.NewPrefixIndex()
	if err := ix.Insert("rabies"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ol := store.NewMemoryLedger()
	cfg := Config{HandoffTimeoutMS: 10, HandoffRetries: 1, HandoffBackoffMS: 1, MortalityThreshold: 50}
	svc, err := New(cfg, ix, mortality.NewLedger(0), cluster.NewRegistry(cluster.Thresholds{}),
		route.NewNetwork(nil), triage.NewScorer(nil, 50), triage.NewQueue(),
		ol, &failStore{}, nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	svc.SetConnectivity(ctx, model.Offline)
	if _, err := svc.SubmitReport(ctx, report("rabies", "Maroua", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	before, _ := ol.Drain(ctx)
	svc.SetConnectivity(ctx, model.Online)
	if svc.Connectivity() != model.Offline {
		t.Fatalf("failed replay must flip the service back offline")
	}
	entries, _ := ol.Drain(context.Background())
	if len(entries) != 1 {
		t.Fatalf("failed entry must stay buffered, got %d", len(entries))
	}
	if entries[0].ID != before[0].ID {
		t.Fatalf("failed entry must keep its place, got %s vs %s", entries[0].ID, before[0].ID)
	}
}

func TestReplayResumesInOrderAfterFailure(t *testing.T) {
	ix := index.NewPrefixIndex()
	if err := ix.Insert("rabies"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ol := store.NewMemoryLedger()
	fs := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 1}
	cfg := Config{HandoffTimeoutMS: 10, HandoffRetries: 1, HandoffBackoffMS: 1, MortalityThreshold: 50}
	svc, err := New(cfg, ix, mortality.NewLedger(0), cluster.NewRegistry(cluster.Thresholds{}),
		route.NewNetwork(nil), triage.NewScorer(nil, 50), triage.NewQueue(),
		ol, fs, nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	svc.SetConnectivity(ctx, model.Offline)
	for i := 0; i < 2; i++ {
		if _, err := svc.SubmitReport(ctx, report("rabies", fmt.Sprintf("loc-%d", i), 0)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	// First reconnect fails on the oldest entry and stops the drain.
	svc.SetConnectivity(ctx, model.Online)
	if len(fs.Reports) != 0 {
		t.Fatalf("nothing may be handed off past a failed entry, got %v", fs.Reports)
	}

	// Second reconnect replays both entries in insertion order.
	svc.SetConnectivity(ctx, model.Online)
	if len(fs.Reports) != 2 || len(fs.Alerts) != 2 {
		t.Fatalf("expected both entries handed off, got %d/%d", len(fs.Reports), len(fs.Alerts))
	}
	for i, r := range fs.Reports {
		if r.Location != fmt.Sprintf("loc-%d", i) {
			t.Fatalf("replay out of order: %v", fs.Reports)
		}
	}
	if entries, _ := ol.Drain(ctx); len(entries) != 0 {
		t.Fatalf("ledger must be empty after full replay, got %d", len(entries))
	}
}

func TestPartialPersistDoesNotDuplicate(t *testing.T) {
	ix := index.NewPrefixIndex()
	if err := ix.Insert("rabies"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fs := &alertFailStore{MemoryStore: store.NewMemoryStore(), failures: 1}
	cfg := Config{HandoffTimeoutMS: 10, HandoffRetries: 2, HandoffBackoffMS: 1, MortalityThreshold: 50}
	svc, err := New(cfg, ix, mortality.NewLedger(0), cluster.NewRegistry(cluster.Thresholds{}),
		route.NewNetwork(nil), triage.NewScorer(nil, 50), triage.NewQueue(),
		store.NewMemoryLedger(), fs, nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// The first attempt saves the report but fails on the alert; the retry
	// must not insert the report a second time.
	if _, err := svc.SubmitReport(context.Background(), report("rabies", "Maroua", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(fs.Reports) != 1 || len(fs.Alerts) != 1 {
		t.Fatalf("expected one report and one alert, got %d/%d", len(fs.Reports), len(fs.Alerts))
	}
}

func TestQueriesAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SubmitReport(ctx, report("anthrax", "Maroua", 60)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if got := f.svc.Suggest("anth", 5); len(got) != 1 || got[0] != "anthrax" {
		t.Fatalf("suggest: %v", got)
	}
	if !f.svc.KnownDisease("anthrax") || f.svc.KnownDisease("dragon pox") {
		t.Fatalf("known-disease lookups wrong")
	}
	if c := f.svc.CriticalCount(); c != 1 {
		t.Fatalf("expected 1 critical, got %d", c)
	}
	total, err := f.svc.MortalityRange(0, mortality.DefaultHorizon-1)
	if err != nil || total != 60 {
		t.Fatalf("mortality range: %d %v", total, err)
	}

	st := f.svc.Stats()
	if st.PendingAlerts != 1 || st.CriticalAlerts != 1 || st.TotalMortality != 60 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.Connectivity != "online" {
		t.Fatalf("expected online, got %s", st.Connectivity)
	}

	next, err := f.svc.NextAlert()
	if err != nil || next.Disease != "anthrax" {
		t.Fatalf("next alert: %v %v", next.Disease, err)
	}
	if _, err := f.svc.NextAlert(); !errors.Is(err, faults.ErrEmptyQueue) {
		t.Fatalf("expected empty queue, got %v", err)
	}
}

// captureSink records queue pops handed to the metrics sink.
type captureSink struct{ pops []model.PriorityLevel }

func (c *captureSink) RecordReport(coremetrics.ReportResult) error { return nil }
func (c *captureSink) RecordPop(l model.PriorityLevel) error {
	c.pops = append(c.pops, l)
	return nil
}

func TestNextAlertRecordsPop(t *testing.T) {
	ix := index.NewPrefixIndex()
	if err := ix.Insert("anthrax"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	sink := &captureSink{}
	svc, err := New(Config{}, ix, mortality.NewLedger(0), cluster.NewRegistry(cluster.Thresholds{}),
		route.NewNetwork(nil), triage.NewScorer(nil, 50), triage.NewQueue(),
		store.NewMemoryLedger(), store.NewMemoryStore(), sink, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := svc.SubmitReport(context.Background(), report("anthrax", "Maroua", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.NextAlert(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(sink.pops) != 1 || sink.pops[0] != model.P1Critical {
		t.Fatalf("expected one recorded pop at P1, got %v", sink.pops)
	}
}

func TestRouteBetween(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.RouteBetween(context.Background(), "Maroua", "Garoua", false)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if r.TotalWeight != 180 {
		t.Fatalf("expected 180, got %f", r.TotalWeight)
	}
	if _, err := f.svc.RouteBetween(context.Background(), "Garoua", "Maroua", false); !errors.Is(err, faults.ErrUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
}
