// Package app assembles the surveillance node from configuration: data
// structures, stores, metrics sinks, MQTT ingestion and the HTTP API.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ldsn-cm/ldsn/api/reports"
	"github.com/ldsn-cm/ldsn/config"
	"github.com/ldsn-cm/ldsn/core/cluster"
	"github.com/ldsn-cm/ldsn/core/events"
	"github.com/ldsn-cm/ldsn/core/index"
	coreledger "github.com/ldsn-cm/ldsn/core/ledger"
	coremetrics "github.com/ldsn-cm/ldsn/core/metrics"
	"github.com/ldsn-cm/ldsn/core/model"
	"github.com/ldsn-cm/ldsn/core/mortality"
	"github.com/ldsn-cm/ldsn/core/service"
	corestore "github.com/ldsn-cm/ldsn/core/store"
	"github.com/ldsn-cm/ldsn/core/triage"
	"github.com/ldsn-cm/ldsn/infra/logger"
	"github.com/ldsn-cm/ldsn/infra/metrics"
	"github.com/ldsn-cm/ldsn/infra/mqtt"
	"github.com/ldsn-cm/ldsn/infra/store"
	"github.com/ldsn-cm/ldsn/internal/eventbus"
)

// Service bundles the running node: the triage engine plus its transports.
type Service struct {
	Triage *service.Service

	mqttClient  *mqtt.PahoClient
	connBus     *eventbus.TypedBus[model.ConnState]
	bus         eventbus.EventBus
	offline     coreledger.OfflineLedger
	persistence corestore.PersistenceStore
	log         logger.Logger
	apiEnabled  bool
	apiPort     string
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("app")

	severity := triage.DefaultSeverityTable()
	for name, level := range cfg.Severity {
		severity[strings.ToLower(strings.TrimSpace(name))] = model.PriorityLevel(level)
	}

	ix := index.NewPrefixIndex()
	for name := range severity {
		if err := ix.Insert(name); err != nil {
			return nil, fmt.Errorf("seed disease %q: %w", name, err)
		}
	}
	for _, name := range cfg.Diseases {
		if err := ix.Insert(name); err != nil {
			return nil, fmt.Errorf("seed disease %q: %w", name, err)
		}
	}

	ml := mortality.NewLedger(mortality.DefaultHorizon)
	network := cfg.Network.Build()
	registry := cluster.NewRegistry(cfg.Cluster)
	for _, loc := range network.Locations() {
		registry.Add(loc)
	}
	for _, l := range cfg.Network.Links {
		registry.Add(l.A)
		registry.Add(l.B)
		if _, err := registry.Union(l.A, l.B); err != nil {
			return nil, fmt.Errorf("seed cluster link %s - %s: %w", l.A, l.B, err)
		}
	}
	scorer := triage.NewScorer(severity, cfg.Service.MortalityThreshold)
	queue := triage.NewQueue()

	var persistence corestore.PersistenceStore
	switch cfg.Storage.Backend {
	case "memory":
		persistence = corestore.NewMemoryStore()
	default:
		s, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		persistence = s
	}
	offline, err := store.NewJSONLLedger(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("offline ledger: %w", err)
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	triageSvc, err := service.New(cfg.Service, ix, ml, registry, network, scorer, queue,
		offline, persistence, sink, bus, logger.New("triage"))
	if err != nil {
		return nil, fmt.Errorf("triage service: %w", err)
	}

	svc := &Service{
		Triage:      triageSvc,
		connBus:     eventbus.NewTyped[model.ConnState](),
		bus:         bus,
		offline:     offline,
		persistence: persistence,
		log:         logg,
		apiEnabled:  cfg.API.Enabled,
		apiPort:     cfg.API.Port,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewPahoClient(cfg.MQTT, func(ctx context.Context, r model.FieldReport) error {
			_, err := triageSvc.SubmitReport(ctx, r)
			return err
		}, svc.connBus)
		if err != nil {
			// A node that boots without its broker starts offline and
			// buffers until connectivity returns.
			logg.Warnf("mqtt connect failed, starting offline: %v", err)
			triageSvc.SetConnectivity(context.Background(), model.Offline)
		} else {
			svc.mqttClient = client
		}
	}
	return svc, nil
}

// Run starts the node and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Triage.Run(ctx, s.connBus.Subscribe())
	go s.publishAlerts(ctx)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.apiEnabled {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// publishAlerts forwards emitted alerts to the MQTT alerts topic. Buffered
// alerts are skipped: they reach the broker through replay.
func (s *Service) publishAlerts(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			alert, isAlert := ev.(events.AlertEvent)
			if !isAlert || alert.Buffered || s.mqttClient == nil {
				continue
			}
			if err := s.mqttClient.PublishAlert(alert.Alert); err != nil {
				s.log.Errorf("publish alert %s: %v", alert.Alert.ID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) serveAPI(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.apiPort),
		Handler:           reports.NewMux(s.Triage),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	s.bus.Close()
	s.connBus.Close()
	if err := s.offline.Close(); err != nil {
		return err
	}
	return s.persistence.Close()
}
