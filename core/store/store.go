// Package store defines the durable persistence contract for reports and
// alerts. The implementation behind it is an external collaborator; the
// engine only needs save semantics with retryable failures.
package store

import (
	"context"
	"sync"

	"github.com/ldsn-cm/ldsn/core/ledger"
	"github.com/ldsn-cm/ldsn/core/model"
)

// PersistenceStore saves classified reports and their alerts. Failures are
// retryable; after bounded retries the caller falls back to the offline
// ledger rather than dropping data. Reports are keyed by the ID of the
// alert they produced and saves are idempotent per key, so a retry after a
// partial failure never duplicates rows.
type PersistenceStore interface {
	SaveReport(ctx context.Context, id string, r model.FieldReport) error
	SaveAlert(ctx context.Context, a model.Alert) error
	Close() error
}

// MemoryStore keeps saved records in memory. Used in tests and as the
// default when no database is configured.
type MemoryStore struct {
	mu        sync.Mutex
	Reports   []model.FieldReport
	Alerts    []model.Alert
	reportIDs map[string]bool
	alertIDs  map[string]bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reportIDs: map[string]bool{}, alertIDs: map[string]bool{}}
}

func (s *MemoryStore) SaveReport(_ context.Context, id string, r model.FieldReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportIDs[id] {
		return nil
	}
	s.reportIDs[id] = true
	s.Reports = append(s.Reports, r)
	return nil
}

func (s *MemoryStore) SaveAlert(_ context.Context, a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alertIDs[a.ID] {
		return nil
	}
	s.alertIDs[a.ID] = true
	s.Alerts = append(s.Alerts, a)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// MemoryLedger is an in-memory OfflineLedger used in tests.
type MemoryLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger { return &MemoryLedger{} }

func (l *MemoryLedger) Enqueue(_ context.Context, e ledger.Entry) error {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return nil
}

// Drain returns un-replayed entries in insertion order.
func (l *MemoryLedger) Drain(_ context.Context) ([]ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if !e.Replayed {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *MemoryLedger) MarkReplayed(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries[i].Replayed = true
		}
	}
	return nil
}

func (l *MemoryLedger) Close() error { return nil }
