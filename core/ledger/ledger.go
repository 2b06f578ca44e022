// Package ledger defines the store-and-forward contract used while a
// station is disconnected.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ldsn-cm/ldsn/core/model"
)

// Entry is one buffered report plus the context needed to replay it. The ID
// makes replay at-most-once: hand-off requires MarkReplayed first.
type Entry struct {
	ID       string            `json:"id"`
	Report   model.FieldReport `json:"report"`
	Alert    model.Alert       `json:"alert"`
	Buffered time.Time         `json:"buffered"`
	Replayed bool              `json:"replayed"`
}

// NewEntry wraps a report and its classified alert with a fresh identifier.
func NewEntry(r model.FieldReport, a model.Alert, now time.Time) Entry {
	return Entry{ID: uuid.NewString(), Report: r, Alert: a, Buffered: now}
}

// OfflineLedger is an ordered, append-only buffer of entries awaiting
// replay. Drain must return un-replayed entries strictly in insertion
// order: out-of-order replay would reorder cluster unions relative to the
// priorities computed from them.
type OfflineLedger interface {
	Enqueue(ctx context.Context, e Entry) error
	Drain(ctx context.Context) ([]Entry, error)
	MarkReplayed(ctx context.Context, id string) error
	Close() error
}
