package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/ldsn-cm/ldsn/core/ledger"
)

// jsonlRecord is one line of the ledger file. Exactly one of Entry or
// ReplayedID is set: entries are appended when buffered, markers when
// replayed. Rebuilding state from an append-only file survives crashes
// mid-drain.
type jsonlRecord struct {
	Entry      *ledger.Entry `json:"entry,omitempty"`
	ReplayedID string        `json:"replayed_id,omitempty"`
}

// JSONLLedger is a file-backed offline ledger. Each buffered entry is one
// JSON line, appended in arrival order.
type JSONLLedger struct {
	path string
	mu   sync.Mutex
}

// NewJSONLLedger opens or creates the ledger file at path.
func NewJSONLLedger(path string) (*JSONLLedger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLLedger{path: path}, nil
}

// Enqueue appends the entry to the ledger file.
func (l *JSONLLedger) Enqueue(ctx context.Context, e ledger.Entry) error {
	return l.append(jsonlRecord{Entry: &e})
}

// MarkReplayed appends a replay marker for the given entry ID.
func (l *JSONLLedger) MarkReplayed(ctx context.Context, id string) error {
	return l.append(jsonlRecord{ReplayedID: id})
}

// Drain returns all entries without a replay marker, in insertion order.
func (l *JSONLLedger) Drain(ctx context.Context) ([]ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var order []string
	entries := make(map[string]ledger.Entry)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec jsonlRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		switch {
		case rec.ReplayedID != "":
			delete(entries, rec.ReplayedID)
		case rec.Entry != nil:
			if _, ok := entries[rec.Entry.ID]; !ok {
				order = append(order, rec.Entry.ID)
			}
			entries[rec.Entry.ID] = *rec.Entry
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	var res []ledger.Entry
	for _, id := range order {
		if e, ok := entries[id]; ok {
			res = append(res, e)
		}
	}
	return res, nil
}

// Close is a no-op: the file is opened per operation.
func (l *JSONLLedger) Close() error { return nil }

func (l *JSONLLedger) append(rec jsonlRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(rec)
}
