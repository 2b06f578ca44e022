// Package index provides the prefix index used to standardize disease and
// symptom names entered at surveillance stations.
package index

import (
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/ldsn-cm/ldsn/core/faults"
)

type node struct {
	children map[rune]*node
	terminal bool
	// term holds the full normalized name when terminal is set.
	term string
}

func newNode() *node { return &node{children: map[rune]*node{}} }

// PrefixIndex is a trie over disease and symptom names. Lookups are
// case-insensitive; names are stored lower-cased and trimmed. All methods
// are safe for concurrent use.
type PrefixIndex struct {
	mu    sync.RWMutex
	root  *node
	count int
}

// NewPrefixIndex returns an empty index.
func NewPrefixIndex() *PrefixIndex {
	return &PrefixIndex{root: newNode()}
}

// Insert adds a name to the index in O(len(name)). Inserting a name that is
// already present is a no-op.
func (ix *PrefixIndex) Insert(name string) error {
	norm := normalize(name)
	if norm == "" {
		return faults.ErrValidation
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n := ix.root
	for _, r := range norm {
		child, ok := n.children[r]
		if !ok {
			child = newNode()
			n.children[r] = child
		}
		n = child
	}
	if !n.terminal {
		n.terminal = true
		n.term = norm
		ix.count++
	}
	return nil
}

// Search reports whether the exact name is known.
func (ix *PrefixIndex) Search(name string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := ix.walk(normalize(name))
	return n != nil && n.terminal
}

// StartsWith reports whether any known name begins with prefix.
func (ix *PrefixIndex) StartsWith(prefix string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.walk(normalize(prefix)) != nil
}

// Len returns the number of names stored.
func (ix *PrefixIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.count
}

// Autocomplete returns a finite, restartable sequence of up to limit known
// names sharing prefix, shortest first with lexicographic tie-break. An
// unmatched prefix yields an empty sequence. The empty prefix enumerates the
// whole index in the same order. Cost is proportional to the prefix length
// plus the subtree visited before limit names are produced.
func (ix *PrefixIndex) Autocomplete(prefix string, limit int) iter.Seq[string] {
	norm := normalize(prefix)
	return func(yield func(string) bool) {
		if limit <= 0 {
			return
		}
		ix.mu.RLock()
		defer ix.mu.RUnlock()
		start := ix.walk(norm)
		if start == nil {
			return
		}
		// Breadth-first with children visited in rune order: names come out
		// by increasing length, lexicographic within a length.
		queue := []*node{start}
		emitted := 0
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			if n.terminal {
				if !yield(n.term) {
					return
				}
				emitted++
				if emitted == limit {
					return
				}
			}
			for _, r := range sortedKeys(n.children) {
				queue = append(queue, n.children[r])
			}
		}
	}
}

// walk follows prefix from the root. Callers hold at least a read lock.
func (ix *PrefixIndex) walk(prefix string) *node {
	n := ix.root
	for _, r := range prefix {
		child, ok := n.children[r]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

func sortedKeys(m map[rune]*node) []rune {
	keys := make([]rune, 0, len(m))
	for r := range m {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
