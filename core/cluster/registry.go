// Package cluster detects epidemiological clusters: locations linked by
// shared water points, markets or transhumance corridors are merged into
// one outbreak group.
package cluster

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ldsn-cm/ldsn/core/faults"
	"github.com/ldsn-cm/ldsn/core/model"
)

// Thresholds configures the cluster sizes at which the derived risk level
// switches to MEDIUM and HIGH.
type Thresholds struct {
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// SetDefaults fills unset threshold values.
func (t *Thresholds) SetDefaults() {
	if t.Medium <= 0 {
		t.Medium = 3
	}
	if t.High <= 0 {
		t.High = 5
	}
}

// Registry is a disjoint-set over named locations with union by rank and
// iterative path compression. Membership only grows: there is no split or
// undo. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	parent    map[string]string
	rank      map[string]int
	size      map[string]int
	count     int
	threshold Thresholds
}

// NewRegistry creates an empty registry with the given risk thresholds.
func NewRegistry(t Thresholds) *Registry {
	t.SetDefaults()
	return &Registry{
		parent:    map[string]string{},
		rank:      map[string]int{},
		size:      map[string]int{},
		threshold: t,
	}
}

// Add registers a location as its own singleton cluster. Adding a known
// location is a no-op.
func (r *Registry) Add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(name)
}

func (r *Registry) add(name string) {
	if _, ok := r.parent[name]; ok {
		return
	}
	r.parent[name] = name
	r.rank[name] = 0
	r.size[name] = 1
	r.count++
}

// Has reports whether the location is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.parent[name]
	return ok
}

// Union merges the clusters of two registered locations. It returns true
// when two distinct clusters were merged and false when the locations were
// already connected, which makes replay of recorded links idempotent.
func (r *Registry) Union(a, b string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rootA, err := r.find(a)
	if err != nil {
		return false, err
	}
	rootB, err := r.find(b)
	if err != nil {
		return false, err
	}
	if rootA == rootB {
		return false, nil
	}
	// Union by rank; sizes follow the surviving root.
	if r.rank[rootA] < r.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	r.parent[rootB] = rootA
	r.size[rootA] += r.size[rootB]
	if r.rank[rootA] == r.rank[rootB] {
		r.rank[rootA]++
	}
	r.count--
	return true, nil
}

// Connected reports whether two locations share a representative.
func (r *Registry) Connected(a, b string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rootA, err := r.find(a)
	if err != nil {
		return false, err
	}
	rootB, err := r.find(b)
	if err != nil {
		return false, err
	}
	return rootA == rootB, nil
}

// Group describes one cluster: its sorted members and derived risk level.
type Group struct {
	Members []string        `json:"members"`
	Risk    model.RiskLevel `json:"risk"`
}

// ClusterOf returns the full membership of the cluster containing name,
// sorted, with the risk level derived from its size.
func (r *Registry) ClusterOf(name string) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	root, err := r.find(name)
	if err != nil {
		return Group{}, err
	}
	members := make([]string, 0, r.size[root])
	for loc := range r.parent {
		lr, _ := r.find(loc)
		if lr == root {
			members = append(members, loc)
		}
	}
	sort.Strings(members)
	return Group{Members: members, Risk: r.riskFor(len(members))}, nil
}

// Risk returns the derived risk level for the cluster containing name
// without materializing the member list.
func (r *Registry) Risk(name string) (model.RiskLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	root, err := r.find(name)
	if err != nil {
		return model.RiskLow, err
	}
	return r.riskFor(r.size[root]), nil
}

// Clusters returns every cluster, largest first, members sorted.
func (r *Registry) Clusters() []Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	byRoot := map[string][]string{}
	for loc := range r.parent {
		root, _ := r.find(loc)
		byRoot[root] = append(byRoot[root], loc)
	}
	groups := make([]Group, 0, len(byRoot))
	for _, members := range byRoot {
		sort.Strings(members)
		groups = append(groups, Group{Members: members, Risk: r.riskFor(len(members))})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Members) != len(groups[j].Members) {
			return len(groups[i].Members) > len(groups[j].Members)
		}
		return groups[i].Members[0] < groups[j].Members[0]
	})
	return groups
}

// Count returns the number of distinct clusters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Len returns the number of registered locations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parent)
}

// find resolves the representative with two-pass iterative path
// compression: walk to the root, then re-walk pointing every node at it.
// Iteration keeps the stack bounded on pathological chains. Callers hold
// the write lock (compression mutates parent pointers).
func (r *Registry) find(name string) (string, error) {
	root, ok := r.parent[name]
	if !ok {
		return "", fmt.Errorf("%w: location %q", faults.ErrNotFound, name)
	}
	for r.parent[root] != root {
		root = r.parent[root]
	}
	for cur := name; cur != root; {
		next := r.parent[cur]
		r.parent[cur] = root
		cur = next
	}
	return root, nil
}

func (r *Registry) riskFor(size int) model.RiskLevel {
	switch {
	case size >= r.threshold.High:
		return model.RiskHigh
	case size >= r.threshold.Medium:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}
