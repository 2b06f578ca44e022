// Package route models the transhumance corridor network and computes
// season-aware safe routes between locations.
package route

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ldsn-cm/ldsn/core/faults"
)

// SeasonalTable maps a region name to its rainy-season weight multiplier.
// Regions absent from the table are unaffected by rain (multiplier 1.0).
type SeasonalTable map[string]float64

// Multiplier returns the effective weight multiplier for an edge in the
// given region. Dry season is always 1.0.
func (t SeasonalTable) Multiplier(region string, rainy bool) float64 {
	if !rainy {
		return 1.0
	}
	if m, ok := t[region]; ok && m > 0 {
		return m
	}
	return 1.0
}

type edge struct {
	to     string
	base   float64
	region string
}

type vertex struct {
	region  string
	station bool
	risk    float64
	out     []edge
}

// Network is a directed weighted graph keyed by location name. Corridors
// are directed; undirected links are expressed as two edges. All methods
// are safe for concurrent use.
type Network struct {
	mu       sync.RWMutex
	vertices map[string]*vertex
	seasons  SeasonalTable
}

// NewNetwork creates an empty network using the given seasonal table.
func NewNetwork(seasons SeasonalTable) *Network {
	return &Network{vertices: map[string]*vertex{}, seasons: seasons}
}

// AddLocation registers a graph vertex. Re-adding an existing location
// keeps its edges and updates the metadata.
func (n *Network) AddLocation(name, region string, station bool, risk float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.ensure(name)
	v.region = region
	v.station = station
	v.risk = risk
}

// AddEdge adds a directed corridor with a base distance weight and a region
// tag. Unknown endpoints are registered implicitly, matching how corridor
// seeds are loaded before location metadata.
func (n *Network) AddEdge(from, to string, base float64, region string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ensure(from)
	n.ensure(to)
	n.vertices[from].out = append(n.vertices[from].out, edge{to: to, base: base, region: region})
}

// SetRisk updates the outbreak risk score attached to a location. Called
// when cluster detection flags an outbreak; affects subsequent routes.
func (n *Network) SetRisk(name string, risk float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.vertices[name]
	if !ok {
		return fmt.Errorf("%w: location %q", faults.ErrNotFound, name)
	}
	v.risk = risk
	return nil
}

// Has reports whether a location is registered.
func (n *Network) Has(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.vertices[name]
	return ok
}

// Len returns the number of registered locations.
func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.vertices)
}

// Locations returns all location names, sorted.
func (n *Network) Locations() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.vertices))
	for name := range n.vertices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stations returns the locations flagged as surveillance stations, sorted.
func (n *Network) Stations() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var names []string
	for name, v := range n.vertices {
		if v.station {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Route is the result of a safe-route computation.
type Route struct {
	Path        []string `json:"path"`
	TotalWeight float64  `json:"total_weight"`
	// RiskScore measures how far the effective weight exceeds the
	// dry-season baseline for the same path: 0 in dry season.
	RiskScore float64 `json:"risk_score"`
}

// pathState is the per-vertex best known route during the search.
type pathState struct {
	dist float64
	hops int
	key  string // concatenated location names, for lexicographic ties
	prev string
}

// better orders candidates by lower weight, then fewer hops, then
// lexicographically smallest concatenated path.
func (s pathState) better(o pathState) bool {
	if s.dist != o.dist {
		return s.dist < o.dist
	}
	if s.hops != o.hops {
		return s.hops < o.hops
	}
	return s.key < o.key
}

type pqItem struct {
	name  string
	state pathState
}

type routePQ []pqItem

func (q routePQ) Len() int           { return len(q) }
func (q routePQ) Less(i, j int) bool { return q[i].state.better(q[j].state) }
func (q routePQ) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *routePQ) Push(x any)        { *q = append(*q, x.(pqItem)) }
func (q *routePQ) Pop() any          { old := *q; it := old[len(old)-1]; *q = old[:len(old)-1]; return it }

// SafeRoute runs Dijkstra from start to end using effective edge weights
// base × seasonal multiplier + destination risk. The search checks ctx
// between expansion steps and can be cancelled mid-computation. Unknown
// endpoints return a not-found error; a missing path returns
// faults.ErrUnreachable.
func (n *Network) SafeRoute(ctx context.Context, start, end string, rainy bool) (Route, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if _, ok := n.vertices[start]; !ok {
		return Route{}, fmt.Errorf("%w: start location %q", faults.ErrNotFound, start)
	}
	if _, ok := n.vertices[end]; !ok {
		return Route{}, fmt.Errorf("%w: end location %q", faults.ErrNotFound, end)
	}

	best := map[string]pathState{
		start: {dist: 0, hops: 0, key: start},
	}
	pq := &routePQ{{name: start, state: best[start]}}
	heap.Init(pq)

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return Route{}, err
		}
		it := heap.Pop(pq).(pqItem)
		cur, ok := best[it.name]
		if !ok || it.state.dist > cur.dist {
			continue // stale entry
		}
		if it.name == end {
			break
		}
		for _, e := range n.vertices[it.name].out {
			w := e.base*n.seasons.Multiplier(e.region, rainy) + n.vertices[e.to].risk
			cand := pathState{
				dist: it.state.dist + w,
				hops: it.state.hops + 1,
				key:  it.state.key + "\x00" + e.to,
				prev: it.name,
			}
			if prev, ok := best[e.to]; !ok || cand.better(prev) {
				best[e.to] = cand
				heap.Push(pq, pqItem{name: e.to, state: cand})
			}
		}
	}

	final, ok := best[end]
	if !ok || math.IsInf(final.dist, 1) {
		return Route{}, fmt.Errorf("%w: %s -> %s", faults.ErrUnreachable, start, end)
	}
	path := strings.Split(final.key, "\x00")
	return Route{
		Path:        path,
		TotalWeight: final.dist,
		RiskScore:   n.riskScore(path, final.dist),
	}, nil
}

// riskScore compares the effective weight against the dry-season baseline
// of the same path. Callers hold at least a read lock.
func (n *Network) riskScore(path []string, effective float64) float64 {
	var dry float64
	for i := 0; i+1 < len(path); i++ {
		for _, e := range n.vertices[path[i]].out {
			if e.to == path[i+1] {
				dry += e.base + n.vertices[e.to].risk
				break
			}
		}
	}
	if dry <= 0 {
		return 0
	}
	return (effective - dry) / dry
}

// SeasonalImpact compares dry and rainy weights for the same pair.
type SeasonalImpact struct {
	Dry             Route   `json:"dry"`
	Rainy           Route   `json:"rainy"`
	Increase        float64 `json:"increase"`
	PercentIncrease float64 `json:"percent_increase"`
}

// AnalyzeSeasonalImpact computes both seasonal variants of a route.
func (n *Network) AnalyzeSeasonalImpact(ctx context.Context, start, end string) (SeasonalImpact, error) {
	dry, err := n.SafeRoute(ctx, start, end, false)
	if err != nil {
		return SeasonalImpact{}, err
	}
	rainy, err := n.SafeRoute(ctx, start, end, true)
	if err != nil {
		return SeasonalImpact{}, err
	}
	imp := SeasonalImpact{Dry: dry, Rainy: rainy, Increase: rainy.TotalWeight - dry.TotalWeight}
	if dry.TotalWeight > 0 {
		imp.PercentIncrease = imp.Increase / dry.TotalWeight * 100
	}
	return imp, nil
}

func (n *Network) ensure(name string) *vertex {
	v, ok := n.vertices[name]
	if !ok {
		v = &vertex{}
		n.vertices[name] = v
	}
	return v
}
