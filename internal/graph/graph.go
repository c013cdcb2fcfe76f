// Package graph builds the directed acyclic reach graph that the facc
// correction stages walk.
//
// The builder runs once per region, before any correction stage:
//  1. Adjacency is built from the topology edge set.
//  2. A Kahn topological sort produces dependency levels (wavefronts);
//     any residue is reported as a fatal cycle.
//  3. Bifurcation channel membership is taken from the edges when
//     supplied, or derived by walking 1:1 chains below each split.
//  4. Every reach is tagged with exactly one role, which the propagation
//     stage later dispatches on.
//
// All orderings (neighbor lists, levels, chains) are sorted by reach id
// so that a run over the same dataset is byte-for-byte reproducible.
package graph

import (
	"sort"

	"github.com/swordhydro/facc/internal/river"
)

// Graph is the immutable topology view of one region's dataset.
type Graph struct {
	Region string

	// Up and Down map each reach to its sorted neighbor ids.
	Up   map[int64][]int64
	Down map[int64][]int64

	// Channel maps a reach to its bifurcation channel id; zero means the
	// reach is not inside a bifurcation channel.
	Channel map[int64]int64

	// Levels are the topological wavefronts: every reach in Levels[i]
	// has all of its upstream neighbors in Levels[0..i-1]. Reaches within
	// a level are sorted by id and mutually independent.
	Levels [][]int64

	chains [][]int64
}

// Build constructs the graph for a dataset and assigns a role to every
// reach. Returns a fatal BuildError on a dangling edge or a cycle; the
// dataset's reaches are not modified when an error is returned.
func Build(ds *river.Dataset) (*Graph, error) {
	g := &Graph{
		Region:  ds.Region,
		Up:      make(map[int64][]int64, ds.Len()),
		Down:    make(map[int64][]int64, ds.Len()),
		Channel: make(map[int64]int64),
	}

	for _, e := range ds.Edges {
		if _, ok := ds.Reaches[e.Up]; !ok {
			return nil, NewDanglingEdgeError(ds.Region, e)
		}
		if _, ok := ds.Reaches[e.Down]; !ok {
			return nil, NewDanglingEdgeError(ds.Region, e)
		}
		g.Down[e.Up] = append(g.Down[e.Up], e.Down)
		g.Up[e.Down] = append(g.Up[e.Down], e.Up)
	}
	for _, adj := range []map[int64][]int64{g.Up, g.Down} {
		for id := range adj {
			sort.Slice(adj[id], func(i, j int) bool { return adj[id][i] < adj[id][j] })
		}
	}

	if err := g.sortLevels(ds); err != nil {
		return nil, err
	}

	g.assignChannels(ds)

	for _, id := range ds.IDs() {
		ds.Reaches[id].Role = g.classify(id)
	}
	g.buildChains(ds)

	return g, nil
}

// Upstream returns the sorted upstream neighbor ids of a reach.
func (g *Graph) Upstream(id int64) []int64 { return g.Up[id] }

// Downstream returns the sorted downstream neighbor ids of a reach.
func (g *Graph) Downstream(id int64) []int64 { return g.Down[id] }

// IsSplitParent reports whether a reach has two or more downstream
// neighbors.
func (g *Graph) IsSplitParent(id int64) bool { return len(g.Down[id]) >= 2 }

// Chains returns every maximal 1:1 chain of length two or more, in
// upstream-to-downstream order. A chain edge connects a reach with a
// single downstream neighbor to a reach with a single upstream neighbor,
// so chains never cross a confluence or a split.
func (g *Graph) Chains() [][]int64 { return g.chains }

// sortLevels runs a level-synchronous Kahn sort. Any reach left with a
// positive in-degree afterwards sits on a cycle; the residual edge set
// (all edges among unresolved reaches) is reported in the error.
func (g *Graph) sortLevels(ds *river.Dataset) error {
	indeg := make(map[int64]int, ds.Len())
	for _, id := range ds.IDs() {
		indeg[id] = len(g.Up[id])
	}

	frontier := make([]int64, 0)
	for _, id := range ds.IDs() {
		if indeg[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	resolved := 0
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })
		g.Levels = append(g.Levels, frontier)
		resolved += len(frontier)

		next := make([]int64, 0)
		for _, id := range frontier {
			for _, dn := range g.Down[id] {
				indeg[dn]--
				if indeg[dn] == 0 {
					next = append(next, dn)
				}
			}
		}
		frontier = next
	}

	if resolved < ds.Len() {
		unresolved := make(map[int64]bool)
		for id, deg := range indeg {
			if deg > 0 {
				unresolved[id] = true
			}
		}
		var cyclic []river.TopologyEdge
		for _, e := range ds.Edges {
			if unresolved[e.Up] && unresolved[e.Down] {
				cyclic = append(cyclic, e)
			}
		}
		return NewCycleError(ds.Region, cyclic)
	}
	return nil
}

// assignChannels fills Channel. Precomputed channel ids on the edges win;
// otherwise membership is derived by walking the 1:1 chain below each
// split child until the next confluence.
func (g *Graph) assignChannels(ds *river.Dataset) {
	supplied := false
	for _, e := range ds.Edges {
		if e.ChannelID != 0 {
			supplied = true
			g.Channel[e.Down] = e.ChannelID
		}
	}
	if supplied {
		return
	}

	var nextID int64
	for _, id := range ds.IDs() {
		if !g.IsSplitParent(id) {
			continue
		}
		for _, child := range g.Down[id] {
			nextID++
			cur := child
			for {
				g.Channel[cur] = nextID
				if len(g.Down[cur]) != 1 {
					break // dead end or a further split
				}
				down := g.Down[cur][0]
				if len(g.Up[down]) != 1 {
					break // confluence closes the channel
				}
				cur = down
			}
		}
	}
}

// classify tags a reach with its single role. Upstream degree decides
// first: a reach that is both a confluence and a split corrects as a
// junction, and its children see the split through the adjacency.
func (g *Graph) classify(id int64) river.Role {
	ups := g.Up[id]
	switch {
	case len(ups) == 0:
		return river.RoleHeadwater
	case len(ups) >= 2:
		return river.RoleJunction
	}

	parent := ups[0]
	switch {
	case g.IsSplitParent(parent):
		return river.RoleBifurcationChild
	case g.IsSplitParent(id):
		return river.RoleBifurcationParent
	case g.Channel[id] != 0:
		return river.RoleBifurcationInternal
	default:
		return river.RoleNormalLink
	}
}

// buildChains extracts maximal 1:1 chains for the isotonic passes.
func (g *Graph) buildChains(ds *river.Dataset) {
	isChainEdge := func(up, down int64) bool {
		return len(g.Down[up]) == 1 && len(g.Up[down]) == 1
	}

	for _, id := range ds.IDs() {
		// A chain starts where no chain edge arrives.
		if len(g.Up[id]) == 1 && isChainEdge(g.Up[id][0], id) {
			continue
		}
		chain := []int64{id}
		cur := id
		for len(g.Down[cur]) == 1 && isChainEdge(cur, g.Down[cur][0]) {
			cur = g.Down[cur][0]
			chain = append(chain, cur)
		}
		if len(chain) >= 2 {
			g.chains = append(g.chains, chain)
		}
	}
}
