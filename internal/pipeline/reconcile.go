package pipeline

import (
	"github.com/swordhydro/facc/internal/graph"
	"github.com/swordhydro/facc/internal/river"
)

// reconcileChains is safety net B2: the corrected values of every 1:1
// chain are isotonically smoothed again, with bifurcation children pinned
// as high-weight anchors. Pinning keeps a legitimate split drop (child
// below its pre-split neighborhood) from being averaged away.
//
// On a B1 output that already satisfies chain monotonicity this is a
// strict no-op.
func reconcileChains(g *graph.Graph, ds *river.Dataset) {
	for _, chain := range g.Chains() {
		values := make([]float64, len(chain))
		weights := uniformWeights(len(chain))
		pinned := make([]bool, len(chain))
		for i, id := range chain {
			r := ds.Reaches[id]
			values[i] = r.Corrected
			if r.Role == river.RoleBifurcationChild {
				weights[i] = anchorWeight
				pinned[i] = true
			}
		}
		adjusted := isotonicLog(values, weights, pinned)
		for i, id := range chain {
			ds.Reaches[id].Corrected = adjusted[i]
		}
	}
}

// reconcileJunctions is safety net B3: the junction rule is re-applied
// once in topological order to absorb any B2 chain adjustment upstream of
// a confluence. Idempotent: on converged data the rule reproduces the B1
// value exactly.
func reconcileJunctions(g *graph.Graph, ds *river.Dataset) {
	for _, level := range g.Levels {
		for _, id := range level {
			r := ds.Reaches[id]
			if r.Role == river.RoleJunction {
				applyJunction(g, ds, r)
			}
		}
	}
}

// finalPass is safety net B5: one last topological walk re-applying all
// role rules, with junction floors and lateral increments raise-only so
// a previously corrected value is never decreased. Bifurcation shares and
// channel inheritance stay exact assignments, since those values must
// track their parent to keep split proportionality.
func finalPass(g *graph.Graph, ds *river.Dataset, capRatio float64) {
	for _, level := range g.Levels {
		for _, id := range level {
			r := ds.Reaches[id]
			switch r.Role {
			case river.RoleHeadwater:
				if r.Baseline > r.Corrected {
					r.Corrected = r.Baseline
				}
			case river.RoleJunction:
				prev := r.Corrected
				applyJunction(g, ds, r)
				if prev > r.Corrected {
					r.Corrected = prev
				}
			case river.RoleBifurcationChild:
				applyShare(g, ds, r)
			case river.RoleBifurcationInternal:
				r.Corrected = ds.Reaches[g.Upstream(id)[0]].Corrected
			default:
				prev := r.Corrected
				applyLateral(g, ds, r, capRatio)
				if prev > r.Corrected {
					r.Corrected = prev
				}
			}
		}
	}
}
