package pipeline

import (
	"github.com/swordhydro/facc/internal/graph"
	"github.com/swordhydro/facc/internal/river"
)

// propagate runs Stage B1: a single walk over the topological wavefronts
// applying one closed-form rule per reach role. A reach is visited only
// after every upstream neighbor is finalized.
//
// Laterals are computed from the Stage A baselines, not from corrected
// values. A junction whose floor was raised therefore contributes its
// raise downstream only through the corrected-value sum, never through an
// inflated lateral term.
func propagate(g *graph.Graph, ds *river.Dataset, capRatio float64) {
	for _, level := range g.Levels {
		for _, id := range level {
			r := ds.Reaches[id]
			switch r.Role {
			case river.RoleHeadwater:
				r.Corrected = r.Baseline
				r.Correction = river.CorrectionUnchanged
			case river.RoleJunction:
				applyJunction(g, ds, r)
			case river.RoleBifurcationChild:
				applyShare(g, ds, r)
			case river.RoleBifurcationInternal:
				parent := ds.Reaches[g.Upstream(id)[0]]
				r.Corrected = parent.Corrected
				r.Correction = river.CorrectionBifurcChannelNoLateral
			default: // normal link, or a split parent with one upstream
				applyLateral(g, ds, r, capRatio)
			}
		}
	}
}

// applyJunction enforces conservation at a confluence:
//
//	corrected = sum(corrected upstream) + max(baseline - sum(baseline upstream), 0)
//
// The lateral term uses baselines on both sides. When the raster cloned
// one branch's value into the junction, baseline - sum(baseline upstream)
// goes non-positive and the clone contributes nothing.
func applyJunction(g *graph.Graph, ds *river.Dataset, r *river.Reach) {
	var sumCorrected, sumBaseline float64
	for _, up := range g.Upstream(r.ID) {
		sumCorrected += ds.Reaches[up].Corrected
		sumBaseline += ds.Reaches[up].Baseline
	}
	lateral := r.Baseline - sumBaseline
	if lateral < 0 {
		lateral = 0
	}
	r.Corrected = sumCorrected + lateral
	r.Correction = river.CorrectionJunctionFloor
}

// applyShare gives a bifurcation child its width-proportional share of
// the parent's corrected value. When no sibling has usable width data the
// parent splits equally and the child is flagged, not failed.
func applyShare(g *graph.Graph, ds *river.Dataset, r *river.Reach) {
	parent := ds.Reaches[g.Upstream(r.ID)[0]]
	siblings := g.Downstream(parent.ID)

	var sumWidth float64
	for _, sib := range siblings {
		if w := ds.Reaches[sib].Width; w > 0 {
			sumWidth += w
		}
	}

	if sumWidth > 0 {
		w := r.Width
		if w < 0 {
			w = 0
		}
		r.Corrected = parent.Corrected * w / sumWidth
	} else {
		r.Corrected = parent.Corrected / float64(len(siblings))
		r.AddFlag(river.FlagMissingWidthEqualSplit)
	}
	r.Correction = river.CorrectionBifurcShare
}

// applyLateral handles the single-upstream case:
//
//	corrected = corrected upstream + max(baseline - baseline upstream, 0)
//
// A lateral exceeding capRatio times the upstream baseline is a raster
// re-injection artifact (the pre-split value leaking back in) and is
// zeroed.
func applyLateral(g *graph.Graph, ds *river.Dataset, r *river.Reach, capRatio float64) {
	parent := ds.Reaches[g.Upstream(r.ID)[0]]

	lateral := r.Baseline - parent.Baseline
	if lateral < 0 {
		lateral = 0
	}
	if lateral > capRatio*parent.Baseline {
		lateral = 0
		r.Correction = river.CorrectionLateralCapped
	} else {
		r.Correction = river.CorrectionLateralPropagate
	}
	r.Corrected = parent.Corrected + lateral
}
