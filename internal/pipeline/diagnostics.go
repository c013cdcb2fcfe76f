package pipeline

import (
	"fmt"

	"github.com/swordhydro/facc/internal/graph"
	"github.com/swordhydro/facc/internal/river"
)

// ViolationKind names a residual invariant violation category.
type ViolationKind string

const (
	// ViolationChainDrop is a downstream corrected value below its single
	// upstream neighbor beyond the relative tolerance.
	ViolationChainDrop ViolationKind = "chain_monotonicity"

	// ViolationJunctionDeficit is a junction corrected value below the
	// sum of its upstream corrected values beyond the absolute tolerance.
	ViolationJunctionDeficit ViolationKind = "junction_conservation"
)

// Violation is one residual invariant failure found after all correction
// stages. Violations are expected residue when width data is missing; in
// volume they signal a propagation-rule regression.
type Violation struct {
	Kind       ViolationKind
	ReachID    int64
	UpstreamID int64 // set for chain violations, zero otherwise
	Corrected  float64
	Required   float64
}

// String renders the violation for logs and reports.
func (v Violation) String() string {
	if v.Kind == ViolationChainDrop {
		return fmt.Sprintf("%s: reach %d corrected %.3f < upstream %d required %.3f",
			v.Kind, v.ReachID, v.Corrected, v.UpstreamID, v.Required)
	}
	return fmt.Sprintf("%s: reach %d corrected %.3f < upstream sum %.3f",
		v.Kind, v.ReachID, v.Corrected, v.Required)
}

// diagnose recomputes the two conservation invariants over the corrected
// dataset and attaches warning flags for residual anomalies. Values are
// never mutated here.
//
// Chain monotonicity excludes bifurcation-child edges: a drop across a
// split is the correct outcome of the share rule, and those reaches get
// FlagBifurcationExcluded instead of a violation.
func diagnose(g *graph.Graph, ds *river.Dataset, chainTol, junctionTolKm2 float64) []Violation {
	var out []Violation

	for _, id := range ds.IDs() {
		r := ds.Reaches[id]
		ups := g.Upstream(id)

		switch {
		case len(ups) == 1:
			if r.Role == river.RoleBifurcationChild {
				r.AddFlag(river.FlagBifurcationExcluded)
				continue
			}
			up := ds.Reaches[ups[0]]
			if r.Corrected < up.Corrected*chainTol {
				r.AddFlag(river.FlagResidualDrop)
				out = append(out, Violation{
					Kind:       ViolationChainDrop,
					ReachID:    id,
					UpstreamID: up.ID,
					Corrected:  r.Corrected,
					Required:   up.Corrected * chainTol,
				})
			}
		case len(ups) >= 2:
			var sum float64
			for _, u := range ups {
				sum += ds.Reaches[u].Corrected
			}
			if r.Corrected < sum-junctionTolKm2 {
				out = append(out, Violation{
					Kind:      ViolationJunctionDeficit,
					ReachID:   id,
					Corrected: r.Corrected,
					Required:  sum,
				})
			}
			if r.Baseline > 0 && r.Corrected > 2*r.Baseline {
				r.AddFlag(river.FlagJunctionRaise2x)
			}
		}
	}
	return out
}
