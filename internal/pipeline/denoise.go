package pipeline

import (
	"math"

	"github.com/swordhydro/facc/internal/graph"
	"github.com/swordhydro/facc/internal/river"
)

// denoiseBaselines derives each reach's baseline from its raw positional
// samples.
//
// Drainage area is monotone non-decreasing along a reach's own length, so
// a clean reach's maximum sample is its downstream handoff value. When
// max/min exceeds the denoise ratio the samples straddle a raster
// artifact, and the most-downstream sample is the physically meaningful
// handoff instead.
//
// Reaches without samples keep the baseline supplied by the store.
func denoiseBaselines(ds *river.Dataset, ratio float64) {
	for _, id := range ds.IDs() {
		r := ds.Reaches[id]
		if len(r.NodeFacc) == 0 {
			continue
		}

		mx := math.Inf(-1)
		mn := math.Inf(1)
		valid := 0
		last := 0.0
		for _, s := range r.NodeFacc {
			if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
				continue
			}
			valid++
			last = s
			if s > mx {
				mx = s
			}
			if s < mn {
				mn = s
			}
		}
		if valid == 0 {
			r.Baseline = 0
			r.AddFlag(river.FlagInvalidBaseline)
			continue
		}

		noisy := mx > mn*ratio // mn == 0 with mx > 0 counts as noisy
		if noisy {
			r.Baseline = last
		} else {
			r.Baseline = mx
		}
	}
}

// smoothBaselines runs the Stage A isotonic pass: every maximal 1:1 chain
// is replaced by its closest non-decreasing sequence in log space. This
// guarantees chains are monotone before propagation, so raster noise
// cannot re-enter the network through lateral terms.
func smoothBaselines(g *graph.Graph, ds *river.Dataset) {
	for _, chain := range g.Chains() {
		values := make([]float64, len(chain))
		for i, id := range chain {
			values[i] = ds.Reaches[id].Baseline
		}
		adjusted := isotonicLog(values, uniformWeights(len(chain)), nil)
		for i, id := range chain {
			ds.Reaches[id].Baseline = adjusted[i]
		}
	}
}
