package pipeline

import (
	"math"
	"sort"

	"github.com/swordhydro/facc/internal/graph"
	"github.com/swordhydro/facc/internal/river"
)

// minOutlierDeviation floors the Tukey fence at log(2): a factor-of-two
// deviation from the neighborhood median.
const minOutlierDeviation = 0.6931471805599453

// flagOutliers marks reaches whose baseline deviates sharply from their
// graph neighborhood. Diagnostic only: values are never mutated here.
//
// The deviation metric is |log1p(baseline) - log1p(median of neighbor
// baselines)|; reaches above the upper Tukey fence (Q3 + 1.5*IQR) of the
// region-wide deviation distribution get FlagOutlier.
func flagOutliers(g *graph.Graph, ds *river.Dataset) {
	ids := ds.IDs()

	type dev struct {
		id  int64
		val float64
	}
	devs := make([]dev, 0, len(ids))

	for _, id := range ids {
		neighbors := make([]float64, 0, 4)
		for _, up := range g.Upstream(id) {
			neighbors = append(neighbors, ds.Reaches[up].Baseline)
		}
		for _, dn := range g.Downstream(id) {
			neighbors = append(neighbors, ds.Reaches[dn].Baseline)
		}
		if len(neighbors) == 0 {
			continue
		}
		med := median(neighbors)
		d := math.Abs(math.Log1p(ds.Reaches[id].Baseline) - math.Log1p(med))
		devs = append(devs, dev{id: id, val: d})
	}
	if len(devs) < 4 {
		return // too few reaches for a meaningful fence
	}

	vals := make([]float64, len(devs))
	for i, d := range devs {
		vals[i] = d.val
	}
	sort.Float64s(vals)
	q1 := quantile(vals, 0.25)
	q3 := quantile(vals, 0.75)
	fence := q3 + 1.5*(q3-q1)
	// On quiet networks the IQR collapses and the fence degenerates to
	// noise level; a reach must at least double against its neighborhood
	// median before it can count as an outlier.
	if fence < minOutlierDeviation {
		fence = minOutlierDeviation
	}

	for _, d := range devs {
		if d.val > fence {
			ds.Reaches[d.id].AddFlag(river.FlagOutlier)
		}
	}
}

// median returns the middle value of an unsorted slice. The input is
// copied; the caller's slice is untouched.
func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// quantile returns the q-th quantile of a sorted slice using linear
// interpolation between ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
