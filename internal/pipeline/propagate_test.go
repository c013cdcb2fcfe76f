package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swordhydro/facc/internal/config"
	"github.com/swordhydro/facc/internal/graph"
	"github.com/swordhydro/facc/internal/river"
	"github.com/swordhydro/facc/internal/testutil"
)

func buildGraph(t *testing.T, ds *river.Dataset) *graph.Graph {
	t.Helper()
	g, err := graph.Build(ds)
	require.NoError(t, err)
	return g
}

func TestPropagate_HeadwaterKeepsBaseline(t *testing.T) {
	ds := testutil.NewNetwork("NA").Reach(1, 100).Reach(2, 110).Edge(1, 2).Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	r := ds.Reaches[1]
	assert.Equal(t, 100.0, r.Corrected)
	assert.Equal(t, river.CorrectionUnchanged, r.Correction)
}

func TestPropagate_NormalLinkAddsLateral(t *testing.T) {
	ds := testutil.NewNetwork("NA").Reach(1, 100).Reach(2, 130).Edge(1, 2).Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	r := ds.Reaches[2]
	assert.Equal(t, 130.0, r.Corrected)
	assert.Equal(t, river.CorrectionLateralPropagate, r.Correction)
}

func TestPropagate_NegativeLateralClampedToZero(t *testing.T) {
	ds := testutil.NewNetwork("NA").Reach(1, 100).Reach(2, 80).Edge(1, 2).Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	assert.Equal(t, 100.0, ds.Reaches[2].Corrected, "a drop never subtracts area")
}

func TestPropagate_LateralCapBlocksReinjection(t *testing.T) {
	// Lateral of 190 against an upstream baseline of 10 exceeds the 10x
	// cap: a raster re-injection artifact, zeroed.
	ds := testutil.NewNetwork("NA").Reach(1, 10).Reach(2, 200).Edge(1, 2).Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	r := ds.Reaches[2]
	assert.Equal(t, 10.0, r.Corrected)
	assert.Equal(t, river.CorrectionLateralCapped, r.Correction)
}

func TestPropagate_JunctionConserves(t *testing.T) {
	ds := testutil.NewNetwork("NA").
		Reach(1, 100).Reach(2, 200).Reach(3, 350).
		Edge(1, 3).Edge(2, 3).
		Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	r := ds.Reaches[3]
	// sum(corrected) + lateral of max(350 - 300, 0)
	assert.Equal(t, 350.0, r.Corrected)
	assert.Equal(t, river.CorrectionJunctionFloor, r.Correction)
}

func TestPropagate_JunctionFloorsLowBaseline(t *testing.T) {
	ds := testutil.NewNetwork("NA").
		Reach(1, 100).Reach(2, 200).Reach(3, 250).
		Edge(1, 3).Edge(2, 3).
		Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	assert.Equal(t, 300.0, ds.Reaches[3].Corrected, "junction never falls below its upstream sum")
}

func TestPropagate_BifurcationSplitsByWidth(t *testing.T) {
	ds := testutil.NewNetwork("NA").
		WideReach(1, 1000, 0).
		WideReach(2, 1000, 6).
		WideReach(3, 1000, 4).
		Edge(1, 2).Edge(1, 3).
		Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	assert.InDelta(t, 600.0, ds.Reaches[2].Corrected, 1e-9)
	assert.InDelta(t, 400.0, ds.Reaches[3].Corrected, 1e-9)
	assert.Equal(t, river.CorrectionBifurcShare, ds.Reaches[2].Correction)
	assert.False(t, ds.Reaches[2].HasFlag(river.FlagMissingWidthEqualSplit))
}

func TestPropagate_BifurcationEqualSplitWithoutWidths(t *testing.T) {
	ds := testutil.NewNetwork("NA").
		Reach(1, 1000).Reach(2, 1000).Reach(3, 1000).
		Edge(1, 2).Edge(1, 3).
		Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	assert.InDelta(t, 500.0, ds.Reaches[2].Corrected, 1e-9)
	assert.InDelta(t, 500.0, ds.Reaches[3].Corrected, 1e-9)
	assert.True(t, ds.Reaches[2].HasFlag(river.FlagMissingWidthEqualSplit))
	assert.True(t, ds.Reaches[3].HasFlag(river.FlagMissingWidthEqualSplit))
}

func TestPropagate_BifurcationChannelDropsLateral(t *testing.T) {
	// The channel link below child 2 keeps the child's corrected value
	// even though its raster baseline still carries the pre-split value.
	ds := testutil.NewNetwork("NA").
		WideReach(1, 1000, 0).
		WideReach(2, 1000, 6).
		WideReach(3, 1000, 4).
		WideReach(4, 1000, 6).
		Edge(1, 2).Edge(1, 3).Edge(2, 4).
		Build()
	g := buildGraph(t, ds)

	propagate(g, ds, config.DefaultLateralCapRatio)

	r := ds.Reaches[4]
	assert.InDelta(t, 600.0, r.Corrected, 1e-9)
	assert.Equal(t, river.CorrectionBifurcChannelNoLateral, r.Correction)
}
