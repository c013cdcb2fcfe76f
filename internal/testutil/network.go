// Package testutil provides fixture builders shared by the pipeline,
// store, and CLI tests.
package testutil

import "github.com/swordhydro/facc/internal/river"

// NetworkBuilder assembles a small river network dataset for tests.
//
// Reaches and edges are declared fluently; Build returns the dataset
// ready for graph construction. The builder panics on duplicate reach
// ids — a fixture bug, not a runtime condition.
//
//	ds := testutil.NewNetwork("NA").
//		Reach(1, 100).
//		Reach(2, 90).
//		Edge(1, 2).
//		Build()
type NetworkBuilder struct {
	ds *river.Dataset
}

// NewNetwork creates a builder for the given region.
func NewNetwork(region string) *NetworkBuilder {
	return &NetworkBuilder{ds: river.NewDataset(region)}
}

// Reach adds a reach with a baseline facc and no width.
func (b *NetworkBuilder) Reach(id int64, baseline float64) *NetworkBuilder {
	return b.add(&river.Reach{ID: id, Baseline: baseline})
}

// WideReach adds a reach with a baseline facc and a channel width.
func (b *NetworkBuilder) WideReach(id int64, baseline, width float64) *NetworkBuilder {
	return b.add(&river.Reach{ID: id, Baseline: baseline, Width: width})
}

// SampledReach adds a reach whose baseline is derived from raw node
// samples (upstream to downstream order) by the denoise stage.
func (b *NetworkBuilder) SampledReach(id int64, samples ...float64) *NetworkBuilder {
	return b.add(&river.Reach{ID: id, NodeFacc: samples})
}

// Edge connects two reaches upstream to downstream.
func (b *NetworkBuilder) Edge(up, down int64) *NetworkBuilder {
	b.ds.AddEdge(river.TopologyEdge{Up: up, Down: down})
	return b
}

// ChannelEdge connects two reaches with a precomputed bifurcation
// channel id.
func (b *NetworkBuilder) ChannelEdge(up, down, channel int64) *NetworkBuilder {
	b.ds.AddEdge(river.TopologyEdge{Up: up, Down: down, ChannelID: channel})
	return b
}

// Build returns the assembled dataset.
func (b *NetworkBuilder) Build() *river.Dataset {
	return b.ds
}

func (b *NetworkBuilder) add(r *river.Reach) *NetworkBuilder {
	if err := b.ds.Add(r); err != nil {
		panic(err)
	}
	return b
}
