package river

import (
	"fmt"
	"sort"
)

// Dataset is one region's reaches and topology, loaded once before a run.
//
// Iteration over reaches is deterministic: IDs() returns reach ids in
// ascending order, and every pipeline stage walks reaches through it.
type Dataset struct {
	Region  string
	Reaches map[int64]*Reach
	Edges   []TopologyEdge

	ids []int64 // sorted cache, built lazily
}

// NewDataset creates an empty dataset for a region.
func NewDataset(region string) *Dataset {
	return &Dataset{
		Region:  region,
		Reaches: make(map[int64]*Reach),
	}
}

// Add inserts a reach, sanitizing its baseline. Returns an error on a
// duplicate id.
func (d *Dataset) Add(r *Reach) error {
	if _, dup := d.Reaches[r.ID]; dup {
		return fmt.Errorf("duplicate reach id %d in region %s", r.ID, d.Region)
	}
	r.Region = d.Region
	r.SanitizeBaseline()
	r.InputFacc = r.Baseline
	d.Reaches[r.ID] = r
	d.ids = nil
	return nil
}

// AddEdge appends a topology edge. Endpoints are validated by the graph
// builder, not here.
func (d *Dataset) AddEdge(e TopologyEdge) {
	d.Edges = append(d.Edges, e)
}

// IDs returns all reach ids in ascending order.
func (d *Dataset) IDs() []int64 {
	if d.ids == nil {
		d.ids = make([]int64, 0, len(d.Reaches))
		for id := range d.Reaches {
			d.ids = append(d.ids, id)
		}
		sort.Slice(d.ids, func(i, j int) bool { return d.ids[i] < d.ids[j] })
	}
	return d.ids
}

// Len returns the number of reaches.
func (d *Dataset) Len() int { return len(d.Reaches) }

// Clone returns a deep copy of the dataset. Used by dry runs and by the
// idempotence tests: a run mutates only its own copy until the store
// commit.
func (d *Dataset) Clone() *Dataset {
	out := NewDataset(d.Region)
	for id, r := range d.Reaches {
		cp := *r
		if r.NodeFacc != nil {
			cp.NodeFacc = append([]float64(nil), r.NodeFacc...)
		}
		if r.Flags != nil {
			cp.Flags = append([]Flag(nil), r.Flags...)
		}
		out.Reaches[id] = &cp
	}
	out.Edges = append([]TopologyEdge(nil), d.Edges...)
	return out
}
