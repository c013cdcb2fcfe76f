package store

import (
	"context"
	"fmt"

	"github.com/swordhydro/facc/internal/river"
)

// Regions returns the distinct regions present in the database, sorted.
func (s *Store) Regions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT region FROM reaches ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	var regions []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("list regions: %w", err)
		}
		regions = append(regions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return regions, nil
}

// LoadDataset reads one region's reaches, raw node samples, and topology
// edges into memory. The returned dataset is the pipeline's working copy;
// the stored rows stay untouched until WriteResult.
func (s *Store) LoadDataset(ctx context.Context, region string) (*river.Dataset, error) {
	ds := river.NewDataset(region)

	rows, err := s.db.QueryContext(ctx, `
		SELECT reach_id, width, facc
		FROM reaches
		WHERE region = ?
		ORDER BY reach_id
	`, region)
	if err != nil {
		return nil, fmt.Errorf("load reaches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r := &river.Reach{}
		if err := rows.Scan(&r.ID, &r.Width, &r.Baseline); err != nil {
			return nil, fmt.Errorf("load reaches: %w", err)
		}
		if err := ds.Add(r); err != nil {
			return nil, fmt.Errorf("load reaches: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load reaches: %w", err)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("load reaches: region %q has no reaches", region)
	}

	// Node samples, ordered upstream to downstream within each reach.
	nodeRows, err := s.db.QueryContext(ctx, `
		SELECT n.reach_id, n.facc
		FROM reach_nodes n
		JOIN reaches r ON r.reach_id = n.reach_id
		WHERE r.region = ?
		ORDER BY n.reach_id, n.node_index
	`, region)
	if err != nil {
		return nil, fmt.Errorf("load node samples: %w", err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var id int64
		var facc float64
		if err := nodeRows.Scan(&id, &facc); err != nil {
			return nil, fmt.Errorf("load node samples: %w", err)
		}
		if r, ok := ds.Reaches[id]; ok {
			r.NodeFacc = append(r.NodeFacc, facc)
		}
	}
	if err := nodeRows.Err(); err != nil {
		return nil, fmt.Errorf("load node samples: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, `
		SELECT e.up_reach_id, e.down_reach_id, e.bifurcation_channel_id
		FROM topology_edges e
		JOIN reaches u ON u.reach_id = e.up_reach_id
		WHERE u.region = ?
		ORDER BY e.up_reach_id, e.down_reach_id
	`, region)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e river.TopologyEdge
		if err := edgeRows.Scan(&e.Up, &e.Down, &e.ChannelID); err != nil {
			return nil, fmt.Errorf("load edges: %w", err)
		}
		ds.AddEdge(e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}

	return ds, nil
}
