// Package lint runs the validation-oracle invariant checks as SQL over
// the store.
//
// The pipeline's internal tolerances are stricter than the oracle's; a
// successful run must report zero violations from these two checks:
// chain monotonicity (relative tolerance) and junction conservation
// (absolute tolerance). Both checks read the reaches table, so they
// verify what was actually persisted, not the in-memory result.
package lint

import (
	"context"
	"fmt"

	"github.com/swordhydro/facc/internal/store"
)

// Violation is one oracle check failure row.
type Violation struct {
	Check      string  `json:"check"`
	ReachID    int64   `json:"reach_id"`
	UpstreamID int64   `json:"upstream_id,omitempty"`
	Facc       float64 `json:"facc"`
	Required   float64 `json:"required"`
}

// CheckChainMonotonicity flags every single-upstream, non-bifurcation
// edge where the downstream facc drops below upstream * relTol.
//
// Bifurcation-child edges (upstream has two or more outgoing edges) are
// excluded by design: the share rule is supposed to drop the value there.
// All queries ORDER BY reach id for deterministic output.
func CheckChainMonotonicity(ctx context.Context, st *store.Store, region string, relTol float64) ([]Violation, error) {
	rows, err := st.Query(ctx, `
		SELECT e.down_reach_id, e.up_reach_id, d.facc, u.facc
		FROM topology_edges e
		JOIN reaches u ON u.reach_id = e.up_reach_id
		JOIN reaches d ON d.reach_id = e.down_reach_id
		WHERE u.region = ?
		  AND d.facc < u.facc * ?
		  AND (SELECT COUNT(*) FROM topology_edges s
		       WHERE s.up_reach_id = e.up_reach_id) < 2
		  AND (SELECT COUNT(*) FROM topology_edges j
		       WHERE j.down_reach_id = e.down_reach_id) < 2
		ORDER BY e.down_reach_id, e.up_reach_id
	`, region, relTol)
	if err != nil {
		return nil, fmt.Errorf("chain monotonicity check: %w", err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		v := Violation{Check: "chain_monotonicity"}
		var upFacc float64
		if err := rows.Scan(&v.ReachID, &v.UpstreamID, &v.Facc, &upFacc); err != nil {
			return nil, fmt.Errorf("chain monotonicity check: %w", err)
		}
		v.Required = upFacc * relTol
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chain monotonicity check: %w", err)
	}
	return out, nil
}

// CheckJunctionConservation flags every junction whose facc falls short
// of the sum of its upstream facc values by more than absTolKm2.
func CheckJunctionConservation(ctx context.Context, st *store.Store, region string, absTolKm2 float64) ([]Violation, error) {
	rows, err := st.Query(ctx, `
		SELECT e.down_reach_id, d.facc, SUM(u.facc) AS upstream_sum
		FROM topology_edges e
		JOIN reaches u ON u.reach_id = e.up_reach_id
		JOIN reaches d ON d.reach_id = e.down_reach_id
		WHERE u.region = ?
		GROUP BY e.down_reach_id
		HAVING COUNT(*) >= 2 AND d.facc < SUM(u.facc) - ?
		ORDER BY e.down_reach_id
	`, region, absTolKm2)
	if err != nil {
		return nil, fmt.Errorf("junction conservation check: %w", err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		v := Violation{Check: "junction_conservation"}
		if err := rows.Scan(&v.ReachID, &v.Facc, &v.Required); err != nil {
			return nil, fmt.Errorf("junction conservation check: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("junction conservation check: %w", err)
	}
	return out, nil
}

// CheckAll runs both oracle checks and returns the combined violations.
func CheckAll(ctx context.Context, st *store.Store, region string, relTol, absTolKm2 float64) ([]Violation, error) {
	chain, err := CheckChainMonotonicity(ctx, st, region, relTol)
	if err != nil {
		return nil, err
	}
	junction, err := CheckJunctionConservation(ctx, st, region, absTolKm2)
	if err != nil {
		return nil, err
	}
	return append(chain, junction...), nil
}
