package lint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swordhydro/facc/internal/store"
)

func openSeeded(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "facc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seed(t *testing.T, st *store.Store, query string, args ...any) {
	t.Helper()
	_, err := st.DB().Exec(query, args...)
	require.NoError(t, err)
}

func seedReach(t *testing.T, st *store.Store, id int64, region string, facc float64) {
	seed(t, st, `INSERT INTO reaches (reach_id, region, facc) VALUES (?, ?, ?)`, id, region, facc)
}

func seedEdge(t *testing.T, st *store.Store, up, down int64) {
	seed(t, st, `INSERT INTO topology_edges (up_reach_id, down_reach_id) VALUES (?, ?)`, up, down)
}

func TestCheckChainMonotonicity_DetectsDrop(t *testing.T) {
	st := openSeeded(t)
	seedReach(t, st, 1, "NA", 100)
	seedReach(t, st, 2, "NA", 80) // 80 < 100 * 0.95
	seedReach(t, st, 3, "NA", 80) // equal to upstream, fine
	seedEdge(t, st, 1, 2)
	seedEdge(t, st, 2, 3)

	violations, err := CheckChainMonotonicity(context.Background(), st, "NA", 0.95)

	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, int64(2), violations[0].ReachID)
	assert.Equal(t, int64(1), violations[0].UpstreamID)
	assert.Equal(t, 80.0, violations[0].Facc)
	assert.InDelta(t, 95.0, violations[0].Required, 1e-9)
}

func TestCheckChainMonotonicity_ExcludesBifurcationEdges(t *testing.T) {
	// Reach 1 splits into 2 and 3: both carry less than the parent, which
	// is the share rule working as intended, not a violation.
	st := openSeeded(t)
	seedReach(t, st, 1, "NA", 1000)
	seedReach(t, st, 2, "NA", 600)
	seedReach(t, st, 3, "NA", 400)
	seedEdge(t, st, 1, 2)
	seedEdge(t, st, 1, 3)

	violations, err := CheckChainMonotonicity(context.Background(), st, "NA", 0.95)

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckChainMonotonicity_ExcludesJunctionEdges(t *testing.T) {
	// A single branch entering a junction is checked by the conservation
	// rule instead, never as a chain edge.
	st := openSeeded(t)
	seedReach(t, st, 1, "NA", 100)
	seedReach(t, st, 2, "NA", 200)
	seedReach(t, st, 3, "NA", 290)
	seedEdge(t, st, 1, 3)
	seedEdge(t, st, 2, 3)

	violations, err := CheckChainMonotonicity(context.Background(), st, "NA", 0.95)

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckJunctionConservation_DetectsDeficit(t *testing.T) {
	st := openSeeded(t)
	seedReach(t, st, 1, "NA", 100)
	seedReach(t, st, 2, "NA", 200)
	seedReach(t, st, 3, "NA", 250) // 250 < 300 - 1
	seedEdge(t, st, 1, 3)
	seedEdge(t, st, 2, 3)

	violations, err := CheckJunctionConservation(context.Background(), st, "NA", 1.0)

	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, int64(3), violations[0].ReachID)
	assert.Equal(t, 250.0, violations[0].Facc)
	assert.Equal(t, 300.0, violations[0].Required)
}

func TestCheckJunctionConservation_ToleranceAbsorbsSmallDeficit(t *testing.T) {
	st := openSeeded(t)
	seedReach(t, st, 1, "NA", 100)
	seedReach(t, st, 2, "NA", 200)
	seedReach(t, st, 3, "NA", 299.5)
	seedEdge(t, st, 1, 3)
	seedEdge(t, st, 2, 3)

	violations, err := CheckJunctionConservation(context.Background(), st, "NA", 1.0)

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckAll_ScopedToRegion(t *testing.T) {
	st := openSeeded(t)
	// NA is clean; SA has a chain drop.
	seedReach(t, st, 1, "NA", 100)
	seedReach(t, st, 2, "NA", 110)
	seedEdge(t, st, 1, 2)
	seedReach(t, st, 10, "SA", 100)
	seedReach(t, st, 11, "SA", 50)
	seedEdge(t, st, 10, 11)

	naViolations, err := CheckAll(context.Background(), st, "NA", 0.95, 1.0)
	require.NoError(t, err)
	assert.Empty(t, naViolations)

	saViolations, err := CheckAll(context.Background(), st, "SA", 0.95, 1.0)
	require.NoError(t, err)
	require.Len(t, saViolations, 1)
	assert.Equal(t, "chain_monotonicity", saViolations[0].Check)
	assert.Equal(t, int64(11), saViolations[0].ReachID)
}
