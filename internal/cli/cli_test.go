package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swordhydro/facc/internal/store"
)

// execute runs the facc CLI with the given args and returns combined
// output and the command error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedDB creates a SQLite database with the given statements applied.
func seedDB(t *testing.T, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facc.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	for _, stmt := range statements {
		_, err := st.DB().Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func queryFloat(t *testing.T, dbPath, query string) float64 {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	var v float64
	require.NoError(t, st.DB().QueryRow(query).Scan(&v))
	return v
}

func queryInt(t *testing.T, dbPath, query string) int {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	var v int
	require.NoError(t, st.DB().QueryRow(query).Scan(&v))
	return v
}

// dipChain seeds the canonical noisy dip: 100, 90, 120 on a 1:1 chain.
func dipChain(t *testing.T) string {
	return seedDB(t,
		`INSERT INTO reaches (reach_id, region, facc) VALUES (1, 'NA', 100), (2, 'NA', 90), (3, 'NA', 120)`,
		`INSERT INTO topology_edges (up_reach_id, down_reach_id) VALUES (1, 2), (2, 3)`,
	)
}

func TestRoot_RejectsInvalidFormat(t *testing.T) {
	db := dipChain(t)

	_, err := execute(t, "--format", "xml", "regions", "--db", db)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRegions(t *testing.T) {
	db := seedDB(t,
		`INSERT INTO reaches (reach_id, region, facc) VALUES (1, 'SA', 10), (2, 'NA', 10)`,
	)

	out, err := execute(t, "regions", "--db", db)

	require.NoError(t, err)
	assert.Equal(t, "NA\nSA\n", out)
}

func TestRegions_JSON(t *testing.T) {
	db := seedDB(t,
		`INSERT INTO reaches (reach_id, region, facc) VALUES (1, 'NA', 10)`,
	)

	out, err := execute(t, "--format", "json", "regions", "--db", db)

	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []any{"NA"}, resp.Data)
}

func TestCheck_CleanRegion(t *testing.T) {
	db := seedDB(t,
		`INSERT INTO reaches (reach_id, region, facc) VALUES (1, 'NA', 100), (2, 'NA', 110)`,
		`INSERT INTO topology_edges (up_reach_id, down_reach_id) VALUES (1, 2)`,
	)

	out, err := execute(t, "check", "--db", db, "--region", "NA")

	require.NoError(t, err)
	assert.Contains(t, out, "region NA: ok")
}

func TestCheck_ViolationsExitOne(t *testing.T) {
	db := dipChain(t)

	out, err := execute(t, "check", "--db", db, "--region", "NA")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "chain_monotonicity")
}

func TestCorrect_FixesDipAndPassesOracle(t *testing.T) {
	db := dipChain(t)

	out, err := execute(t, "correct", "--db", db, "--region", "NA")

	require.NoError(t, err)
	assert.Contains(t, out, "region NA run")
	assert.Contains(t, out, "residual violations: none")

	// The dip is pooled to ~94.87 and persisted.
	assert.InDelta(t, 94.868, queryFloat(t, db, `SELECT facc FROM reaches WHERE reach_id = 2`), 0.01)
	assert.Equal(t, 120.0, queryFloat(t, db, `SELECT facc FROM reaches WHERE reach_id = 3`))
	assert.Equal(t, 1, queryInt(t, db, `SELECT COUNT(*) FROM runs`))
	assert.Equal(t, 3, queryInt(t, db, `SELECT COUNT(*) FROM corrections`))

	// The detect-only surface agrees afterwards.
	_, err = execute(t, "check", "--db", db, "--region", "NA")
	assert.NoError(t, err)
}

func TestCorrect_DryRunLeavesFaccUntouched(t *testing.T) {
	db := dipChain(t)

	_, err := execute(t, "correct", "--db", db, "--region", "NA", "--dry-run")

	require.NoError(t, err)
	assert.Equal(t, 90.0, queryFloat(t, db, `SELECT facc FROM reaches WHERE reach_id = 2`))
	// The audit trail still records what would have happened.
	assert.Equal(t, 3, queryInt(t, db, `SELECT COUNT(*) FROM corrections`))
	assert.Equal(t, 1, queryInt(t, db, `SELECT dry_run FROM runs`))
}

func TestCorrect_CycleAbortsRegion(t *testing.T) {
	db := seedDB(t,
		`INSERT INTO reaches (reach_id, region, facc) VALUES (1, 'NA', 100), (2, 'NA', 110)`,
		`INSERT INTO topology_edges (up_reach_id, down_reach_id) VALUES (1, 2), (2, 1)`,
	)

	out, err := execute(t, "correct", "--db", db, "--region", "NA")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "CYCLE_DETECTED")
	assert.Equal(t, 0, queryInt(t, db, `SELECT COUNT(*) FROM corrections`), "cycle writes nothing")
	assert.Equal(t, 100.0, queryFloat(t, db, `SELECT facc FROM reaches WHERE reach_id = 1`))
}

func TestCorrect_AllIsolatesFailingRegion(t *testing.T) {
	db := seedDB(t,
		`INSERT INTO reaches (reach_id, region, facc) VALUES
			(1, 'NA', 100), (2, 'NA', 130),
			(10, 'SA', 100), (11, 'SA', 110)`,
		`INSERT INTO topology_edges (up_reach_id, down_reach_id) VALUES (1, 2), (10, 11), (11, 10)`,
	)

	out, err := execute(t, "correct", "--db", db, "--all")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "region NA run", "healthy region still corrected")
	assert.Contains(t, out, "CYCLE_DETECTED")
	assert.Equal(t, 130.0, queryFloat(t, db, `SELECT facc FROM reaches WHERE reach_id = 2`))
	assert.Equal(t, 110.0, queryFloat(t, db, `SELECT facc FROM reaches WHERE reach_id = 11`))
}

func TestCorrect_RegionAndAllMutuallyExclusive(t *testing.T) {
	db := dipChain(t)

	_, err := execute(t, "correct", "--db", db, "--region", "NA", "--all")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCorrect_RequiresRegionOrAll(t *testing.T) {
	db := dipChain(t)

	_, err := execute(t, "correct", "--db", db)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--region or --all")
}

func TestCorrect_ConfigFileAndFlagOverride(t *testing.T) {
	db := dipChain(t)
	cfgPath := filepath.Join(t.TempDir(), "facc.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("chain_tolerance: 0.80\n"), 0o644))

	_, err := execute(t, "correct", "--db", db, "--region", "NA",
		"--config", cfgPath, "--chain-tol", "0.99")

	require.NoError(t, err)
}

func TestCorrect_InvalidConfigFile(t *testing.T) {
	db := dipChain(t)
	cfgPath := filepath.Join(t.TempDir(), "facc.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("chain_tolerance: 2.0\n"), 0o644))

	_, err := execute(t, "correct", "--db", db, "--region", "NA", "--config", cfgPath)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
}
