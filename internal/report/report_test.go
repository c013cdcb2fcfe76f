package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swordhydro/facc/internal/pipeline"
	"github.com/swordhydro/facc/internal/river"
)

// fixtureResult builds a small hand-assembled run result with one reach
// per interesting correction outcome and a fixed run id for golden files.
func fixtureResult(t *testing.T) *pipeline.Result {
	t.Helper()
	ds := river.NewDataset("NA")
	r1 := &river.Reach{ID: 1, Baseline: 100}
	r2 := &river.Reach{ID: 2, Baseline: 90}
	r3 := &river.Reach{ID: 3, Baseline: 1000}
	for _, r := range []*river.Reach{r1, r2, r3} {
		require.NoError(t, ds.Add(r))
	}
	r1.Corrected = 100
	r1.Correction = river.CorrectionUnchanged
	r2.Corrected = 100
	r2.Correction = river.CorrectionLateralPropagate
	r3.Corrected = 500
	r3.Correction = river.CorrectionBifurcShare
	r3.AddFlag(river.FlagMissingWidthEqualSplit)

	return &pipeline.Result{
		Region:  "NA",
		RunID:   "00000000-0000-0000-0000-000000000000",
		Dataset: ds,
	}
}

func TestBuild_Aggregates(t *testing.T) {
	rep := Build(fixtureResult(t))

	assert.Equal(t, "NA", rep.Region)
	assert.Equal(t, 3, rep.ReachCount)
	assert.Equal(t, map[string]int{
		"unchanged":         1,
		"lateral_propagate": 1,
		"bifurc_share":      1,
	}, rep.Corrections)
	assert.Equal(t, map[string]int{"missing_width_equal_split": 1}, rep.Flags)
	assert.Equal(t, 1190.0, rep.TotalBeforeKm2)
	assert.Equal(t, 700.0, rep.TotalAfterKm2)
	assert.Empty(t, rep.Violations)
}

func TestWriteText_Golden(t *testing.T) {
	rep := Build(fixtureResult(t))

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))

	g := goldie.New(t)
	g.Assert(t, "report_text", buf.Bytes())
}

func TestWriteText_GoldenWithViolations(t *testing.T) {
	res := fixtureResult(t)
	res.Violations = []pipeline.Violation{{
		Kind:       pipeline.ViolationChainDrop,
		ReachID:    2,
		UpstreamID: 1,
		Corrected:  80,
		Required:   95,
	}}
	rep := Build(res)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))

	g := goldie.New(t)
	g.Assert(t, "report_text_violations", buf.Bytes())
}

func TestWriteJSON(t *testing.T) {
	rep := Build(fixtureResult(t))

	var buf bytes.Buffer
	require.NoError(t, rep.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "NA", decoded["region"])
	assert.Equal(t, float64(3), decoded["reach_count"])
	assert.NotContains(t, decoded, "violations", "empty violations are omitted")
	corrections, ok := decoded["corrections"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), corrections["bifurc_share"])
}
