package river

import "math"

// Role classifies a reach by its position in the network topology.
//
// Roles are assigned exactly once by the graph builder and drive the
// correction-rule dispatch in the propagation stage. A reach that is both
// a confluence and a split is classified by its upstream side (junction),
// because the role selects the rule for the reach's OWN corrected value;
// its downstream children discover the split through the adjacency, not
// through the role.
type Role int

const (
	// RoleUnknown means the graph builder has not classified the reach yet.
	RoleUnknown Role = iota

	// RoleHeadwater has no upstream neighbors.
	RoleHeadwater

	// RoleJunction has two or more upstream neighbors (a confluence).
	RoleJunction

	// RoleBifurcationParent has exactly one upstream neighbor and two or
	// more downstream neighbors (a split).
	RoleBifurcationParent

	// RoleBifurcationChild has a sole upstream neighbor that is a split.
	RoleBifurcationChild

	// RoleBifurcationInternal lies on a 1:1 chain between a split and the
	// next confluence, tracked via a bifurcation channel id.
	RoleBifurcationInternal

	// RoleNormalLink has exactly one upstream and at most one downstream
	// neighbor and is not part of a bifurcation channel.
	RoleNormalLink
)

// String returns the snake_case name used in reports and storage.
func (r Role) String() string {
	switch r {
	case RoleHeadwater:
		return "headwater"
	case RoleJunction:
		return "junction"
	case RoleBifurcationParent:
		return "bifurcation_parent"
	case RoleBifurcationChild:
		return "bifurcation_child"
	case RoleBifurcationInternal:
		return "bifurcation_internal"
	case RoleNormalLink:
		return "normal_link"
	default:
		return "unknown"
	}
}

// CorrectionType records which propagation rule produced a reach's
// corrected facc. Stored alongside the corrected value for auditing.
type CorrectionType string

const (
	// CorrectionUnchanged means the baseline passed through as-is.
	CorrectionUnchanged CorrectionType = "unchanged"

	// CorrectionJunctionFloor means the junction conservation rule fired:
	// corrected = sum(corrected upstream) + non-negative lateral.
	CorrectionJunctionFloor CorrectionType = "junction_floor"

	// CorrectionBifurcShare means the reach received a width-proportional
	// share of its split parent's corrected value.
	CorrectionBifurcShare CorrectionType = "bifurc_share"

	// CorrectionBifurcChannelNoLateral means the reach inherited its
	// upstream value unchanged because it lies inside a bifurcation
	// channel, where the raster baseline is untrustworthy.
	CorrectionBifurcChannelNoLateral CorrectionType = "bifurc_channel_no_lateral"

	// CorrectionLateralPropagate means the single-upstream rule fired:
	// corrected = corrected upstream + non-negative baseline lateral.
	CorrectionLateralPropagate CorrectionType = "lateral_propagate"

	// CorrectionLateralCapped means the lateral term exceeded the cap
	// ratio and was zeroed to block raster re-injection.
	CorrectionLateralCapped CorrectionType = "lateral_capped"
)

// Flag is a non-mutating diagnostic marker attached to a reach.
type Flag string

const (
	// FlagOutlier marks a baseline above the Tukey upper fence of
	// log-space deviation from its graph neighborhood.
	FlagOutlier Flag = "flagged_outlier"

	// FlagInvalidBaseline marks a negative or non-finite input baseline
	// that was clamped to zero.
	FlagInvalidBaseline Flag = "invalid_baseline_zeroed"

	// FlagMissingWidthEqualSplit marks a bifurcation child whose sibling
	// widths were all missing or zero, forcing an equal-share split.
	FlagMissingWidthEqualSplit Flag = "missing_width_equal_split"

	// FlagJunctionRaise2x marks a junction whose corrected value is more
	// than twice its baseline.
	FlagJunctionRaise2x Flag = "junction_raise_2x"

	// FlagResidualDrop marks a 1:1 edge that still violates chain
	// monotonicity after all correction stages.
	FlagResidualDrop Flag = "residual_one_to_one_drop"

	// FlagBifurcationExcluded marks a bifurcation child edge that the
	// monotonicity check skips, since a drop across a split is expected.
	FlagBifurcationExcluded Flag = "bifurcation_excluded_from_check"
)

// Reach is a single river reach with its facc correction state.
//
// NodeFacc holds the raw positional samples in upstream-to-downstream
// order; it is never mutated. Baseline and Corrected are derived values
// owned by the pipeline stages.
type Reach struct {
	ID     int64
	Region string

	// Width is the channel width in meters; zero means unknown.
	Width float64

	// NodeFacc are raw per-node drainage-area samples (km²), ordered
	// upstream to downstream. May be empty when the storage layer
	// supplies a precomputed baseline only.
	NodeFacc []float64

	// InputFacc is the stored facc value at load time, kept for the
	// corrections audit trail. Never mutated by the pipeline.
	InputFacc float64

	// Baseline is the pre-propagation drainage-area estimate (km²),
	// owned and refined by Stage A.
	Baseline float64

	// Corrected is the pipeline output (km²).
	Corrected float64

	Role       Role
	Correction CorrectionType
	Flags      []Flag
}

// AddFlag appends a flag once; duplicates are ignored.
func (r *Reach) AddFlag(f Flag) {
	for _, have := range r.Flags {
		if have == f {
			return
		}
	}
	r.Flags = append(r.Flags, f)
}

// HasFlag reports whether the flag has been recorded on the reach.
func (r *Reach) HasFlag(f Flag) bool {
	for _, have := range r.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// SanitizeBaseline clamps negative or non-finite baselines to zero and
// records FlagInvalidBaseline. Returns true if the value was clamped.
func (r *Reach) SanitizeBaseline() bool {
	if math.IsNaN(r.Baseline) || math.IsInf(r.Baseline, 0) || r.Baseline < 0 {
		r.Baseline = 0
		r.AddFlag(FlagInvalidBaseline)
		return true
	}
	return false
}

// TopologyEdge is a directed reach-to-reach connection. Edges are
// read-only inputs to the correction subsystem.
type TopologyEdge struct {
	Up   int64
	Down int64

	// ChannelID identifies the bifurcation channel the edge belongs to,
	// when the edge lies between a split and the next confluence.
	// Zero means no channel membership (or membership to be derived).
	ChannelID int64
}
