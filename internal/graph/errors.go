package graph

import (
	"errors"
	"fmt"

	"github.com/swordhydro/facc/internal/river"
)

// BuildErrorCode categorizes graph construction errors.
type BuildErrorCode string

const (
	// ErrCodeCycleDetected indicates the topology edge set contains a
	// cycle. Always fatal for the region: the correction stages require
	// a DAG and a cycle is never silently broken.
	ErrCodeCycleDetected BuildErrorCode = "CYCLE_DETECTED"

	// ErrCodeDanglingEdge indicates an edge references a reach id that
	// is not present in the dataset.
	ErrCodeDanglingEdge BuildErrorCode = "DANGLING_EDGE"
)

// BuildError represents a fatal error detected while constructing the
// reach graph for a region.
type BuildError struct {
	Code    BuildErrorCode
	Region  string
	Message string

	// Edges names the offending edge set. For cycles this is every edge
	// whose endpoints both remain unresolved after the topological sort,
	// which always contains the cyclic core.
	Edges []river.TopologyEdge
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if len(e.Edges) > 0 {
		return fmt.Sprintf("%s: %s (region=%s, edges=%d)", e.Code, e.Message, e.Region, len(e.Edges))
	}
	return fmt.Sprintf("%s: %s (region=%s)", e.Code, e.Message, e.Region)
}

// NewCycleError creates a BuildError for a detected cycle.
func NewCycleError(region string, edges []river.TopologyEdge) *BuildError {
	return &BuildError{
		Code:    ErrCodeCycleDetected,
		Region:  region,
		Message: "topology contains a cycle",
		Edges:   edges,
	}
}

// NewDanglingEdgeError creates a BuildError for an edge with an unknown
// endpoint.
func NewDanglingEdgeError(region string, edge river.TopologyEdge) *BuildError {
	return &BuildError{
		Code:    ErrCodeDanglingEdge,
		Region:  region,
		Message: fmt.Sprintf("edge %d -> %d references unknown reach", edge.Up, edge.Down),
		Edges:   []river.TopologyEdge{edge},
	}
}

// IsCycleError returns true if the error is a cycle detection error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == ErrCodeCycleDetected
	}
	return false
}
