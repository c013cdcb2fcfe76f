package pipeline

import (
	"errors"
	"fmt"
)

// ResidualError reports that a completed run left more invariant
// violations than the configured threshold allows. The corrected dataset
// and its report still exist; callers decide whether to persist.
type ResidualError struct {
	Region     string
	Violations int
	Max        int
}

// Error implements the error interface.
func (e *ResidualError) Error() string {
	return fmt.Sprintf("RESIDUAL_VIOLATION: %d residual invariant violations exceed threshold %d (region=%s)",
		e.Violations, e.Max, e.Region)
}

// IsResidualError returns true if the error is a residual-violation
// threshold error. Uses errors.As to handle wrapped errors.
func IsResidualError(err error) bool {
	var re *ResidualError
	return errors.As(err, &re)
}
