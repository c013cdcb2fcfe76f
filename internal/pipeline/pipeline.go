package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/swordhydro/facc/internal/config"
	"github.com/swordhydro/facc/internal/graph"
	"github.com/swordhydro/facc/internal/river"
)

// Result is the outcome of one region run: the corrected dataset, the
// residual violations, and the run identity for the store ledger.
type Result struct {
	Region  string
	RunID   string
	Dataset *river.Dataset
	Graph   *graph.Graph

	// Violations are the residual invariant failures found by the final
	// diagnostics pass. A non-empty slice below the configured threshold
	// is expected residue (missing width data), not an error.
	Violations []Violation
}

// Runner executes the correction pipeline. The configuration is captured
// at construction and never mutated; a Runner is safe for concurrent use
// across regions.
type Runner struct {
	cfg config.Run
}

// New creates a Runner with the given configuration.
func New(cfg config.Run) *Runner {
	return &Runner{cfg: cfg}
}

// Run corrects one region's dataset in place.
//
// The stages execute strictly in order: graph build, Stage A cleaning,
// Stage B1 propagation, safety nets B2/B3/B5, diagnostics. There is no
// cancellation mid-propagation — the context is checked once up front,
// then the run either completes or aborts atomically on a cycle.
//
// On a cycle the dataset is untouched and the error is fatal for the
// region. On residual violations above the threshold the Result is still
// returned alongside a ResidualError so callers can report before
// deciding not to persist.
func (p *Runner) Run(ctx context.Context, ds *river.Dataset) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, err := graph.Build(ds)
	if err != nil {
		return nil, err
	}

	// Stage A: clean baselines before any cross-network propagation.
	denoiseBaselines(ds, p.cfg.DenoiseRatio)
	flagOutliers(g, ds)
	smoothBaselines(g, ds)

	// Stage B: propagate, then reconcile.
	propagate(g, ds, p.cfg.LateralCapRatio)
	reconcileChains(g, ds)
	reconcileJunctions(g, ds)
	finalPass(g, ds, p.cfg.LateralCapRatio)

	violations := diagnose(g, ds, p.cfg.ChainTolerance, p.cfg.JunctionToleranceKm2)

	res := &Result{
		Region:     ds.Region,
		RunID:      uuid.NewString(),
		Dataset:    ds,
		Graph:      g,
		Violations: violations,
	}
	if len(violations) > p.cfg.MaxResidualViolations {
		return res, &ResidualError{
			Region:     ds.Region,
			Violations: len(violations),
			Max:        p.cfg.MaxResidualViolations,
		}
	}
	return res, nil
}

// RunAll corrects multiple regions concurrently. Regions are disjoint
// graphs with zero shared mutable state, so each gets its own goroutine,
// bounded by the configured parallelism.
//
// One region's failure never cancels another: every region runs to its
// own completion or abort. Results and errors are keyed by region; a
// region can appear in both maps when it completed above the residual
// threshold.
func (p *Runner) RunAll(ctx context.Context, datasets []*river.Dataset) (map[string]*Result, map[string]error) {
	results := make(map[string]*Result, len(datasets))
	errs := make(map[string]error)
	var mu sync.Mutex

	var grp errgroup.Group
	if p.cfg.Parallelism > 0 {
		grp.SetLimit(p.cfg.Parallelism)
	}

	for _, ds := range datasets {
		grp.Go(func() error {
			res, err := p.Run(ctx, ds)
			mu.Lock()
			defer mu.Unlock()
			if res != nil {
				results[res.Region] = res
			}
			if err != nil {
				errs[ds.Region] = err
			}
			return nil
		})
	}

	_ = grp.Wait() // workers report through the maps, never an error
	return results, errs
}
