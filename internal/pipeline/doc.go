// Package pipeline implements the two-stage facc correction engine.
//
// The pipeline turns per-reach drainage-area estimates sampled from a
// single-flow-direction raster into values consistent with the vector
// network topology. Raster sampling picks one downstream branch at every
// split, so the unpicked branches inherit cloned or wildly wrong values;
// the stages below remove that noise and re-establish the conservation
// invariants.
//
// Stage A cleans baselines before any cross-network propagation:
//
//	denoiseBaselines  per-reach node-sample denoise
//	flagOutliers      Tukey-fence outlier flags (never mutates values)
//	smoothBaselines   weighted log-space PAVA per 1:1 chain
//
// Stage B propagates in topological order, one closed-form rule per reach
// role, then runs safety nets:
//
//	propagate          B1: role-rule dispatch, laterals from baselines
//	reconcileChains    B2: chain PAVA with split children pinned
//	reconcileJunctions B3: junction rule re-applied
//	finalPass          B5: raise-only full pass
//	diagnose           residual invariant checks, non-mutating flags
//
// Laterals are computed from pre-propagation baselines, never from
// corrected values, so raising a junction's floor cannot inflate a
// downstream lateral. This is what keeps nested split/merge topology from
// compounding errors exponentially.
//
// Every stage walks reaches in a deterministic order (sorted wavefronts)
// and the whole pipeline is idempotent: re-running it on its own output
// produces zero deltas.
package pipeline
