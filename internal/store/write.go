package store

import (
	"context"
	"fmt"
	"time"

	"github.com/swordhydro/facc/internal/pipeline"
)

// WriteResult persists one region run atomically: the run ledger row,
// per-reach corrections with their rule tags, diagnostic flags, and —
// unless dryRun — the updated facc values on the reaches table.
//
// Everything happens in a single transaction. A failure anywhere rolls
// the whole region back, so the store never holds a partial run.
// Re-writing the same run id is idempotent (ON CONFLICT upserts).
func (s *Store) WriteResult(ctx context.Context, res *pipeline.Result, dryRun bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	ds := res.Dataset

	corrected := 0
	for _, id := range ds.IDs() {
		if ds.Reaches[id].Correction != "" {
			corrected++
		}
	}

	dry := 0
	if dryRun {
		dry = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, region, started_at, finished_at, reach_count, corrected_count, residual_violations, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			finished_at = excluded.finished_at,
			reach_count = excluded.reach_count,
			corrected_count = excluded.corrected_count,
			residual_violations = excluded.residual_violations,
			dry_run = excluded.dry_run
	`, res.RunID, res.Region, now, now, ds.Len(), corrected, len(res.Violations), dry)
	if err != nil {
		return fmt.Errorf("write run ledger: %w", err)
	}

	corrStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO corrections (run_id, reach_id, facc_before, facc_after, correction_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, reach_id) DO UPDATE SET
			facc_before = excluded.facc_before,
			facc_after = excluded.facc_after,
			correction_type = excluded.correction_type
	`)
	if err != nil {
		return fmt.Errorf("write corrections: %w", err)
	}
	defer corrStmt.Close()

	flagStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reach_flags (run_id, reach_id, flag)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write flags: %w", err)
	}
	defer flagStmt.Close()

	for _, id := range ds.IDs() {
		r := ds.Reaches[id]
		if _, err := corrStmt.ExecContext(ctx,
			res.RunID, id, r.InputFacc, r.Corrected, string(r.Correction)); err != nil {
			return fmt.Errorf("write corrections: reach %d: %w", id, err)
		}
		for _, f := range r.Flags {
			if _, err := flagStmt.ExecContext(ctx, res.RunID, id, string(f)); err != nil {
				return fmt.Errorf("write flags: reach %d: %w", id, err)
			}
		}
		if !dryRun {
			if _, err := tx.ExecContext(ctx,
				`UPDATE reaches SET facc = ? WHERE reach_id = ?`, r.Corrected, id); err != nil {
				return fmt.Errorf("apply corrections: reach %d: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
