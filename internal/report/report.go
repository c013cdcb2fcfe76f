// Package report aggregates a region run into the per-run diagnostic
// report delivered back to the storage layer and the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/swordhydro/facc/internal/pipeline"
)

// Report is the structured summary of one region run. All non-fatal
// conditions (flags, residual violations) are aggregated here instead of
// being raised individually.
type Report struct {
	Region     string `json:"region"`
	RunID      string `json:"run_id"`
	ReachCount int    `json:"reach_count"`

	// Corrections counts reaches by the rule that fired.
	Corrections map[string]int `json:"corrections"`

	// Flags counts diagnostic flags across the region.
	Flags map[string]int `json:"flags"`

	// TotalBeforeKm2 and TotalAfterKm2 are region-wide facc sums, a
	// coarse inflation check: the pipeline should redistribute area, not
	// mint it.
	TotalBeforeKm2 float64 `json:"total_before_km2"`
	TotalAfterKm2  float64 `json:"total_after_km2"`

	Violations []pipeline.Violation `json:"violations,omitempty"`
}

// Build aggregates a pipeline result into a report.
func Build(res *pipeline.Result) *Report {
	rep := &Report{
		Region:      res.Region,
		RunID:       res.RunID,
		ReachCount:  res.Dataset.Len(),
		Corrections: make(map[string]int),
		Flags:       make(map[string]int),
		Violations:  res.Violations,
	}
	for _, id := range res.Dataset.IDs() {
		r := res.Dataset.Reaches[id]
		if r.Correction != "" {
			rep.Corrections[string(r.Correction)]++
		}
		for _, f := range r.Flags {
			rep.Flags[string(f)]++
		}
		rep.TotalBeforeKm2 += r.InputFacc
		rep.TotalAfterKm2 += r.Corrected
	}
	return rep
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText renders the human-readable report. Numbers are formatted
// with the English locale printer so large km² totals stay readable.
func (r *Report) WriteText(w io.Writer) error {
	p := message.NewPrinter(language.English)

	if _, err := p.Fprintf(w, "region %s run %s\n", r.Region, r.RunID); err != nil {
		return err
	}
	p.Fprintf(w, "  reaches:    %d\n", r.ReachCount)
	p.Fprintf(w, "  facc total: %.1f km² -> %.1f km²\n", r.TotalBeforeKm2, r.TotalAfterKm2)

	p.Fprintf(w, "  corrections:\n")
	for _, k := range sortedKeys(r.Corrections) {
		p.Fprintf(w, "    %-26s %d\n", k, r.Corrections[k])
	}

	if len(r.Flags) > 0 {
		p.Fprintf(w, "  flags:\n")
		for _, k := range sortedKeys(r.Flags) {
			p.Fprintf(w, "    %-26s %d\n", k, r.Flags[k])
		}
	}

	if len(r.Violations) == 0 {
		p.Fprintf(w, "  residual violations: none\n")
		return nil
	}
	p.Fprintf(w, "  residual violations: %d\n", len(r.Violations))
	for _, v := range r.Violations {
		if _, err := fmt.Fprintf(w, "    %s\n", v); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
