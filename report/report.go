// Package report assembles harness measurements and performance-model
// results into human-readable and machine-readable output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sarchlab/urvsim/harness"
	"github.com/sarchlab/urvsim/perf"
)

// Version identifies the report format.
const Version = "1.0.0"

// Report is the complete output of one verification-and-modeling run.
type Report struct {
	// Metadata about the run
	Metadata Metadata `json:"metadata"`

	// Benchmarks is the list of measured throughput results
	Benchmarks []harness.BenchmarkResult `json:"benchmarks"`

	// Scaling is the analysis toward the comparison target, if requested
	Scaling *perf.ScalingAnalysis `json:"scaling,omitempty"`

	// Comparison relates the configuration to a reference accelerator,
	// if requested
	Comparison *perf.Comparison `json:"comparison,omitempty"`

	// Summary contains aggregate statistics
	Summary Summary `json:"summary"`
}

// Metadata contains information about the run.
type Metadata struct {
	// Timestamp when the run happened
	Timestamp string `json:"timestamp"`

	// Version of the report format
	Version string `json:"version"`

	// Config is the hardware configuration the run modeled
	Config perf.Config `json:"config"`
}

// Summary contains aggregate statistics across all measurements.
type Summary struct {
	// TotalBenchmarks is the number of measurements taken
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalOperations is the sum of matrix operations across measurements
	TotalOperations int `json:"total_operations"`

	// TotalCycles is the sum of simulated cycles across measurements
	TotalCycles uint64 `json:"total_cycles"`

	// AverageCyclesPerOp is the cycle cost averaged over all operations
	AverageCyclesPerOp float64 `json:"average_cycles_per_op"`

	// BestMeasuredTOPS is the highest sustained rate of any measurement
	BestMeasuredTOPS float64 `json:"best_measured_tops"`

	// TheoreticalTOPS is the model's peak for the configuration
	TheoreticalTOPS float64 `json:"theoretical_tops"`
}

// New creates an empty report for one hardware configuration.
func New(cfg *perf.Config) *Report {
	return &Report{
		Metadata: Metadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config:    *cfg,
		},
	}
}

// AddBenchmark appends one measured result.
func (r *Report) AddBenchmark(result harness.BenchmarkResult) {
	r.Benchmarks = append(r.Benchmarks, result)
}

// SetScaling attaches a scaling analysis.
func (r *Report) SetScaling(a *perf.ScalingAnalysis) { r.Scaling = a }

// SetComparison attaches a reference comparison.
func (r *Report) SetComparison(c perf.Comparison) { r.Comparison = &c }

// Finalize recomputes the summary from the accumulated measurements.
// Call it after the last AddBenchmark and before writing.
func (r *Report) Finalize() {
	s := Summary{
		TotalBenchmarks: len(r.Benchmarks),
		TheoreticalTOPS: r.Metadata.Config.TheoreticalTOPS(),
	}
	for _, b := range r.Benchmarks {
		s.TotalOperations += b.Operations
		s.TotalCycles += b.Cycles
		if b.TOPS > s.BestMeasuredTOPS {
			s.BestMeasuredTOPS = b.TOPS
		}
	}
	if s.TotalOperations > 0 {
		s.AverageCyclesPerOp = float64(s.TotalCycles) / float64(s.TotalOperations)
	}
	r.Summary = s
}

// WriteJSON writes the report as indented JSON for automated comparison.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes the report in a human-readable format.
func (r *Report) WriteText(w io.Writer) {
	cfg := r.Metadata.Config
	_, _ = fmt.Fprintln(w, "=== UnifiedRISCV GPU Verification Report ===")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "Configuration: %d units @ %.0f MHz, %s\n",
		cfg.Units, float64(cfg.Frequency)/1e6, cfg.Precision)
	_, _ = fmt.Fprintf(w, "Theoretical peak: %.5f TOPS\n", r.Summary.TheoreticalTOPS)
	_, _ = fmt.Fprintln(w, "")

	for _, b := range r.Benchmarks {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", b.Name)
		_, _ = fmt.Fprintf(w, "  Unit:           %d\n", b.Unit)
		_, _ = fmt.Fprintf(w, "  Operations:     %d\n", b.Operations)
		_, _ = fmt.Fprintf(w, "  Cycles:         %d\n", b.Cycles)
		_, _ = fmt.Fprintf(w, "  Cycles/Op:      %.1f\n", b.CyclesPerOp)
		_, _ = fmt.Fprintf(w, "  Ops/s:          %.0f\n", b.OpsPerSecond)
		_, _ = fmt.Fprintf(w, "  Measured TOPS:  %.6f\n", b.TOPS)
		_, _ = fmt.Fprintln(w, "")
	}

	if r.Scaling != nil {
		_, _ = fmt.Fprintln(w, "--- Scaling Analysis ---")
		_, _ = fmt.Fprintf(w, "Base: %.5f TOPS, target: %.2f TOPS (%.1fx)\n",
			r.Scaling.BaseTOPS, r.Scaling.TargetTOPS, r.Scaling.ScaleFactor)
		for _, opt := range r.Scaling.Options {
			mark := "infeasible"
			if opt.Feasible {
				mark = "feasible"
			}
			_, _ = fmt.Fprintf(w, "  %s: %s [%s, ~%.0fK LUTs]\n",
				opt.Name, opt.Description, mark, opt.EstimatedLUTs/1000)
		}
		_, _ = fmt.Fprintln(w, "")
	}

	if r.Comparison != nil {
		c := r.Comparison
		_, _ = fmt.Fprintf(w, "--- %s Comparison ---\n", c.Reference)
		_, _ = fmt.Fprintf(w, "  Performance gap:  %.1fx\n", c.TOPSRatio)
		_, _ = fmt.Fprintf(w, "  Frequency gap:    %.1fx\n", c.FrequencyRatio)
		_, _ = fmt.Fprintf(w, "  Unit count gap:   %.1fx\n", c.UnitsRatio)
		_, _ = fmt.Fprintf(w, "  Efficiency:       %.5f vs %.2f TOPS/W (%.1fx)\n",
			c.TOPSPerWatt, c.ReferenceTOPSPerWatt, c.EfficiencyRatio)
		_, _ = fmt.Fprintln(w, "")
	}

	_, _ = fmt.Fprintln(w, "--- Summary ---")
	_, _ = fmt.Fprintf(w, "  Benchmarks:       %d\n", r.Summary.TotalBenchmarks)
	_, _ = fmt.Fprintf(w, "  Total operations: %d\n", r.Summary.TotalOperations)
	_, _ = fmt.Fprintf(w, "  Total cycles:     %d\n", r.Summary.TotalCycles)
	if r.Summary.TotalOperations > 0 {
		_, _ = fmt.Fprintf(w, "  Avg cycles/op:    %.1f\n", r.Summary.AverageCyclesPerOp)
		_, _ = fmt.Fprintf(w, "  Best measured:    %.6f TOPS\n", r.Summary.BestMeasuredTOPS)
	}
}
