package harness

import (
	"fmt"
)

// macsPerOperation is the multiply-accumulate count of one 4x4 matrix
// operation: 16 result elements, 4 MACs each.
const macsPerOperation = 64

// BenchmarkResult holds the measured throughput of repeated operations on
// a single unit, in simulated time.
type BenchmarkResult struct {
	// Name identifies the measurement
	Name string `json:"name"`

	// Unit is the unit index the operations ran on
	Unit int `json:"unit"`

	// Operations is the number of back-to-back matrix operations completed
	Operations int `json:"operations"`

	// Cycles is the total simulated clock cycles across all operations
	Cycles uint64 `json:"cycles"`

	// Seconds is the simulated wall time the operations took
	Seconds float64 `json:"seconds"`

	// CyclesPerOp is the average cycle cost of one operation
	CyclesPerOp float64 `json:"cycles_per_op"`

	// OpsPerSecond is matrix operations per simulated second
	OpsPerSecond float64 `json:"ops_per_second"`

	// MACOpsPerSecond is multiply-accumulate operations per simulated second
	MACOpsPerSecond float64 `json:"mac_ops_per_second"`

	// TOPS is MACOpsPerSecond expressed in tera-operations per second
	TOPS float64 `json:"tops"`
}

// MeasureThroughput runs ops back-to-back operations on one configured unit
// and reports the sustained rate. Each operation reuses the unit's operand
// and result addresses; the result of one run is simply overwritten by the
// next. The per-operation timeout applies to each run individually.
func (h *Harness) MeasureThroughput(name string, unit int, ops int, timeoutCycles uint64) (*BenchmarkResult, error) {
	if ops <= 0 {
		return nil, fmt.Errorf("measure %s: need at least one operation", name)
	}

	startTime := h.host.Now()
	startCycle := h.host.Cycle()
	for i := 0; i < ops; i++ {
		if _, err := h.RunSingleUnit(unit, timeoutCycles); err != nil {
			return nil, fmt.Errorf("measure %s: operation %d: %w", name, i, err)
		}
	}
	seconds := float64(h.host.Now() - startTime)
	cycles := h.host.Cycle() - startCycle

	result := &BenchmarkResult{
		Name:        name,
		Unit:        unit,
		Operations:  ops,
		Cycles:      cycles,
		Seconds:     seconds,
		CyclesPerOp: float64(cycles) / float64(ops),
	}
	if seconds > 0 {
		result.OpsPerSecond = float64(ops) / seconds
		result.MACOpsPerSecond = result.OpsPerSecond * macsPerOperation
		result.TOPS = result.MACOpsPerSecond / 1e12
	}

	if h.verbose {
		fmt.Fprintf(h.out, "[harness] %s: %d ops in %d cycles (%.1f cycles/op, %.3f Mops/s)\n",
			name, ops, cycles, result.CyclesPerOp, result.OpsPerSecond/1e6)
	}
	return result, nil
}
