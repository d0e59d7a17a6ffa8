package perf

import (
	"fmt"
	"math"

	"github.com/sarchlab/akita/v4/sim"
)

// macsPerOperation is the multiply-accumulate count of one matrix
// operation: size^3 for a size x size product.
const macsPerOperation = MatrixSize * MatrixSize * MatrixSize

// TheoreticalThroughput returns the peak TOPS of a unit array running
// back-to-back matrix operations at the given clock and precision.
func TheoreticalThroughput(frequency sim.Freq, units int, precision Precision) float64 {
	opsPerSecondPerUnit := float64(frequency) / CyclesPerOperation
	totalOpsPerSecond := opsPerSecondPerUnit * float64(units) * macsPerOperation
	return totalOpsPerSecond / 1e12 * precision.Factor()
}

// TheoreticalTOPS is TheoreticalThroughput for the receiver configuration.
func (c *Config) TheoreticalTOPS() float64 {
	return TheoreticalThroughput(c.Frequency, c.Units, c.Precision)
}

// MemoryBandwidth estimates the peak memory bandwidth in bytes per second,
// assuming one cache line transfer per cycle.
func (c *Config) MemoryBandwidth() float64 {
	return cacheLineBits / 8 * float64(c.Frequency)
}

// ScalingOption is one way of closing the gap to a throughput target.
type ScalingOption struct {
	// Name identifies the strategy
	Name string `json:"name"`

	// Frequency is the scaled clock in Hz
	Frequency sim.Freq `json:"frequency_hz"`

	// Units is the scaled unit count
	Units int `json:"units"`

	// Precision is the element width the option assumes
	Precision Precision `json:"precision"`

	// Feasible reports whether the option stays within the frequency and
	// area ceilings of the target FPGA family
	Feasible bool `json:"feasible"`

	// EstimatedLUTs extrapolates the FPGA LUT count from the baseline
	EstimatedLUTs float64 `json:"estimated_luts"`

	// Description is a human-readable summary
	Description string `json:"description"`
}

// ScalingAnalysis holds the gap to a throughput target and the candidate
// ways of closing it.
type ScalingAnalysis struct {
	// BaseTOPS is the throughput of the starting configuration
	BaseTOPS float64 `json:"base_tops"`

	// TargetTOPS is the throughput to reach
	TargetTOPS float64 `json:"target_tops"`

	// ScaleFactor is TargetTOPS / BaseTOPS
	ScaleFactor float64 `json:"scale_factor"`

	// Options are the candidate scaling strategies
	Options []ScalingOption `json:"options"`
}

// baselineLUTs is the synthesized LUT count of the 8-unit baseline.
const baselineLUTs = 38000

// AnalyzeScaling computes the four standard scaling strategies from the
// receiver configuration to the target throughput. Frequency ceilings
// differ per strategy: pure frequency scaling tops out at 500 MHz, while
// strategies that also grow the array assume tighter timing closure.
func (c *Config) AnalyzeScaling(targetTOPS float64) *ScalingAnalysis {
	base := c.TheoreticalTOPS()
	scale := targetTOPS / base

	analysis := &ScalingAnalysis{
		BaseTOPS:    base,
		TargetTOPS:  targetTOPS,
		ScaleFactor: scale,
	}

	freqOnly := c.Frequency * sim.Freq(scale)
	analysis.add(ScalingOption{
		Name:      "Frequency scaling only",
		Frequency: freqOnly,
		Units:     c.Units,
		Precision: c.Precision,
		Feasible:  freqOnly <= 500*sim.MHz,
	})

	unitsOnly := int(float64(c.Units) * scale)
	analysis.add(ScalingOption{
		Name:      "More GPU units only",
		Frequency: c.Frequency,
		Units:     unitsOnly,
		Precision: c.Precision,
		Feasible:  unitsOnly <= 256,
	})

	freqScale := math.Min(3.0, math.Sqrt(scale))
	unitScale := scale / freqScale
	balancedFreq := c.Frequency * sim.Freq(freqScale)
	balancedUnits := int(float64(c.Units) * unitScale)
	analysis.add(ScalingOption{
		Name:      "Balanced scaling",
		Frequency: balancedFreq,
		Units:     balancedUnits,
		Precision: c.Precision,
		Feasible:  balancedFreq <= 300*sim.MHz && balancedUnits <= 128,
	})

	// Halving the element width doubles throughput per unit, so only the
	// remaining factor needs frequency and area.
	precisionBoost := PrecisionINT4.Factor()
	mixedScale := scale / precisionBoost
	mixedFreq := c.Frequency * sim.Freq(math.Min(2.0, mixedScale))
	freqRatio := float64(mixedFreq) / float64(c.Frequency)
	mixedUnits := int(float64(c.Units) * (mixedScale / freqRatio))
	analysis.add(ScalingOption{
		Name:      "Mixed precision (INT4/INT8)",
		Frequency: mixedFreq,
		Units:     mixedUnits,
		Precision: PrecisionINT4,
		Feasible:  mixedFreq <= 200*sim.MHz && mixedUnits <= 64,
	})

	return analysis
}

// add fills in the derived fields of an option and appends it.
func (a *ScalingAnalysis) add(opt ScalingOption) {
	opt.EstimatedLUTs = baselineLUTs * float64(opt.Units) / float64(DefaultConfig().Units)
	opt.Description = fmt.Sprintf("%.0f MHz, %d units",
		float64(opt.Frequency)/1e6, opt.Units)
	if opt.Precision != PrecisionINT8 {
		opt.Description += fmt.Sprintf(", %s precision", opt.Precision)
	}
	a.Options = append(a.Options, opt)
}

// FeasibleOptions returns the options that fit the platform ceilings.
func (a *ScalingAnalysis) FeasibleOptions() []ScalingOption {
	var feasible []ScalingOption
	for _, opt := range a.Options {
		if opt.Feasible {
			feasible = append(feasible, opt)
		}
	}
	return feasible
}

// ReferenceProfile describes a commercial accelerator to compare against.
type ReferenceProfile struct {
	// Name identifies the accelerator
	Name string `json:"name"`

	// TOPS is the published peak throughput
	TOPS float64 `json:"tops"`

	// Frequency is the estimated clock in Hz
	Frequency sim.Freq `json:"frequency_hz"`

	// Units is the estimated processing element count
	Units int `json:"units"`

	// MemoryBandwidth is bytes per second
	MemoryBandwidth float64 `json:"memory_bandwidth"`

	// PowerWatts is the estimated power draw
	PowerWatts float64 `json:"power_watts"`
}

// M1NeuralEngine is the published-and-estimated profile of the Apple M1
// Neural Engine, the standing comparison target.
func M1NeuralEngine() ReferenceProfile {
	return ReferenceProfile{
		Name:            "M1 Neural Engine",
		TOPS:            11.5,
		Frequency:       1 * sim.GHz,
		Units:           128,
		MemoryBandwidth: 68.25e9,
		PowerWatts:      10,
	}
}

// Comparison holds the headline ratios between a configuration and a
// reference accelerator. Ratios above 1 mean the reference is ahead.
type Comparison struct {
	Reference string `json:"reference"`

	TOPSRatio      float64 `json:"tops_ratio"`
	FrequencyRatio float64 `json:"frequency_ratio"`
	UnitsRatio     float64 `json:"units_ratio"`

	// TOPSPerWatt and ReferenceTOPSPerWatt are the efficiency figures on
	// each side; EfficiencyRatio is reference over configuration.
	TOPSPerWatt          float64 `json:"tops_per_watt"`
	ReferenceTOPSPerWatt float64 `json:"reference_tops_per_watt"`
	EfficiencyRatio      float64 `json:"efficiency_ratio"`
}

// CompareToReference computes the headline ratios between the receiver
// configuration and a reference accelerator.
func (c *Config) CompareToReference(ref ReferenceProfile) Comparison {
	tops := c.TheoreticalTOPS()
	cmp := Comparison{
		Reference:            ref.Name,
		TOPSRatio:            ref.TOPS / tops,
		FrequencyRatio:       float64(ref.Frequency) / float64(c.Frequency),
		UnitsRatio:           float64(ref.Units) / float64(c.Units),
		TOPSPerWatt:          tops / c.PowerWatts,
		ReferenceTOPSPerWatt: ref.TOPS / ref.PowerWatts,
	}
	cmp.EfficiencyRatio = cmp.ReferenceTOPSPerWatt / cmp.TOPSPerWatt
	return cmp
}
