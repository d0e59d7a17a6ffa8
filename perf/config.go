// Package perf models the theoretical throughput of the GPU matrix units
// and analyzes the scaling required to reach a reference accelerator.
package perf

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"
)

// MatrixSize is the fixed operand shape of one unit.
const MatrixSize = 4

// CyclesPerOperation is the assumed cycle cost of one matrix operation,
// memory access included.
const CyclesPerOperation = 20

// cacheLineBits sizes the memory interface for the bandwidth estimate.
const cacheLineBits = 512

// Precision selects the element width the units operate at.
type Precision string

// Supported precisions and their throughput factors relative to INT8.
const (
	PrecisionINT8 Precision = "INT8"
	PrecisionINT4 Precision = "INT4"
	PrecisionFP16 Precision = "FP16"
	PrecisionFP32 Precision = "FP32"
)

// Factor returns the throughput multiplier of the precision relative to
// INT8. Unknown precisions fall back to 1.0.
func (p Precision) Factor() float64 {
	switch p {
	case PrecisionINT4:
		return 2.0 // twice the elements per cycle
	case PrecisionFP16:
		return 0.8
	case PrecisionFP32:
		return 0.5
	default:
		return 1.0
	}
}

// Config describes one hardware configuration of the matrix unit array.
type Config struct {
	// Frequency is the unit clock in Hz.
	Frequency sim.Freq `json:"frequency_hz"`

	// Units is the number of parallel matrix units.
	Units int `json:"units"`

	// Precision is the element width the units operate at.
	Precision Precision `json:"precision"`

	// PowerWatts is the estimated power draw of the whole array.
	PowerWatts float64 `json:"power_watts"`
}

// DefaultConfig is the baseline FPGA configuration: 8 units at 100 MHz,
// INT8, an estimated 2 W.
func DefaultConfig() *Config {
	return &Config{
		Frequency:  100 * sim.MHz,
		Units:      8,
		Precision:  PrecisionINT8,
		PowerWatts: 2,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read perf config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse perf config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize perf config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write perf config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is physically meaningful.
func (c *Config) Validate() error {
	if c.Frequency <= 0 {
		return fmt.Errorf("frequency_hz must be > 0")
	}
	if c.Units <= 0 {
		return fmt.Errorf("units must be > 0")
	}
	if c.PowerWatts <= 0 {
		return fmt.Errorf("power_watts must be > 0")
	}
	return nil
}
