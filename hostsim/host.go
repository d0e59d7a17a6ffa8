// Package hostsim provides the clocked-simulation environment for the
// UnifiedRISCV GPU verification harness.
//
// The harness and every bus component see the environment only through the
// Host capability: clock-edge waits, fixed-duration waits, and named signal
// accessors. The concrete Session runs all tasks cooperatively on an Akita
// serial event engine, so exactly one task executes at a time and every task
// observes the same signal snapshot within a clock edge.
package hostsim

import (
	"github.com/sarchlab/akita/v4/sim"
)

// Sig identifies a named signal on the testbench bus. Names follow the
// RTL port names of the unified system.
type Sig string

// Scalar and vector signals exposed by the unit under test.
const (
	SigResetN   Sig = "rst_n"
	SigMemReq   Sig = "mem_req"
	SigMemAddr  Sig = "mem_addr"
	SigMemWE    Sig = "mem_we"
	SigMemWData Sig = "mem_wdata"
	SigMemRData Sig = "mem_rdata"
	SigMemAck   Sig = "mem_ack"

	// Bit-vector signals, one bit per GPU unit.
	SigUnitStart Sig = "gpu_unit_start"
	SigUnitBusy  Sig = "gpu_unit_busy"

	// Per-unit address registers, accessed through ReadVec/WriteVec.
	SigUnitOperandA Sig = "gpu_matrix_a"
	SigUnitOperandB Sig = "gpu_matrix_b"
	SigUnitResult   Sig = "gpu_matrix_c"
)

// Host is the capability surface a simulation task uses to interact with the
// clocked environment. Wait calls return false once the session is closing;
// a task must then unwind without further waits.
type Host interface {
	// WaitClockEdge suspends the task until the next rising clock edge.
	WaitClockEdge() bool

	// WaitDuration suspends the task for a fixed virtual duration,
	// independent of clock edges.
	WaitDuration(d sim.VTimeInSec) bool

	// Read returns the committed value of a scalar signal.
	Read(s Sig) uint64

	// Write stages a new value for a scalar signal. Staged writes become
	// visible to other tasks only after the current delta completes.
	Write(s Sig, v uint64)

	// ReadVec and WriteVec access one element of an address-indexed
	// vector signal.
	ReadVec(s Sig, idx int) uint64
	WriteVec(s Sig, idx int, v uint64)

	// Cycle returns the number of clock edges elapsed in this session.
	Cycle() uint64

	// Now returns the current virtual time.
	Now() sim.VTimeInSec

	// ClockPeriod returns the duration of one clock cycle.
	ClockPeriod() sim.VTimeInSec
}

// HasBit reports whether bit i of mask is set.
func HasBit(mask uint64, i int) bool { return mask&(1<<uint(i)) != 0 }

// SetBit returns mask with bit i set.
func SetBit(mask uint64, i int) uint64 { return mask | 1<<uint(i) }

// ClearBit returns mask with bit i cleared.
func ClearBit(mask uint64, i int) uint64 { return mask &^ (1 << uint(i)) }
