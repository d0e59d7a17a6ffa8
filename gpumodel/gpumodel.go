// Package gpumodel provides a behavioral model of the UnifiedRISCV GPU
// matrix units, used as the unit under test by the verification harness.
//
// The model is signal-accurate at the boundary the harness observes: it
// latches the start bit-vector, raises busy bits, fetches operands and
// stores results through the memory bus protocol as a single-outstanding
// bus master, and clears busy bits on completion. It is not a
// microarchitectural model; compute time is a configurable constant.
package gpumodel

import (
	"github.com/sarchlab/urvsim/hostsim"
)

// MatrixSize is the fixed operand shape of one unit: 4x4 int8 in, 4x4
// int16 out.
const MatrixSize = 4

const (
	operandWords = MatrixSize * MatrixSize / 4 // int8, 4 per word
	resultWords  = MatrixSize * MatrixSize / 2 // int16, 2 per word
)

// Config holds model parameters.
type Config struct {
	// NumUnits is the number of parallel matrix units.
	NumUnits int

	// ComputeCycles is the fixed edge count a unit spends multiplying
	// after its operands arrive.
	ComputeCycles int

	// StuckUnits is a bit-vector of units that raise busy and never
	// complete. Used to exercise timeout handling.
	StuckUnits uint64
}

// DefaultConfig matches the 8-unit configuration of the unified system.
func DefaultConfig() Config {
	return Config{
		NumUnits:      8,
		ComputeCycles: 4,
	}
}

// Accelerator is the behavioral DUT stand-in.
type Accelerator struct {
	cfg Config

	pending []int // units started, waiting for the shared bus master

	// busy shadows the committed SigUnitBusy value. Holding it locally
	// keeps latch and clear updates within one delta composable: a
	// read-modify-write of the signal would see only the committed value
	// and drop a bit staged earlier in the same delta.
	busy uint64
}

// New creates an accelerator model.
func New(cfg Config) *Accelerator {
	if cfg.NumUnits <= 0 {
		cfg.NumUnits = DefaultConfig().NumUnits
	}
	return &Accelerator{cfg: cfg}
}

// Run is the accelerator task. Each edge it samples reset and the start
// vector, then lets the lowest-numbered pending unit run its operation to
// completion. Units therefore finish one after another even when started
// together, which is exactly the partial-completion pattern the harness
// must tolerate.
func (a *Accelerator) Run(h hostsim.Host) error {
	for h.WaitClockEdge() {
		if h.Read(hostsim.SigResetN) == 0 {
			a.pending = a.pending[:0]
			a.busy = 0
			h.Write(hostsim.SigUnitBusy, 0)
			continue
		}

		a.latchStarts(h)

		if len(a.pending) == 0 {
			continue
		}
		unit := a.pending[0]
		a.pending = a.pending[1:]
		if !a.runUnit(h, unit) {
			return nil
		}
	}
	return nil
}

// latchStarts samples the start vector and raises busy bits for newly
// started units. Stuck units raise busy but are never queued.
func (a *Accelerator) latchStarts(h hostsim.Host) {
	start := h.Read(hostsim.SigUnitStart)
	if start == 0 {
		return
	}
	for i := 0; i < a.cfg.NumUnits; i++ {
		if !hostsim.HasBit(start, i) || hostsim.HasBit(a.busy, i) {
			continue
		}
		a.busy = hostsim.SetBit(a.busy, i)
		if !hostsim.HasBit(a.cfg.StuckUnits, i) {
			a.pending = append(a.pending, i)
		}
	}
	h.Write(hostsim.SigUnitBusy, a.busy)
}

// runUnit performs one full matrix operation for a unit: fetch A and B,
// multiply, store C, clear the unit's busy bit. Returns false if the
// session closed mid-operation.
func (a *Accelerator) runUnit(h hostsim.Host, unit int) bool {
	addrA := uint32(h.ReadVec(hostsim.SigUnitOperandA, unit))
	addrB := uint32(h.ReadVec(hostsim.SigUnitOperandB, unit))
	addrC := uint32(h.ReadVec(hostsim.SigUnitResult, unit))

	var opA, opB [MatrixSize * MatrixSize]int8
	if !a.fetchOperand(h, addrA, &opA) {
		return false
	}
	if !a.fetchOperand(h, addrB, &opB) {
		return false
	}

	for i := 0; i < a.cfg.ComputeCycles; i++ {
		if !h.WaitClockEdge() {
			return false
		}
		a.latchStarts(h)
	}
	c := multiply(&opA, &opB)

	for w := 0; w < resultWords; w++ {
		lo := uint32(uint16(c[w*2]))
		hi := uint32(uint16(c[w*2+1]))
		if !a.busWrite(h, addrC+uint32(w)*4, hi<<16|lo) {
			return false
		}
	}

	// While the operation ran, latched starts for other units may have
	// changed the busy vector; clear only this unit's bit.
	a.busy = hostsim.ClearBit(a.busy, unit)
	h.Write(hostsim.SigUnitBusy, a.busy)
	return true
}

func (a *Accelerator) fetchOperand(
	h hostsim.Host,
	base uint32,
	dst *[MatrixSize * MatrixSize]int8,
) bool {
	for w := 0; w < operandWords; w++ {
		word, ok := a.busRead(h, base+uint32(w)*4)
		if !ok {
			return false
		}
		for b := 0; b < 4; b++ {
			dst[w*4+b] = int8(word >> (8 * uint(b)))
		}
	}
	return true
}

// multiply computes the 4x4 int8 matrix product with int16 accumulation.
// Overflow wraps in two's complement, matching the hardware datapath.
func multiply(a, b *[MatrixSize * MatrixSize]int8) [MatrixSize * MatrixSize]int16 {
	var c [MatrixSize * MatrixSize]int16
	for i := 0; i < MatrixSize; i++ {
		for j := 0; j < MatrixSize; j++ {
			var acc int16
			for k := 0; k < MatrixSize; k++ {
				acc += int16(a[i*MatrixSize+k]) * int16(b[k*MatrixSize+j])
			}
			c[i*MatrixSize+j] = acc
		}
	}
	return c
}

// busRead issues one read transaction as the bus master.
func (a *Accelerator) busRead(h hostsim.Host, addr uint32) (uint32, bool) {
	h.Write(hostsim.SigMemAddr, uint64(addr))
	h.Write(hostsim.SigMemWE, 0)
	h.Write(hostsim.SigMemReq, 1)

	// Starts are latched on every edge of the transaction, stall and
	// settle edges included, so one-edge start pulses for other units
	// are never lost while this unit holds the bus.
	for h.WaitClockEdge() {
		a.latchStarts(h)
		if h.Read(hostsim.SigMemAck) == 1 {
			data := uint32(h.Read(hostsim.SigMemRData))
			h.Write(hostsim.SigMemReq, 0)
			if !h.WaitClockEdge() {
				return 0, false
			}
			a.latchStarts(h)
			return data, true
		}
	}
	return 0, false
}

// busWrite issues one write transaction as the bus master.
func (a *Accelerator) busWrite(h hostsim.Host, addr, word uint32) bool {
	h.Write(hostsim.SigMemAddr, uint64(addr))
	h.Write(hostsim.SigMemWData, uint64(word))
	h.Write(hostsim.SigMemWE, 1)
	h.Write(hostsim.SigMemReq, 1)

	for h.WaitClockEdge() {
		a.latchStarts(h)
		if h.Read(hostsim.SigMemAck) == 1 {
			h.Write(hostsim.SigMemReq, 0)
			h.Write(hostsim.SigMemWE, 0)
			if !h.WaitClockEdge() {
				return false
			}
			a.latchStarts(h)
			return true
		}
	}
	return false
}
