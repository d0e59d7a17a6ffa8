// Package harness drives and observes the GPU units' start/busy handshake.
//
// The harness owns no clock and no signals of its own: it acts through the
// hostsim.Host capability handed to its constructor, and reads results back
// through a word reader once the protocol confirms a unit finished.
package harness

import (
	"fmt"
	"io"

	"github.com/sarchlab/urvsim/codec"
	"github.com/sarchlab/urvsim/hostsim"
)

// startSettleCycles is the fixed number of edges between the start pulse
// and the first busy-flag sample: one for the unit to observe the pulse,
// one for its busy update to commit.
const startSettleCycles = 2

// progressInterval is the polling cadence for verbose busy-status lines.
const progressInterval = 100

// maxUnits is the width of the start/busy bit-vector signals.
const maxUnits = 64

// Unit holds the per-unit operand and result base addresses for the current
// test case.
type Unit struct {
	Index int
	AddrA uint32
	AddrB uint32
	AddrC uint32
}

// Harness issues start commands, polls busy flags, and verifies results for
// up to 64 units.
type Harness struct {
	host hostsim.Host
	mem  codec.WordSource

	units map[int]Unit
	tol   Tolerance

	out     io.Writer
	verbose bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithTolerance overrides the comparison tolerance for parallel checks.
func WithTolerance(tol Tolerance) Option {
	return func(h *Harness) { h.tol = tol }
}

// WithOutput directs progress logging to w.
func WithOutput(w io.Writer) Option {
	return func(h *Harness) { h.out = w }
}

// WithVerbose enables periodic busy-status progress lines.
func WithVerbose(v bool) Option {
	return func(h *Harness) { h.verbose = v }
}

// New creates a harness bound to a host capability and a result memory.
func New(host hostsim.Host, mem codec.WordSource, opts ...Option) *Harness {
	h := &Harness{
		host:  host,
		mem:   mem,
		units: map[int]Unit{},
		tol:   DefaultTolerance(),
		out:   io.Discard,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Reset drives the active-low reset for two edges, then releases it,
// mirroring the power-on sequence of the unified system testbench.
func (h *Harness) Reset() error {
	h.host.Write(hostsim.SigResetN, 0)
	for i := 0; i < 2; i++ {
		if !h.host.WaitClockEdge() {
			return ErrSessionClosed
		}
	}
	h.host.Write(hostsim.SigResetN, 1)
	if !h.host.WaitClockEdge() {
		return ErrSessionClosed
	}
	return nil
}

// ConfigureUnit assigns the three memory addresses of one unit for the
// current test case.
func (h *Harness) ConfigureUnit(index int, addrA, addrB, addrC uint32) {
	u := Unit{Index: index, AddrA: addrA, AddrB: addrB, AddrC: addrC}
	h.units[index] = u
	h.host.WriteVec(hostsim.SigUnitOperandA, index, uint64(addrA))
	h.host.WriteVec(hostsim.SigUnitOperandB, index, uint64(addrB))
	h.host.WriteVec(hostsim.SigUnitResult, index, uint64(addrC))
}

// Unit returns the recorded addresses of a configured unit.
func (h *Harness) Unit(index int) (Unit, bool) {
	u, ok := h.units[index]
	return u, ok
}

// RunSingleUnit pulses one unit's start bit for exactly one edge, then polls
// its busy flag every edge. It returns the number of polled cycles. If the
// flag does not clear within timeoutCycles the returned error is
// ErrOperationTimeout and the cycle count equals timeoutCycles exactly.
func (h *Harness) RunSingleUnit(unit int, timeoutCycles uint64) (uint64, error) {
	if unit < 0 || unit >= maxUnits {
		return 0, fmt.Errorf("%w: %d", ErrUnitIndex, unit)
	}
	if err := h.pulseStart(hostsim.SetBit(0, unit)); err != nil {
		return 0, err
	}

	var cycles uint64
	for hostsim.HasBit(h.host.Read(hostsim.SigUnitBusy), unit) &&
		cycles < timeoutCycles {
		if !h.host.WaitClockEdge() {
			return cycles, ErrSessionClosed
		}
		cycles++
	}
	if hostsim.HasBit(h.host.Read(hostsim.SigUnitBusy), unit) {
		return cycles, fmt.Errorf("%w: unit %d after %d cycles",
			ErrOperationTimeout, unit, cycles)
	}
	return cycles, nil
}

// UnitOutcome records one unit's completion inside a parallel run.
type UnitOutcome struct {
	Unit      int
	Completed bool
	// Cycles is the polled cycle count at which the unit's busy bit was
	// first observed clear. For timed-out units it equals the timeout.
	Cycles uint64
}

// ParallelResult aggregates a RunParallel call.
type ParallelResult struct {
	// Elapsed is the total polled cycle count until every requested bit
	// cleared, or the timeout.
	Elapsed  uint64
	Outcomes []UnitOutcome
	TimedOut []int
}

// RunParallel starts all requested units in one start word and polls the
// combined busy mask every edge until all requested bits clear or the
// timeout elapses. Units finishing early are recorded but polling continues:
// the start/busy vectors are shared by every unit, so the run only ends
// when the whole requested mask is clear. A timeout flags the still-busy
// units without discarding the completed ones.
func (h *Harness) RunParallel(units []int, timeoutCycles uint64) (*ParallelResult, error) {
	var mask uint64
	for _, u := range units {
		if u < 0 || u >= maxUnits {
			return nil, fmt.Errorf("%w: %d", ErrUnitIndex, u)
		}
		mask = hostsim.SetBit(mask, u)
	}
	if err := h.pulseStart(mask); err != nil {
		return nil, err
	}

	res := &ParallelResult{}
	done := map[int]uint64{}

	var cycles uint64
	for cycles < timeoutCycles {
		busy := h.host.Read(hostsim.SigUnitBusy) & mask
		for _, u := range units {
			if _, ok := done[u]; !ok && !hostsim.HasBit(busy, u) {
				done[u] = cycles
			}
		}
		if busy == 0 {
			break
		}
		if h.verbose && cycles > 0 && cycles%progressInterval == 0 {
			fmt.Fprintf(h.out, "cycle %d: busy=0x%02x\n", cycles, busy)
		}
		if !h.host.WaitClockEdge() {
			return res, ErrSessionClosed
		}
		cycles++
	}
	res.Elapsed = cycles

	finalBusy := h.host.Read(hostsim.SigUnitBusy) & mask
	for _, u := range units {
		out := UnitOutcome{Unit: u, Cycles: timeoutCycles}
		if c, ok := done[u]; ok {
			out.Completed = true
			out.Cycles = c
		} else if !hostsim.HasBit(finalBusy, u) {
			out.Completed = true
			out.Cycles = cycles
		} else {
			res.TimedOut = append(res.TimedOut, u)
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	if len(res.TimedOut) > 0 {
		return res, fmt.Errorf("%w: units %v after %d cycles",
			ErrOperationTimeout, res.TimedOut, cycles)
	}
	return res, nil
}

// pulseStart asserts the start vector for exactly one edge, then waits out
// the busy propagation delay.
func (h *Harness) pulseStart(mask uint64) error {
	h.host.Write(hostsim.SigUnitStart, mask)
	if !h.host.WaitClockEdge() {
		return ErrSessionClosed
	}
	h.host.Write(hostsim.SigUnitStart, 0)
	for i := 0; i < startSettleCycles; i++ {
		if !h.host.WaitClockEdge() {
			return ErrSessionClosed
		}
	}
	return nil
}
