// Package membus models the idealized memory the GPU units talk to: a word
// store behind a request/acknowledge bus with a fixed service latency.
//
// The controller runs as a perpetual simulation task. It owns the memory
// image; everything else reads results only after the protocol confirms the
// unit finished writing.
package membus

import (
	"context"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/urvsim/codec"
	"github.com/sarchlab/urvsim/hostsim"
)

// Config holds controller parameters.
type Config struct {
	// LatencyCycles is the idealized service delay, in clock-edge
	// equivalents. The default of 2 represents ~20 ns at the 10 ns base
	// clock.
	LatencyCycles int

	// Capacity is the backing address space in bytes.
	Capacity uint64
}

// DefaultConfig returns the idealized memory used by the verification
// scenarios.
func DefaultConfig() Config {
	return Config{
		LatencyCycles: 2,
		Capacity:      codec.DefaultImageCapacity,
	}
}

// Stats counts bus activity.
type Stats struct {
	Reads        uint64
	Writes       uint64
	Transactions uint64
}

// transaction is the single in-flight request. A second request observed
// while one is in flight waits until the acknowledge clears; there is no
// queue, matching the units' one-outstanding bus master behavior.
type transaction struct {
	write bool
	addr  uint32
	data  uint32
}

// Controller services the memory bus protocol and owns the MemoryImage.
type Controller struct {
	cfg   Config
	image *codec.MemoryImage
	stats Stats
}

// NewController creates a controller with an empty image.
func NewController(cfg Config) *Controller {
	if cfg.Capacity == 0 {
		cfg.Capacity = codec.DefaultImageCapacity
	}
	return &Controller{
		cfg:   cfg,
		image: codec.NewMemoryImage(cfg.Capacity),
	}
}

// Image exposes the backing store. Tests pack operand matrices into it
// before a session starts and decode results from it after busy flags clear.
func (c *Controller) Image() *codec.MemoryImage { return c.image }

// Stats returns bus activity counters.
func (c *Controller) Stats() Stats { return c.stats }

// ReadWord satisfies the harness's result-decoding path.
func (c *Controller) ReadWord(addr uint32) uint32 { return c.image.ReadWord(addr) }

// Run is the perpetual bus loop. Each clock edge in the idle state samples
// the request line; an asserted request is held through the latency delay,
// serviced, and acknowledged for exactly one edge. The loop stops when ctx
// is cancelled or the session closes.
func (c *Controller) Run(ctx context.Context, h hostsim.Host) error {
	delay := sim.VTimeInSec(c.cfg.LatencyCycles) * h.ClockPeriod()

	for {
		if !h.WaitClockEdge() {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if h.Read(hostsim.SigMemReq) != 1 {
			continue
		}

		if !h.WaitDuration(delay) {
			return nil
		}

		txn := transaction{
			write: h.Read(hostsim.SigMemWE) == 1,
			addr:  uint32(h.Read(hostsim.SigMemAddr)),
			data:  uint32(h.Read(hostsim.SigMemWData)),
		}
		c.service(h, txn)

		h.Write(hostsim.SigMemAck, 1)
		if !h.WaitClockEdge() {
			return nil
		}
		h.Write(hostsim.SigMemAck, 0)
	}
}

// service applies one transaction. Bus writes overwrite the full word; the
// byte-masked merge happens only on the codec pack path.
func (c *Controller) service(h hostsim.Host, txn transaction) {
	c.stats.Transactions++
	if txn.write {
		c.stats.Writes++
		// The image write can only fail past the capacity boundary;
		// idealized memory drops such writes, mirroring reads-as-zero.
		_ = c.image.WriteWord(txn.addr, txn.data)
		return
	}
	c.stats.Reads++
	h.Write(hostsim.SigMemRData, uint64(c.image.ReadWord(txn.addr)))
}
