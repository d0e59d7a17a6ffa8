package gpumodel_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/urvsim/gpumodel"
	"github.com/sarchlab/urvsim/hostsim"
	"github.com/sarchlab/urvsim/membus"
)

// Stuck units raise busy without touching the memory bus, which lets these
// tests observe the start/busy state machine without a bus slave attached.

func waitEdges(h hostsim.Host, n int) bool {
	for i := 0; i < n; i++ {
		if !h.WaitClockEdge() {
			return false
		}
	}
	return true
}

var _ = Describe("Accelerator", func() {
	newStuckSession := func(stuck uint64) *hostsim.Session {
		sess := hostsim.NewSession(hostsim.DefaultConfig())
		cfg := gpumodel.DefaultConfig()
		cfg.StuckUnits = stuck
		accel := gpumodel.New(cfg)
		sess.Spawn("accel", func(h hostsim.Host) error {
			return accel.Run(h)
		})
		return sess
	}

	It("should raise busy shortly after a one-edge start pulse", func() {
		sess := newStuckSession(hostsim.SetBit(0, 0))

		var busyAfterPulse, busyBefore uint64
		err := sess.Run(func(h hostsim.Host) error {
			h.Write(hostsim.SigResetN, 1)
			if !waitEdges(h, 2) {
				return nil
			}
			busyBefore = h.Read(hostsim.SigUnitBusy)

			h.Write(hostsim.SigUnitStart, hostsim.SetBit(0, 0))
			if !h.WaitClockEdge() {
				return nil
			}
			h.Write(hostsim.SigUnitStart, 0)
			if !waitEdges(h, 2) {
				return nil
			}
			busyAfterPulse = h.Read(hostsim.SigUnitBusy)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(busyBefore).To(Equal(uint64(0)))
		Expect(hostsim.HasBit(busyAfterPulse, 0)).To(BeTrue())
	})

	It("should hold a stuck unit's busy bit indefinitely", func() {
		sess := newStuckSession(hostsim.SetBit(0, 3))

		var stillBusy bool
		err := sess.Run(func(h hostsim.Host) error {
			h.Write(hostsim.SigResetN, 1)
			if !waitEdges(h, 2) {
				return nil
			}
			h.Write(hostsim.SigUnitStart, hostsim.SetBit(0, 3))
			if !h.WaitClockEdge() {
				return nil
			}
			h.Write(hostsim.SigUnitStart, 0)
			if !waitEdges(h, 50) {
				return nil
			}
			stillBusy = hostsim.HasBit(h.Read(hostsim.SigUnitBusy), 3)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(stillBusy).To(BeTrue())
	})

	It("should clear busy bits on reset", func() {
		sess := newStuckSession(hostsim.SetBit(0, 1))

		var busyBeforeReset, busyAfterReset uint64
		err := sess.Run(func(h hostsim.Host) error {
			h.Write(hostsim.SigResetN, 1)
			if !waitEdges(h, 2) {
				return nil
			}
			h.Write(hostsim.SigUnitStart, hostsim.SetBit(0, 1))
			if !h.WaitClockEdge() {
				return nil
			}
			h.Write(hostsim.SigUnitStart, 0)
			if !waitEdges(h, 2) {
				return nil
			}
			busyBeforeReset = h.Read(hostsim.SigUnitBusy)

			h.Write(hostsim.SigResetN, 0)
			if !waitEdges(h, 3) {
				return nil
			}
			busyAfterReset = h.Read(hostsim.SigUnitBusy)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(hostsim.HasBit(busyBeforeReset, 1)).To(BeTrue())
		Expect(busyAfterReset).To(Equal(uint64(0)))
	})

	It("should latch a start pulse arriving while another unit holds the bus", func() {
		// A one-edge pulse for unit 1 lands on every kind of edge unit 0's
		// operation occupies (bus stalls, ack settles, compute cycles)
		// depending on the offset; the latch must catch all of them.
		for offset := 0; offset <= 12; offset++ {
			sess := hostsim.NewSession(hostsim.DefaultConfig())
			ctrl := membus.NewController(membus.DefaultConfig())
			accel := gpumodel.New(gpumodel.DefaultConfig())
			sess.Spawn("membus", func(h hostsim.Host) error {
				return ctrl.Run(sess.Context(), h)
			})
			sess.Spawn("accel", func(h hostsim.Host) error {
				return accel.Run(h)
			})

			var busyRose, allCleared bool
			err := sess.Run(func(h hostsim.Host) error {
				h.Write(hostsim.SigResetN, 1)
				if !waitEdges(h, 2) {
					return nil
				}
				h.Write(hostsim.SigUnitStart, hostsim.SetBit(0, 0))
				if !h.WaitClockEdge() {
					return nil
				}
				h.Write(hostsim.SigUnitStart, 0)
				if !waitEdges(h, offset) {
					return nil
				}
				h.Write(hostsim.SigUnitStart, hostsim.SetBit(0, 1))
				if !h.WaitClockEdge() {
					return nil
				}
				h.Write(hostsim.SigUnitStart, 0)

				for i := 0; i < 20; i++ {
					if hostsim.HasBit(h.Read(hostsim.SigUnitBusy), 1) {
						busyRose = true
						break
					}
					if !h.WaitClockEdge() {
						return nil
					}
				}
				for i := 0; i < 300; i++ {
					if h.Read(hostsim.SigUnitBusy) == 0 {
						allCleared = true
						break
					}
					if !h.WaitClockEdge() {
						return nil
					}
				}
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(busyRose).To(BeTrue(),
				fmt.Sprintf("unit 1 busy never rose at offset %d", offset))
			Expect(allCleared).To(BeTrue(),
				fmt.Sprintf("units never drained at offset %d", offset))
		}
	})

	It("should ignore start pulses while reset is asserted", func() {
		sess := newStuckSession(hostsim.SetBit(0, 0))

		var busy uint64
		err := sess.Run(func(h hostsim.Host) error {
			h.Write(hostsim.SigResetN, 0)
			if !waitEdges(h, 2) {
				return nil
			}
			h.Write(hostsim.SigUnitStart, hostsim.SetBit(0, 0))
			if !waitEdges(h, 4) {
				return nil
			}
			h.Write(hostsim.SigUnitStart, 0)
			busy = h.Read(hostsim.SigUnitBusy)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(busy).To(Equal(uint64(0)))
	})
})
