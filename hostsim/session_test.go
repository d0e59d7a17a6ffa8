package hostsim_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/urvsim/hostsim"
)

// Tasks record observations into plain slices and the specs assert after Run
// returns, so no assertion runs off the ginkgo goroutine.
var _ = Describe("Session", func() {
	var sess *hostsim.Session

	BeforeEach(func() {
		sess = hostsim.NewSession(hostsim.DefaultConfig())
	})

	It("should count clock edges", func() {
		var cycles uint64
		err := sess.Run(func(h hostsim.Host) error {
			for i := 0; i < 5; i++ {
				h.WaitClockEdge()
			}
			cycles = h.Cycle()
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cycles).To(Equal(uint64(5)))
	})

	It("should advance virtual time by one period per edge", func() {
		var now sim.VTimeInSec
		err := sess.Run(func(h hostsim.Host) error {
			h.WaitClockEdge()
			h.WaitClockEdge()
			now = h.Now()
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		// 100 MHz clock: two edges land at 20 ns.
		Expect(float64(now)).To(BeNumerically("~", 20e-9, 1e-15))
	})

	It("should hide same-edge writes from other tasks until the next edge", func() {
		observed := []uint64{}

		// The writer registers first, so it wakes first on each edge.
		sess.Spawn("writer", func(h hostsim.Host) error {
			h.WaitClockEdge()
			h.Write(hostsim.SigMemWData, 0xBEEF)
			h.WaitClockEdge()
			return nil
		})

		err := sess.Run(func(h hostsim.Host) error {
			h.WaitClockEdge()
			observed = append(observed, h.Read(hostsim.SigMemWData))
			h.WaitClockEdge()
			observed = append(observed, h.Read(hostsim.SigMemWData))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(observed).To(Equal([]uint64{0, 0xBEEF}))
	})

	It("should resume timed waits at the requested virtual time", func() {
		var woke sim.VTimeInSec
		err := sess.Run(func(h hostsim.Host) error {
			h.WaitClockEdge()
			h.WaitDuration(25e-9)
			woke = h.Now()
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(float64(woke)).To(BeNumerically("~", 35e-9, 1e-15))
	})

	It("should wind down background tasks when the main task returns", func() {
		edges := 0
		closedCleanly := false

		sess.Spawn("loop", func(h hostsim.Host) error {
			for h.WaitClockEdge() {
				edges++
			}
			closedCleanly = true
			return nil
		})

		err := sess.Run(func(h hostsim.Host) error {
			for i := 0; i < 3; i++ {
				h.WaitClockEdge()
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(closedCleanly).To(BeTrue())
		Expect(edges).To(BeNumerically("<=", 4))
		Expect(sess.Context().Err()).To(HaveOccurred())
	})

	It("should join errors from background tasks", func() {
		boom := errors.New("bus wedged")
		sess.Spawn("faulty", func(h hostsim.Host) error {
			h.WaitClockEdge()
			return boom
		})

		err := sess.Run(func(h hostsim.Host) error {
			for i := 0; i < 2; i++ {
				h.WaitClockEdge()
			}
			return nil
		})
		Expect(err).To(MatchError(boom))
	})

	It("should expose bit-vector helpers that round-trip", func() {
		mask := uint64(0)
		mask = hostsim.SetBit(mask, 0)
		mask = hostsim.SetBit(mask, 3)
		Expect(hostsim.HasBit(mask, 0)).To(BeTrue())
		Expect(hostsim.HasBit(mask, 1)).To(BeFalse())
		Expect(hostsim.HasBit(mask, 3)).To(BeTrue())
		mask = hostsim.ClearBit(mask, 3)
		Expect(mask).To(Equal(uint64(1)))
	})
})
