package harness_test

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/urvsim/codec"
	"github.com/sarchlab/urvsim/gpumodel"
	"github.com/sarchlab/urvsim/harness"
	"github.com/sarchlab/urvsim/hostsim"
	"github.com/sarchlab/urvsim/membus"
)

// unitRegion returns the operand and result base addresses for a unit,
// spaced so concurrently running units never overlap in memory.
func unitRegion(unit int) (addrA, addrB, addrC uint32) {
	base := uint32(0x1000 + unit*0x400)
	return base, base + 0x100, base + 0x200
}

// newSystem assembles a session with the memory controller and the
// accelerator model spawned as background tasks.
func newSystem(accelCfg gpumodel.Config) (*hostsim.Session, *membus.Controller) {
	sess := hostsim.NewSession(hostsim.DefaultConfig())
	ctrl := membus.NewController(membus.DefaultConfig())
	accel := gpumodel.New(accelCfg)
	sess.Spawn("membus", func(h hostsim.Host) error {
		return ctrl.Run(sess.Context(), h)
	})
	sess.Spawn("accel", func(h hostsim.Host) error {
		return accel.Run(h)
	})
	return sess, ctrl
}

var _ = Describe("Harness", func() {
	It("should compute A x I on a single unit", func() {
		sess, ctrl := newSystem(gpumodel.DefaultConfig())

		rng := rand.New(rand.NewSource(7))
		a := codec.Random(4, 4, rng)
		addrA, addrB, addrC := unitRegion(0)
		Expect(codec.Pack(ctrl.Image(), a, addrA)).To(Succeed())
		Expect(codec.Pack(ctrl.Image(), codec.Identity(4), addrB)).To(Succeed())

		var cycles uint64
		var runErr, verifyErr error
		err := sess.Run(func(h hostsim.Host) error {
			hn := harness.New(h, ctrl)
			if err := hn.Reset(); err != nil {
				return err
			}
			hn.ConfigureUnit(0, addrA, addrB, addrC)
			cycles, runErr = hn.RunSingleUnit(0, 1000)
			if runErr != nil {
				return nil
			}
			verifyErr = hn.VerifyExact(0, a.WidenTo16())
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(runErr).NotTo(HaveOccurred())
		Expect(verifyErr).NotTo(HaveOccurred())
		Expect(cycles).To(BeNumerically(">", 0))
		Expect(cycles).To(BeNumerically("<", 1000))
	})

	It("should match the reference multiply including negative products", func() {
		sess, ctrl := newSystem(gpumodel.DefaultConfig())

		a := codec.MustMatrix(4, 4, 8)
		b := codec.MustMatrix(4, 4, 8)
		vals := []int32{-128, 127, -1, 3, 5, -7, 11, -13,
			17, -19, 23, -29, 31, -37, 41, -43}
		for i, v := range vals {
			Expect(a.Set(i/4, i%4, v)).To(Succeed())
			Expect(b.Set(i%4, i/4, v)).To(Succeed())
		}
		want, err := harness.MatMulRef(a, b)
		Expect(err).NotTo(HaveOccurred())

		addrA, addrB, addrC := unitRegion(0)
		Expect(codec.Pack(ctrl.Image(), a, addrA)).To(Succeed())
		Expect(codec.Pack(ctrl.Image(), b, addrB)).To(Succeed())

		var runErr, verifyErr error
		err = sess.Run(func(h hostsim.Host) error {
			hn := harness.New(h, ctrl)
			if err := hn.Reset(); err != nil {
				return err
			}
			hn.ConfigureUnit(0, addrA, addrB, addrC)
			if _, runErr = hn.RunSingleUnit(0, 1000); runErr != nil {
				return nil
			}
			verifyErr = hn.VerifyExact(0, want)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(runErr).NotTo(HaveOccurred())
		Expect(verifyErr).NotTo(HaveOccurred())
	})

	It("should reject unit indices outside the bit-vector width", func() {
		sess, _ := newSystem(gpumodel.DefaultConfig())

		var singleErr, parallelErr, negErr error
		err := sess.Run(func(h hostsim.Host) error {
			hn := harness.New(h, nil)
			_, singleErr = hn.RunSingleUnit(64, 10)
			_, parallelErr = hn.RunParallel([]int{0, 64}, 10)
			_, negErr = hn.RunSingleUnit(-1, 10)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(singleErr).To(MatchError(harness.ErrUnitIndex))
		Expect(parallelErr).To(MatchError(harness.ErrUnitIndex))
		Expect(negErr).To(MatchError(harness.ErrUnitIndex))
	})

	It("should time out after exactly the cycle budget on a stuck unit", func() {
		cfg := gpumodel.DefaultConfig()
		cfg.StuckUnits = hostsim.SetBit(0, 0)
		sess, _ := newSystem(cfg)

		var cycles uint64
		var runErr error
		err := sess.Run(func(h hostsim.Host) error {
			hn := harness.New(h, nil)
			if err := hn.Reset(); err != nil {
				return err
			}
			addrA, addrB, addrC := unitRegion(0)
			hn.ConfigureUnit(0, addrA, addrB, addrC)
			cycles, runErr = hn.RunSingleUnit(0, 50)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(runErr).To(MatchError(harness.ErrOperationTimeout))
		Expect(cycles).To(Equal(uint64(50)))
	})

	It("should keep completed units when one of four times out", func() {
		cfg := gpumodel.DefaultConfig()
		cfg.StuckUnits = hostsim.SetBit(0, 2)
		sess, ctrl := newSystem(cfg)

		rng := rand.New(rand.NewSource(11))
		units := []int{0, 1, 2, 3}
		expected := map[int]*codec.Matrix{}
		for _, u := range units {
			a := codec.Random(4, 4, rng)
			b := codec.Random(4, 4, rng)
			addrA, addrB, _ := unitRegion(u)
			Expect(codec.Pack(ctrl.Image(), a, addrA)).To(Succeed())
			Expect(codec.Pack(ctrl.Image(), b, addrB)).To(Succeed())
			want, err := harness.MatMulRef(a, b)
			Expect(err).NotTo(HaveOccurred())
			expected[u] = want
		}

		var res *harness.ParallelResult
		var runErr error
		verifyErrs := map[int]error{}
		err := sess.Run(func(h hostsim.Host) error {
			hn := harness.New(h, ctrl)
			if err := hn.Reset(); err != nil {
				return err
			}
			for _, u := range units {
				addrA, addrB, addrC := unitRegion(u)
				hn.ConfigureUnit(u, addrA, addrB, addrC)
			}
			res, runErr = hn.RunParallel(units, 2000)
			for _, u := range []int{0, 1, 3} {
				verifyErrs[u] = hn.VerifyTolerance(u, expected[u])
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(errors.Is(runErr, harness.ErrOperationTimeout)).To(BeTrue())
		Expect(res).NotTo(BeNil())
		Expect(res.TimedOut).To(Equal([]int{2}))

		byUnit := map[int]harness.UnitOutcome{}
		for _, out := range res.Outcomes {
			byUnit[out.Unit] = out
		}
		// Units share one bus master, so they drain one after another.
		Expect(byUnit[0].Completed).To(BeTrue())
		Expect(byUnit[1].Completed).To(BeTrue())
		Expect(byUnit[3].Completed).To(BeTrue())
		Expect(byUnit[2].Completed).To(BeFalse())
		Expect(byUnit[0].Cycles).To(BeNumerically("<", byUnit[1].Cycles))
		Expect(byUnit[1].Cycles).To(BeNumerically("<", byUnit[3].Cycles))
		Expect(byUnit[2].Cycles).To(Equal(uint64(2000)))

		for _, u := range []int{0, 1, 3} {
			Expect(verifyErrs[u]).NotTo(HaveOccurred())
		}
	})

	It("should measure sustained throughput over repeated operations", func() {
		sess, ctrl := newSystem(gpumodel.DefaultConfig())

		rng := rand.New(rand.NewSource(3))
		a := codec.Random(4, 4, rng)
		b := codec.Random(4, 4, rng)
		addrA, addrB, addrC := unitRegion(0)
		Expect(codec.Pack(ctrl.Image(), a, addrA)).To(Succeed())
		Expect(codec.Pack(ctrl.Image(), b, addrB)).To(Succeed())

		var result *harness.BenchmarkResult
		var measErr error
		err := sess.Run(func(h hostsim.Host) error {
			hn := harness.New(h, ctrl)
			if err := hn.Reset(); err != nil {
				return err
			}
			hn.ConfigureUnit(0, addrA, addrB, addrC)
			result, measErr = hn.MeasureThroughput("repeat-single", 0, 5, 1000)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(measErr).NotTo(HaveOccurred())
		Expect(result.Operations).To(Equal(5))
		Expect(result.Cycles).To(BeNumerically(">", 0))
		Expect(result.CyclesPerOp).To(BeNumerically(">", 1))
		Expect(result.OpsPerSecond).To(BeNumerically(">", 0))
		Expect(result.TOPS).To(Equal(result.MACOpsPerSecond / 1e12))
	})
})
