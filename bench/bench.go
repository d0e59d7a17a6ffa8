// Package bench runs end-to-end verification cases against the behavioral
// accelerator model. Each case gets a fresh simulated system, so cases are
// independent and can run concurrently.
package bench

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/urvsim/codec"
	"github.com/sarchlab/urvsim/gpumodel"
	"github.com/sarchlab/urvsim/harness"
	"github.com/sarchlab/urvsim/hostsim"
	"github.com/sarchlab/urvsim/membus"
)

// Case is one self-contained verification scenario.
type Case struct {
	// Name identifies the case in results and logs.
	Name string

	// Description explains what the case exercises.
	Description string

	// Accel configures the accelerator model for this case.
	Accel gpumodel.Config

	// Seed feeds the case's operand generator.
	Seed int64

	// Drive runs the scenario against a reset harness. A non-nil
	// BenchmarkResult carries a throughput measurement into the report.
	Drive func(hn *harness.Harness, ctrl *membus.Controller, rng *rand.Rand) (*harness.BenchmarkResult, error)
}

// CaseResult records the outcome of one case.
type CaseResult struct {
	// Name of the case
	Name string `json:"name"`

	// Description of the case
	Description string `json:"description"`

	// Passed reports whether the case completed without error
	Passed bool `json:"passed"`

	// Error holds the failure message for failed cases
	Error string `json:"error,omitempty"`

	// Benchmark is the throughput measurement, for measuring cases
	Benchmark *harness.BenchmarkResult `json:"benchmark,omitempty"`

	// WallTime is the host time the case took
	WallTime time.Duration `json:"wall_time_ns"`
}

// Tally aggregates a result list.
type Tally struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summarize counts passed and failed cases.
func Summarize(results []CaseResult) Tally {
	t := Tally{Total: len(results)}
	for _, r := range results {
		if r.Passed {
			t.Passed++
		} else {
			t.Failed++
		}
	}
	return t
}

// Runner executes cases, up to Concurrency at a time.
type Runner struct {
	// Concurrency bounds the number of simulated systems alive at once.
	// Zero means one at a time.
	Concurrency int
}

// Run executes all cases and returns one result per case, in case order.
// A failing case is recorded and does not stop the rest; only context
// cancellation cuts the run short.
func (r *Runner) Run(ctx context.Context, cases []Case) []CaseResult {
	results := make([]CaseResult, len(cases))

	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for i, c := range cases {
		if ctx.Err() != nil {
			for j := i; j < len(cases); j++ {
				results[j] = CaseResult{
					Name:        cases[j].Name,
					Description: cases[j].Description,
					Error:       ctx.Err().Error(),
				}
			}
			break
		}
		g.Go(func() error {
			results[i] = runCase(c)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// runCase builds a fresh system, drives the case, and records the outcome.
func runCase(c Case) CaseResult {
	result := CaseResult{Name: c.Name, Description: c.Description}
	start := time.Now()

	sess := hostsim.NewSession(hostsim.DefaultConfig())
	ctrl := membus.NewController(membus.DefaultConfig())
	accel := gpumodel.New(c.Accel)
	sess.Spawn("membus", func(h hostsim.Host) error {
		return ctrl.Run(sess.Context(), h)
	})
	sess.Spawn("accel", func(h hostsim.Host) error {
		return accel.Run(h)
	})

	var caseErr error
	runErr := sess.Run(func(h hostsim.Host) error {
		hn := harness.New(h, ctrl)
		if err := hn.Reset(); err != nil {
			return err
		}
		result.Benchmark, caseErr = c.Drive(hn, ctrl, rand.New(rand.NewSource(c.Seed)))
		return nil
	})

	result.WallTime = time.Since(start)
	switch {
	case runErr != nil:
		result.Error = runErr.Error()
	case caseErr != nil:
		result.Error = caseErr.Error()
	default:
		result.Passed = true
	}
	return result
}

// unitRegion returns non-overlapping operand and result addresses per unit.
func unitRegion(unit int) (addrA, addrB, addrC uint32) {
	base := uint32(0x1000 + unit*0x400)
	return base, base + 0x100, base + 0x200
}

// packOperands generates and packs one unit's operand pair, returning the
// expected result.
func packOperands(ctrl *membus.Controller, unit int, rng *rand.Rand) (*codec.Matrix, error) {
	a := codec.Random(4, 4, rng)
	b := codec.Random(4, 4, rng)
	addrA, addrB, _ := unitRegion(unit)
	if err := codec.Pack(ctrl.Image(), a, addrA); err != nil {
		return nil, err
	}
	if err := codec.Pack(ctrl.Image(), b, addrB); err != nil {
		return nil, err
	}
	return harness.MatMulRef(a, b)
}

// DefaultCases is the standing verification suite: single-unit identity,
// single-unit signed arithmetic, a four-unit parallel run, and a sustained
// throughput measurement.
func DefaultCases() []Case {
	return []Case{
		{
			Name:        "identity-single",
			Description: "one unit multiplies a random matrix by identity",
			Accel:       gpumodel.DefaultConfig(),
			Seed:        1,
			Drive: func(hn *harness.Harness, ctrl *membus.Controller, rng *rand.Rand) (*harness.BenchmarkResult, error) {
				a := codec.Random(4, 4, rng)
				addrA, addrB, addrC := unitRegion(0)
				if err := codec.Pack(ctrl.Image(), a, addrA); err != nil {
					return nil, err
				}
				if err := codec.Pack(ctrl.Image(), codec.Identity(4), addrB); err != nil {
					return nil, err
				}
				hn.ConfigureUnit(0, addrA, addrB, addrC)
				if _, err := hn.RunSingleUnit(0, 1000); err != nil {
					return nil, err
				}
				return nil, hn.VerifyExact(0, a.WidenTo16())
			},
		},
		{
			Name:        "signed-single",
			Description: "one unit exercises negative products and wraparound",
			Accel:       gpumodel.DefaultConfig(),
			Seed:        2,
			Drive: func(hn *harness.Harness, ctrl *membus.Controller, rng *rand.Rand) (*harness.BenchmarkResult, error) {
				want, err := packOperands(ctrl, 0, rng)
				if err != nil {
					return nil, err
				}
				addrA, addrB, addrC := unitRegion(0)
				hn.ConfigureUnit(0, addrA, addrB, addrC)
				if _, err := hn.RunSingleUnit(0, 1000); err != nil {
					return nil, err
				}
				return nil, hn.VerifyExact(0, want)
			},
		},
		{
			Name:        "parallel-random",
			Description: "four units run concurrently on random operands",
			Accel:       gpumodel.DefaultConfig(),
			Seed:        3,
			Drive: func(hn *harness.Harness, ctrl *membus.Controller, rng *rand.Rand) (*harness.BenchmarkResult, error) {
				units := []int{0, 1, 2, 3}
				expected := map[int]*codec.Matrix{}
				for _, u := range units {
					want, err := packOperands(ctrl, u, rng)
					if err != nil {
						return nil, err
					}
					expected[u] = want
					addrA, addrB, addrC := unitRegion(u)
					hn.ConfigureUnit(u, addrA, addrB, addrC)
				}
				if _, err := hn.RunParallel(units, 4000); err != nil {
					return nil, err
				}
				for _, u := range units {
					if err := hn.VerifyTolerance(u, expected[u]); err != nil {
						return nil, err
					}
				}
				return nil, nil
			},
		},
		{
			Name:        "throughput-sustained",
			Description: "100 back-to-back operations on one unit",
			Accel:       gpumodel.DefaultConfig(),
			Seed:        4,
			Drive: func(hn *harness.Harness, ctrl *membus.Controller, rng *rand.Rand) (*harness.BenchmarkResult, error) {
				if _, err := packOperands(ctrl, 0, rng); err != nil {
					return nil, err
				}
				addrA, addrB, addrC := unitRegion(0)
				hn.ConfigureUnit(0, addrA, addrB, addrC)
				return hn.MeasureThroughput("throughput-sustained", 0, 100, 2000)
			},
		},
	}
}
