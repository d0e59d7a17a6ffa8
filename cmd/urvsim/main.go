// Command urvsim runs the UnifiedRISCV GPU verification suite and the
// performance model, and reports the results.
//
// Usage:
//
//	go run ./cmd/urvsim [flags]
//
// Flags:
//
//	-config  Path to a performance configuration JSON file
//	-target  Throughput target in TOPS for the scaling analysis
//	-jobs    Number of verification cases to run concurrently
//	-json    Output the report as JSON (default: human-readable)
//	-v       Verbose output
//
// Example:
//
//	# Run the standing suite and print the report
//	go run ./cmd/urvsim
//
//	# Scale toward a 2 TOPS target and emit JSON
//	go run ./cmd/urvsim -target 2.0 -json > report.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/urvsim/bench"
	"github.com/sarchlab/urvsim/perf"
	"github.com/sarchlab/urvsim/report"
)

func main() {
	configPath := flag.String("config", "", "Path to performance configuration JSON file")
	target := flag.Float64("target", perf.M1NeuralEngine().TOPS, "Scaling target in TOPS")
	jobs := flag.Int("jobs", 2, "Number of verification cases to run concurrently")
	jsonOutput := flag.Bool("json", false, "Output the report as JSON")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	cfg := perf.DefaultConfig()
	if *configPath != "" {
		loaded, err := perf.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "urvsim: %v\n", err)
			atexit.Exit(1)
		}
		cfg = loaded
	}

	if !*jsonOutput {
		fmt.Println("UnifiedRISCV GPU Verification Suite")
		fmt.Println("===================================")
		fmt.Printf("Configuration: %d units @ %.0f MHz, %s\n",
			cfg.Units, float64(cfg.Frequency)/1e6, cfg.Precision)
		fmt.Printf("Theoretical peak: %.5f TOPS\n\n", cfg.TheoreticalTOPS())
	}

	runner := &bench.Runner{Concurrency: *jobs}
	results := runner.Run(context.Background(), bench.DefaultCases())
	tally := bench.Summarize(results)

	rep := report.New(cfg)
	for _, r := range results {
		if *verbose && !*jsonOutput {
			status := "PASS"
			if !r.Passed {
				status = "FAIL"
			}
			fmt.Printf("[%s] %s (%v)\n", status, r.Name, r.WallTime)
			if r.Error != "" {
				fmt.Printf("       %s\n", r.Error)
			}
		}
		if r.Benchmark != nil {
			rep.AddBenchmark(*r.Benchmark)
		}
	}
	rep.SetScaling(cfg.AnalyzeScaling(*target))
	rep.SetComparison(cfg.CompareToReference(perf.M1NeuralEngine()))
	rep.Finalize()

	if *jsonOutput {
		if err := rep.WriteJSON(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "urvsim: %v\n", err)
			atexit.Exit(1)
		}
	} else {
		if *verbose {
			fmt.Println("")
		}
		rep.WriteText(os.Stdout)
		fmt.Printf("Cases: %d passed, %d failed\n", tally.Passed, tally.Failed)
	}

	if tally.Failed > 0 {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
