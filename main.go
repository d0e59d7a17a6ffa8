// Package main provides the entry point for urvsim.
// urvsim is a verification and performance-modeling harness for the
// UnifiedRISCV GPU matrix units, built on Akita.
//
// For the full CLI, use: go run ./cmd/urvsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("urvsim - UnifiedRISCV GPU Verification Harness")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: urvsim [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to performance configuration JSON file")
	fmt.Println("  -target    Throughput target in TOPS for scaling analysis")
	fmt.Println("  -json      Output the report as JSON")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/urvsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/urvsim' instead.")
	}
}
