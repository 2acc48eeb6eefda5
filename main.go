// Package main provides the entry point for MRCM.
// MRCM is a cycle-driven 64-bit RISC execution core.
//
// For the full CLI, use: go run ./cmd/mrcm
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("MRCM - 64-bit RISC execution core")
	fmt.Println("")
	fmt.Println("Usage: mrcm <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run        Run a program image")
	fmt.Println("  debug      Step through a program interactively")
	fmt.Println("  script     Drive the core from a Starlark script")
	fmt.Println("  disasm     Disassemble a program image")
	fmt.Println("  tracediff  Compare two execution traces")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/mrcm' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/mrcm' instead.")
	}
}
