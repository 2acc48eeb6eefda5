// Command mrcm runs programs on the MRCM 64-bit execution core.
//
//	mrcm run prog.hex --data table.bin@0x1000
//	mrcm debug prog.hex
//	mrcm script check.star --image prog.hex
//	mrcm disasm prog.hex
//	mrcm tracediff golden.jsonl trace.jsonl
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stderr: stderr}

	rootCmd := &cobra.Command{
		Use:           "mrcm",
		Short:         "MRCM 64-bit RISC execution core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a JSON configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringArrayVar(&opts.data, "data", nil, "data segment file[@addr], repeatable (default addr 0x1000)")
	flags.StringVar(&opts.tracePath, "trace", "", "write a JSON Lines trace to this file (- for stdout)")
	flags.Uint64Var(&opts.maxInstructions, "max-instructions", 0, "stop after this many instructions (0 keeps the configured limit)")
	flags.BoolVar(&opts.lenient, "lenient", false, "execute unknown instruction words as NOP")
	flags.BoolVar(&opts.dcache, "dcache", false, "model the default L1 data cache")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newDebugCmd(opts),
		newScriptCmd(opts),
		newDisasmCmd(opts),
		newTraceDiffCmd(),
	)

	return rootCmd
}
