package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/sarchlab/mrcm/emu"
	"github.com/sarchlab/mrcm/report"
	"github.com/sarchlab/mrcm/timing/core"
	"github.com/sarchlab/mrcm/trace"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		cycles    uint64
		jsonStats bool
		chartPath string
	)

	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Run a program until it goes idle, faults or hits the instruction limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []trace.Writer
			var profile *report.Profile
			if chartPath != "" {
				profile = report.NewProfile()
				extra = append(extra, profile)
			}

			s, err := opts.newSession(args[0], extra...)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			runErr := runProgram(ctx, s.emu, cycles, out)

			printRegisters(out, s.emu.Snapshot())
			if err := printStats(out, s.emu.Stats(), jsonStats); err != nil {
				return err
			}
			if profile != nil {
				if err := profile.WriteHTML(chartPath, filepath.Base(args[0])); err != nil {
					return err
				}
			}

			if errors.Is(runErr, emu.ErrInstructionLimit) {
				fmt.Fprintf(out, "Stopped: %v\n", runErr)
				return nil
			}
			return runErr
		},
	}

	cmd.Flags().Uint64Var(&cycles, "cycles", 0, "advance the core this many clock cycles instead of running to idle")
	cmd.Flags().BoolVar(&jsonStats, "json", false, "print statistics as JSON")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write an HTML execution profile to this file")

	return cmd
}

// runProgram runs e to completion, or for the given number of clock
// cycles when cycles is non-zero.
func runProgram(ctx context.Context, e *emu.Emulator, cycles uint64, out io.Writer) error {
	if cycles == 0 {
		return e.Run(ctx)
	}

	c := core.NewCore(e)
	running := c.RunCycles(cycles)

	stats := c.Stats()
	fmt.Fprintf(out, "Cycles: %d  Instructions: %d  Stall cycles: %d  CPI: %.2f\n",
		stats.Cycles, stats.Instructions, stats.StallCycles, stats.CPI())
	if running {
		fmt.Fprintf(out, "Still running at PC 0x%X\n", e.PC())
	}

	return c.Err()
}

func printRegisters(w io.Writer, state emu.State) {
	fmt.Fprintf(w, "PC: 0x%X\n", state.PC)
	for i := 0; i < emu.NumRegisters; i += 4 {
		for j := i; j < i+4; j++ {
			fmt.Fprintf(w, "x%-2d 0x%016X  ", j, state.Registers[j])
		}
		fmt.Fprintln(w)
	}
	if state.Fault != nil {
		fmt.Fprintf(w, "Fault: %v\n", state.Fault)
	}
}

func printStats(w io.Writer, stats emu.Stats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	tree := treeprint.New()
	tree.SetValue("Statistics")
	tree.AddNode(fmt.Sprintf("Instructions: %d", stats.Instructions))
	tree.AddNode(fmt.Sprintf("Estimated cycles: %d", stats.Cycles))

	mem := tree.AddBranch("Memory")
	mem.AddNode(fmt.Sprintf("Loads: %d", stats.Loads))
	mem.AddNode(fmt.Sprintf("Stores: %d", stats.Stores))

	flow := tree.AddBranch("Control flow")
	flow.AddNode(fmt.Sprintf("Branches taken: %d", stats.BranchesTaken))
	flow.AddNode(fmt.Sprintf("Branches not taken: %d", stats.BranchesNotTaken))
	flow.AddNode(fmt.Sprintf("Jumps: %d", stats.Jumps))
	flow.AddNode(fmt.Sprintf("Calls: %d", stats.Calls))
	flow.AddNode(fmt.Sprintf("Returns: %d", stats.Returns))

	if stats.NOPs > 0 || stats.LenientDecodes > 0 {
		tree.AddNode(fmt.Sprintf("NOPs: %d (lenient decodes: %d)", stats.NOPs, stats.LenientDecodes))
	}

	if dc := stats.DCache; dc != nil {
		cache := tree.AddBranch("D-cache")
		cache.AddNode(fmt.Sprintf("Hits: %d", dc.Hits))
		cache.AddNode(fmt.Sprintf("Misses: %d", dc.Misses))
		cache.AddNode(fmt.Sprintf("Evictions: %d", dc.Evictions))
		cache.AddNode(fmt.Sprintf("Writebacks: %d", dc.Writebacks))
	}

	_, err := fmt.Fprint(w, tree.String())
	return err
}
