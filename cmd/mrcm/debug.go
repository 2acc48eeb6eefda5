package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mrcm/emu"
)

func newDebugCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "debug [image]",
		Short: "Step through a program interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := ""
			if len(args) > 0 {
				image = args[0]
			}

			s, err := opts.newSession(image)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "mrcm> ",
				HistoryFile: filepath.Join(os.TempDir(), "mrcm_history.txt"),
			})
			if err != nil {
				return fmt.Errorf("failed to start readline: %w", err)
			}
			defer func() { _ = rl.Close() }()

			con := &console{emu: s.emu, out: rl.Stdout()}
			fmt.Fprintln(con.out, "MRCM debugger. Type 'help' for commands, 'exit' to quit.")

			for {
				line, err := rl.Readline()
				if err != nil {
					return nil
				}

				quit, err := con.exec(cmd.Context(), line)
				if err != nil {
					fmt.Fprintf(con.out, "error: %v\n", err)
				}
				if quit {
					return nil
				}
			}
		},
	}
}

var errUsage = errors.New("usage")

// console interprets debugger commands against an emulator.
type console struct {
	emu *emu.Emulator
	out io.Writer
}

const consoleHelp = `Commands:
  step [n]          execute n instructions (default 1)
  run               run until idle, fault or the instruction limit
  regs              print the PC and all registers
  reg <n> [value]   print or set register xn
  pc [addr]         print or set the PC
  mem <addr> [n]    dump n bytes of data memory (default 64)
  disasm [addr] [n] disassemble n words (default 8) from addr (default PC)
  stats             print execution statistics
  reset             reset the core
  exit              leave the debugger`

// exec runs one command line. It reports whether the session should end.
func (c *console) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	args := fields[1:]
	switch fields[0] {
	case "exit", "quit", "q":
		return true, nil
	case "help", "h", "?":
		fmt.Fprintln(c.out, consoleHelp)
		return false, nil
	case "step", "s":
		return false, c.step(args)
	case "run", "c":
		err := c.emu.Run(ctx)
		c.printPC()
		return false, err
	case "regs":
		printRegisters(c.out, c.emu.Snapshot())
		return false, nil
	case "reg", "r":
		return false, c.reg(args)
	case "pc":
		return false, c.pc(args)
	case "mem", "m":
		return false, c.mem(args)
	case "disasm", "d":
		return false, c.disasm(args)
	case "stats":
		return false, printStats(c.out, c.emu.Stats(), false)
	case "reset":
		c.emu.Reset()
		c.printPC()
		return false, nil
	}

	return false, fmt.Errorf("unknown command %q (try 'help')", fields[0])
}

func (c *console) printPC() {
	fmt.Fprintf(c.out, "pc = 0x%X\n", c.emu.PC())
}

func (c *console) step(args []string) error {
	n := uint64(1)
	if len(args) > 0 {
		var err error
		n, err = parseNumber(args[0])
		if err != nil {
			return err
		}
	}

	for i := uint64(0); i < n; i++ {
		res := c.emu.Step()
		if res.Err != nil {
			return res.Err
		}

		fmt.Fprintf(c.out, "0x%04X: %-24s", res.PC, res.Inst)
		if res.Inst.RegWrite && res.Inst.Rd != 0 {
			fmt.Fprintf(c.out, " x%d = 0x%X", res.Inst.Rd, c.emu.RegFile().X[res.Inst.Rd])
		}
		fmt.Fprintln(c.out)

		if res.Idle {
			fmt.Fprintln(c.out, "idle")
			return nil
		}
	}

	return nil
}

func (c *console) reg(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: reg <n> [value]", errUsage)
	}

	idx, err := parseRegister(args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		value, err := parseNumber(args[1])
		if err != nil {
			return err
		}
		if err := c.emu.RegFile().WriteReg(idx, value); err != nil {
			return err
		}
	}

	value, err := c.emu.RegFile().ReadReg(idx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "x%d = 0x%X (%d)\n", idx, value, int64(value))
	return nil
}

func (c *console) pc(args []string) error {
	if len(args) > 0 {
		addr, err := parseNumber(args[0])
		if err != nil {
			return err
		}
		c.emu.SetPC(addr)
	}
	c.printPC()
	return nil
}

func (c *console) mem(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: mem <addr> [n]", errUsage)
	}

	addr, err := parseNumber(args[0])
	if err != nil {
		return err
	}
	n := uint64(64)
	if len(args) > 1 {
		if n, err = parseNumber(args[1]); err != nil {
			return err
		}
	}

	data, err := c.emu.Memory().Window(addr, n)
	if err != nil {
		return err
	}

	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		fmt.Fprintf(c.out, "0x%04X:", addr+uint64(off))
		for _, b := range data[off:end] {
			fmt.Fprintf(c.out, " %02X", b)
		}
		fmt.Fprintln(c.out)
	}
	return nil
}

func (c *console) disasm(args []string) error {
	addr := c.emu.PC()
	n := uint64(8)

	var err error
	if len(args) > 0 {
		if addr, err = parseNumber(args[0]); err != nil {
			return err
		}
	}
	if len(args) > 1 {
		if n, err = parseNumber(args[1]); err != nil {
			return err
		}
	}

	return disassemble(c.out, c.emu, addr, n)
}

// disassemble lists n words of the instruction image starting at addr.
func disassemble(w io.Writer, e *emu.Emulator, addr, n uint64) error {
	imem := e.InstructionMemory()

	for i := uint64(0); i < n; i++ {
		pc := addr + 4*i
		word, err := imem.Fetch(pc)
		if err != nil {
			return err
		}

		text := "<unknown>"
		if inst, err := e.Decoder().Decode(word); err == nil {
			text = inst.String()
		}

		marker := " "
		if pc == e.PC() {
			marker = ">"
		}
		fmt.Fprintf(w, "%s 0x%04X: %08X  %s\n", marker, pc, word, text)
	}
	return nil
}

func parseNumber(s string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", s)
		}
		return uint64(v), nil
	}

	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseRegister(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "x"), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid register %q", s)
	}
	return uint8(v), nil
}
