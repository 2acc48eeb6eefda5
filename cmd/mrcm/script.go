package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/sarchlab/mrcm/emu"
)

func newScriptCmd(opts *options) *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "script <file.star>",
		Short: "Drive the core from a Starlark script",
		Long: `Runs a Starlark script with these builtins bound to the core:

  step(n=1)            execute n instructions, returns the PC afterwards
  run()                run until idle, returns the instruction count
  reset()              reset the core
  reg(n)               read register xn
  set_reg(n, value)    write register xn
  pc()                 read the PC
  set_pc(addr)         write the PC
  load64(addr)         read a doubleword of data memory
  store64(addr, value) write a doubleword of data memory
  stats()              execution statistics as a dict

A script fails the command by calling fail(msg).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(image)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			return runScript(cmd.Context(), s.emu, args[0], nil, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "program image to load before the script runs")

	return cmd
}

// runScript executes a Starlark script against e. If src is nil the script
// is read from filename.
func runScript(ctx context.Context, e *emu.Emulator, filename string, src any, out io.Writer) error {
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(out, msg)
		},
	}

	// Scripts assert at top level.
	fileOpts := &syntax.FileOptions{
		TopLevelControl: true,
		GlobalReassign:  true,
		While:           true,
	}
	_, err := starlark.ExecFileOptions(fileOpts, thread, filename, src,
		scriptBuiltins(ctx, e))
	return err
}

func scriptBuiltins(ctx context.Context, e *emu.Emulator) starlark.StringDict {
	builtin := func(name string, fn func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error)) *starlark.Builtin {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return fn(args, kwargs, b.Name())
		})
	}

	return starlark.StringDict{
		"step": builtin("step", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			n := 1
			if err := starlark.UnpackArgs(name, args, kwargs, "n?", &n); err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				res := e.Step()
				if res.Err != nil {
					return nil, res.Err
				}
				if res.Idle {
					break
				}
			}
			return starlark.MakeUint64(e.PC()), nil
		}),

		"run": builtin("run", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			if err := starlark.UnpackArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			if err := e.Run(ctx); err != nil {
				return nil, err
			}
			return starlark.MakeUint64(e.InstructionCount()), nil
		}),

		"reset": builtin("reset", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			if err := starlark.UnpackArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			e.Reset()
			return starlark.None, nil
		}),

		"reg": builtin("reg", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			var idx int
			if err := starlark.UnpackArgs(name, args, kwargs, "n", &idx); err != nil {
				return nil, err
			}
			if idx < 0 || idx >= emu.NumRegisters {
				return nil, fmt.Errorf("%s: register %d out of range", name, idx)
			}
			return starlark.MakeUint64(e.RegFile().X[idx]), nil
		}),

		"set_reg": builtin("set_reg", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			var (
				idx   int
				value starlark.Int
			)
			if err := starlark.UnpackArgs(name, args, kwargs, "n", &idx, "value", &value); err != nil {
				return nil, err
			}
			v, err := toUint64(name, value)
			if err != nil {
				return nil, err
			}
			if idx < 0 || idx >= emu.NumRegisters {
				return nil, fmt.Errorf("%s: register %d out of range", name, idx)
			}
			return starlark.None, e.RegFile().WriteReg(uint8(idx), v)
		}),

		"pc": builtin("pc", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			if err := starlark.UnpackArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			return starlark.MakeUint64(e.PC()), nil
		}),

		"set_pc": builtin("set_pc", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			var addr starlark.Int
			if err := starlark.UnpackArgs(name, args, kwargs, "addr", &addr); err != nil {
				return nil, err
			}
			v, err := toUint64(name, addr)
			if err != nil {
				return nil, err
			}
			e.SetPC(v)
			return starlark.None, nil
		}),

		"load64": builtin("load64", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			var addr starlark.Int
			if err := starlark.UnpackArgs(name, args, kwargs, "addr", &addr); err != nil {
				return nil, err
			}
			a, err := toUint64(name, addr)
			if err != nil {
				return nil, err
			}
			v, err := e.Memory().Read64(a)
			if err != nil {
				return nil, err
			}
			return starlark.MakeUint64(v), nil
		}),

		"store64": builtin("store64", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			var addr, value starlark.Int
			if err := starlark.UnpackArgs(name, args, kwargs, "addr", &addr, "value", &value); err != nil {
				return nil, err
			}
			a, err := toUint64(name, addr)
			if err != nil {
				return nil, err
			}
			v, err := toUint64(name, value)
			if err != nil {
				return nil, err
			}
			return starlark.None, e.Memory().Write64(a, v)
		}),

		"stats": builtin("stats", func(args starlark.Tuple, kwargs []starlark.Tuple, name string) (starlark.Value, error) {
			if err := starlark.UnpackArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			s := e.Stats()
			d := starlark.NewDict(8)
			for k, v := range map[string]uint64{
				"instructions":       s.Instructions,
				"cycles":             s.Cycles,
				"loads":              s.Loads,
				"stores":             s.Stores,
				"branches_taken":     s.BranchesTaken,
				"branches_not_taken": s.BranchesNotTaken,
				"calls":              s.Calls,
				"returns":            s.Returns,
			} {
				if err := d.SetKey(starlark.String(k), starlark.MakeUint64(v)); err != nil {
					return nil, err
				}
			}
			return d, nil
		}),
	}
}

// toUint64 accepts any 64-bit integer; negative values wrap to their two's
// complement bit pattern.
func toUint64(name string, v starlark.Int) (uint64, error) {
	if u, ok := v.Uint64(); ok {
		return u, nil
	}
	if i, ok := v.Int64(); ok {
		return uint64(i), nil
	}
	return 0, fmt.Errorf("%s: %v does not fit in 64 bits", name, v)
}
