package main

import (
	"github.com/spf13/cobra"
)

func newDisasmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <image>",
		Short: "Disassemble a program image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			n := uint64(s.emu.InstructionMemory().Len())
			return disassemble(cmd.OutOrStdout(), s.emu, s.emu.PC(), n)
		},
	}
}
