package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/mrcm/trace"
)

var errTraceMismatch = errors.New("traces differ")

func newTraceDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tracediff <expected.jsonl> <actual.jsonl>",
		Short: "Compare two execution traces and report the first divergence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			expected, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = expected.Close() }()

			actual, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = actual.Close() }()

			div, err := trace.Diff(expected, actual)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if div == nil {
				fmt.Fprintln(out, "traces match")
				return nil
			}

			fmt.Fprintf(out, "first divergence at line %d\n", div.Line)
			fmt.Fprintf(out, "expected: %s\nactual:   %s\n", div.Expected, div.Actual)
			fmt.Fprintln(out, div.Delta)
			return fmt.Errorf("%w at line %d", errTraceMismatch, div.Line)
		},
	}
}
