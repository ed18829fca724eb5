package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/cli"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/ctxlog"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/shot"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/timeline"
)

// main is the entrypoint for the shotc compiler.
func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := cli.NewLogger(cfg, os.Stderr)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	timelineShot, registry, err := timeline.LoadFile(cfg.ShotPath)
	if err != nil {
		return err
	}

	result, err := shot.Compile(ctx, timelineShot, registry)
	if err != nil {
		return err
	}

	fmt.Fprintf(outW, "shot %q compiled for %d device(s)\n", timelineShot.Name, len(result.Devices))
	for _, name := range result.StartOrder {
		program := result.Devices[name]
		fmt.Fprintf(outW, "  %-20s %10d ticks @ %d ns/tick", name, program.Instruction.Length(), program.TimeStep)
		if len(program.Exposures) > 0 {
			fmt.Fprintf(outW, "  (%d exposure(s))", len(program.Exposures))
		}
		fmt.Fprintln(outW)
	}
	fmt.Fprintf(outW, "start order: %v\n", result.StartOrder)
	return nil
}
