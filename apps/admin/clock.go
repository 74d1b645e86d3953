package main

import (
	"context"
	"fmt"

	"github.com/thesisman/backend/core"
)

// moveClock prints the virtual clock, after moving it when raw is set.
func (cli *commandLine) moveClock(raw string) error {
	ctx := context.Background()
	if raw != "" {
		if _, err := cli.clock.SetDelta(ctx, raw); err != nil {
			return err
		}
	}
	state, err := cli.clock.Current(ctx)
	if err != nil {
		return err
	}
	today, err := cli.clock.Today(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "today %s (delta %d days)\n", today.Format(core.DateLayout), state.DeltaDays)
	return nil
}

func (cli *commandLine) sweep() error {
	if err := cli.sweeper.ForceRun(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "sweep done")
	return nil
}
