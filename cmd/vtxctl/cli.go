package main

import (
	"errors"
	"flag"
	"fmt"
)

// ErrInvalidSubcommand is returned when args name neither "probe" nor
// "selftest", mirroring flag/flag.go's ErrorInvalidSubcommands in the
// teacher (boot/probe there, probe/selftest here: this core has no guest
// kernel to boot).
var ErrInvalidSubcommand = errors.New("vtxctl: expected 'probe' or 'selftest' subcommand")

func run(args []string) error {
	if len(args) < 2 {
		return ErrInvalidSubcommand
	}

	switch args[1] {
	case "probe":
		return runProbe(args[2:])
	case "selftest":
		return runSelftest(args[2:])
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidSubcommand, args[1])
	}
}

func runProbe(args []string) error {
	cmd := flag.NewFlagSet("probe", flag.ExitOnError)
	if err := cmd.Parse(args); err != nil {
		return err
	}

	return probeCapabilities()
}
