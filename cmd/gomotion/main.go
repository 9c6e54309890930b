// Command gomotion runs the controller core against an INI configuration
// file (spec.md §6, "CLI surface"): flag parsing plus a
// signal.NotifyContext-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"github.com/itohio/gomotion/launcher"
)

var errColor = color.New(color.FgRed)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("gomotion", flag.ContinueOnError)
	iniPath := fs.String("i", "", "path to the gomotion INI configuration file")
	backend := fs.String("u", "unix", "OS abstraction backend (unix|rtai, informational only)")
	debug := fs.Bool("d", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	_ = backend

	if *iniPath == "" {
		errColor.Fprintln(os.Stderr, "gomotion: -i <inifile> is required")
		fs.Usage()
		return 1
	}

	rt, err := launcher.Build(launcher.Options{IniPath: *iniPath, Debug: *debug})
	if err != nil {
		errColor.Fprintf(os.Stderr, "gomotion: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt.Log.Info().Str("ini", *iniPath).Msg("gomotion starting")
	if err := launcher.Run(ctx, rt); err != nil {
		errColor.Fprintf(os.Stderr, "gomotion: %v\n", err)
		return 1
	}
	return 0
}
