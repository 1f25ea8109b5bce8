// cmd/basin is the command-line interface to basin, a self-hosted kernel
// and RV64 interpreter.
package main

import (
	"context"
	"os"

	"github.com/basin-os/basin/internal/cli"
	"github.com/basin-os/basin/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Runner(),
	cmd.Inspector(),
}

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
