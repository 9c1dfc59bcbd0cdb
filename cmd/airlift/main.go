// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo/v2"
)

// loggingConfigEnvKey names the environment variable holding the loggo
// configuration string, e.g. "airlift=DEBUG".
const loggingConfigEnvKey = "AIRLIFT_LOGGING_CONFIG"

var airliftDoc = `
airlift provisions a Google Compute Engine virtual machine and turns it into
a running Apache Airflow host.

Run "airlift create-vm" first to create the machine, then "airlift install"
to deploy onto it.
`

func init() {
	// An empty configuration string is a no-op.
	if err := loggo.ConfigureLoggers(os.Getenv(loggingConfigEnvKey)); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR parsing %s: %s\n\n", loggingConfigEnvKey, err)
	}
}

// Main registers the subcommands and hands over control to the cmd package.
// It is separate from main so tests can drive it with arbitrary arguments.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return cmd.Main(newAirliftCommand(), ctx, args[1:])
}

func newAirliftCommand() cmd.Command {
	airlift := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "airlift",
		Doc:     airliftDoc,
		Purpose: "provision and bootstrap an Airflow host",
		Log:     &cmd.Log{},
	})
	airlift.Register(newCreateVMCommand())
	airlift.Register(newInstallCommand())
	return airlift
}

func main() {
	os.Exit(Main(os.Args))
}
