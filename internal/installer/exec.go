// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package installer

import (
	"io"
	"os/exec"
	"strings"

	"github.com/juju/errors"
)

// CommandRunner executes host commands. Steps depend on this interface
// rather than os/exec so they can be driven in tests without a real host.
type CommandRunner interface {
	// Run executes the command, streaming output to the runner's writers.
	Run(name string, args ...string) error

	// RunInput is Run with the given input on standard input.
	RunInput(input string, name string, args ...string) error

	// Output executes the command and captures its standard output.
	Output(name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements CommandRunner.
func (r ExecRunner) Run(name string, args ...string) error {
	return r.run(nil, name, args)
}

// RunInput implements CommandRunner.
func (r ExecRunner) RunInput(input string, name string, args ...string) error {
	return r.run(strings.NewReader(input), name, args)
}

func (r ExecRunner) run(stdin io.Reader, name string, args []string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	logger.Debugf("running: %s %s", name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return errors.Annotatef(err, "%s %s", name, strings.Join(args, " "))
	}
	return nil
}

// Output implements CommandRunner.
func (r ExecRunner) Output(name string, args ...string) ([]byte, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return nil, errors.Annotatef(err, "%s %s", name, strings.Join(args, " "))
	}
	return out, nil
}
