// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package installer

import (
	"github.com/juju/errors"
)

// runtimePackages is the fixed set of build and runtime dependencies,
// plus the certificate management client.
var runtimePackages = []string{
	"build-essential",
	"libffi-dev",
	"libssl-dev",
	"python3",
	"python3-dev",
	"python3-pip",
	"python3-venv",
	"git",
	"certbot",
}

// osUserStep creates the dedicated OS account the daemons run as.
type osUserStep struct {
	runner  CommandRunner
	invoker string
}

func (osUserStep) Name() string { return "service user" }

func (s osUserStep) Satisfied() (bool, error) {
	// id exits non-zero for an unknown user.
	if _, err := s.runner.Output("id", "-u", ServiceUser); err != nil {
		return false, nil
	}
	return true, nil
}

func (s osUserStep) Run() error {
	err := s.runner.Run("useradd",
		"--system", "--create-home",
		"--home-dir", homeDir,
		"--shell", "/bin/bash",
		ServiceUser)
	if err != nil {
		return errors.Trace(err)
	}
	if s.invoker != "" && s.invoker != "root" {
		if err := s.runner.Run("usermod", "-aG", ServiceUser, s.invoker); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// packagesStep updates the OS package index and installs the runtime set.
// It always runs: a repeat install is a cheap no-op for apt and picks up
// security updates on re-entry.
type packagesStep struct {
	runner CommandRunner
}

func (packagesStep) Name() string { return "OS packages" }

func (packagesStep) Satisfied() (bool, error) { return false, nil }

func (s packagesStep) Run() error {
	if err := s.runner.Run("apt-get", "update"); err != nil {
		return errors.Trace(err)
	}
	args := append([]string{"install", "-y"}, runtimePackages...)
	return errors.Trace(s.runner.Run("apt-get", args...))
}

// stopDaemonsStep stops any daemons from a previous deployment. Units that
// are not running, or not installed yet, are fine.
type stopDaemonsStep struct {
	runner CommandRunner
}

func (stopDaemonsStep) Name() string { return "stop daemons" }

func (stopDaemonsStep) Satisfied() (bool, error) { return false, nil }

func (s stopDaemonsStep) Run() error {
	for _, service := range []string{webserverService, schedulerService} {
		if err := s.runner.Run("systemctl", "stop", service); err != nil {
			logger.Debugf("stopping %s: %v", service, err)
		}
	}
	return nil
}
