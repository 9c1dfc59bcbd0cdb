// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package installer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/juju/errors"
)

// serviceUnit describes one long-running daemon.
type serviceUnit struct {
	name        string
	description string
	command     string
	restart     string
	env         map[string]string
}

// serviceUnits returns the two daemons of a deployment: the web front end
// and the background scheduler.
func serviceUnits(domain string) []serviceUnit {
	baseEnv := map[string]string{
		"AIRFLOW_HOME":                 airflowHome,
		"PYTHONPATH":                   deployDir + "/src:" + blocksDir,
		"AIRFLOW__CORE__LOAD_EXAMPLES": "False",
		"AIRFLOW__CORE__DAGS_FOLDER":   deployDir + "/src/dags",
	}

	webEnv := make(map[string]string, len(baseEnv)+5)
	for k, v := range baseEnv {
		webEnv[k] = v
	}
	certDir := filepath.Join(liveCertDir, domain)
	webEnv["AIRFLOW__WEBSERVER__WEB_SERVER_PORT"] = "443"
	webEnv["AIRFLOW__WEBSERVER__WEB_SERVER_SSL_CERT"] = filepath.Join(certDir, "fullchain.pem")
	webEnv["AIRFLOW__WEBSERVER__WEB_SERVER_SSL_KEY"] = filepath.Join(certDir, "privkey.pem")
	webEnv["AIRFLOW__WEBSERVER__AUTHENTICATE"] = "True"
	webEnv["AIRFLOW__WEBSERVER__RBAC"] = "True"

	return []serviceUnit{{
		name:        webserverService,
		description: "Airflow webserver daemon",
		command:     "/usr/local/bin/airflow webserver",
		restart:     "on-failure",
		env:         webEnv,
	}, {
		name:        schedulerService,
		description: "Airflow scheduler daemon",
		command:     "/usr/local/bin/airflow scheduler",
		restart:     "always",
		env:         baseEnv,
	}}
}

// renderUnit serializes a serviceUnit into systemd unit file form.
// Environment lines come out sorted so repeated renders are identical.
func renderUnit(u serviceUnit) ([]byte, error) {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", u.description),
		unit.NewUnitOption("Unit", "After", "network.target"),
	}

	keys := make([]string, 0, len(u.env))
	for k := range u.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, unit.NewUnitOption("Service", "Environment",
			fmt.Sprintf("%s=%s", k, u.env[k])))
	}

	opts = append(opts,
		unit.NewUnitOption("Service", "ExecStart", u.command),
		unit.NewUnitOption("Service", "Restart", u.restart),
		unit.NewUnitOption("Service", "RestartSec", "5"),
		unit.NewUnitOption("Service", "User", ServiceUser),
		unit.NewUnitOption("Service", "Group", ServiceUser),
		unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
	)

	data, err := io.ReadAll(unit.Serialize(opts))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// unitsStep writes the two unit files, leaving any existing file alone so
// operator edits survive reinstallation.
type unitsStep struct {
	domain     string
	pathExists func(string) bool
	writeFile  func(string, []byte, os.FileMode) error
}

func (unitsStep) Name() string { return "service units" }

func (s unitsStep) Satisfied() (bool, error) {
	for _, u := range serviceUnits(s.domain) {
		if !s.pathExists(unitPath(u.name)) {
			return false, nil
		}
	}
	return true, nil
}

func (s unitsStep) Run() error {
	for _, u := range serviceUnits(s.domain) {
		path := unitPath(u.name)
		if s.pathExists(path) {
			logger.Infof("%s already present, not overwriting", path)
			continue
		}
		data, err := renderUnit(u)
		if err != nil {
			return errors.Trace(err)
		}
		if err := s.writeFile(path, data, 0o644); err != nil {
			return errors.Annotatef(err, "writing %q", path)
		}
	}
	return nil
}

func unitPath(name string) string {
	return filepath.Join(unitDir, name+".service")
}

// activateStep reloads the service manager, then enables and starts both
// daemons.
type activateStep struct {
	runner CommandRunner
}

func (activateStep) Name() string { return "service activation" }

func (activateStep) Satisfied() (bool, error) { return false, nil }

func (s activateStep) Run() error {
	if err := s.runner.Run("systemctl", "daemon-reload"); err != nil {
		return errors.Trace(err)
	}
	for _, service := range []string{webserverService, schedulerService} {
		if err := s.runner.Run("systemctl", "enable", service); err != nil {
			return errors.Trace(err)
		}
		if err := s.runner.Run("systemctl", "start", service); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
