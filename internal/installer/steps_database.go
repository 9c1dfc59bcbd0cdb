// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package installer

import (
	"encoding/json"
	"strings"

	"github.com/juju/errors"

	"github.com/cloudlift/airlift/internal/config"
)

// databaseStep bootstraps the metadata store: schema, one administrator
// account and the three platform connection records. Connections are
// deleted then recreated, so the net state after any number of runs is
// exactly ConnectionNames with fresh credentials.
type databaseStep struct {
	runner CommandRunner
	cfg    config.InstallConfig
}

func (databaseStep) Name() string { return "database bootstrap" }

func (databaseStep) Satisfied() (bool, error) { return false, nil }

func (s databaseStep) Run() error {
	// The connection records point at the key's final location, so move
	// it into place first.
	if err := s.runner.Run("install", "-d", "-o", ServiceUser, "-g", ServiceUser, keysDir); err != nil {
		return errors.Trace(err)
	}
	err := s.runner.Run("install", "-o", ServiceUser, "-g", ServiceUser, "-m", "0600",
		s.cfg.KeyPath, KeyFile)
	if err != nil {
		return errors.Trace(err)
	}

	if err := s.airflow("db", "init"); err != nil {
		return errors.Annotate(err, "initialising metadata database")
	}

	if err := s.airflow("users", "create",
		"--username", adminUsername(s.cfg.AdminEmail),
		"--email", s.cfg.AdminEmail,
		"--firstname", "Admin",
		"--lastname", s.cfg.AdminUserID,
		"--role", "Admin",
		"--password", adminPassword,
	); err != nil {
		return errors.Annotate(err, "creating administrator account")
	}

	extra, err := connectionExtra(s.cfg.ProjectID)
	if err != nil {
		return errors.Trace(err)
	}
	for _, name := range ConnectionNames {
		if err := s.airflow("connections", "delete", name); err != nil {
			// Absent on a first run; delete-then-add is what makes
			// the step converge.
			logger.Debugf("deleting connection %s: %v", name, err)
		}
		if err := s.airflow("connections", "add", name,
			"--conn-type", "google_cloud_platform",
			"--conn-extra", extra,
		); err != nil {
			return errors.Annotatef(err, "adding connection %q", name)
		}
	}
	return nil
}

// airflow runs the service CLI as the service user.
func (s databaseStep) airflow(args ...string) error {
	full := append([]string{"-u", ServiceUser, "-H", "airflow"}, args...)
	return s.runner.Run("sudo", full...)
}

// adminUsername derives the console account name from the operator email.
func adminUsername(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

// connectionExtra is the JSON blob every platform connection carries,
// pointing the client libraries at the project and the mounted key.
func connectionExtra(projectID string) (string, error) {
	blob, err := json.Marshal(map[string]string{
		"extra__google_cloud_platform__project":  projectID,
		"extra__google_cloud_platform__key_path": KeyFile,
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(blob), nil
}
