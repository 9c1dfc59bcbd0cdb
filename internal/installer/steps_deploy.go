// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package installer

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/juju/errors"

	"github.com/cloudlift/airlift/internal/config"
)

// cloneStep replaces any previous deployment with a fresh clone of the
// application and its dependency bundle. Deliberately destructive: local
// edits to a deployment are not supported.
type cloneStep struct {
	runner CommandRunner
}

func (cloneStep) Name() string { return "application clone" }

func (cloneStep) Satisfied() (bool, error) { return false, nil }

func (s cloneStep) Run() error {
	for _, repo := range []struct {
		url string
		dir string
	}{
		{appRepoURL, deployDir},
		{blocksRepoURL, blocksDir},
	} {
		if err := s.runner.Run("rm", "-rf", repo.dir); err != nil {
			return errors.Trace(err)
		}
		if err := s.runner.Run("git", "clone", repo.url, repo.dir); err != nil {
			return errors.Annotatef(err, "cloning %s", repo.url)
		}
	}
	return nil
}

// webserverConfigTemplate is the web console's authentication module,
// rendered once per install with the operator's OAuth client.
var webserverConfigTemplate = template.Must(template.New("webserver_config").Parse(`# Generated by airlift; regenerated on every install.
import os

from airflow.www.fab_security.manager import AUTH_OAUTH

SQLALCHEMY_DATABASE_URI = "sqlite:///{{.AirflowHome}}/airflow.db"

AUTH_TYPE = AUTH_OAUTH
AUTH_USER_REGISTRATION = False

OAUTH_PROVIDERS = [{
    "name": "google",
    "icon": "fa-google",
    "token_key": "access_token",
    "remote_app": {
        "client_id": "{{.OAuthClientID}}",
        "client_secret": "{{.OAuthSecret}}",
        "api_base_url": "https://www.googleapis.com/oauth2/v2/",
        "client_kwargs": {"scope": "email profile"},
        "request_token_url": None,
        "access_token_url": "https://accounts.google.com/o/oauth2/token",
        "authorize_url": "https://accounts.google.com/o/oauth2/auth",
    },
}]
`))

// webAuthStep renders the web console's OAuth configuration. Always
// re-applied so a rotated client secret lands on the next install run.
type webAuthStep struct {
	cfg       config.InstallConfig
	runner    CommandRunner
	writeFile func(string, []byte, os.FileMode) error
}

func (webAuthStep) Name() string { return "web authentication config" }

func (webAuthStep) Satisfied() (bool, error) { return false, nil }

func (s webAuthStep) Run() error {
	// On a fresh host nothing has created AIRFLOW_HOME yet.
	if err := s.runner.Run("install", "-d", "-o", ServiceUser, "-g", ServiceUser, airflowHome); err != nil {
		return errors.Trace(err)
	}
	var buf bytes.Buffer
	err := webserverConfigTemplate.Execute(&buf, map[string]string{
		"AirflowHome":   airflowHome,
		"OAuthClientID": s.cfg.OAuthClientID,
		"OAuthSecret":   s.cfg.OAuthSecret,
	})
	if err != nil {
		return errors.Trace(err)
	}
	path := filepath.Join(airflowHome, "webserver_config.py")
	return errors.Annotatef(s.writeFile(path, buf.Bytes(), 0o600), "writing %q", path)
}

// pipStep installs the pinned application dependencies. Hash verification
// is strict: any mismatch fails the run rather than installing an
// artifact nobody vetted.
type pipStep struct {
	runner CommandRunner
}

func (pipStep) Name() string { return "pinned dependencies" }

func (pipStep) Satisfied() (bool, error) { return false, nil }

func (s pipStep) Run() error {
	return errors.Trace(s.runner.Run("pip3", "install",
		"--require-hashes", "--no-deps",
		"-r", filepath.Join(deployDir, "requirements.txt")))
}

// permissionsStep hands the deployment tree to the service user and opens
// the certificate directory to it.
type permissionsStep struct {
	runner CommandRunner
}

func (permissionsStep) Name() string { return "permissions" }

func (permissionsStep) Satisfied() (bool, error) { return false, nil }

func (s permissionsStep) Run() error {
	if err := s.runner.Run("chown", "-R", ServiceUser+":"+ServiceUser, homeDir); err != nil {
		return errors.Trace(err)
	}
	if err := s.runner.Run("chgrp", "-R", ServiceUser, letsEncryptDir); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.runner.Run("chmod", "-R", "g+rX", letsEncryptDir))
}
