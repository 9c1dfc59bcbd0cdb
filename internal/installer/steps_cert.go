// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package installer

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
)

// renewMarker is the pattern that identifies an existing renewal entry in
// the crontab.
const renewMarker = "certbot renew"

// renewalDelay spreads renewal requests over an hour so a fleet of hosts
// does not hit the CA at the same instant.
var renewalDelay = func() int {
	return rand.Intn(3600)
}

// certStep issues the TLS certificate for the validated domain. Issuance
// already happened if certbot's live directory for the domain exists, and
// repeating it would burn through the CA's rate limits.
type certStep struct {
	runner     CommandRunner
	domain     string
	email      string
	pathExists func(string) bool
}

func (certStep) Name() string { return "TLS certificate" }

func (s certStep) Satisfied() (bool, error) {
	return s.pathExists(filepath.Join(liveCertDir, s.domain)), nil
}

func (s certStep) Run() error {
	return errors.Trace(s.runner.Run("certbot", "certonly",
		"--standalone", "--non-interactive", "--agree-tos",
		"-m", s.email,
		"-d", s.domain))
}

// cronStep makes sure a daily renewal entry exists in the system crontab.
type cronStep struct {
	runner CommandRunner
	delay  func() int
}

func (cronStep) Name() string { return "certificate renewal cron" }

func (s cronStep) Satisfied() (bool, error) {
	out, err := s.runner.Output("crontab", "-l")
	if err != nil {
		// No crontab for this user yet.
		return false, nil
	}
	return strings.Contains(string(out), renewMarker), nil
}

func (s cronStep) Run() error {
	existing, err := s.runner.Output("crontab", "-l")
	if err != nil {
		existing = nil
	}
	content := string(existing)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	entry := fmt.Sprintf("0 3 * * * sleep %d && certbot renew --quiet\n", s.delay())
	return errors.Trace(s.runner.RunInput(content+entry, "crontab", "-"))
}
