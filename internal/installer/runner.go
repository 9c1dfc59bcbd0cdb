// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package installer turns a freshly created VM into a running Airflow
// host through a strictly ordered sequence of setup steps.
package installer

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("airlift.installer")

// Step is one unit of host configuration.
type Step interface {
	// Name identifies the step in logs and errors.
	Name() string

	// Satisfied reports whether the host is already in the step's
	// target state, in which case Run is skipped. Steps that must
	// always re-apply simply report false.
	Satisfied() (bool, error)

	// Run applies the step.
	Run() error
}

// Outcome describes how a single step concluded.
type Outcome string

const (
	// OutcomeApplied means the step ran and changed the host.
	OutcomeApplied Outcome = "applied"

	// OutcomeSkipped means the step found its work already done.
	OutcomeSkipped Outcome = "already satisfied"
)

// StepResult records the conclusion of one step.
type StepResult struct {
	Name    string
	Outcome Outcome
}

// Run drives steps in order, halting on the first failure. There is no
// rollback: a mid-sequence failure leaves earlier steps in place, and the
// error names the step so the operator knows where to look.
func Run(steps []Step) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		satisfied, err := step.Satisfied()
		if err != nil {
			return results, errors.Annotatef(err, "checking %q", step.Name())
		}
		if satisfied {
			logger.Infof("%s: already satisfied, skipping", step.Name())
			results = append(results, StepResult{Name: step.Name(), Outcome: OutcomeSkipped})
			continue
		}
		logger.Infof("%s: applying", step.Name())
		if err := step.Run(); err != nil {
			return results, errors.Annotatef(err, "step %q", step.Name())
		}
		results = append(results, StepResult{Name: step.Name(), Outcome: OutcomeApplied})
	}
	return results, nil
}
