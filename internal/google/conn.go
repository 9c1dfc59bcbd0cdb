// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package google provides methods for interacting with the GCE and IAM
// APIs. The methods are limited to those the airlift provisioner needs.
package google

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	goauth "golang.org/x/oauth2/google"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	compute "google.golang.org/api/compute/v1"
	iam "google.golang.org/api/iam/v1"
	"google.golang.org/api/option"
)

var logger = loggo.GetLogger("airlift.google")

// Scopes is the OAuth scope set requested for every API client.
var Scopes = []string{compute.CloudPlatformScope}

const operationStatusDone = "DONE"

// Connection provides methods for interacting with the cloud management
// APIs within a single project.
type Connection struct {
	compute *compute.Service
	iam     *iam.Service
	crm     *cloudresourcemanager.Service

	projectID string
	clock     clock.Clock
}

// Connect authenticates using the operator's application default
// credentials and opens clients for the compute, IAM and resource manager
// APIs. All errors that happen while authenticating and connecting are
// returned by Connect.
func Connect(ctx context.Context, projectID string) (*Connection, error) {
	client, err := goauth.DefaultClient(ctx, Scopes...)
	if err != nil {
		return nil, errors.Annotate(err, "building authenticated client")
	}

	computeService, err := compute.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, errors.Trace(err)
	}
	iamService, err := iam.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, errors.Trace(err)
	}
	crmService, err := cloudresourcemanager.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, errors.Trace(err)
	}

	return &Connection{
		compute:   computeService,
		iam:       iamService,
		crm:       crmService,
		projectID: projectID,
		clock:     clock.WallClock,
	}, nil
}

var errOperationPending = errors.New("operation still running")

// waitOperation polls the given fetch function until the returned operation
// reports DONE, then surfaces any operation error.
func (c *Connection) waitOperation(badge string, fetch func() (*compute.Operation, error)) error {
	err := retry.Call(retry.CallArgs{
		Clock:       c.clock,
		Delay:       2 * time.Second,
		MaxDuration: 5 * time.Minute,
		Func: func() error {
			op, err := fetch()
			if err != nil {
				return errors.Trace(err)
			}
			if op.Status != operationStatusDone {
				logger.Tracef("%s: operation %q still %s", badge, op.Name, op.Status)
				return errOperationPending
			}
			if op.Error != nil {
				for _, opErr := range op.Error.Errors {
					logger.Errorf("%s: %s: %s", badge, opErr.Code, opErr.Message)
				}
				return errors.Errorf("%s failed: %s", badge, op.Error.Errors[0].Message)
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return err != errOperationPending
		},
	})
	if err == errOperationPending || retry.IsDurationExceeded(err) {
		return errors.Errorf("%s did not complete in time", badge)
	}
	return errors.Trace(err)
}

func (c *Connection) waitGlobalOperation(ctx context.Context, badge string, op *compute.Operation) error {
	return c.waitOperation(badge, func() (*compute.Operation, error) {
		return c.compute.GlobalOperations.Get(c.projectID, op.Name).Context(ctx).Do()
	})
}

func (c *Connection) waitZoneOperation(ctx context.Context, badge, zone string, op *compute.Operation) error {
	return c.waitOperation(badge, func() (*compute.Operation, error) {
		return c.compute.ZoneOperations.Get(c.projectID, zone, op.Name).Context(ctx).Do()
	})
}
