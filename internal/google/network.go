// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package google

import (
	"context"
	"strconv"

	"github.com/juju/errors"
	compute "google.golang.org/api/compute/v1"
)

// firewallSpec returns a compute.Firewall opening the given TCP ports to
// the world, targeted at instances tagged with target.
func firewallSpec(name, target string, ports []int) *compute.Firewall {
	portStrings := make([]string, len(ports))
	for i, port := range ports {
		portStrings[i] = strconv.Itoa(port)
	}
	return &compute.Firewall{
		Name:         name,
		TargetTags:   []string{target},
		SourceRanges: []string{"0.0.0.0/0"},
		Allowed: []*compute.FirewallAllowed{{
			IPProtocol: "tcp",
			Ports:      portStrings,
		}},
	}
}

// AddFirewall adds a new firewall rule to the project opening the given
// TCP ports for instances tagged with target. Like the other creation
// calls, this is not idempotent: inserting an existing rule name reports
// errors.AlreadyExists.
func (c *Connection) AddFirewall(ctx context.Context, name, target string, ports []int) error {
	firewall := firewallSpec(name, target, ports)
	op, err := c.compute.Firewalls.Insert(c.projectID, firewall).Context(ctx).Do()
	if IsConflict(err) {
		return errors.AlreadyExistsf("firewall %q", name)
	} else if err != nil {
		return errors.Annotatef(err, "inserting firewall %q", name)
	}
	if err := c.waitGlobalOperation(ctx, "firewall insert", op); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("opened ports %v for tag %q", ports, target)
	return nil
}
