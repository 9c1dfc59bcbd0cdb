// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package google

import (
	"context"
	"fmt"

	"github.com/juju/errors"
	compute "google.golang.org/api/compute/v1"
)

const (
	// bootImage is the image every airlift VM boots from.
	bootImage = "projects/debian-cloud/global/images/family/debian-12"

	networkAccessOneToOneNAT = "ONE_TO_ONE_NAT"
)

// InstanceSpec describes the instance to create.
type InstanceSpec struct {
	Name                string
	Zone                string
	MachineType         string
	BootDiskSizeGB      int64
	ServiceAccountEmail string

	// Tags bind the instance to firewall rules targeting the same tag.
	Tags []string
}

// instanceSpec expands an InstanceSpec into the API's instance shape.
func instanceSpec(spec InstanceSpec) *compute.Instance {
	return &compute.Instance{
		Name:        spec.Name,
		MachineType: fmt.Sprintf("zones/%s/machineTypes/%s", spec.Zone, spec.MachineType),
		Disks: []*compute.AttachedDisk{{
			Boot:       true,
			AutoDelete: true,
			InitializeParams: &compute.AttachedDiskInitializeParams{
				SourceImage: bootImage,
				DiskSizeGb:  spec.BootDiskSizeGB,
			},
		}},
		NetworkInterfaces: []*compute.NetworkInterface{{
			AccessConfigs: []*compute.AccessConfig{{
				Type: networkAccessOneToOneNAT,
				Name: "External NAT",
			}},
		}},
		ServiceAccounts: []*compute.ServiceAccount{{
			Email:  spec.ServiceAccountEmail,
			Scopes: Scopes,
		}},
		Tags: &compute.Tags{Items: spec.Tags},
	}
}

// CreateInstance creates the VM and returns its external address. A name
// collision reports errors.AlreadyExists; re-running provisioning against
// a half-created deployment is an explicit operator decision, not
// something we paper over.
func (c *Connection) CreateInstance(ctx context.Context, spec InstanceSpec) (string, error) {
	instance := instanceSpec(spec)
	op, err := c.compute.Instances.Insert(c.projectID, spec.Zone, instance).Context(ctx).Do()
	if IsConflict(err) {
		return "", errors.AlreadyExistsf("instance %q", spec.Name)
	} else if err != nil {
		return "", errors.Annotatef(err, "inserting instance %q", spec.Name)
	}
	if err := c.waitZoneOperation(ctx, "instance insert", spec.Zone, op); err != nil {
		return "", errors.Trace(err)
	}

	created, err := c.compute.Instances.Get(c.projectID, spec.Zone, spec.Name).Context(ctx).Do()
	if err != nil {
		return "", errors.Annotatef(err, "reading back instance %q", spec.Name)
	}
	ip := externalIP(created)
	if ip == "" {
		return "", errors.Errorf("instance %q has no external address", spec.Name)
	}
	logger.Infof("instance %s is up at %s", spec.Name, ip)
	return ip, nil
}

// externalIP digs the NAT address out of the instance's interfaces.
func externalIP(instance *compute.Instance) string {
	for _, nic := range instance.NetworkInterfaces {
		for _, access := range nic.AccessConfigs {
			if access.Type == networkAccessOneToOneNAT && access.NatIP != "" {
				return access.NatIP
			}
		}
	}
	return ""
}
