// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config holds the checkpoint configuration that bridges the two
// airlift phases: create-vm writes it once, install reads it once.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// DefaultPath is where the store lives unless overridden on the command line.
const DefaultPath = "airlift.env"

// Store file keys. The file is plain newline-delimited KEY=VALUE text so
// that operators can inspect and, if need be, hand-edit it.
const (
	keyProjectID    = "PROJECT_ID"
	keyVM           = "VM"
	keyZone         = "ZONE"
	keyMachineType  = "MACHINE_TYPE"
	keyBootDiskSize = "BOOTDISK_SIZE"
	keySAUser       = "SA_USER"
	keySAEmail      = "SA_EMAIL"
	keySAKey        = "SA_KEY"
	keyExternalIP   = "EXTERNAL_IP"
)

// VMConfig describes the virtual machine created during provisioning.
type VMConfig struct {
	// ProjectID is the cloud project owning every resource we create.
	ProjectID string

	// VMName is the instance name.
	VMName string

	// Zone is the compute zone the instance lives in.
	Zone string

	// MachineType is the instance machine type, e.g. "e2-standard-2".
	MachineType string

	// BootDiskSizeGB is the boot disk size in gigabytes.
	BootDiskSizeGB int

	// ServiceAccountUser is the short account id of the dedicated
	// service account, e.g. "airflow-sa".
	ServiceAccountUser string

	// ServiceAccountEmail is the full service account email, assigned
	// at creation time.
	ServiceAccountEmail string

	// ServiceAccountKeyPath is the local path of the downloaded JSON key.
	ServiceAccountKeyPath string

	// ExternalIP is the address assigned to the instance, recorded after
	// creation so the install phase never has to re-derive it.
	ExternalIP string
}

// Validate returns an error if any field required before provisioning may
// proceed is missing. ServiceAccountEmail and ExternalIP are excluded: they
// are only known once the corresponding resources exist.
func (c VMConfig) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"project id", c.ProjectID},
		{"VM name", c.VMName},
		{"zone", c.Zone},
		{"machine type", c.MachineType},
		{"service account user", c.ServiceAccountUser},
		{"service account key path", c.ServiceAccountKeyPath},
	}
	for _, f := range required {
		if f.value == "" {
			return errors.NotValidf("empty %s", f.name)
		}
	}
	if c.BootDiskSizeGB <= 0 {
		return errors.NotValidf("boot disk size %d", c.BootDiskSizeGB)
	}
	return nil
}

// Save writes the configuration to path, overwriting any previous file.
// The key order is fixed so that successive saves diff cleanly.
func Save(path string, cfg VMConfig) error {
	pairs := map[string]string{
		keyProjectID:    cfg.ProjectID,
		keyVM:           cfg.VMName,
		keyZone:         cfg.Zone,
		keyMachineType:  cfg.MachineType,
		keyBootDiskSize: strconv.Itoa(cfg.BootDiskSizeGB),
		keySAUser:       cfg.ServiceAccountUser,
		keySAEmail:      cfg.ServiceAccountEmail,
		keySAKey:        cfg.ServiceAccountKeyPath,
		keyExternalIP:   cfg.ExternalIP,
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, pairs[k])
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Annotatef(err, "writing configuration to %q", path)
	}
	return nil
}

// Load reads a configuration previously written by Save. A missing file
// satisfies errors.IsNotFound so callers can distinguish "never provisioned"
// from a corrupt store.
func Load(path string) (VMConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return VMConfig{}, errors.NotFoundf("configuration file %q", path)
	} else if err != nil {
		return VMConfig{}, errors.Trace(err)
	}

	var cfg VMConfig
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return VMConfig{}, errors.NotValidf("line %d of %q", i+1, path)
		}
		switch key {
		case keyProjectID:
			cfg.ProjectID = value
		case keyVM:
			cfg.VMName = value
		case keyZone:
			cfg.Zone = value
		case keyMachineType:
			cfg.MachineType = value
		case keyBootDiskSize:
			size, err := strconv.Atoi(value)
			if err != nil {
				return VMConfig{}, errors.NotValidf("boot disk size %q", value)
			}
			cfg.BootDiskSizeGB = size
		case keySAUser:
			cfg.ServiceAccountUser = value
		case keySAEmail:
			cfg.ServiceAccountEmail = value
		case keySAKey:
			cfg.ServiceAccountKeyPath = value
		case keyExternalIP:
			cfg.ExternalIP = value
		default:
			return VMConfig{}, errors.NotValidf("unknown key %q in %q", key, path)
		}
	}
	return cfg, nil
}

// InstallConfig carries everything the remote installer needs. It is never
// persisted; the values travel as command line flags on the remote
// invocation.
type InstallConfig struct {
	// Domain is the host name the TLS certificate is issued for. It must
	// already resolve to the VM's external address.
	Domain string

	// OAuthClientID and OAuthSecret configure the web front end's OAuth
	// login flow.
	OAuthClientID string
	OAuthSecret   string

	// AdminEmail and AdminUserID identify the operator, as derived from
	// their identity token, and seed the administrator account.
	AdminEmail  string
	AdminUserID string

	// KeyPath is where the service account key landed on the VM.
	KeyPath string

	// ProjectID is the cloud project, used when seeding platform
	// connection records.
	ProjectID string
}

// Validate returns an error if any required installer field is missing.
func (c InstallConfig) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"domain", c.Domain},
		{"OAuth client id", c.OAuthClientID},
		{"OAuth secret", c.OAuthSecret},
		{"administrator email", c.AdminEmail},
		{"administrator account id", c.AdminUserID},
		{"service account key path", c.KeyPath},
		{"project id", c.ProjectID},
	}
	for _, f := range required {
		if f.value == "" {
			return errors.NotValidf("empty %s", f.name)
		}
	}
	return nil
}
