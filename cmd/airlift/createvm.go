// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/cloudlift/airlift/internal/config"
	"github.com/cloudlift/airlift/internal/google"
	"github.com/cloudlift/airlift/internal/sshclient"
)

const (
	defaultVMName      = "airflow"
	defaultZone        = "us-central1-a"
	defaultMachineType = "e2-standard-2"
	defaultBootDiskGB  = 50
	defaultSAUser      = "airflow-sa"

	// firewallName labels the rule that opens the web ports.
	firewallName = "airflow-web"

	reachabilityAttempts = 10
	reachabilityInterval = time.Second
)

var firewallPorts = []int{443, 8080}

// provisionAPI is the slice of the cloud connection that create-vm needs.
type provisionAPI interface {
	CreateServiceAccount(ctx context.Context, accountID string) (string, error)
	GrantProjectRole(ctx context.Context, email, role string) error
	CreateServiceAccountKey(ctx context.Context, email string) ([]byte, error)
	AddFirewall(ctx context.Context, name, target string, ports []int) error
	CreateInstance(ctx context.Context, spec google.InstanceSpec) (string, error)
}

// createVMCommand provisions the virtual machine, its service account and
// firewall rule, then records the result in the configuration store.
type createVMCommand struct {
	cmd.CommandBase

	configPath string

	connect   func(ctx context.Context, projectID string) (provisionAPI, error)
	probe     sshclient.Prober
	clock     clock.Clock
	writeFile func(string, []byte, os.FileMode) error
}

const createVMDoc = `
Creates a Compute Engine instance along with a dedicated service account
(granted the project editor role, key downloaded locally) and a firewall
rule opening tcp:443 and tcp:8080. The instance parameters are gathered
interactively. On success the results are written to the configuration
store for "airlift install" to pick up.
`

func newCreateVMCommand() cmd.Command {
	return &createVMCommand{
		connect: func(ctx context.Context, projectID string) (provisionAPI, error) {
			return google.Connect(ctx, projectID)
		},
		probe:     sshclient.DialProbe,
		clock:     clock.WallClock,
		writeFile: os.WriteFile,
	}
}

// Info is defined on the cmd.Command interface.
func (c *createVMCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "create-vm",
		Purpose: "provision the Airflow virtual machine",
		Doc:     strings.TrimSpace(createVMDoc),
	}
}

// SetFlags is defined on the cmd.Command interface.
func (c *createVMCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", config.DefaultPath, "path of the configuration store")
}

// Init is defined on the cmd.Command interface.
func (c *createVMCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run is defined on the cmd.Command interface.
func (c *createVMCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.capture(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Trace(err)
	}

	stdctx := context.Background()
	conn, err := c.connect(stdctx, cfg.ProjectID)
	if err != nil {
		return errors.Annotate(err, "connecting to the cloud")
	}

	ctx.Infof("Creating service account %q", cfg.ServiceAccountUser)
	email, err := conn.CreateServiceAccount(stdctx, cfg.ServiceAccountUser)
	if err != nil {
		return errors.Trace(err)
	}
	cfg.ServiceAccountEmail = email
	if err := conn.GrantProjectRole(stdctx, email, google.EditorRole); err != nil {
		return errors.Trace(err)
	}
	key, err := conn.CreateServiceAccountKey(stdctx, email)
	if err != nil {
		return errors.Trace(err)
	}
	if err := c.writeFile(cfg.ServiceAccountKeyPath, key, 0o600); err != nil {
		return errors.Annotatef(err, "writing key to %q", cfg.ServiceAccountKeyPath)
	}
	ctx.Infof("Service account key saved to %s", cfg.ServiceAccountKeyPath)

	ctx.Infof("Opening web ports")
	if err := conn.AddFirewall(stdctx, firewallName, cfg.VMName, firewallPorts); err != nil {
		return errors.Trace(err)
	}

	ctx.Infof("Creating instance %q in %s", cfg.VMName, cfg.Zone)
	ip, err := conn.CreateInstance(stdctx, google.InstanceSpec{
		Name:                cfg.VMName,
		Zone:                cfg.Zone,
		MachineType:         cfg.MachineType,
		BootDiskSizeGB:      int64(cfg.BootDiskSizeGB),
		ServiceAccountEmail: email,
		Tags:                []string{cfg.VMName},
	})
	if err != nil {
		return errors.Trace(err)
	}
	cfg.ExternalIP = ip
	ctx.Infof("Instance is up at %s, waiting for SSH", ip)

	addr := fmt.Sprintf("%s:22", ip)
	if err := sshclient.WaitReachable(c.clock, c.probe, addr, reachabilityAttempts, reachabilityInterval); err != nil {
		return errors.Trace(err)
	}

	if err := config.Save(c.configPath, cfg); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("Configuration saved to %s; run \"airlift install\" next", c.configPath)
	return nil
}

// capture gathers the instance parameters, looping until the operator
// confirms them.
func (c *createVMCommand) capture(ctx *cmd.Context) (config.VMConfig, error) {
	ask := newAsker(ctx)
	for {
		var cfg config.VMConfig
		var err error
		if cfg.ProjectID, err = ask.ask("Project id", ""); err != nil {
			return config.VMConfig{}, errors.Trace(err)
		}
		if cfg.VMName, err = ask.ask("VM name", defaultVMName); err != nil {
			return config.VMConfig{}, errors.Trace(err)
		}
		if cfg.Zone, err = ask.ask("Zone", defaultZone); err != nil {
			return config.VMConfig{}, errors.Trace(err)
		}
		if cfg.MachineType, err = ask.ask("Machine type", defaultMachineType); err != nil {
			return config.VMConfig{}, errors.Trace(err)
		}
		if cfg.BootDiskSizeGB, err = ask.askInt("Boot disk size (GB)", defaultBootDiskGB); err != nil {
			return config.VMConfig{}, errors.Trace(err)
		}
		if cfg.ServiceAccountUser, err = ask.ask("Service account user", defaultSAUser); err != nil {
			return config.VMConfig{}, errors.Trace(err)
		}
		cfg.ServiceAccountKeyPath = cfg.ServiceAccountUser + ".json"

		fmt.Fprintf(ctx.Stdout, `
Project id:           %s
VM name:              %s
Zone:                 %s
Machine type:         %s
Boot disk size (GB):  %d
Service account user: %s
`, cfg.ProjectID, cfg.VMName, cfg.Zone, cfg.MachineType, cfg.BootDiskSizeGB, cfg.ServiceAccountUser)

		ok, err := ask.confirm("Proceed with these values?")
		if err != nil {
			return config.VMConfig{}, errors.Trace(err)
		}
		if ok {
			return cfg, nil
		}
	}
}
