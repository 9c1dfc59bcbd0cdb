// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"

	"github.com/cloudlift/airlift/internal/config"
	"github.com/cloudlift/airlift/internal/identity"
	"github.com/cloudlift/airlift/internal/installer"
	"github.com/cloudlift/airlift/internal/sshclient"
)

var logger = loggo.GetLogger("airlift.cmd")

const (
	remoteInstallerPath = "/tmp/airlift"
	remoteKeyPath       = "/tmp/airlift-sa.json"
)

// remoteHost is the slice of the SSH client the delegate phase needs.
type remoteHost interface {
	Run(command string, stdout, stderr io.Writer) error
	Put(localPath, remotePath string, mode os.FileMode) error
	Close() error
}

// installCommand deploys Airflow onto the provisioned machine. Without
// flags it runs on the operator's workstation: it ships this binary and the
// service account key to the VM and re-invokes itself there with the full
// flag set. With flags it runs on the VM and executes the step pipeline.
type installCommand struct {
	cmd.CommandBase

	cfg        config.InstallConfig
	configPath string
	sshKeyPath string

	delegate bool

	fetchClaims func() (identity.Claims, error)
	lookupHost  identity.LookupHostFunc
	dial        func(host, user, keyPath string) (remoteHost, error)
	executable  func() (string, error)
}

const installDoc = `
Deploys Airflow onto the machine recorded in the configuration store.

Invoked without flags, install derives the operator's identity from a
gcloud identity token, checks that the chosen domain resolves to the VM,
copies this binary and the service account key onto the VM and runs the
installation there. The flags exist for that remote re-invocation and are
not meant to be given by hand.
`

func newInstallCommand() cmd.Command {
	return &installCommand{
		fetchClaims: func() (identity.Claims, error) {
			return identity.FetchClaims(&installer.ExecRunner{})
		},
		lookupHost: net.LookupHost,
		dial: func(host, user, keyPath string) (remoteHost, error) {
			return sshclient.Dial(host, user, keyPath)
		},
		executable: os.Executable,
	}
}

// Info is defined on the cmd.Command interface.
func (c *installCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "install",
		Purpose: "deploy Airflow onto the provisioned machine",
		Doc:     strings.TrimSpace(installDoc),
	}
}

// SetFlags is defined on the cmd.Command interface.
func (c *installCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", config.DefaultPath, "path of the configuration store")
	f.StringVar(&c.sshKeyPath, "ssh-key", "", "SSH private key for reaching the VM")
	f.StringVar(&c.cfg.Domain, "w", "", "web domain of the deployment")
	f.StringVar(&c.cfg.OAuthClientID, "c", "", "OAuth client id")
	f.StringVar(&c.cfg.OAuthSecret, "s", "", "OAuth client secret")
	f.StringVar(&c.cfg.AdminEmail, "e", "", "administrator email")
	f.StringVar(&c.cfg.AdminUserID, "u", "", "administrator account id")
	f.StringVar(&c.cfg.KeyPath, "a", "", "service account key path on the VM")
	f.StringVar(&c.cfg.ProjectID, "p", "", "cloud project id")
}

// Init is defined on the cmd.Command interface.
func (c *installCommand) Init(args []string) error {
	c.delegate = c.cfg == config.InstallConfig{}
	return cmd.CheckEmpty(args)
}

// Run is defined on the cmd.Command interface.
func (c *installCommand) Run(ctx *cmd.Context) error {
	if c.delegate {
		return c.runDelegate(ctx)
	}
	return c.runSteps(ctx)
}

// runSteps executes the pipeline on the VM.
func (c *installCommand) runSteps(ctx *cmd.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return errors.Trace(err)
	}
	runner := &installer.ExecRunner{Stdout: ctx.Stdout, Stderr: ctx.Stderr}
	steps := installer.New(c.cfg, runner, invokingUser()).Steps()
	results, err := installer.Run(steps)
	for _, r := range results {
		ctx.Infof("%s: %s", r.Name, r.Outcome)
	}
	if err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("Install complete; browse to https://%s", c.cfg.Domain)
	return nil
}

// runDelegate gathers the remaining inputs on the workstation and hands the
// actual work to a copy of this binary on the VM.
func (c *installCommand) runDelegate(ctx *cmd.Context) error {
	store, err := config.Load(c.configPath)
	if errors.Is(err, errors.NotFound) {
		return errors.Annotate(err, `run "airlift create-vm" first`)
	} else if err != nil {
		return errors.Trace(err)
	}

	claims, err := c.fetchClaims()
	if err != nil {
		return errors.Annotate(err, "deriving operator identity")
	}
	ctx.Infof("Installing as %s", claims.Email)

	ask := newAsker(ctx)
	domain, err := ask.ask("Domain name for the deployment", "")
	if err != nil {
		return errors.Trace(err)
	}
	if err := identity.ValidateDomain(c.lookupHost, domain, store.ExternalIP); err != nil {
		return errors.Trace(err)
	}
	clientID, err := ask.ask("OAuth client id", "")
	if err != nil {
		return errors.Trace(err)
	}
	secret, err := ask.ask("OAuth client secret", "")
	if err != nil {
		return errors.Trace(err)
	}

	keyPath := c.sshKeyPath
	if keyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Trace(err)
		}
		keyPath = filepath.Join(home, ".ssh", "google_compute_engine")
	}
	client, err := c.dial(store.ExternalIP, claims.Username(), keyPath)
	if err != nil {
		return errors.Annotatef(err, "connecting to %s", store.ExternalIP)
	}
	defer client.Close()

	self, err := c.executable()
	if err != nil {
		return errors.Trace(err)
	}
	if err := client.Put(self, remoteInstallerPath, 0o755); err != nil {
		return errors.Annotate(err, "transferring installer")
	}
	if err := client.Put(store.ServiceAccountKeyPath, remoteKeyPath, 0o600); err != nil {
		return errors.Annotate(err, "transferring service account key")
	}

	remote := fmt.Sprintf("sudo %s install -w %s -c %s -s %s -e %s -u %s -a %s -p %s",
		remoteInstallerPath, domain, clientID, secret,
		claims.Email, claims.Subject, remoteKeyPath, store.ProjectID)
	logger.Infof("delegating: %s", remote)
	if err := client.Run(remote, ctx.Stdout, ctx.Stderr); err != nil {
		return errors.Annotate(err, "remote install failed")
	}
	return nil
}

// invokingUser reports who launched the run, looking through sudo.
func invokingUser() string {
	if name := os.Getenv("SUDO_USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "root"
}
