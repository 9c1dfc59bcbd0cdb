// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/cmd/v3/cmdtesting"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/cloudlift/airlift/internal/config"
	"github.com/cloudlift/airlift/internal/identity"
)

type installSuite struct{}

var _ = gc.Suite(&installSuite{})

// fakeRemote records what the delegate phase does over SSH.
type fakeRemote struct {
	puts    []string
	command string
	runErr  error
	closed  bool
}

func (f *fakeRemote) Run(command string, stdout, stderr io.Writer) error {
	f.command = command
	return f.runErr
}

func (f *fakeRemote) Put(localPath, remotePath string, mode os.FileMode) error {
	f.puts = append(f.puts, fmt.Sprintf("%s -> %s %o", localPath, remotePath, mode))
	return nil
}

func (f *fakeRemote) Close() error {
	f.closed = true
	return nil
}

func writeStore(c *gc.C) string {
	path := filepath.Join(c.MkDir(), "airlift.env")
	err := config.Save(path, config.VMConfig{
		ProjectID:             "p1",
		VMName:                "v1",
		Zone:                  "us-west1-a",
		MachineType:           "e2-standard-2",
		BootDiskSizeGB:        50,
		ServiceAccountUser:    "airflow-sa",
		ServiceAccountEmail:   "airflow-sa@p1.iam.gserviceaccount.com",
		ServiceAccountKeyPath: "/local/airflow-sa.json",
		ExternalIP:            "203.0.113.7",
	})
	c.Assert(err, jc.ErrorIsNil)
	return path
}

func newTestInstallCommand(remote *fakeRemote, dialed *[]string) *installCommand {
	return &installCommand{
		fetchClaims: func() (identity.Claims, error) {
			return identity.Claims{Email: "op@example.com", Subject: "1234567890"}, nil
		},
		lookupHost: func(host string) ([]string, error) {
			return []string{"203.0.113.7"}, nil
		},
		dial: func(host, user, keyPath string) (remoteHost, error) {
			*dialed = append(*dialed, fmt.Sprintf("%s@%s key=%s", user, host, keyPath))
			return remote, nil
		},
		executable: func() (string, error) { return "/build/airlift", nil },
	}
}

func (*installSuite) TestFlaglessInvocationDelegates(c *gc.C) {
	com := &installCommand{}
	err := cmdtesting.InitCommand(com, nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(com.delegate, jc.IsTrue)
}

func (*installSuite) TestFlagsSelectPipelineMode(c *gc.C) {
	com := &installCommand{}
	err := cmdtesting.InitCommand(com, []string{
		"-w", "example.com", "-c", "client", "-s", "secret",
		"-e", "op@example.com", "-u", "1234567890",
		"-a", "/tmp/airlift-sa.json", "-p", "p1",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(com.delegate, jc.IsFalse)
	c.Check(com.cfg.Validate(), jc.ErrorIsNil)
}

func (*installSuite) TestIncompleteFlagsRejected(c *gc.C) {
	com := &installCommand{}
	err := cmdtesting.InitCommand(com, []string{"-w", "example.com"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(com.delegate, jc.IsFalse)

	ctx := cmdtesting.Context(c)
	err = com.Run(ctx)
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (*installSuite) TestDelegateTransfersAndReinvokes(c *gc.C) {
	remote := &fakeRemote{}
	var dialed []string
	com := newTestInstallCommand(remote, &dialed)
	err := cmdtesting.InitCommand(com, []string{
		"--config", writeStore(c), "--ssh-key", "/keys/gce",
	})
	c.Assert(err, jc.ErrorIsNil)

	ctx := cmdtesting.Context(c)
	ctx.Stdin = strings.NewReader("example.com\nclient\nsecret\n")
	c.Assert(com.Run(ctx), jc.ErrorIsNil)

	c.Check(dialed, gc.DeepEquals, []string{"op@203.0.113.7 key=/keys/gce"})
	c.Check(remote.puts, gc.DeepEquals, []string{
		"/build/airlift -> /tmp/airlift 755",
		"/local/airflow-sa.json -> /tmp/airlift-sa.json 600",
	})
	c.Check(remote.command, gc.Equals,
		"sudo /tmp/airlift install -w example.com -c client -s secret"+
			" -e op@example.com -u 1234567890 -a /tmp/airlift-sa.json -p p1")
	c.Check(remote.closed, jc.IsTrue)
}

func (*installSuite) TestDomainMismatchAbortsBeforeTransfer(c *gc.C) {
	remote := &fakeRemote{}
	var dialed []string
	com := newTestInstallCommand(remote, &dialed)
	com.lookupHost = func(host string) ([]string, error) {
		return []string{"198.51.100.1"}, nil
	}
	err := cmdtesting.InitCommand(com, []string{"--config", writeStore(c)})
	c.Assert(err, jc.ErrorIsNil)

	ctx := cmdtesting.Context(c)
	ctx.Stdin = strings.NewReader("example.com\nclient\nsecret\n")
	err = com.Run(ctx)
	c.Assert(err, gc.ErrorMatches,
		`domain "example.com" resolves to 198.51.100.1, not the VM address 203.0.113.7; update the DNS record and retry`)
	c.Check(dialed, gc.HasLen, 0)
	c.Check(remote.puts, gc.HasLen, 0)
}

func (*installSuite) TestMissingStoreIsDiagnosed(c *gc.C) {
	com := newTestInstallCommand(&fakeRemote{}, new([]string))
	err := cmdtesting.InitCommand(com, []string{
		"--config", filepath.Join(c.MkDir(), "absent.env"),
	})
	c.Assert(err, jc.ErrorIsNil)

	err = com.Run(cmdtesting.Context(c))
	c.Assert(err, jc.ErrorIs, errors.NotFound)
	c.Check(err, gc.ErrorMatches, `run "airlift create-vm" first: .*`)
}

func (*installSuite) TestRemoteFailureIsFatal(c *gc.C) {
	remote := &fakeRemote{runErr: errors.New("exit status 1")}
	var dialed []string
	com := newTestInstallCommand(remote, &dialed)
	err := cmdtesting.InitCommand(com, []string{
		"--config", writeStore(c), "--ssh-key", "/keys/gce",
	})
	c.Assert(err, jc.ErrorIsNil)

	ctx := cmdtesting.Context(c)
	ctx.Stdin = strings.NewReader("example.com\nclient\nsecret\n")
	err = com.Run(ctx)
	c.Assert(err, gc.ErrorMatches, "remote install failed: exit status 1")
}
