// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3/cmdtesting"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/cloudlift/airlift/internal/config"
	"github.com/cloudlift/airlift/internal/google"
)

type createVMSuite struct{}

var _ = gc.Suite(&createVMSuite{})

// fakeProvisionAPI records provisioning calls in order.
type fakeProvisionAPI struct {
	calls []string
	saErr error
}

func (f *fakeProvisionAPI) CreateServiceAccount(_ context.Context, accountID string) (string, error) {
	f.calls = append(f.calls, "create-sa "+accountID)
	if f.saErr != nil {
		return "", f.saErr
	}
	return accountID + "@p1.iam.gserviceaccount.com", nil
}

func (f *fakeProvisionAPI) GrantProjectRole(_ context.Context, email, role string) error {
	f.calls = append(f.calls, fmt.Sprintf("grant %s %s", email, role))
	return nil
}

func (f *fakeProvisionAPI) CreateServiceAccountKey(_ context.Context, email string) ([]byte, error) {
	f.calls = append(f.calls, "key "+email)
	return []byte(`{"type":"service_account"}`), nil
}

func (f *fakeProvisionAPI) AddFirewall(_ context.Context, name, target string, ports []int) error {
	f.calls = append(f.calls, fmt.Sprintf("firewall %s %s %v", name, target, ports))
	return nil
}

func (f *fakeProvisionAPI) CreateInstance(_ context.Context, spec google.InstanceSpec) (string, error) {
	f.calls = append(f.calls, fmt.Sprintf("instance %s %s %s %dGB", spec.Name, spec.Zone, spec.MachineType, spec.BootDiskSizeGB))
	return "203.0.113.7", nil
}

type keyWrite struct {
	path string
	mode os.FileMode
}

func newTestCreateVMCommand(api *fakeProvisionAPI, probed *[]string, keys *[]keyWrite) *createVMCommand {
	return &createVMCommand{
		connect: func(ctx context.Context, projectID string) (provisionAPI, error) {
			return api, nil
		},
		probe: func(addr string) error {
			*probed = append(*probed, addr)
			return nil
		},
		clock: clock.WallClock,
		writeFile: func(path string, data []byte, mode os.FileMode) error {
			*keys = append(*keys, keyWrite{path: path, mode: mode})
			return nil
		},
	}
}

func (*createVMSuite) TestProvisionsWithDefaults(c *gc.C) {
	api := &fakeProvisionAPI{}
	var probed []string
	var keys []keyWrite
	com := newTestCreateVMCommand(api, &probed, &keys)

	storePath := filepath.Join(c.MkDir(), "airlift.env")
	err := cmdtesting.InitCommand(com, []string{"--config", storePath})
	c.Assert(err, jc.ErrorIsNil)

	ctx := cmdtesting.Context(c)
	// Accept every default except the project id, then confirm.
	ctx.Stdin = strings.NewReader("p1\n\n\n\n\n\ny\n")
	c.Assert(com.Run(ctx), jc.ErrorIsNil)

	c.Check(api.calls, gc.DeepEquals, []string{
		"create-sa airflow-sa",
		"grant airflow-sa@p1.iam.gserviceaccount.com roles/editor",
		"key airflow-sa@p1.iam.gserviceaccount.com",
		"firewall airflow-web airflow [443 8080]",
		"instance airflow us-central1-a e2-standard-2 50GB",
	})
	c.Check(probed, gc.DeepEquals, []string{"203.0.113.7:22"})
	c.Check(keys, gc.DeepEquals, []keyWrite{{path: "airflow-sa.json", mode: 0o600}})

	saved, err := config.Load(storePath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(saved, gc.DeepEquals, config.VMConfig{
		ProjectID:             "p1",
		VMName:                "airflow",
		Zone:                  "us-central1-a",
		MachineType:           "e2-standard-2",
		BootDiskSizeGB:        50,
		ServiceAccountUser:    "airflow-sa",
		ServiceAccountEmail:   "airflow-sa@p1.iam.gserviceaccount.com",
		ServiceAccountKeyPath: "airflow-sa.json",
		ExternalIP:            "203.0.113.7",
	})
}

func (*createVMSuite) TestRejectionLoopsBackToCapture(c *gc.C) {
	api := &fakeProvisionAPI{}
	var probed []string
	var keys []keyWrite
	com := newTestCreateVMCommand(api, &probed, &keys)

	storePath := filepath.Join(c.MkDir(), "airlift.env")
	err := cmdtesting.InitCommand(com, []string{"--config", storePath})
	c.Assert(err, jc.ErrorIsNil)

	ctx := cmdtesting.Context(c)
	// First round is rejected; the second round's answers win.
	ctx.Stdin = strings.NewReader(
		"p1\nwrong-name\n\n\n\n\nn\n" +
			"p1\nright-name\n\n\n\n\ny\n")
	c.Assert(com.Run(ctx), jc.ErrorIsNil)

	saved, err := config.Load(storePath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(saved.VMName, gc.Equals, "right-name")
}

func (*createVMSuite) TestServiceAccountCollisionIsFatal(c *gc.C) {
	api := &fakeProvisionAPI{saErr: errors.AlreadyExistsf("service account %q", "airflow-sa")}
	var probed []string
	var keys []keyWrite
	com := newTestCreateVMCommand(api, &probed, &keys)

	storePath := filepath.Join(c.MkDir(), "airlift.env")
	err := cmdtesting.InitCommand(com, []string{"--config", storePath})
	c.Assert(err, jc.ErrorIsNil)

	ctx := cmdtesting.Context(c)
	ctx.Stdin = strings.NewReader("p1\n\n\n\n\n\ny\n")
	err = com.Run(ctx)
	c.Assert(err, jc.ErrorIs, errors.AlreadyExists)

	// Provisioning stops at the collision: no key, no firewall, no
	// instance, no store.
	c.Check(api.calls, gc.DeepEquals, []string{"create-sa airflow-sa"})
	c.Check(probed, gc.HasLen, 0)
	c.Check(keys, gc.HasLen, 0)
	_, err = config.Load(storePath)
	c.Check(err, jc.ErrorIs, errors.NotFound)
}

func (*createVMSuite) TestBadDiskSizeRejected(c *gc.C) {
	com := newTestCreateVMCommand(&fakeProvisionAPI{}, new([]string), new([]keyWrite))
	err := cmdtesting.InitCommand(com, nil)
	c.Assert(err, jc.ErrorIsNil)

	ctx := cmdtesting.Context(c)
	ctx.Stdin = strings.NewReader("p1\n\n\n\nplenty\n")
	err = com.Run(ctx)
	c.Assert(err, gc.ErrorMatches, `"plenty" not valid`)
}
