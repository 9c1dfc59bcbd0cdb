// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package google

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/juju/errors"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	iam "google.golang.org/api/iam/v1"
)

// EditorRole is the broad project role granted to the dedicated service
// account so the deployed service can drive the platform APIs.
const EditorRole = "roles/editor"

// CreateServiceAccount creates the dedicated service identity and returns
// its email. Creation is not idempotent: a name collision reports
// errors.AlreadyExists rather than silently reusing the account, since an
// existing account may carry keys and grants we know nothing about.
func (c *Connection) CreateServiceAccount(ctx context.Context, accountID string) (string, error) {
	request := &iam.CreateServiceAccountRequest{
		AccountId: accountID,
		ServiceAccount: &iam.ServiceAccount{
			DisplayName: "airlift service account",
		},
	}
	account, err := c.iam.Projects.ServiceAccounts.Create(
		"projects/"+c.projectID, request).Context(ctx).Do()
	if IsConflict(err) {
		return "", errors.AlreadyExistsf("service account %q", accountID)
	} else if err != nil {
		return "", errors.Annotatef(err, "creating service account %q", accountID)
	}
	logger.Infof("created service account %s", account.Email)
	return account.Email, nil
}

// GrantProjectRole adds the service account email to the given role on the
// project, via the usual read-modify-write of the IAM policy.
func (c *Connection) GrantProjectRole(ctx context.Context, email, role string) error {
	policy, err := c.crm.Projects.GetIamPolicy(
		c.projectID, &cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
	if err != nil {
		return errors.Annotate(err, "reading project IAM policy")
	}

	member := "serviceAccount:" + email
	var binding *cloudresourcemanager.Binding
	for _, b := range policy.Bindings {
		if b.Role == role {
			binding = b
			break
		}
	}
	if binding == nil {
		binding = &cloudresourcemanager.Binding{Role: role}
		policy.Bindings = append(policy.Bindings, binding)
	}
	for _, m := range binding.Members {
		if m == member {
			return nil
		}
	}
	binding.Members = append(binding.Members, member)

	_, err = c.crm.Projects.SetIamPolicy(c.projectID, &cloudresourcemanager.SetIamPolicyRequest{
		Policy: policy,
	}).Context(ctx).Do()
	if err != nil {
		return errors.Annotatef(err, "granting %s to %s", role, email)
	}
	logger.Infof("granted %s to %s", role, email)
	return nil
}

// CreateServiceAccountKey mints a key for the account and returns the
// decoded JSON key material, ready to be written to disk.
func (c *Connection) CreateServiceAccountKey(ctx context.Context, email string) ([]byte, error) {
	name := fmt.Sprintf("projects/-/serviceAccounts/%s", email)
	key, err := c.iam.Projects.ServiceAccounts.Keys.Create(
		name, &iam.CreateServiceAccountKeyRequest{}).Context(ctx).Do()
	if err != nil {
		return nil, errors.Annotatef(err, "creating key for %s", email)
	}
	data, err := base64.StdEncoding.DecodeString(key.PrivateKeyData)
	if err != nil {
		return nil, errors.Annotate(err, "decoding key material")
	}
	return data, nil
}
