// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package sshclient is the secure channel to the provisioned VM: it polls
// for reachability, runs remote commands and copies files.
package sshclient

import (
	"io"
	"net"
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

var logger = loggo.GetLogger("airlift.sshclient")

// Client runs commands and copies files on the target host.
type Client struct {
	ssh *ssh.Client
}

// Dial connects to host as user, authenticating with the private key at
// keyPath. The host key is not checked: the VM was created seconds ago and
// its key has never been seen before.
func Dial(host, user, keyPath string) (*Client, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.Annotate(err, "reading private key")
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Annotate(err, "parsing private key")
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}
	conn, err := ssh.Dial("tcp", net.JoinHostPort(host, "22"), config)
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to %s as %q", host, user)
	}
	return &Client{ssh: conn}, nil
}

// Run executes command on the remote host, streaming its output to the
// given writers. A non-zero remote exit status is returned as an error.
func (c *Client) Run(command string, stdout, stderr io.Writer) error {
	session, err := c.ssh.NewSession()
	if err != nil {
		return errors.Trace(err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr
	logger.Debugf("running remote command: %s", command)
	if err := session.Run(command); err != nil {
		return errors.Annotatef(err, "remote command %q", command)
	}
	return nil
}

// Put copies the local file to remotePath with the given mode.
func (c *Client) Put(localPath, remotePath string, mode os.FileMode) error {
	client, err := sftp.NewClient(c.ssh)
	if err != nil {
		return errors.Trace(err)
	}
	defer client.Close()

	local, err := os.Open(localPath)
	if err != nil {
		return errors.Trace(err)
	}
	defer local.Close()

	remote, err := client.Create(remotePath)
	if err != nil {
		return errors.Annotatef(err, "creating %q on remote", remotePath)
	}
	defer remote.Close()

	if _, err := io.Copy(remote, local); err != nil {
		return errors.Annotatef(err, "copying %q to %q", localPath, remotePath)
	}
	if err := client.Chmod(remotePath, mode); err != nil {
		return errors.Annotatef(err, "setting mode on %q", remotePath)
	}
	logger.Infof("copied %s to %s", localPath, remotePath)
	return nil
}

// Close shuts the underlying connection down.
func (c *Client) Close() error {
	return c.ssh.Close()
}
