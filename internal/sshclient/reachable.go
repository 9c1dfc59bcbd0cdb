// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package sshclient

import (
	"net"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

// Prober checks whether a TCP endpoint currently accepts connections.
type Prober func(addr string) error

// DialProbe is the default prober, doing a plain TCP dial.
func DialProbe(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return errors.Trace(err)
	}
	return conn.Close()
}

// WaitReachable polls addr with probe until it accepts a connection:
// exactly attempts tries, spaced interval apart. Exhausting the attempts
// is fatal for the whole run, so the error says how long we waited.
func WaitReachable(clk clock.Clock, probe Prober, addr string, attempts int, interval time.Duration) error {
	err := retry.Call(retry.CallArgs{
		Clock:    clk,
		Attempts: attempts,
		Delay:    interval,
		Func: func() error {
			return probe(addr)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("reachability attempt %d: %v", attempt, err)
		},
	})
	if err != nil {
		return errors.Annotatef(err, "%s still unreachable after %d attempts", addr, attempts)
	}
	logger.Infof("%s is reachable", addr)
	return nil
}
