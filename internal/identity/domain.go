// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package identity

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("airlift.identity")

// LookupHostFunc resolves a host name to its addresses, matching the
// signature of net.LookupHost.
type LookupHostFunc func(host string) ([]string, error)

// ValidateDomain checks that domain resolves to expectedIP. Install must
// not proceed against a VM the domain does not point at: the certificate
// issuance would fail halfway through and leave the host partially
// configured.
func ValidateDomain(lookup LookupHostFunc, domain, expectedIP string) error {
	addrs, err := lookup(domain)
	if err != nil {
		return errors.Annotatef(err, "resolving domain %q", domain)
	}
	for _, addr := range addrs {
		if addr == expectedIP {
			logger.Debugf("domain %q resolves to VM address %s", domain, expectedIP)
			return nil
		}
	}
	return errors.Errorf(
		"domain %q resolves to %s, not the VM address %s; update the DNS record and retry",
		domain, strings.Join(addrs, ", "), expectedIP)
}
