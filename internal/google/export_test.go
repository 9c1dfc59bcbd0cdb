// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package google

var (
	FirewallSpec = firewallSpec
	NewInstance  = instanceSpec
	ExternalIP   = externalIP
	BootImage    = bootImage
)
