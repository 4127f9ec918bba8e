// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package discovery looks up participants the way senders in the network do.
//
// The SML publishes, for every registered participant, a U-NAPTR record that
// points to the SMP hosting the participant. A [Locator] performs that BDXL
// lookup; a [Client] reads the metadata an SMP publishes; a [Resolver] does
// both. The registry uses the package to verify that its own registrations
// are visible in the network, and converts its service information to
// [ServiceMetadata] when publishing it.
//
// # Query names
//
// The query name of a participant is built from its identifier:
//
//	<base32(sha256(lower(value)))>.<scheme>.<zone>
//
// for example, for iso6523-actorid-upis::9915:test in the SML acceptance zone:
//
//	<hash>.iso6523-actorid-upis.acc.edelivery.tech.ec.europa.eu
//
// # Usage
//
//	loc := discovery.NewLocator(discovery.LocatorConfig{Zone: discovery.ZoneSMK})
//	smpURL, err := loc.LocateSMP(ctx, pid)
//	if err != nil {
//	    return err
//	}
//	sg, err := discovery.NewClient(discovery.ClientConfig{}).GetServiceGroup(ctx, smpURL, pid)
package discovery
