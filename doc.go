// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package supersmp is the registry core of a Service Metadata Publisher (SMP).

# Overview

An SMP publishes, for each participant it hosts, which document types the
participant receives, over which processes and at which endpoints. The
participant itself is found through the SML: a DNS zone that maps each
participant identifier to the SMP hosting it.

supersmp keeps the participant data and keeps the SML informed. A service
group is created only after the participant was registered in the SML,
and the participant is unregistered before its service group is removed.
When the local write fails after the SML call succeeded, the SML call is
undone. If the undo fails as well, the operation reports an
*smp.InconsistencyError and the registry status counts it until an operator
reconciles the two sides. The same holds when a failed delete cannot put the
service group and its dependents back.

# Package Structure

	github.com/PiccoloProcione/supersmp/pkg/identifier        - Participant, document type and process identifiers
	github.com/PiccoloProcione/supersmp/pkg/extension         - Extension elements of SMP entities
	github.com/PiccoloProcione/supersmp/pkg/smp               - Entities, manager interfaces and errors
	github.com/PiccoloProcione/supersmp/pkg/validation        - Error class of malformed input
	github.com/PiccoloProcione/supersmp/pkg/discovery         - BDXL lookup and SMP read client
	github.com/PiccoloProcione/supersmp/internal/storage      - XML file and MongoDB backends
	github.com/PiccoloProcione/supersmp/internal/registration - SML-gated create and delete with compensation
	github.com/PiccoloProcione/supersmp/internal/sml          - SML SOAP client and DNS check
	github.com/PiccoloProcione/supersmp/internal/registry     - Manager lifecycle and status
	github.com/PiccoloProcione/supersmp/cmd/smpctl            - Operator CLI

# Quick Start

	provider, err := storage.NewProvider(ctx, storage.Config{
	    Backend: "xml",
	    XML:     storage.XMLConfig{Dir: "/var/lib/smp"},
	})
	if err != nil {
	    return err
	}

	reg := registry.New(registry.Options{Hook: smlClient})
	if err := reg.Register(provider); err != nil {
	    return err
	}
	defer reg.Close(ctx)

	groups, err := reg.ServiceGroups(ctx)
	if err != nil {
	    return err
	}
	sg, err := groups.Create(ctx, "owner", pid, extension.Extension{})

# Storage

The XML backend keeps each entity type in a snapshot file plus a journal of
the changes since. The journal is replayed on start, so a crash loses no
acknowledged write. The MongoDB backend keeps one collection per entity
type.
*/
package supersmp
