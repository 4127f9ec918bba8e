// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package sml keeps the SML informed about the participants this SMP hosts.
//
// # Registration hooks
//
// [Client] implements smp.RegistrationHook against the SML participant
// management SOAP service (ManageParticipantIdentifier, BDMSL flavour),
// authenticating with the SMP's TLS client certificate. [Noop] is used when
// SML integration is disabled.
//
// The undo operations are idempotent: undoing a create of a participant the
// SML no longer knows, or undoing a delete of a participant it still knows,
// succeeds.
//
// # Errors
//
// SOAP faults are mapped onto [ErrAlreadyRegistered], [ErrNotRegistered],
// [ErrUnauthorized], [ErrBadRequest] and [ErrTransient]. Only transient
// failures are retried.
//
// # DNS check
//
// [Checker] verifies through BDXL DNS lookups that a participant actually
// points at this SMP. Results are cached for a short time.
package sml
