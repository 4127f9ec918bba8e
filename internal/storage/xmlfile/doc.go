// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package xmlfile stores the registry in XML files.
//
// Each manager owns one [wal.Store]: an XML snapshot plus a journal in the
// configured directory. Secondary indexes (service groups by owner, redirects
// and service information by service group) live in memory and are rebuilt
// while the stores replay.
//
// Deleting a service group holds the service group write lock while the
// redirect, service information and business card managers delete the
// group's entries, which fixes the lock order
//
//	service groups → redirects → service information → business cards
//
// Registration hook calls happen outside of all locks; see package
// registration.
package xmlfile
