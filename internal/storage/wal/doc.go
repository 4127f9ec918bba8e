// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package wal implements a crash-safe, in-memory keyed collection backed by
// an XML snapshot and a write-ahead journal.
//
// # Durable Form
//
// A store named "servicegroups" in directory d keeps two files:
//
//   - d/servicegroups.xml: the snapshot, one element per entity sorted by ID,
//     with the sequence number of the last journal record it covers
//   - d/servicegroups.wal: JSON lines, one [Record] per mutation since the
//     snapshot
//
// On [Open] the snapshot is loaded and every journal record with a higher
// sequence number is replayed. Replay is idempotent: a create of an existing
// entry is applied as an update and a delete of a missing entry is ignored.
// A torn final journal line, left by a crash during an append, is dropped.
//
// # Writes
//
// [Store.Write] runs a function under the store's write lock. Each mutation
// through [Tx] changes the in-memory map and appends a journal record; if the
// append fails the map is restored and an *smp.PersistenceError is returned.
// Secondary indexes kept by the caller should be updated inside the same
// function so they change atomically with the entity.
package wal
