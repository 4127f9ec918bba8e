// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package smp defines the entities of an SMP registry and the contracts of the
managers that own them.

# Entities

A [ServiceGroup] is the registry record owning one participant identifier.
Its ID is the canonical encoding of the participant identifier, so there is at
most one service group per participant.

A [ServiceInformation] lists, for one service group and one document type, the
processes the participant supports and the endpoints it receives documents at.
A [Redirect] points the same (service group, document type) key to another SMP.
A [BusinessCard] holds free-form business entity descriptions for a group.

ServiceInformation, Redirect and BusinessCard do not own their service group;
they keep its ID and participant identifier as a back-reference.

# Managers

Each entity kind is owned by a manager ([ServiceGroupManager],
[RedirectManager], [ServiceInformationManager], [BusinessCardManager]). A
[ManagerProvider] builds the four managers for one storage backend.

Creating and deleting a service group is gated by a [RegistrationHook] that
keeps the SML directory informed. When a local write fails after the
directory call succeeded, the manager runs the compensating undo action. If
that fails too, the manager returns an [*InconsistencyError]: local storage
and the directory disagree and need manual reconciliation.

# Errors

All errors returned by managers can be classified with errors.Is against
[ErrNotFound], [ErrDuplicateID], [ErrValidation], [ErrDirectory],
[ErrPersistence] and [ErrInconsistent].
*/
package smp
