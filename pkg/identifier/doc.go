// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package identifier implements the participant, document type and process
identifiers used as keys throughout the SMP registry.

# Identifiers

Every identifier is a scheme plus a value. The canonical string form is the
URI encoding used by the SMP REST bindings:

	<scheme>::<value>

for example

	iso6523-actorid-upis::9915:test
	busdox-docid-qns::urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##...

Two identifiers are equal if and only if their canonical encodings are equal.
The registry derives service group IDs and composite map keys from the
canonical form, so a [Factory] must always return canonical values.

# Factories

Two factories are provided:

  - [Peppol]: applies the Peppol policy for identifiers. Participant identifier
    values are case insensitive and are lower-cased; schemes are validated and
    lengths are limited.
  - [Simple]: accepts any non-empty scheme and value and keeps them as given.

Use [FactoryFor] to select a factory from configuration:

	f, err := identifier.FactoryFor(identifier.TypePeppol)
	pid, err := f.ParseParticipantID("iso6523-actorid-upis::9915:test")
*/
package identifier
