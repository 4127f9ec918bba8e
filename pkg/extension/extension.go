// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package extension implements the extension list attached to SMP entities.
//
// Extensions are stored as a list of items for historical multi-extension
// support. Callers usually see only the XML of the first item ([Extension.FirstXML])
// or the whole list in its JSON form ([Extension.String]).
package extension

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/PiccoloProcione/supersmp/pkg/validation"
)

// ErrMalformed is returned when extension text is neither a single XML
// element nor a JSON extension list. It matches validation.ErrInvalid.
var ErrMalformed = validation.New("malformed extension")

// Item is a single extension. Any holds the extension payload as one XML element.
type Item struct {
	ID         string `json:"ID,omitempty"`
	Name       string `json:"Name,omitempty"`
	AgencyID   string `json:"AgencyID,omitempty"`
	AgencyName string `json:"AgencyName,omitempty"`
	AgencyURI  string `json:"AgencyURI,omitempty"`
	VersionID  string `json:"VersionID,omitempty"`
	URI        string `json:"URI,omitempty"`
	ReasonCode string `json:"ReasonCode,omitempty"`
	Reason     string `json:"Reason,omitempty"`
	Any        string `json:"Any,omitempty"`
}

// Extension is an ordered list of extension items. The zero value is empty.
type Extension struct {
	items []Item
}

// Parse parses extension text.
//
// Text starting with '<' is parsed as a single XML element and becomes a
// one-item list. Any other non-blank text is parsed as a JSON list of items.
// Blank text yields the empty extension.
func Parse(s string) (Extension, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Extension{}, nil
	}

	if s[0] == '<' {
		elem, err := canonicalElement(s)
		if err != nil {
			return Extension{}, err
		}
		return Extension{items: []Item{{Any: elem}}}, nil
	}

	var items []Item
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return Extension{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := range items {
		if items[i].Any == "" {
			continue
		}
		elem, err := canonicalElement(items[i].Any)
		if err != nil {
			return Extension{}, fmt.Errorf("item %d: %w", i, err)
		}
		items[i].Any = elem
	}
	return New(items...), nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Extension {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

// New creates an extension from the given items
func New(items ...Item) Extension {
	if len(items) == 0 {
		return Extension{}
	}
	return Extension{items: append([]Item(nil), items...)}
}

// IsEmpty reports whether the extension has no items
func (e Extension) IsEmpty() bool {
	return len(e.items) == 0
}

// Len returns the number of items
func (e Extension) Len() int {
	return len(e.items)
}

// Items returns a copy of the items
func (e Extension) Items() []Item {
	if len(e.items) == 0 {
		return nil
	}
	return append([]Item(nil), e.items...)
}

// FirstXML returns the XML element of the first item, or "" if there is none.
func (e Extension) FirstXML() string {
	if len(e.items) == 0 {
		return ""
	}
	return e.items[0].Any
}

// String returns all items as a JSON list, or "" if the extension is empty.
func (e Extension) String() string {
	if len(e.items) == 0 {
		return ""
	}
	data, err := json.Marshal(e.items)
	if err != nil {
		// Items only hold strings
		panic(fmt.Sprintf("extension: marshal items: %v", err))
	}
	return string(data)
}

// Set replaces the whole list with the parsed text. It reports whether the
// extension changed. On error the extension is left untouched.
func (e *Extension) Set(s string) (bool, error) {
	next, err := Parse(s)
	if err != nil {
		return false, err
	}
	if e.Equal(next) {
		return false, nil
	}
	e.items = next.items
	return true, nil
}

// Equal reports whether both extensions hold the same items in the same order.
func (e Extension) Equal(o Extension) bool {
	if len(e.items) != len(o.items) {
		return false
	}
	for i := range e.items {
		if e.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

// canonicalElement checks that s is exactly one XML element and returns it
// serialized without the XML declaration.
func canonicalElement(s string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n := len(doc.ChildElements()); n != 1 {
		return "", fmt.Errorf("%w: expected one XML element, found %d", ErrMalformed, n)
	}
	for _, tok := range doc.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return "", fmt.Errorf("%w: text outside the root element", ErrMalformed)
		}
	}

	out := etree.NewDocument()
	out.SetRoot(doc.Root().Copy())
	str, err := out.WriteToString()
	if err != nil {
		return "", fmt.Errorf("failed to serialize extension: %w", err)
	}
	return str, nil
}
