package identifier

import (
	"fmt"
	"strings"

	"github.com/PiccoloProcione/supersmp/pkg/validation"
)

// Separator between scheme and value in the canonical encoding
const Separator = "::"

// Common errors. All of them match validation.ErrInvalid.
var (
	// ErrInvalidIdentifier is returned when a string cannot be parsed as an identifier
	ErrInvalidIdentifier = validation.New("invalid identifier")
	// ErrInvalidScheme is returned when the scheme violates the factory policy
	ErrInvalidScheme = validation.New("invalid identifier scheme")
	// ErrInvalidValue is returned when the value violates the factory policy
	ErrInvalidValue = validation.New("invalid identifier value")
)

// ParticipantID identifies a party in the network. It is the key of a service group.
type ParticipantID struct {
	Scheme string
	Value  string
}

// URIEncoded returns the canonical "scheme::value" form.
func (p ParticipantID) URIEncoded() string {
	return encode(p.Scheme, p.Value)
}

func (p ParticipantID) String() string {
	return p.URIEncoded()
}

// IsZero reports whether the identifier has neither scheme nor value.
func (p ParticipantID) IsZero() bool {
	return p.Scheme == "" && p.Value == ""
}

// Equal reports whether both identifiers have the same canonical encoding.
func (p ParticipantID) Equal(o ParticipantID) bool {
	return p.URIEncoded() == o.URIEncoded()
}

// DocumentTypeID identifies a business document type.
type DocumentTypeID struct {
	Scheme string
	Value  string
}

// URIEncoded returns the canonical "scheme::value" form.
func (d DocumentTypeID) URIEncoded() string {
	return encode(d.Scheme, d.Value)
}

func (d DocumentTypeID) String() string {
	return d.URIEncoded()
}

// IsZero reports whether the identifier has neither scheme nor value.
func (d DocumentTypeID) IsZero() bool {
	return d.Scheme == "" && d.Value == ""
}

// Equal reports whether both identifiers have the same canonical encoding.
func (d DocumentTypeID) Equal(o DocumentTypeID) bool {
	return d.URIEncoded() == o.URIEncoded()
}

// ProcessID identifies a business process a document type is exchanged in.
type ProcessID struct {
	Scheme string
	Value  string
}

// URIEncoded returns the canonical "scheme::value" form.
func (p ProcessID) URIEncoded() string {
	return encode(p.Scheme, p.Value)
}

func (p ProcessID) String() string {
	return p.URIEncoded()
}

// IsZero reports whether the identifier has neither scheme nor value.
func (p ProcessID) IsZero() bool {
	return p.Scheme == "" && p.Value == ""
}

// Equal reports whether both identifiers have the same canonical encoding.
func (p ProcessID) Equal(o ProcessID) bool {
	return p.URIEncoded() == o.URIEncoded()
}

func encode(scheme, value string) string {
	return scheme + Separator + value
}

// split parses "scheme::value". The value may itself contain "::" (document
// type identifiers usually do), so only the first separator counts.
func split(s string) (scheme, value string, err error) {
	idx := strings.Index(s, Separator)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: missing %q separator in %q", ErrInvalidIdentifier, Separator, s)
	}
	return s[:idx], s[idx+len(Separator):], nil
}
