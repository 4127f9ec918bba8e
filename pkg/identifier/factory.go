package identifier

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Type selects an identifier factory
type Type string

const (
	// TypePeppol applies the Peppol identifier policy
	TypePeppol Type = "peppol"
	// TypeSimple accepts any non-empty scheme and value
	TypeSimple Type = "simple"
)

// Default Peppol schemes
const (
	DefaultParticipantScheme  = "iso6523-actorid-upis"
	DefaultDocumentTypeScheme = "busdox-docid-qns"
	DefaultProcessScheme      = "cenbii-procid-ubl"
)

// Peppol policy limits
const (
	MaxSchemeLength            = 25
	MaxParticipantValueLength  = 50
	MaxDocumentTypeValueLength = 500
	MaxProcessValueLength      = 200
)

// Factory parses and creates identifiers according to an identifier policy.
//
// Implementations must return canonical values so that struct equality and
// canonical-encoding equality coincide.
type Factory interface {
	// Type returns the policy implemented by this factory
	Type() Type

	ParseParticipantID(s string) (ParticipantID, error)
	NewParticipantID(scheme, value string) (ParticipantID, error)
	// ParticipantIDWithDefaultScheme creates a participant ID using the factory's default scheme
	ParticipantIDWithDefaultScheme(value string) (ParticipantID, error)

	ParseDocumentTypeID(s string) (DocumentTypeID, error)
	NewDocumentTypeID(scheme, value string) (DocumentTypeID, error)
	DocumentTypeIDWithDefaultScheme(value string) (DocumentTypeID, error)

	ParseProcessID(s string) (ProcessID, error)
	NewProcessID(scheme, value string) (ProcessID, error)
	ProcessIDWithDefaultScheme(value string) (ProcessID, error)
}

var (
	// Peppol is the factory applying the Peppol identifier policy
	Peppol Factory = peppolFactory{}
	// Simple is the permissive factory
	Simple Factory = simpleFactory{}
)

// FactoryFor returns the factory for the given type
func FactoryFor(t Type) (Factory, error) {
	switch Type(strings.ToLower(string(t))) {
	case TypePeppol, "":
		return Peppol, nil
	case TypeSimple:
		return Simple, nil
	default:
		return nil, fmt.Errorf("unknown identifier type %q", t)
	}
}

// participant schemes look like "iso6523-actorid-upis"
var peppolParticipantScheme = regexp.MustCompile(`^[a-z0-9]+-actorid-[a-z0-9]+$`)

type peppolFactory struct{}

func (peppolFactory) Type() Type { return TypePeppol }

func (f peppolFactory) ParseParticipantID(s string) (ParticipantID, error) {
	scheme, value, err := split(s)
	if err != nil {
		return ParticipantID{}, err
	}
	return f.NewParticipantID(scheme, value)
}

func (peppolFactory) NewParticipantID(scheme, value string) (ParticipantID, error) {
	// Participant identifiers are case insensitive in Peppol
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	value = strings.ToLower(strings.TrimSpace(value))

	if err := checkScheme(scheme); err != nil {
		return ParticipantID{}, err
	}
	if !peppolParticipantScheme.MatchString(scheme) {
		return ParticipantID{}, fmt.Errorf("%w: %q is not an actorid scheme", ErrInvalidScheme, scheme)
	}
	if err := checkValue(value, MaxParticipantValueLength); err != nil {
		return ParticipantID{}, err
	}
	return ParticipantID{Scheme: scheme, Value: value}, nil
}

func (f peppolFactory) ParticipantIDWithDefaultScheme(value string) (ParticipantID, error) {
	return f.NewParticipantID(DefaultParticipantScheme, value)
}

func (f peppolFactory) ParseDocumentTypeID(s string) (DocumentTypeID, error) {
	scheme, value, err := split(s)
	if err != nil {
		return DocumentTypeID{}, err
	}
	return f.NewDocumentTypeID(scheme, value)
}

func (peppolFactory) NewDocumentTypeID(scheme, value string) (DocumentTypeID, error) {
	scheme = strings.TrimSpace(scheme)
	value = strings.TrimSpace(value)
	if err := checkScheme(scheme); err != nil {
		return DocumentTypeID{}, err
	}
	if err := checkValue(value, MaxDocumentTypeValueLength); err != nil {
		return DocumentTypeID{}, err
	}
	return DocumentTypeID{Scheme: scheme, Value: value}, nil
}

func (f peppolFactory) DocumentTypeIDWithDefaultScheme(value string) (DocumentTypeID, error) {
	return f.NewDocumentTypeID(DefaultDocumentTypeScheme, value)
}

func (f peppolFactory) ParseProcessID(s string) (ProcessID, error) {
	scheme, value, err := split(s)
	if err != nil {
		return ProcessID{}, err
	}
	return f.NewProcessID(scheme, value)
}

func (peppolFactory) NewProcessID(scheme, value string) (ProcessID, error) {
	scheme = strings.TrimSpace(scheme)
	value = strings.TrimSpace(value)
	if err := checkScheme(scheme); err != nil {
		return ProcessID{}, err
	}
	if err := checkValue(value, MaxProcessValueLength); err != nil {
		return ProcessID{}, err
	}
	return ProcessID{Scheme: scheme, Value: value}, nil
}

func (f peppolFactory) ProcessIDWithDefaultScheme(value string) (ProcessID, error) {
	return f.NewProcessID(DefaultProcessScheme, value)
}

func checkScheme(scheme string) error {
	if scheme == "" {
		return fmt.Errorf("%w: empty scheme", ErrInvalidScheme)
	}
	if len(scheme) > MaxSchemeLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidScheme, scheme, MaxSchemeLength)
	}
	if strings.Contains(scheme, Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidScheme, scheme, Separator)
	}
	return nil
}

func checkValue(value string, maxLen int) error {
	if value == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidValue)
	}
	if utf8.RuneCountInString(value) > maxLen {
		return fmt.Errorf("%w: value exceeds %d characters", ErrInvalidValue, maxLen)
	}
	return nil
}

type simpleFactory struct{}

func (simpleFactory) Type() Type { return TypeSimple }

func (f simpleFactory) ParseParticipantID(s string) (ParticipantID, error) {
	scheme, value, err := split(s)
	if err != nil {
		return ParticipantID{}, err
	}
	return f.NewParticipantID(scheme, value)
}

func (simpleFactory) NewParticipantID(scheme, value string) (ParticipantID, error) {
	if err := checkSimple(scheme, value); err != nil {
		return ParticipantID{}, err
	}
	return ParticipantID{Scheme: scheme, Value: value}, nil
}

func (f simpleFactory) ParticipantIDWithDefaultScheme(value string) (ParticipantID, error) {
	return f.NewParticipantID(DefaultParticipantScheme, value)
}

func (f simpleFactory) ParseDocumentTypeID(s string) (DocumentTypeID, error) {
	scheme, value, err := split(s)
	if err != nil {
		return DocumentTypeID{}, err
	}
	return f.NewDocumentTypeID(scheme, value)
}

func (simpleFactory) NewDocumentTypeID(scheme, value string) (DocumentTypeID, error) {
	if err := checkSimple(scheme, value); err != nil {
		return DocumentTypeID{}, err
	}
	return DocumentTypeID{Scheme: scheme, Value: value}, nil
}

func (f simpleFactory) DocumentTypeIDWithDefaultScheme(value string) (DocumentTypeID, error) {
	return f.NewDocumentTypeID(DefaultDocumentTypeScheme, value)
}

func (f simpleFactory) ParseProcessID(s string) (ProcessID, error) {
	scheme, value, err := split(s)
	if err != nil {
		return ProcessID{}, err
	}
	return f.NewProcessID(scheme, value)
}

func (simpleFactory) NewProcessID(scheme, value string) (ProcessID, error) {
	if err := checkSimple(scheme, value); err != nil {
		return ProcessID{}, err
	}
	return ProcessID{Scheme: scheme, Value: value}, nil
}

func (f simpleFactory) ProcessIDWithDefaultScheme(value string) (ProcessID, error) {
	return f.NewProcessID(DefaultProcessScheme, value)
}

func checkSimple(scheme, value string) error {
	if scheme == "" || strings.Contains(scheme, Separator) {
		return fmt.Errorf("%w: %q", ErrInvalidScheme, scheme)
	}
	if value == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidValue)
	}
	return nil
}
