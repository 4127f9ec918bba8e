package smp

import (
	"time"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// Name is a business entity name in one language
type Name struct {
	Name     string
	Language string
}

// EntityIdentifier is an additional identifier of a business entity
type EntityIdentifier struct {
	ID     string
	Scheme string
	Value  string
}

// Contact is a contact point of a business entity
type Contact struct {
	ID          string
	Type        string
	Name        string
	PhoneNumber string
	Email       string
}

// BusinessEntity describes one legal entity behind a participant.
type BusinessEntity struct {
	ID                      string
	Names                   []Name
	CountryCode             string
	GeographicalInformation string
	Identifiers             []EntityIdentifier
	WebsiteURIs             []string
	Contacts                []Contact
	AdditionalInformation   string
	RegistrationDate        *time.Time
}

// Clone returns a deep copy
func (be BusinessEntity) Clone() BusinessEntity {
	c := be
	c.Names = append([]Name(nil), be.Names...)
	c.Identifiers = append([]EntityIdentifier(nil), be.Identifiers...)
	c.WebsiteURIs = append([]string(nil), be.WebsiteURIs...)
	c.Contacts = append([]Contact(nil), be.Contacts...)
	if be.RegistrationDate != nil {
		t := *be.RegistrationDate
		c.RegistrationDate = &t
	}
	return c
}

// BusinessCard holds the business entities of a service group. There is at
// most one per group.
type BusinessCard struct {
	ServiceGroupID string
	ParticipantID  identifier.ParticipantID
	Entities       []BusinessEntity
}

// NewBusinessCard creates a business card for a service group
func NewBusinessCard(sg *ServiceGroup, entities []BusinessEntity) (*BusinessCard, error) {
	if sg == nil {
		return nil, Validation(errNilServiceGroup)
	}
	bc := &BusinessCard{
		ServiceGroupID: sg.ID(),
		ParticipantID:  sg.ParticipantID,
	}
	for _, e := range entities {
		bc.Entities = append(bc.Entities, e.Clone())
	}
	return bc, nil
}

// ID returns the ID of the owning service group
func (bc *BusinessCard) ID() string {
	return bc.ServiceGroupID
}

// Clone returns a deep copy
func (bc *BusinessCard) Clone() *BusinessCard {
	if bc == nil {
		return nil
	}
	c := &BusinessCard{
		ServiceGroupID: bc.ServiceGroupID,
		ParticipantID:  bc.ParticipantID,
	}
	for _, e := range bc.Entities {
		c.Entities = append(c.Entities, e.Clone())
	}
	return c
}
