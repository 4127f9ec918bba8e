package smp

import (
	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// ServiceGroupID derives the service group ID of a participant
func ServiceGroupID(pid identifier.ParticipantID) string {
	return pid.URIEncoded()
}

// ServiceGroup is the registry record owning one participant identifier.
type ServiceGroup struct {
	OwnerID       string
	ParticipantID identifier.ParticipantID
	Extension     extension.Extension
}

// NewServiceGroup creates a service group
func NewServiceGroup(ownerID string, pid identifier.ParticipantID, ext extension.Extension) *ServiceGroup {
	return &ServiceGroup{
		OwnerID:       ownerID,
		ParticipantID: pid,
		Extension:     ext,
	}
}

// ID returns the canonical encoding of the participant identifier
func (sg *ServiceGroup) ID() string {
	return ServiceGroupID(sg.ParticipantID)
}

// Clone returns a deep copy
func (sg *ServiceGroup) Clone() *ServiceGroup {
	if sg == nil {
		return nil
	}
	c := *sg
	c.Extension = extension.New(sg.Extension.Items()...)
	return &c
}

// Equal reports whether both groups hold the same data
func (sg *ServiceGroup) Equal(o *ServiceGroup) bool {
	if sg == nil || o == nil {
		return sg == o
	}
	return sg.OwnerID == o.OwnerID &&
		sg.ParticipantID.Equal(o.ParticipantID) &&
		sg.Extension.Equal(o.Extension)
}

// Validate checks the invariants of a service group
func (sg *ServiceGroup) Validate() error {
	if sg == nil {
		return Validation(errNilServiceGroup)
	}
	if sg.OwnerID == "" {
		return Validation(errEmptyOwner)
	}
	if sg.ParticipantID.Scheme == "" || sg.ParticipantID.Value == "" {
		return Validation(identifier.ErrInvalidIdentifier)
	}
	return nil
}
