package smp

import (
	"crypto/x509"
	"fmt"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// Redirect points the metadata of a (service group, document type) key to another SMP.
type Redirect struct {
	ServiceGroupID  string
	ParticipantID   identifier.ParticipantID
	DocumentTypeID  identifier.DocumentTypeID
	TargetHref      string
	SubjectUniqueID string
	Certificate     *x509.Certificate
	Extension       extension.Extension
}

// NewRedirect creates a redirect for a service group
func NewRedirect(sg *ServiceGroup, docType identifier.DocumentTypeID, targetHref, subjectUniqueID string, cert *x509.Certificate, ext extension.Extension) (*Redirect, error) {
	if sg == nil {
		return nil, Validation(errNilServiceGroup)
	}
	r := &Redirect{
		ServiceGroupID:  sg.ID(),
		ParticipantID:   sg.ParticipantID,
		DocumentTypeID:  docType,
		TargetHref:      targetHref,
		SubjectUniqueID: subjectUniqueID,
		Certificate:     cert,
		Extension:       ext,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// ID returns the (service group, document type) key
func (r *Redirect) ID() string {
	return ServiceInformationID(r.ServiceGroupID, r.DocumentTypeID)
}

// Validate checks the invariants of a redirect
func (r *Redirect) Validate() error {
	if r.DocumentTypeID.IsZero() {
		return Validation(fmt.Errorf("redirect of %s has no document type", r.ServiceGroupID))
	}
	if r.TargetHref == "" {
		return Validation(fmt.Errorf("redirect %s has no target", r.ID()))
	}
	return nil
}

// Clone returns a deep copy. The certificate is shared; it is never mutated.
func (r *Redirect) Clone() *Redirect {
	if r == nil {
		return nil
	}
	c := *r
	c.Extension = extension.New(r.Extension.Items()...)
	return &c
}

// Equal reports whether both redirects hold the same data
func (r *Redirect) Equal(o *Redirect) bool {
	if r == nil || o == nil {
		return r == o
	}
	certEqual := r.Certificate == o.Certificate ||
		(r.Certificate != nil && o.Certificate != nil && r.Certificate.Equal(o.Certificate))
	return r.ID() == o.ID() &&
		r.TargetHref == o.TargetHref &&
		r.SubjectUniqueID == o.SubjectUniqueID &&
		certEqual &&
		r.Extension.Equal(o.Extension)
}
