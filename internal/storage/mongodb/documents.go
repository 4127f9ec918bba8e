package mongodb

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Extensions are stored as their JSON list form

type identifierDoc struct {
	Scheme string `bson:"scheme"`
	Value  string `bson:"value"`
}

type serviceGroupDoc struct {
	ID          string        `bson:"_id"`
	OwnerID     string        `bson:"owner_id"`
	Participant identifierDoc `bson:"participant"`
	Extension   string        `bson:"extension,omitempty"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

type redirectDoc struct {
	ID              string        `bson:"_id"`
	ServiceGroupID  string        `bson:"service_group_id"`
	Participant     identifierDoc `bson:"participant"`
	DocumentType    identifierDoc `bson:"document_type"`
	TargetHref      string        `bson:"target_href"`
	SubjectUniqueID string        `bson:"subject_unique_id,omitempty"`
	Certificate     []byte        `bson:"certificate,omitempty"`
	Extension       string        `bson:"extension,omitempty"`
}

type endpointDoc struct {
	TransportProfile              string     `bson:"transport_profile"`
	EndpointReference             string     `bson:"endpoint_reference"`
	RequireBusinessLevelSignature bool       `bson:"require_business_level_signature"`
	MinimumAuthenticationLevel    string     `bson:"minimum_authentication_level,omitempty"`
	ServiceActivation             *time.Time `bson:"service_activation,omitempty"`
	ServiceExpiration             *time.Time `bson:"service_expiration,omitempty"`
	Certificate                   string     `bson:"certificate,omitempty"`
	ServiceDescription            string     `bson:"service_description,omitempty"`
	TechnicalContactURL           string     `bson:"technical_contact_url,omitempty"`
	TechnicalInformationURL       string     `bson:"technical_information_url,omitempty"`
	Extension                     string     `bson:"extension,omitempty"`
}

type processDoc struct {
	ProcessID identifierDoc `bson:"process_id"`
	Endpoints []endpointDoc `bson:"endpoints"`
	Extension string        `bson:"extension,omitempty"`
}

type serviceInfoDoc struct {
	ID             string        `bson:"_id"`
	ServiceGroupID string        `bson:"service_group_id"`
	Participant    identifierDoc `bson:"participant"`
	DocumentType   identifierDoc `bson:"document_type"`
	Processes      []processDoc  `bson:"processes"`
	Extension      string        `bson:"extension,omitempty"`
}

type businessCardDoc struct {
	ID          string        `bson:"_id"`
	Participant identifierDoc `bson:"participant"`
	Entities    []entityDoc   `bson:"entities"`
}

type entityDoc struct {
	ID                      string                 `bson:"id,omitempty"`
	Names                   []smp.Name             `bson:"names"`
	CountryCode             string                 `bson:"country_code"`
	GeographicalInformation string                 `bson:"geographical_information,omitempty"`
	Identifiers             []smp.EntityIdentifier `bson:"identifiers,omitempty"`
	WebsiteURIs             []string               `bson:"website_uris,omitempty"`
	Contacts                []smp.Contact          `bson:"contacts,omitempty"`
	AdditionalInformation   string                 `bson:"additional_information,omitempty"`
	RegistrationDate        *time.Time             `bson:"registration_date,omitempty"`
}

func parseExtension(s string) (extension.Extension, error) {
	ext, err := extension.Parse(s)
	if err != nil {
		return extension.Extension{}, fmt.Errorf("stored extension: %w", err)
	}
	return ext, nil
}

func toServiceGroupDoc(sg *smp.ServiceGroup) *serviceGroupDoc {
	return &serviceGroupDoc{
		ID:          sg.ID(),
		OwnerID:     sg.OwnerID,
		Participant: identifierDoc{Scheme: sg.ParticipantID.Scheme, Value: sg.ParticipantID.Value},
		Extension:   sg.Extension.String(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func fromServiceGroupDoc(d *serviceGroupDoc) (*smp.ServiceGroup, error) {
	ext, err := parseExtension(d.Extension)
	if err != nil {
		return nil, err
	}
	pid := identifier.ParticipantID{Scheme: d.Participant.Scheme, Value: d.Participant.Value}
	return smp.NewServiceGroup(d.OwnerID, pid, ext), nil
}

func toRedirectDoc(r *smp.Redirect) *redirectDoc {
	d := &redirectDoc{
		ID:              r.ID(),
		ServiceGroupID:  r.ServiceGroupID,
		Participant:     identifierDoc{Scheme: r.ParticipantID.Scheme, Value: r.ParticipantID.Value},
		DocumentType:    identifierDoc{Scheme: r.DocumentTypeID.Scheme, Value: r.DocumentTypeID.Value},
		TargetHref:      r.TargetHref,
		SubjectUniqueID: r.SubjectUniqueID,
		Extension:       r.Extension.String(),
	}
	if r.Certificate != nil {
		d.Certificate = r.Certificate.Raw
	}
	return d
}

func fromRedirectDoc(d *redirectDoc) (*smp.Redirect, error) {
	ext, err := parseExtension(d.Extension)
	if err != nil {
		return nil, err
	}
	r := &smp.Redirect{
		ServiceGroupID:  d.ServiceGroupID,
		ParticipantID:   identifier.ParticipantID{Scheme: d.Participant.Scheme, Value: d.Participant.Value},
		DocumentTypeID:  identifier.DocumentTypeID{Scheme: d.DocumentType.Scheme, Value: d.DocumentType.Value},
		TargetHref:      d.TargetHref,
		SubjectUniqueID: d.SubjectUniqueID,
		Extension:       ext,
	}
	if len(d.Certificate) > 0 {
		if r.Certificate, err = x509.ParseCertificate(d.Certificate); err != nil {
			return nil, fmt.Errorf("stored redirect certificate: %w", err)
		}
	}
	return r, nil
}

func toServiceInfoDoc(si *smp.ServiceInformation) *serviceInfoDoc {
	d := &serviceInfoDoc{
		ID:             si.ID(),
		ServiceGroupID: si.ServiceGroupID,
		Participant:    identifierDoc{Scheme: si.ParticipantID.Scheme, Value: si.ParticipantID.Value},
		DocumentType:   identifierDoc{Scheme: si.DocumentTypeID.Scheme, Value: si.DocumentTypeID.Value},
		Processes:      make([]processDoc, 0, len(si.Processes)),
		Extension:      si.Extension.String(),
	}
	for _, p := range si.Processes {
		pd := processDoc{
			ProcessID: identifierDoc{Scheme: p.ProcessID.Scheme, Value: p.ProcessID.Value},
			Endpoints: make([]endpointDoc, 0, len(p.Endpoints)),
			Extension: p.Extension.String(),
		}
		for _, ep := range p.Endpoints {
			pd.Endpoints = append(pd.Endpoints, endpointDoc{
				TransportProfile:              ep.TransportProfile,
				EndpointReference:             ep.EndpointReference,
				RequireBusinessLevelSignature: ep.RequireBusinessLevelSignature,
				MinimumAuthenticationLevel:    ep.MinimumAuthenticationLevel,
				ServiceActivation:             ep.ServiceActivation,
				ServiceExpiration:             ep.ServiceExpiration,
				Certificate:                   ep.Certificate,
				ServiceDescription:            ep.ServiceDescription,
				TechnicalContactURL:           ep.TechnicalContactURL,
				TechnicalInformationURL:       ep.TechnicalInformationURL,
				Extension:                     ep.Extension.String(),
			})
		}
		d.Processes = append(d.Processes, pd)
	}
	return d
}

func fromServiceInfoDoc(d *serviceInfoDoc) (*smp.ServiceInformation, error) {
	var processes []*smp.Process
	for _, pd := range d.Processes {
		var endpoints []*smp.Endpoint
		for _, ed := range pd.Endpoints {
			ext, err := parseExtension(ed.Extension)
			if err != nil {
				return nil, err
			}
			endpoints = append(endpoints, &smp.Endpoint{
				TransportProfile:              ed.TransportProfile,
				EndpointReference:             ed.EndpointReference,
				RequireBusinessLevelSignature: ed.RequireBusinessLevelSignature,
				MinimumAuthenticationLevel:    ed.MinimumAuthenticationLevel,
				ServiceActivation:             ed.ServiceActivation,
				ServiceExpiration:             ed.ServiceExpiration,
				Certificate:                   ed.Certificate,
				ServiceDescription:            ed.ServiceDescription,
				TechnicalContactURL:           ed.TechnicalContactURL,
				TechnicalInformationURL:       ed.TechnicalInformationURL,
				Extension:                     ext,
			})
		}
		ext, err := parseExtension(pd.Extension)
		if err != nil {
			return nil, err
		}
		p, err := smp.NewProcess(identifier.ProcessID{Scheme: pd.ProcessID.Scheme, Value: pd.ProcessID.Value}, endpoints, ext)
		if err != nil {
			return nil, err
		}
		processes = append(processes, p)
	}

	ext, err := parseExtension(d.Extension)
	if err != nil {
		return nil, err
	}
	return &smp.ServiceInformation{
		ServiceGroupID: d.ServiceGroupID,
		ParticipantID:  identifier.ParticipantID{Scheme: d.Participant.Scheme, Value: d.Participant.Value},
		DocumentTypeID: identifier.DocumentTypeID{Scheme: d.DocumentType.Scheme, Value: d.DocumentType.Value},
		Processes:      processes,
		Extension:      ext,
	}, nil
}

func toBusinessCardDoc(bc *smp.BusinessCard) *businessCardDoc {
	d := &businessCardDoc{
		ID:          bc.ID(),
		Participant: identifierDoc{Scheme: bc.ParticipantID.Scheme, Value: bc.ParticipantID.Value},
		Entities:    make([]entityDoc, 0, len(bc.Entities)),
	}
	for _, e := range bc.Entities {
		d.Entities = append(d.Entities, entityDoc(e.Clone()))
	}
	return d
}

func fromBusinessCardDoc(d *businessCardDoc) (*smp.BusinessCard, error) {
	bc := &smp.BusinessCard{
		ServiceGroupID: d.ID,
		ParticipantID:  identifier.ParticipantID{Scheme: d.Participant.Scheme, Value: d.Participant.Value},
	}
	for _, e := range d.Entities {
		bc.Entities = append(bc.Entities, smp.BusinessEntity(e).Clone())
	}
	return bc, nil
}
