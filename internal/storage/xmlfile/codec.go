package xmlfile

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Element and attribute names of the stored documents
const (
	elemServiceGroup       = "ServiceGroup"
	elemRedirect           = "Redirect"
	elemServiceInformation = "ServiceInformation"
	elemBusinessCard       = "BusinessCard"
	elemParticipant        = "ParticipantIdentifier"
	elemDocumentType       = "DocumentIdentifier"
	elemProcess            = "Process"
	elemProcessID          = "ProcessIdentifier"
	elemEndpoint           = "Endpoint"
	elemEntity             = "BusinessEntity"

	attrScheme = "scheme"
	attrOwner  = "owner"
)

func writeIdentifier(parent *etree.Element, tag, scheme, value string) {
	el := parent.CreateElement(tag)
	el.CreateAttr(attrScheme, scheme)
	el.SetText(value)
}

func readIdentifier(parent *etree.Element, tag string) (scheme, value string, err error) {
	el := parent.SelectElement(tag)
	if el == nil {
		return "", "", fmt.Errorf("<%s> is missing <%s>", parent.Tag, tag)
	}
	return el.SelectAttrValue(attrScheme, ""), el.Text(), nil
}

func readParticipant(parent *etree.Element) (identifier.ParticipantID, error) {
	scheme, value, err := readIdentifier(parent, elemParticipant)
	return identifier.ParticipantID{Scheme: scheme, Value: value}, err
}

func readDocumentType(parent *etree.Element) (identifier.DocumentTypeID, error) {
	scheme, value, err := readIdentifier(parent, elemDocumentType)
	return identifier.DocumentTypeID{Scheme: scheme, Value: value}, err
}

func writeText(parent *etree.Element, tag, value string) {
	if value != "" {
		parent.CreateElement(tag).SetText(value)
	}
}

func readText(parent *etree.Element, tag string) string {
	if el := parent.SelectElement(tag); el != nil {
		return el.Text()
	}
	return ""
}

func writeTime(parent *etree.Element, tag string, t *time.Time) {
	if t != nil {
		parent.CreateElement(tag).SetText(t.UTC().Format(time.RFC3339Nano))
	}
}

func readTime(parent *etree.Element, tag string) (*time.Time, error) {
	v := readText(parent, tag)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fmt.Errorf("invalid <%s>: %w", tag, err)
	}
	return &t, nil
}

// serviceGroupCodec stores a service group as
//
//	<ServiceGroup owner="...">
//	  <ParticipantIdentifier scheme="...">value</ParticipantIdentifier>
//	  <Extension>...</Extension>
//	</ServiceGroup>
type serviceGroupCodec struct{}

func (serviceGroupCodec) ElementName() string { return elemServiceGroup }

func (serviceGroupCodec) ID(sg *smp.ServiceGroup) string { return sg.ID() }

func (serviceGroupCodec) Clone(sg *smp.ServiceGroup) *smp.ServiceGroup { return sg.Clone() }

func (serviceGroupCodec) Encode(sg *smp.ServiceGroup) (*etree.Element, error) {
	el := etree.NewElement(elemServiceGroup)
	el.CreateAttr(attrOwner, sg.OwnerID)
	writeIdentifier(el, elemParticipant, sg.ParticipantID.Scheme, sg.ParticipantID.Value)
	if err := sg.Extension.WriteElement(el); err != nil {
		return nil, err
	}
	return el, nil
}

func (serviceGroupCodec) Decode(el *etree.Element) (*smp.ServiceGroup, error) {
	if el.Tag != elemServiceGroup {
		return nil, fmt.Errorf("unexpected element <%s>", el.Tag)
	}
	pid, err := readParticipant(el)
	if err != nil {
		return nil, err
	}
	ext, err := extension.ReadElement(el)
	if err != nil {
		return nil, err
	}
	return smp.NewServiceGroup(el.SelectAttrValue(attrOwner, ""), pid, ext), nil
}

// redirectCodec stores a redirect with its certificate as base64 DER
type redirectCodec struct{}

func (redirectCodec) ElementName() string { return elemRedirect }

func (redirectCodec) ID(r *smp.Redirect) string { return r.ID() }

func (redirectCodec) Clone(r *smp.Redirect) *smp.Redirect { return r.Clone() }

func (redirectCodec) Encode(r *smp.Redirect) (*etree.Element, error) {
	el := etree.NewElement(elemRedirect)
	writeIdentifier(el, elemParticipant, r.ParticipantID.Scheme, r.ParticipantID.Value)
	writeIdentifier(el, elemDocumentType, r.DocumentTypeID.Scheme, r.DocumentTypeID.Value)
	writeText(el, "TargetHref", r.TargetHref)
	writeText(el, "SubjectUniqueIdentifier", r.SubjectUniqueID)
	if r.Certificate != nil {
		writeText(el, "Certificate", base64.StdEncoding.EncodeToString(r.Certificate.Raw))
	}
	if err := r.Extension.WriteElement(el); err != nil {
		return nil, err
	}
	return el, nil
}

func (redirectCodec) Decode(el *etree.Element) (*smp.Redirect, error) {
	if el.Tag != elemRedirect {
		return nil, fmt.Errorf("unexpected element <%s>", el.Tag)
	}
	pid, err := readParticipant(el)
	if err != nil {
		return nil, err
	}
	docType, err := readDocumentType(el)
	if err != nil {
		return nil, err
	}
	r := &smp.Redirect{
		ServiceGroupID:  smp.ServiceGroupID(pid),
		ParticipantID:   pid,
		DocumentTypeID:  docType,
		TargetHref:      readText(el, "TargetHref"),
		SubjectUniqueID: readText(el, "SubjectUniqueIdentifier"),
	}
	if v := readText(el, "Certificate"); v != "" {
		der, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid redirect certificate: %w", err)
		}
		if r.Certificate, err = x509.ParseCertificate(der); err != nil {
			return nil, fmt.Errorf("invalid redirect certificate: %w", err)
		}
	}
	if r.Extension, err = extension.ReadElement(el); err != nil {
		return nil, err
	}
	return r, nil
}

// serviceInformationCodec stores service information with its process and
// endpoint tree in document order.
type serviceInformationCodec struct{}

func (serviceInformationCodec) ElementName() string { return elemServiceInformation }

func (serviceInformationCodec) ID(si *smp.ServiceInformation) string { return si.ID() }

func (serviceInformationCodec) Clone(si *smp.ServiceInformation) *smp.ServiceInformation {
	return si.Clone()
}

func (serviceInformationCodec) Encode(si *smp.ServiceInformation) (*etree.Element, error) {
	el := etree.NewElement(elemServiceInformation)
	writeIdentifier(el, elemParticipant, si.ParticipantID.Scheme, si.ParticipantID.Value)
	writeIdentifier(el, elemDocumentType, si.DocumentTypeID.Scheme, si.DocumentTypeID.Value)
	for _, p := range si.Processes {
		pel := el.CreateElement(elemProcess)
		writeIdentifier(pel, elemProcessID, p.ProcessID.Scheme, p.ProcessID.Value)
		for _, ep := range p.Endpoints {
			if err := encodeEndpoint(pel, ep); err != nil {
				return nil, err
			}
		}
		if err := p.Extension.WriteElement(pel); err != nil {
			return nil, err
		}
	}
	if err := si.Extension.WriteElement(el); err != nil {
		return nil, err
	}
	return el, nil
}

func encodeEndpoint(parent *etree.Element, ep *smp.Endpoint) error {
	el := parent.CreateElement(elemEndpoint)
	el.CreateAttr("transportProfile", ep.TransportProfile)
	writeText(el, "EndpointReference", ep.EndpointReference)
	el.CreateElement("RequireBusinessLevelSignature").SetText(strconv.FormatBool(ep.RequireBusinessLevelSignature))
	writeText(el, "MinimumAuthenticationLevel", ep.MinimumAuthenticationLevel)
	writeTime(el, "ServiceActivationDate", ep.ServiceActivation)
	writeTime(el, "ServiceExpirationDate", ep.ServiceExpiration)
	writeText(el, "Certificate", ep.Certificate)
	writeText(el, "ServiceDescription", ep.ServiceDescription)
	writeText(el, "TechnicalContactUrl", ep.TechnicalContactURL)
	writeText(el, "TechnicalInformationUrl", ep.TechnicalInformationURL)
	return ep.Extension.WriteElement(el)
}

func (serviceInformationCodec) Decode(el *etree.Element) (*smp.ServiceInformation, error) {
	if el.Tag != elemServiceInformation {
		return nil, fmt.Errorf("unexpected element <%s>", el.Tag)
	}
	pid, err := readParticipant(el)
	if err != nil {
		return nil, err
	}
	docType, err := readDocumentType(el)
	if err != nil {
		return nil, err
	}

	var processes []*smp.Process
	for _, pel := range el.SelectElements(elemProcess) {
		scheme, value, err := readIdentifier(pel, elemProcessID)
		if err != nil {
			return nil, err
		}
		var endpoints []*smp.Endpoint
		for _, eel := range pel.SelectElements(elemEndpoint) {
			ep, err := decodeEndpoint(eel)
			if err != nil {
				return nil, err
			}
			endpoints = append(endpoints, ep)
		}
		ext, err := extension.ReadElement(pel)
		if err != nil {
			return nil, err
		}
		p, err := smp.NewProcess(identifier.ProcessID{Scheme: scheme, Value: value}, endpoints, ext)
		if err != nil {
			return nil, err
		}
		processes = append(processes, p)
	}

	ext, err := extension.ReadElement(el)
	if err != nil {
		return nil, err
	}
	return smp.NewServiceInformation(smp.NewServiceGroup("", pid, extension.Extension{}), docType, processes, ext)
}

func decodeEndpoint(el *etree.Element) (*smp.Endpoint, error) {
	ep := &smp.Endpoint{
		TransportProfile:           el.SelectAttrValue("transportProfile", ""),
		EndpointReference:          readText(el, "EndpointReference"),
		MinimumAuthenticationLevel: readText(el, "MinimumAuthenticationLevel"),
		Certificate:                readText(el, "Certificate"),
		ServiceDescription:         readText(el, "ServiceDescription"),
		TechnicalContactURL:        readText(el, "TechnicalContactUrl"),
		TechnicalInformationURL:    readText(el, "TechnicalInformationUrl"),
	}
	var err error
	if v := readText(el, "RequireBusinessLevelSignature"); v != "" {
		if ep.RequireBusinessLevelSignature, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid RequireBusinessLevelSignature: %w", err)
		}
	}
	if ep.ServiceActivation, err = readTime(el, "ServiceActivationDate"); err != nil {
		return nil, err
	}
	if ep.ServiceExpiration, err = readTime(el, "ServiceExpirationDate"); err != nil {
		return nil, err
	}
	if ep.Extension, err = extension.ReadElement(el); err != nil {
		return nil, err
	}
	return ep, nil
}

// businessCardCodec stores a business card with all of its entities
type businessCardCodec struct{}

func (businessCardCodec) ElementName() string { return elemBusinessCard }

func (businessCardCodec) ID(bc *smp.BusinessCard) string { return bc.ID() }

func (businessCardCodec) Clone(bc *smp.BusinessCard) *smp.BusinessCard { return bc.Clone() }

func (businessCardCodec) Encode(bc *smp.BusinessCard) (*etree.Element, error) {
	el := etree.NewElement(elemBusinessCard)
	writeIdentifier(el, elemParticipant, bc.ParticipantID.Scheme, bc.ParticipantID.Value)
	for _, e := range bc.Entities {
		eel := el.CreateElement(elemEntity)
		if e.ID != "" {
			eel.CreateAttr("id", e.ID)
		}
		for _, n := range e.Names {
			nel := eel.CreateElement("Name")
			if n.Language != "" {
				nel.CreateAttr("language", n.Language)
			}
			nel.SetText(n.Name)
		}
		writeText(eel, "CountryCode", e.CountryCode)
		writeText(eel, "GeographicalInformation", e.GeographicalInformation)
		for _, id := range e.Identifiers {
			iel := eel.CreateElement("Identifier")
			if id.ID != "" {
				iel.CreateAttr("id", id.ID)
			}
			iel.CreateAttr(attrScheme, id.Scheme)
			iel.SetText(id.Value)
		}
		for _, uri := range e.WebsiteURIs {
			eel.CreateElement("WebsiteURI").SetText(uri)
		}
		for _, c := range e.Contacts {
			cel := eel.CreateElement("Contact")
			if c.ID != "" {
				cel.CreateAttr("id", c.ID)
			}
			writeText(cel, "Type", c.Type)
			writeText(cel, "Name", c.Name)
			writeText(cel, "PhoneNumber", c.PhoneNumber)
			writeText(cel, "Email", c.Email)
		}
		writeText(eel, "AdditionalInformation", e.AdditionalInformation)
		if e.RegistrationDate != nil {
			writeText(eel, "RegistrationDate", e.RegistrationDate.Format(time.DateOnly))
		}
	}
	return el, nil
}

func (businessCardCodec) Decode(el *etree.Element) (*smp.BusinessCard, error) {
	if el.Tag != elemBusinessCard {
		return nil, fmt.Errorf("unexpected element <%s>", el.Tag)
	}
	pid, err := readParticipant(el)
	if err != nil {
		return nil, err
	}

	bc := &smp.BusinessCard{ServiceGroupID: smp.ServiceGroupID(pid), ParticipantID: pid}
	for _, eel := range el.SelectElements(elemEntity) {
		e := smp.BusinessEntity{
			ID:                      eel.SelectAttrValue("id", ""),
			CountryCode:             readText(eel, "CountryCode"),
			GeographicalInformation: readText(eel, "GeographicalInformation"),
			AdditionalInformation:   readText(eel, "AdditionalInformation"),
		}
		for _, nel := range eel.SelectElements("Name") {
			e.Names = append(e.Names, smp.Name{Name: nel.Text(), Language: nel.SelectAttrValue("language", "")})
		}
		for _, iel := range eel.SelectElements("Identifier") {
			e.Identifiers = append(e.Identifiers, smp.EntityIdentifier{
				ID:     iel.SelectAttrValue("id", ""),
				Scheme: iel.SelectAttrValue(attrScheme, ""),
				Value:  iel.Text(),
			})
		}
		for _, uel := range eel.SelectElements("WebsiteURI") {
			e.WebsiteURIs = append(e.WebsiteURIs, uel.Text())
		}
		for _, cel := range eel.SelectElements("Contact") {
			e.Contacts = append(e.Contacts, smp.Contact{
				ID:          cel.SelectAttrValue("id", ""),
				Type:        readText(cel, "Type"),
				Name:        readText(cel, "Name"),
				PhoneNumber: readText(cel, "PhoneNumber"),
				Email:       readText(cel, "Email"),
			})
		}
		if v := readText(eel, "RegistrationDate"); v != "" {
			d, err := time.Parse(time.DateOnly, v)
			if err != nil {
				return nil, fmt.Errorf("invalid RegistrationDate: %w", err)
			}
			e.RegistrationDate = &d
		}
		bc.Entities = append(bc.Entities, e)
	}
	return bc, nil
}
