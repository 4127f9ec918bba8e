package sml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// SOAP and BDMSL namespaces
const (
	nsSOAP        = "http://schemas.xmlsoap.org/soap/envelope/"
	nsAddressing  = "http://www.w3.org/2005/08/addressing"
	nsManage      = "http://busdox.org/serviceMetadata/ManageParticipantIdentifierService/1.0/"
	nsIdentifiers = "http://busdox.org/transport/identifiers/1.0/"
)

// Participant management operations
const (
	opCreate = "create"
	opDelete = "delete"
)

var operationElement = map[string]string{
	opCreate: "CreateParticipantIdentifier",
	opDelete: "DeleteParticipantIdentifier",
}

// soapAction returns the SOAPAction header of an operation
func soapAction(op string) string {
	return nsManage + ":" + op + "In"
}

// buildRequest builds the SOAP 1.1 envelope of a participant operation
func buildRequest(op, messageID, smpID string, pid identifier.ParticipantID) ([]byte, error) {
	name, ok := operationElement[op]
	if !ok {
		return nil, fmt.Errorf("unknown SML operation %q", op)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", nsSOAP)
	env.CreateAttr("xmlns:wsa", nsAddressing)
	env.CreateAttr("xmlns:lrs", nsManage)
	env.CreateAttr("xmlns:ids", nsIdentifiers)

	header := env.CreateElement("soap:Header")
	header.CreateElement("wsa:MessageID").SetText("urn:uuid:" + messageID)
	header.CreateElement("wsa:Action").SetText(soapAction(op))

	body := env.CreateElement("soap:Body")
	req := body.CreateElement("lrs:" + name)
	pidEl := req.CreateElement("ids:ParticipantIdentifier")
	pidEl.CreateAttr("scheme", pid.Scheme)
	pidEl.SetText(pid.Value)
	req.CreateElement("lrs:ServiceMetadataPublisherID").SetText(smpID)

	return doc.WriteToBytes()
}

// parseResponse returns nil for a successful response, or the fault of a
// failed one
func parseResponse(data []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("parsing SML response: %w", err)
	}

	body := doc.FindElement("//*[local-name()='Body']")
	if body == nil {
		return errors.New("SML response has no SOAP body")
	}
	fault := body.FindElement("./*[local-name()='Fault']")
	if fault == nil {
		return nil
	}
	return parseFault(fault)
}

func parseFault(fault *etree.Element) *Fault {
	f := &Fault{}
	if s := fault.FindElement("./faultstring"); s != nil {
		f.Message = strings.TrimSpace(s.Text())
	}

	var detailMessage string
	if detail := fault.FindElement("./detail"); detail != nil {
		if children := detail.ChildElements(); len(children) > 0 {
			f.Code = children[0].Tag
			if m := children[0].FindElement(".//*[local-name()='ErrorMessage']"); m != nil {
				detailMessage = strings.TrimSpace(m.Text())
			}
		}
	}
	if f.Message == "" {
		f.Message = detailMessage
	}

	f.kind = classify(f.Code, f.Message+" "+detailMessage)
	return f
}

// classify maps a BDMSL fault onto an error kind. BDMSL reports an
// existing participant as a bad request.
func classify(code, message string) error {
	lower := strings.ToLower(message)
	switch code {
	case "NotFoundFault":
		return ErrNotRegistered
	case "UnauthorizedFault":
		return ErrUnauthorized
	case "InternalErrorFault":
		return ErrTransient
	case "BadRequestFault":
		if strings.Contains(lower, "already exist") || strings.Contains(lower, "already registered") {
			return ErrAlreadyRegistered
		}
		return ErrBadRequest
	}
	switch {
	case strings.Contains(lower, "already exist"):
		return ErrAlreadyRegistered
	case strings.Contains(lower, "not found"):
		return ErrNotRegistered
	}
	return ErrBadRequest
}
