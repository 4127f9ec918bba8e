package xmlfile

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

var codecPID = identifier.ParticipantID{Scheme: "iso6523-actorid-upis", Value: "0088:123"}

func selfSigned(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "smp.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestServiceInformationCodec(t *testing.T) {
	sg := smp.NewServiceGroup("owner", codecPID, extension.Extension{})
	activation := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := smp.NewProcess(identifier.ProcessID{Scheme: "cenbii-procid-ubl", Value: "urn:proc"}, []*smp.Endpoint{{
		TransportProfile:              "peppol-transport-as4-v2_0",
		EndpointReference:             "https://ap.example.com/as4",
		RequireBusinessLevelSignature: true,
		ServiceActivation:             &activation,
		Certificate:                   "MIIB",
		TechnicalContactURL:           "mailto:ops@example.com",
		Extension:                     extension.MustParse(`<ep xmlns="urn:x">1</ep>`),
	}}, extension.MustParse("<proc/>"))
	require.NoError(t, err)
	si, err := smp.NewServiceInformation(sg, identifier.DocumentTypeID{Scheme: "busdox-docid-qns", Value: "urn:a::b"}, []*smp.Process{p}, extension.MustParse("<si/>"))
	require.NoError(t, err)

	codec := serviceInformationCodec{}
	el, err := codec.Encode(si)
	require.NoError(t, err)
	decoded, err := codec.Decode(el)
	require.NoError(t, err)

	assert.True(t, si.Equal(decoded), "decoded service information differs")
	assert.Equal(t, si.ID(), decoded.ID())
}

func TestRedirectCodec(t *testing.T) {
	sg := smp.NewServiceGroup("owner", codecPID, extension.Extension{})
	r, err := smp.NewRedirect(sg, identifier.DocumentTypeID{Scheme: "busdox-docid-qns", Value: "urn:doc"},
		"https://other.example.com", "CN=other", selfSigned(t), extension.MustParse("<r/>"))
	require.NoError(t, err)

	codec := redirectCodec{}
	el, err := codec.Encode(r)
	require.NoError(t, err)
	decoded, err := codec.Decode(el)
	require.NoError(t, err)
	assert.True(t, r.Equal(decoded))
	assert.Equal(t, "smp.example.com", decoded.Certificate.Subject.CommonName)
}

func TestBusinessCardCodec(t *testing.T) {
	sg := smp.NewServiceGroup("owner", codecPID, extension.Extension{})
	registered := time.Date(2020, 5, 17, 0, 0, 0, 0, time.UTC)
	bc, err := smp.NewBusinessCard(sg, []smp.BusinessEntity{{
		ID:               "e1",
		Names:            []smp.Name{{Name: "Acme", Language: "en"}, {Name: "Akme"}},
		CountryCode:      "SE",
		Identifiers:      []smp.EntityIdentifier{{Scheme: "VAT", Value: "SE123"}},
		WebsiteURIs:      []string{"https://acme.example.com"},
		Contacts:         []smp.Contact{{Type: "support", Email: "help@acme.example.com"}},
		RegistrationDate: &registered,
	}})
	require.NoError(t, err)

	codec := businessCardCodec{}
	el, err := codec.Encode(bc)
	require.NoError(t, err)
	decoded, err := codec.Decode(el)
	require.NoError(t, err)
	assert.Equal(t, bc, decoded)
}

func TestCodecRejectsWrongElement(t *testing.T) {
	el, err := serviceGroupCodec{}.Encode(smp.NewServiceGroup("o", codecPID, extension.Extension{}))
	require.NoError(t, err)

	_, err = redirectCodec{}.Decode(el)
	assert.Error(t, err)
	_, err = businessCardCodec{}.Decode(el)
	assert.Error(t, err)

	sg, err := serviceGroupCodec{}.Decode(el)
	require.NoError(t, err)
	assert.Equal(t, "o", sg.OwnerID)
}
