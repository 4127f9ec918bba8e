package mongodb

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
	"go.mongodb.org/mongo-driver/bson"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

var docPID = identifier.ParticipantID{Scheme: "iso6523-actorid-upis", Value: "0088:5798000000001"}

// roundTrip marshals doc to BSON and back, as the driver does
func roundTrip[D any](t *testing.T, doc *D) *D {
	t.Helper()
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var out D
	require.NoError(t, bson.Unmarshal(raw, &out))
	return &out
}

func TestServiceGroupDocument(t *testing.T) {
	sg := smp.NewServiceGroup("owner-1", docPID, extension.MustParse(`<x:a xmlns:x="urn:x">1</x:a>`))

	doc := toServiceGroupDoc(sg)
	assert.Equal(t, sg.ID(), doc.ID)
	assert.Equal(t, "owner-1", doc.OwnerID)

	decoded, err := fromServiceGroupDoc(roundTrip(t, doc))
	require.NoError(t, err)
	assert.True(t, sg.Equal(decoded))
}

func TestServiceGroupDocument_BadExtension(t *testing.T) {
	_, err := fromServiceGroupDoc(&serviceGroupDoc{
		ID:          smp.ServiceGroupID(docPID),
		OwnerID:     "o",
		Participant: identifierDoc{Scheme: docPID.Scheme, Value: docPID.Value},
		Extension:   "[not json",
	})
	assert.ErrorIs(t, err, extension.ErrMalformed)
	assert.ErrorIs(t, err, smp.ErrValidation)
}

func TestRedirectDocument(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "other-smp"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	sg := smp.NewServiceGroup("owner", docPID, extension.Extension{})
	tests := []struct {
		name string
		cert *x509.Certificate
	}{
		{name: "with certificate", cert: cert},
		{name: "without certificate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := smp.NewRedirect(sg, identifier.DocumentTypeID{Scheme: "busdox-docid-qns", Value: "urn:doc"},
				"https://other.example.com", "CN=other-smp", tt.cert, extension.Extension{})
			require.NoError(t, err)

			decoded, err := fromRedirectDoc(roundTrip(t, toRedirectDoc(r)))
			require.NoError(t, err)
			assert.True(t, r.Equal(decoded))
		})
	}
}

func TestServiceInfoDocument(t *testing.T) {
	sg := smp.NewServiceGroup("owner", docPID, extension.Extension{})
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := smp.NewProcess(identifier.ProcessID{Scheme: "cenbii-procid-ubl", Value: "urn:proc"}, []*smp.Endpoint{
		{
			TransportProfile:  "peppol-transport-as4-v2_0",
			EndpointReference: "https://ap.example.com/as4",
			ServiceExpiration: &expires,
			Certificate:       "MIIB",
		},
		{
			TransportProfile:  "busdox-transport-as2-ver1p0",
			EndpointReference: "https://ap.example.com/as2",
		},
	}, extension.Extension{})
	require.NoError(t, err)
	si, err := smp.NewServiceInformation(sg, identifier.DocumentTypeID{Scheme: "busdox-docid-qns", Value: "urn:a::b"}, []*smp.Process{p}, extension.MustParse("<si/>"))
	require.NoError(t, err)

	doc := toServiceInfoDoc(si)
	assert.Equal(t, sg.ID(), doc.ServiceGroupID)
	require.Len(t, doc.Processes, 1)
	assert.Len(t, doc.Processes[0].Endpoints, 2)

	decoded, err := fromServiceInfoDoc(roundTrip(t, doc))
	require.NoError(t, err)
	assert.True(t, si.Equal(decoded))
	assert.Equal(t, 2, decoded.TotalEndpointCount())
}

func TestServiceInfoDocument_DuplicateEndpoint(t *testing.T) {
	doc := &serviceInfoDoc{
		ID:             "x",
		ServiceGroupID: smp.ServiceGroupID(docPID),
		Processes: []processDoc{{
			ProcessID: identifierDoc{Scheme: "s", Value: "p"},
			Endpoints: []endpointDoc{{TransportProfile: "tp"}, {TransportProfile: "tp"}},
		}},
	}
	_, err := fromServiceInfoDoc(doc)
	assert.ErrorIs(t, err, smp.ErrValidation)
}

func TestBusinessCardDocument(t *testing.T) {
	sg := smp.NewServiceGroup("owner", docPID, extension.Extension{})
	registered := time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)
	bc, err := smp.NewBusinessCard(sg, []smp.BusinessEntity{{
		Names:            []smp.Name{{Name: "Acme", Language: "en"}},
		CountryCode:      "DK",
		Identifiers:      []smp.EntityIdentifier{{Scheme: "DK:CVR", Value: "123"}},
		Contacts:         []smp.Contact{{Type: "sales", Email: "sales@acme.example.com"}},
		RegistrationDate: &registered,
	}})
	require.NoError(t, err)

	decoded, err := fromBusinessCardDoc(roundTrip(t, toBusinessCardDoc(bc)))
	require.NoError(t, err)
	assert.Equal(t, bc.ServiceGroupID, decoded.ServiceGroupID)
	require.Len(t, decoded.Entities, 1)
	assert.Equal(t, "Acme", decoded.Entities[0].Names[0].Name)
	assert.Equal(t, "123", decoded.Entities[0].Identifiers[0].Value)
	assert.True(t, registered.Equal(*decoded.Entities[0].RegistrationDate))
}
