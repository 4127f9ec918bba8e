// Package keystore loads the key material of the SMP.
//
// The SMP has one key pair. Its certificate identifies the SMP towards the
// SML (as TLS client certificate) and is the certificate that signs
// published metadata. Keys and certificates are read from PEM files.
//
// Loading is explicit: [FileKeystore.Load] parses and checks the files and
// marks the key material valid. Until then, or after a failed load, the
// keystore reports it as invalid.
package keystore

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"time"
)

// Common errors
var (
	ErrKeyNotFound        = errors.New("SMP key not found")
	ErrNotLoaded          = errors.New("key material not loaded")
	ErrKeyMismatch        = errors.New("private key does not match certificate")
	ErrCertificateExpired = errors.New("SMP certificate is not valid at this time")
)

// KeyMaterial is the loaded key pair of the SMP
type KeyMaterial struct {
	Signer      crypto.Signer
	Certificate *x509.Certificate
	// Chain holds intermediate certificates following the leaf in the certificate file
	Chain []*x509.Certificate
}

// TLSCertificate returns the key pair as a TLS client certificate
func (m *KeyMaterial) TLSCertificate() tls.Certificate {
	c := tls.Certificate{
		Certificate: [][]byte{m.Certificate.Raw},
		PrivateKey:  m.Signer,
		Leaf:        m.Certificate,
	}
	for _, ca := range m.Chain {
		c.Certificate = append(c.Certificate, ca.Raw)
	}
	return c
}

// Algorithm returns the XML signature algorithm URI for the key
func (m *KeyMaterial) Algorithm() string {
	return determineAlgorithmFromKey(m.Signer)
}

// KeyInfo describes the SMP key
type KeyInfo struct {
	// Algorithm is the key algorithm (e.g., "RSA", "EC")
	Algorithm string

	// KeySize is the key size in bits
	KeySize int

	NotBefore time.Time
	NotAfter  time.Time

	Subject string
	Issuer  string
	Serial  string
}

func infoOf(cert *x509.Certificate) KeyInfo {
	return KeyInfo{
		Algorithm: keyAlgorithmName(cert.PublicKey),
		KeySize:   keySize(cert.PublicKey),
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
		Subject:   cert.Subject.String(),
		Issuer:    cert.Issuer.String(),
		Serial:    cert.SerialNumber.String(),
	}
}
