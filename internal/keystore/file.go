package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Config locates the PEM files of the SMP key material
type Config struct {
	// CertFile holds the SMP certificate, optionally followed by intermediates
	CertFile string
	KeyFile  string
	// CAFile holds the CAs that verify the SML server; optional
	CAFile string
	Logger *slog.Logger
}

// FileKeystore holds key material loaded from PEM files
type FileKeystore struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	material *KeyMaterial
	rootCAs  *x509.CertPool
	loadErr  error
}

// NewFileKeystore creates a keystore for the files in cfg. Nothing is read
// until Load is called.
func NewFileKeystore(cfg Config) *FileKeystore {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FileKeystore{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "keystore"),
		now:     time.Now,
		loadErr: ErrNotLoaded,
	}
}

// Load reads and checks the key material. On failure the previously loaded
// material is dropped and the keystore is invalid.
func (k *FileKeystore) Load(_ context.Context) error {
	material, rootCAs, err := k.load()

	k.mu.Lock()
	defer k.mu.Unlock()
	if err != nil {
		k.material, k.rootCAs, k.loadErr = nil, nil, err
		k.logger.Error("Loading SMP key material failed", "cert_file", k.cfg.CertFile, "error", err)
		return err
	}
	k.material, k.rootCAs, k.loadErr = material, rootCAs, nil
	k.logger.Info("SMP key material loaded",
		"subject", material.Certificate.Subject.String(),
		"not_after", material.Certificate.NotAfter)
	return nil
}

func (k *FileKeystore) load() (*KeyMaterial, *x509.CertPool, error) {
	if k.cfg.CertFile == "" || k.cfg.KeyFile == "" {
		return nil, nil, fmt.Errorf("%w: certificate and key file are required", ErrKeyNotFound)
	}

	keyPEM, err := os.ReadFile(k.cfg.KeyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrKeyNotFound, k.cfg.KeyFile)
		}
		return nil, nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing private key: %w", err)
	}

	certs, err := loadCertificates(k.cfg.CertFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading certificate: %w", err)
	}
	leaf := certs[0]

	if !publicKeysEqual(key.Public(), leaf.PublicKey) {
		return nil, nil, ErrKeyMismatch
	}
	now := k.now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return nil, nil, fmt.Errorf("%w: valid %s to %s", ErrCertificateExpired,
			leaf.NotBefore.Format(time.RFC3339), leaf.NotAfter.Format(time.RFC3339))
	}

	var rootCAs *x509.CertPool
	if k.cfg.CAFile != "" {
		rootCAs, err = LoadCertPool(k.cfg.CAFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading CA file: %w", err)
		}
	}

	return &KeyMaterial{Signer: key, Certificate: leaf, Chain: certs[1:]}, rootCAs, nil
}

// Valid reports whether key material is loaded
func (k *FileKeystore) Valid() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.material != nil
}

// Err returns why the key material is invalid, or nil
func (k *FileKeystore) Err() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.loadErr
}

// Material returns the loaded key material
func (k *FileKeystore) Material() (*KeyMaterial, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.material == nil {
		return nil, k.loadErr
	}
	return k.material, nil
}

// RootCAs returns the pool from the CA file, or nil for the system pool
func (k *FileKeystore) RootCAs() *x509.CertPool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.rootCAs
}

// ClientCertificate returns the key pair for a TLS handshake. It can be
// used as tls.Config.GetClientCertificate.
func (k *FileKeystore) ClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	m, err := k.Material()
	if err != nil {
		return nil, err
	}
	c := m.TLSCertificate()
	return &c, nil
}

// LoadCertificate reads the first certificate of a PEM file
func LoadCertificate(path string) (*x509.Certificate, error) {
	certs, err := loadCertificates(path)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// LoadCertPool reads a PEM file of CA certificates
func LoadCertPool(path string) (*x509.CertPool, error) {
	cas, err := loadCertificates(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	for _, ca := range cas {
		pool.AddCert(ca)
	}
	return pool, nil
}

// Info describes the loaded key
func (k *FileKeystore) Info() (KeyInfo, error) {
	m, err := k.Material()
	if err != nil {
		return KeyInfo{}, err
	}
	return infoOf(m.Certificate), nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key is not a signer")
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

// loadCertificates returns all certificates of a PEM file, leaf first
func loadCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found in %s", path)
	}
	return certs, nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	type equaler interface{ Equal(crypto.PublicKey) bool }
	ea, ok := a.(equaler)
	return ok && ea.Equal(b)
}

func determineAlgorithmFromKey(key crypto.Signer) string {
	switch key.(type) {
	case *ecdsa.PrivateKey:
		return "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	case ed25519.PrivateKey:
		return "http://www.w3.org/2021/04/xmldsig-more#eddsa-ed25519"
	default:
		return "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	}
}

func keyAlgorithmName(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return "EC"
	case *rsa.PublicKey:
		return "RSA"
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return "Unknown"
	}
}

func keySize(pub crypto.PublicKey) int {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case *rsa.PublicKey:
		return k.N.BitLen()
	case ed25519.PublicKey:
		return 256
	default:
		return 0
	}
}
