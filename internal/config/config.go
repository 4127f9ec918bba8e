// Package config handles configuration loading for the SMP registry.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows credentials such
// as the MongoDB URI to be injected at runtime.
//
// # Configuration Sections
//
//   - smp: identity of this SMP, identifier scheme and storage backend
//   - storage: XML directory or MongoDB connection
//   - sml: SML registration and the DNS zone used to check it
//   - keystore: PEM files of the SMP key pair
//   - logging: log level and format
//   - metrics: Prometheus endpoint
//
// # Example Configuration
//
//	smp:
//	  id: SMP-EXAMPLE
//	  publicURL: https://smp.example.com
//	  identifierType: peppol
//	  backend: xml
//
//	storage:
//	  xml:
//	    dir: /var/lib/smp
//
//	sml:
//	  enabled: true
//	  managementURL: https://acc.edelivery.tech.ec.europa.eu/edelivery-sml/manageparticipantidentifier
//	  dnsZone: acc.edelivery.tech.ec.europa.eu
//
//	keystore:
//	  certFile: /etc/smp/smp.crt
//	  keyFile: ${SMP_KEY_FILE}
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	SMP      SMPConfig      `yaml:"smp"`
	Storage  StorageConfig  `yaml:"storage"`
	SML      SMLConfig      `yaml:"sml"`
	Keystore KeystoreConfig `yaml:"keystore"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SMPConfig identifies this SMP
type SMPConfig struct {
	// ID is the SMP ID registered in the SML
	ID string `yaml:"id"`
	// PublicURL is the URL participants resolve to in the SML DNS zone
	PublicURL string `yaml:"publicURL"`
	// IdentifierType selects the identifier rules: "peppol" or "simple"
	IdentifierType string `yaml:"identifierType"`
	// Backend is "xml" or "mongodb"
	Backend string `yaml:"backend"`
}

// StorageConfig holds the settings of both backends
type StorageConfig struct {
	XML     XMLConfig     `yaml:"xml"`
	MongoDB MongoDBConfig `yaml:"mongodb"`
	// CompensationTimeout bounds undo calls to the SML
	CompensationTimeout time.Duration `yaml:"compensationTimeout"`
}

// XMLConfig holds XML file backend settings
type XMLConfig struct {
	Dir           string `yaml:"dir"`
	SnapshotEvery int    `yaml:"snapshotEvery"`
	Sync          bool   `yaml:"sync"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SMLConfig holds SML settings
type SMLConfig struct {
	// Enabled turns on registration of service groups in the SML
	Enabled bool `yaml:"enabled"`
	// Required refuses to start with SML registration disabled
	Required      bool   `yaml:"required"`
	ManagementURL string `yaml:"managementURL"`
	// DNSZone is the SML zone queried by check-dns
	DNSZone string `yaml:"dnsZone"`
	// DNSServer overrides the system resolver, host:port
	DNSServer string `yaml:"dnsServer"`

	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	MaxRetries      int           `yaml:"maxRetries"`
	RetryInterval   time.Duration `yaml:"retryInterval"`
	RetryMultiplier float64       `yaml:"retryMultiplier"`
}

// KeystoreConfig locates the SMP key pair
type KeystoreConfig struct {
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
	CAFile   string `yaml:"caFile"`
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML data
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SMP.IdentifierType == "" {
		c.SMP.IdentifierType = "peppol"
	}
	if c.SMP.Backend == "" {
		c.SMP.Backend = "xml"
	}
	if c.Storage.XML.SnapshotEvery == 0 {
		c.Storage.XML.SnapshotEvery = 100
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "smp"
	}
	if c.Storage.MongoDB.Timeout == 0 {
		c.Storage.MongoDB.Timeout = 10 * time.Second
	}
	if c.Storage.CompensationTimeout == 0 {
		c.Storage.CompensationTimeout = 30 * time.Second
	}
	if c.SML.ConnectTimeout == 0 {
		c.SML.ConnectTimeout = 5 * time.Second
	}
	if c.SML.RequestTimeout == 0 {
		c.SML.RequestTimeout = 30 * time.Second
	}
	if c.SML.RetryInterval == 0 {
		c.SML.RetryInterval = time.Second
	}
	if c.SML.RetryMultiplier == 0 {
		c.SML.RetryMultiplier = 2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	switch c.SMP.IdentifierType {
	case "peppol", "simple":
	default:
		return fmt.Errorf("smp.identifierType must be 'peppol' or 'simple', got '%s'", c.SMP.IdentifierType)
	}

	switch c.SMP.Backend {
	case "xml":
		if c.Storage.XML.Dir == "" {
			return fmt.Errorf("storage.xml.dir is required when backend is 'xml'")
		}
	case "mongodb":
		if c.Storage.MongoDB.URI == "" {
			return fmt.Errorf("storage.mongodb.uri is required when backend is 'mongodb'")
		}
	default:
		return fmt.Errorf("smp.backend must be 'xml' or 'mongodb', got '%s'", c.SMP.Backend)
	}

	if c.SML.Required && !c.SML.Enabled {
		return fmt.Errorf("sml.enabled must be set when sml.required is set")
	}
	if c.SML.Enabled {
		if c.SMP.ID == "" {
			return fmt.Errorf("smp.id is required when SML is enabled")
		}
		if c.SML.ManagementURL == "" {
			return fmt.Errorf("sml.managementURL is required when SML is enabled")
		}
		if c.Keystore.CertFile == "" || c.Keystore.KeyFile == "" {
			return fmt.Errorf("keystore.certFile and keystore.keyFile are required when SML is enabled")
		}
	}
	if c.SML.MaxRetries < 0 {
		return fmt.Errorf("sml.maxRetries must not be negative")
	}
	if c.SML.RetryMultiplier < 1 {
		return fmt.Errorf("sml.retryMultiplier must be at least 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn' or 'error', got '%s'", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", c.Logging.Format)
	}

	return nil
}
