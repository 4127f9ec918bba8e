package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("SMP_TEST_MONGO_URI", "mongodb://db.example.com:27017")

	path := filepath.Join(t.TempDir(), "smp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
smp:
  id: SMP-TEST
  publicURL: https://smp.example.com
  backend: mongodb
storage:
  mongodb:
    uri: ${SMP_TEST_MONGO_URI}
    timeout: 3s
sml:
  enabled: true
  required: true
  managementURL: https://sml.example.com/manageparticipantidentifier
  dnsZone: sml.example.com
  maxRetries: 2
keystore:
  certFile: /etc/smp/smp.crt
  keyFile: /etc/smp/smp.key
logging:
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "SMP-TEST", cfg.SMP.ID)
	assert.Equal(t, "mongodb", cfg.SMP.Backend)
	assert.Equal(t, "peppol", cfg.SMP.IdentifierType)
	assert.Equal(t, "mongodb://db.example.com:27017", cfg.Storage.MongoDB.URI)
	assert.Equal(t, "smp", cfg.Storage.MongoDB.Database)
	assert.Equal(t, 3*time.Second, cfg.Storage.MongoDB.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Storage.CompensationTimeout)
	assert.True(t, cfg.SML.Enabled)
	assert.Equal(t, 2, cfg.SML.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.SML.RequestTimeout)
	assert.Equal(t, 2.0, cfg.SML.RetryMultiplier)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "minimal xml",
			yaml: "storage:\n  xml:\n    dir: /tmp/smp\n",
		},
		{
			name:    "xml without dir",
			yaml:    "smp:\n  backend: xml\n",
			wantErr: "storage.xml.dir",
		},
		{
			name:    "mongodb without uri",
			yaml:    "smp:\n  backend: mongodb\n",
			wantErr: "storage.mongodb.uri",
		},
		{
			name:    "unknown backend",
			yaml:    "smp:\n  backend: sql\n",
			wantErr: "smp.backend",
		},
		{
			name:    "unknown identifier type",
			yaml:    "smp:\n  identifierType: oasis\nstorage:\n  xml:\n    dir: /tmp/smp\n",
			wantErr: "smp.identifierType",
		},
		{
			name:    "sml required but disabled",
			yaml:    "storage:\n  xml:\n    dir: /tmp/smp\nsml:\n  required: true\n",
			wantErr: "sml.enabled",
		},
		{
			name:    "sml enabled without url",
			yaml:    "smp:\n  id: SMP\nstorage:\n  xml:\n    dir: /tmp/smp\nsml:\n  enabled: true\n",
			wantErr: "sml.managementURL",
		},
		{
			name:    "sml enabled without keys",
			yaml:    "smp:\n  id: SMP\nstorage:\n  xml:\n    dir: /tmp/smp\nsml:\n  enabled: true\n  managementURL: https://sml\n",
			wantErr: "keystore",
		},
		{
			name:    "sml enabled without smp id",
			yaml:    "storage:\n  xml:\n    dir: /tmp/smp\nsml:\n  enabled: true\n",
			wantErr: "smp.id",
		},
		{
			name:    "negative retries",
			yaml:    "storage:\n  xml:\n    dir: /tmp/smp\nsml:\n  maxRetries: -1\n",
			wantErr: "sml.maxRetries",
		},
		{
			name:    "bad log level",
			yaml:    "storage:\n  xml:\n    dir: /tmp/smp\nlogging:\n  level: trace\n",
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			yaml:    "storage:\n  xml:\n    dir: /tmp/smp\nlogging:\n  format: xml\n",
			wantErr: "logging.format",
		},
		{
			name:    "malformed yaml",
			yaml:    "smp: [",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "xml", cfg.SMP.Backend)
			assert.Equal(t, 100, cfg.Storage.XML.SnapshotEvery)
		})
	}
}
