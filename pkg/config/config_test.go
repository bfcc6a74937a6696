package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPubkey = "0x" + strings.Repeat("ab", 48)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
keys-dir: /data/keys
passwords-dir: /data/passwords
slashing-protection-dir: /data/slashprotection
read-only-keys-dirs:
  - /data/external
delete-policy: fail-closed
remote-validators:
  - pubkey: ` + testPubkey + `
    url: http://web3signer:9000
    read-only: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/keys", cfg.KeysDir)
	assert.Equal(t, "/data/passwords", cfg.PasswordsDir)
	assert.Equal(t, "/data/slashprotection", cfg.SlashingProtectionDir)
	assert.Equal(t, []string{"/data/external"}, cfg.ReadOnlyKeysDirs)
	assert.Equal(t, "fail-closed", cfg.DeletePolicy)
	assert.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.RemoteValidators, 1)
	assert.True(t, cfg.RemoteValidators[0].ReadOnly)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			KeysDir:               "keys",
			PasswordsDir:          "passwords",
			SlashingProtectionDir: "slashprotection",
			DeletePolicy:          "fail-open",
		}
	}

	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:        "missing keys dir",
			mutate:      func(c *Config) { c.KeysDir = "" },
			expectError: "keys-dir is required",
		},
		{
			name:        "missing slashing protection dir",
			mutate:      func(c *Config) { c.SlashingProtectionDir = "" },
			expectError: "slashing-protection-dir is required",
		},
		{
			name:        "unknown delete policy",
			mutate:      func(c *Config) { c.DeletePolicy = "sometimes" },
			expectError: "unknown delete policy",
		},
		{
			name: "invalid remote pubkey",
			mutate: func(c *Config) {
				c.RemoteValidators = []RemoteValidator{{PublicKey: "0x1234", URL: "http://signer"}}
			},
			expectError: "invalid pubkey",
		},
		{
			name: "duplicate remote pubkey",
			mutate: func(c *Config) {
				c.RemoteValidators = []RemoteValidator{
					{PublicKey: testPubkey, URL: "http://signer"},
					{PublicKey: testPubkey, URL: "http://other"},
				}
			},
			expectError: "duplicate pubkey",
		},
		{
			name: "invalid remote url",
			mutate: func(c *Config) {
				c.RemoteValidators = []RemoteValidator{{PublicKey: testPubkey, URL: "ftp://signer"}}
			},
			expectError: "invalid url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
			}
		})
	}
}
