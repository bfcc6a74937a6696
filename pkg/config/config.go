package config

import (
	"net/url"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-keymanager/pkg/keymanager"
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// RemoteValidator is a key signed by an external web3signer.
type RemoteValidator struct {
	PublicKey string `yaml:"pubkey"`
	URL       string `yaml:"url"`
	ReadOnly  bool   `yaml:"read-only"`
}

// Config is the key manager configuration, read from YAML with KEYMANAGER_* env overrides.
type Config struct {
	KeysDir               string            `yaml:"keys-dir" env:"KEYMANAGER_KEYS_DIR" env-default:"./validator/keys"`
	PasswordsDir          string            `yaml:"passwords-dir" env:"KEYMANAGER_PASSWORDS_DIR" env-default:"./validator/passwords"`
	RemoteKeysDir         string            `yaml:"remote-keys-dir" env:"KEYMANAGER_REMOTE_KEYS_DIR" env-default:"./validator/remote-keys"`
	ReadOnlyKeysDirs      []string          `yaml:"read-only-keys-dirs" env:"KEYMANAGER_READ_ONLY_KEYS_DIRS" env-separator:","`
	SlashingProtectionDir string            `yaml:"slashing-protection-dir" env:"KEYMANAGER_SLASHING_PROTECTION_DIR" env-default:"./validator/slashprotection"`
	RemoteValidators      []RemoteValidator `yaml:"remote-validators"`
	DeletePolicy          string            `yaml:"delete-policy" env:"KEYMANAGER_DELETE_POLICY" env-default:"fail-open"`
	BeaconURL             string            `yaml:"beacon-url" env:"KEYMANAGER_BEACON_URL"`
	LogLevel              string            `yaml:"log-level" env:"KEYMANAGER_LOG_LEVEL" env-default:"info"`
	MetricsTextfile       string            `yaml:"metrics-textfile" env:"KEYMANAGER_METRICS_TEXTFILE"`
}

// Load reads path when given, otherwise only the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read config from environment")
	}

	return &cfg, nil
}

// Validate checks the settings the key manager cannot run without.
func (c *Config) Validate() error {
	if c.KeysDir == "" {
		return errors.New("keys-dir is required")
	}

	if c.PasswordsDir == "" {
		return errors.New("passwords-dir is required")
	}

	if c.SlashingProtectionDir == "" {
		return errors.New("slashing-protection-dir is required")
	}

	if _, err := keymanager.ParseDeletePolicy(c.DeletePolicy); err != nil {
		return err
	}

	seen := make(map[validator.PublicKey]struct{}, len(c.RemoteValidators))

	for i, rv := range c.RemoteValidators {
		pk, err := validator.PublicKeyFromHex(rv.PublicKey)
		if err != nil {
			return errors.Wrapf(err, "remote-validators[%d]: invalid pubkey", i)
		}

		if _, ok := seen[pk]; ok {
			return errors.Errorf("remote-validators[%d]: duplicate pubkey %s", i, pk)
		}

		seen[pk] = struct{}{}

		u, err := url.Parse(rv.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Errorf("remote-validators[%d]: invalid url %q", i, rv.URL)
		}
	}

	if c.BeaconURL != "" {
		if _, err := url.ParseRequestURI(c.BeaconURL); err != nil {
			return errors.Wrap(err, "invalid beacon-url")
		}
	}

	return nil
}
