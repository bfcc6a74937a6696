package keymanager

import (
	"net/url"

	"github.com/ethpandaops/validator-keymanager/pkg/slashing"
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// Loader owns validator storage and the set of loaded validators.
type Loader interface {
	// LoadLocalMutableValidator decrypts keystore, seeds its slashing protection
	// history from slashingProtection when given, and registers the key.
	LoadLocalMutableValidator(keystore, password string, slashingProtection *slashing.Interchange) PostKeyResult
	// DeleteLocalMutableValidator removes a locally stored key and unregisters it.
	DeleteLocalMutableValidator(pk validator.PublicKey) DeleteKeyResult
	// LoadExternalValidator registers a key held by the remote signer at u.
	LoadExternalValidator(pk validator.PublicKey, u *url.URL) PostKeyResult
	// DeleteExternalValidator unregisters a remote-signed key.
	DeleteExternalValidator(pk validator.PublicKey) DeleteKeyResult
	// IsMutableExternalValidator reports whether pk is a remote-signed key
	// added at runtime, and so may be deleted.
	IsMutableExternalValidator(pk validator.PublicKey) bool
	// OwnedValidators returns a snapshot of the loaded validators.
	OwnedValidators() *validator.OwnedValidators
}

// Notifier is told when newly imported validators need duties scheduled.
type Notifier interface {
	OnValidatorsAdded()
}

// Exporter accumulates slashing protection history for a batch of deleted keys.
type Exporter interface {
	AddPublicKeyToExport(pk validator.PublicKey) error
	HaveSlashingProtectionData(pk validator.PublicKey) bool
	Finalize() (string, error)
}

// ExporterFactory builds a fresh Exporter reading history from slashingProtectionDir.
type ExporterFactory func(slashingProtectionDir string) Exporter

func defaultExporterFactory(slashingProtectionDir string) Exporter {
	return slashing.NewIncrementalExporter(slashingProtectionDir)
}
