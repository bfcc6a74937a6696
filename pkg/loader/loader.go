package loader

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/v5/crypto/bls"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-keymanager/pkg/keymanager"
	"github.com/ethpandaops/validator-keymanager/pkg/logging"
	"github.com/ethpandaops/validator-keymanager/pkg/signer"
	"github.com/ethpandaops/validator-keymanager/pkg/slashing"
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

const (
	keystoreExtension = ".json"
	passwordExtension = ".txt"
)

// RemoteValidator is a remote-signed key provisioned through configuration.
type RemoteValidator struct {
	PublicKey string
	URL       string
	ReadOnly  bool
}

// Config describes where the loader finds and stores keys.
type Config struct {
	// KeysDir holds keystores this process owns and may delete.
	KeysDir string
	// PasswordsDir holds one password file per keystore in KeysDir.
	PasswordsDir string
	// RemoteKeysDir persists remote keys added at runtime.
	RemoteKeysDir string
	// ReadOnlyKeysDirs hold externally provisioned keystores, each next to a same-named .txt password file.
	ReadOnlyKeysDirs []string
	// SlashingProtectionDir holds one signing record per key.
	SlashingProtectionDir string
	// GenesisValidatorsRoot rejects slashing protection imports for another network when set.
	GenesisValidatorsRoot string
	RemoteValidators      []RemoteValidator
}

type remoteKeyFile struct {
	PublicKey validator.PublicKey `json:"pubkey"`
	URL       string              `json:"url"`
}

// Loader keeps validators on disk and in an in-memory registry.
type Loader struct {
	mu sync.Mutex

	cfg      Config
	owned    *validator.OwnedValidators
	mutable  map[validator.PublicKey]signer.Kind
	importer *slashing.Importer
	log      *logrus.Entry
}

// New returns a Loader with no validators. Call LoadExisting to read cfg's directories.
func New(cfg Config) *Loader {
	var opts []slashing.ImporterOption
	if cfg.GenesisValidatorsRoot != "" {
		opts = append(opts, slashing.WithNetworkGenesisValidatorsRoot(cfg.GenesisValidatorsRoot))
	}

	return &Loader{
		cfg:      cfg,
		owned:    validator.NewOwnedValidators(),
		mutable:  make(map[validator.PublicKey]signer.Kind),
		importer: slashing.NewImporter(slashing.NewStore(cfg.SlashingProtectionDir), opts...),
		log:      logging.WithComponent("loader"),
	}
}

// OwnedValidators returns a snapshot of the loaded validators.
func (l *Loader) OwnedValidators() *validator.OwnedValidators {
	return l.owned.Snapshot()
}

// LoadExisting loads every keystore and remote key already on disk or in configuration.
func (l *Loader) LoadExisting() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.KeysDir != "" {
		err := l.loadKeystoreDir(l.cfg.KeysDir, func(path string) string {
			return filepath.Join(l.cfg.PasswordsDir, strings.TrimSuffix(filepath.Base(path), keystoreExtension)+passwordExtension)
		}, false)
		if err != nil {
			return err
		}
	}

	for _, dir := range l.cfg.ReadOnlyKeysDirs {
		err := l.loadKeystoreDir(dir, func(path string) string {
			return strings.TrimSuffix(path, keystoreExtension) + passwordExtension
		}, true)
		if err != nil {
			return err
		}
	}

	for _, rv := range l.cfg.RemoteValidators {
		pk, err := validator.PublicKeyFromHex(rv.PublicKey)
		if err != nil {
			return errors.Wrap(err, "invalid remote validator")
		}

		if err := l.addRemote(pk, rv.URL, rv.ReadOnly); err != nil {
			return err
		}
	}

	if err := l.loadRemoteKeysDir(); err != nil {
		return err
	}

	l.log.WithField("validators", l.owned.Len()).Info("Loaded validators")

	return nil
}

// LoadLocalMutableValidator decrypts keystore, seeds its slashing protection
// history, persists it and registers it.
func (l *Loader) LoadLocalMutableValidator(keystore, password string, slashingProtection *slashing.Interchange) keymanager.PostKeyResult {
	ks, err := ParseKeystore([]byte(keystore))
	if err != nil {
		return keymanager.ImportError(err.Error())
	}

	pk, err := ks.PublicKey()
	if err != nil {
		return keymanager.ImportError(err.Error())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owned.Has(pk) {
		return keymanager.ImportDuplicate()
	}

	log := l.log.WithField("pubkey", pk.String())

	secret, err := ks.Decrypt(password)
	if err != nil {
		log.Warnf("Unable to decrypt keystore: %v", err)

		return keymanager.ImportError(err.Error())
	}

	if err := l.importer.Import(pk, slashingProtection); err != nil {
		log.Errorf("Failed to import slashing protection: %v", err)

		return keymanager.ImportError(err.Error())
	}

	if err := l.writeKeystore(pk, keystore, password); err != nil {
		log.Errorf("Failed to store keystore: %v", err)

		return keymanager.ImportError(err.Error())
	}

	if err := l.owned.Add(validator.New(pk, signer.NewLocal(secret), false)); err != nil {
		return keymanager.ImportError(err.Error())
	}

	l.mutable[pk] = signer.KindLocal

	log.Info("Imported local validator")

	return keymanager.ImportSuccess()
}

// DeleteLocalMutableValidator removes the keystore and password files of pk and unregisters it.
// Slashing protection history is left in place.
func (l *Loader) DeleteLocalMutableValidator(pk validator.PublicKey) keymanager.DeleteKeyResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.owned.Has(pk) {
		return keymanager.DeleteNotFound()
	}

	if l.mutable[pk] != signer.KindLocal {
		return keymanager.DeleteError(fmt.Sprintf("Validator %s is not a locally stored mutable validator", pk))
	}

	for _, path := range []string{l.keystorePath(pk), l.passwordPath(pk)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			l.log.WithField("pubkey", pk.String()).Errorf("Failed to remove %s: %v", path, err)

			return keymanager.DeleteError(fmt.Sprintf("Failed to delete %s: %v", path, err))
		}
	}

	l.owned.Remove(pk)
	delete(l.mutable, pk)

	l.log.WithField("pubkey", pk.String()).Info("Deleted local validator")

	return keymanager.DeleteSuccess()
}

// LoadExternalValidator registers pk as signed by the web3signer at u and persists it.
func (l *Loader) LoadExternalValidator(pk validator.PublicKey, u *url.URL) keymanager.PostKeyResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owned.Has(pk) {
		return keymanager.ImportDuplicate()
	}

	if l.cfg.RemoteKeysDir != "" {
		data, err := json.Marshal(remoteKeyFile{PublicKey: pk, URL: u.String()})
		if err != nil {
			return keymanager.ImportError(err.Error())
		}

		if err := writeFile(l.remoteKeyPath(pk), data); err != nil {
			return keymanager.ImportError(err.Error())
		}
	}

	if err := l.owned.Add(validator.New(pk, signer.NewRemote(pk[:], u, nil), false)); err != nil {
		return keymanager.ImportError(err.Error())
	}

	l.mutable[pk] = signer.KindRemote

	l.log.WithFields(logrus.Fields{
		"pubkey": pk.String(),
		"url":    u.String(),
	}).Info("Imported remote validator")

	return keymanager.ImportSuccess()
}

// IsMutableExternalValidator reports whether pk is a remote key added at
// runtime or restored from the remote keys directory.
func (l *Loader) IsMutableExternalValidator(pk validator.PublicKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.owned.Has(pk) && l.mutable[pk] == signer.KindRemote
}

// DeleteExternalValidator unregisters a remote key added at runtime.
func (l *Loader) DeleteExternalValidator(pk validator.PublicKey) keymanager.DeleteKeyResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.owned.Has(pk) {
		return keymanager.DeleteNotFound()
	}

	if l.mutable[pk] != signer.KindRemote {
		return keymanager.DeleteError(fmt.Sprintf("Validator %s is not a mutable remote validator", pk))
	}

	if l.cfg.RemoteKeysDir != "" {
		if err := os.Remove(l.remoteKeyPath(pk)); err != nil && !os.IsNotExist(err) {
			return keymanager.DeleteError(fmt.Sprintf("Failed to delete %s: %v", l.remoteKeyPath(pk), err))
		}
	}

	l.owned.Remove(pk)
	delete(l.mutable, pk)

	l.log.WithField("pubkey", pk.String()).Info("Deleted remote validator")

	return keymanager.DeleteSuccess()
}

func (l *Loader) loadKeystoreDir(dir string, passwordFor func(path string) string, readOnly bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrapf(err, "failed to read keystore directory %s", dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != keystoreExtension {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		if err := l.loadKeystoreFile(path, passwordFor(path), readOnly); err != nil {
			return errors.Wrapf(err, "failed to load keystore %s", path)
		}
	}

	return nil
}

func (l *Loader) loadKeystoreFile(path, passwordPath string, readOnly bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	password, err := os.ReadFile(passwordPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read password file %s", passwordPath)
	}

	ks, err := ParseKeystore(data)
	if err != nil {
		return err
	}

	secret, err := decryptWithStoredPassword(ks, string(password))
	if err != nil {
		return err
	}

	pk, err := ks.PublicKey()
	if err != nil {
		return err
	}

	if err := l.owned.Add(validator.New(pk, signer.NewLocal(secret), readOnly)); err != nil {
		return err
	}

	if !readOnly {
		l.mutable[pk] = signer.KindLocal
	}

	return nil
}

// decryptWithStoredPassword tries the password file contents as written, then
// with trailing line endings removed for hand-written files.
func decryptWithStoredPassword(ks *Keystore, password string) (bls.SecretKey, error) {
	secret, err := ks.Decrypt(password)
	if err == nil {
		return secret, nil
	}

	trimmed := strings.TrimRight(password, "\r\n")
	if trimmed == password {
		return nil, err
	}

	return ks.Decrypt(trimmed)
}

func (l *Loader) loadRemoteKeysDir() error {
	if l.cfg.RemoteKeysDir == "" {
		return nil
	}

	entries, err := os.ReadDir(l.cfg.RemoteKeysDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrapf(err, "failed to read remote keys directory %s", l.cfg.RemoteKeysDir)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != keystoreExtension {
			continue
		}

		path := filepath.Join(l.cfg.RemoteKeysDir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read remote key %s", path)
		}

		var rk remoteKeyFile
		if err := json.Unmarshal(data, &rk); err != nil {
			return errors.Wrapf(err, "failed to parse remote key %s", path)
		}

		if err := l.addRemote(rk.PublicKey, rk.URL, false); err != nil {
			return err
		}

		l.mutable[rk.PublicKey] = signer.KindRemote
	}

	return nil
}

func (l *Loader) addRemote(pk validator.PublicKey, rawURL string, readOnly bool) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return errors.Errorf("invalid remote signer url %q for %s", rawURL, pk)
	}

	return l.owned.Add(validator.New(pk, signer.NewRemote(pk[:], u, nil), readOnly))
}

func (l *Loader) writeKeystore(pk validator.PublicKey, keystore, password string) error {
	if err := writeFile(l.keystorePath(pk), []byte(keystore)); err != nil {
		return err
	}

	if err := writeFile(l.passwordPath(pk), []byte(password)); err != nil {
		os.Remove(l.keystorePath(pk))

		return err
	}

	return nil
}

func (l *Loader) keystorePath(pk validator.PublicKey) string {
	return filepath.Join(l.cfg.KeysDir, pk.Unprefixed()+keystoreExtension)
}

func (l *Loader) passwordPath(pk validator.PublicKey) string {
	return filepath.Join(l.cfg.PasswordsDir, pk.Unprefixed()+passwordExtension)
}

func (l *Loader) remoteKeyPath(pk validator.PublicKey) string {
	return filepath.Join(l.cfg.RemoteKeysDir, pk.Unprefixed()+keystoreExtension)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	return nil
}
