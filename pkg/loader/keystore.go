package loader

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/v5/crypto/bls"
	keystorev4 "github.com/wealdtech/go-eth2-wallet-encryptor-keystorev4"

	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// Keystore is an EIP-2335 encrypted BLS key.
type Keystore struct {
	Crypto      map[string]any `json:"crypto"`
	Description string         `json:"description,omitempty"`
	Pubkey      string         `json:"pubkey"`
	Path        string         `json:"path"`
	UUID        string         `json:"uuid"`
	Version     uint           `json:"version"`
}

// ParseKeystore decodes keystore JSON without decrypting it.
func ParseKeystore(data []byte) (*Keystore, error) {
	ks := &Keystore{}
	if err := json.Unmarshal(data, ks); err != nil {
		return nil, errors.Wrap(err, "failed to parse keystore")
	}

	if ks.Version != 4 {
		return nil, errors.Errorf("unsupported keystore version %d", ks.Version)
	}

	if len(ks.Crypto) == 0 {
		return nil, errors.New("keystore has no crypto section")
	}

	if ks.Pubkey == "" {
		return nil, errors.New("keystore has no pubkey")
	}

	return ks, nil
}

// PublicKey returns the public key the keystore declares.
func (k *Keystore) PublicKey() (validator.PublicKey, error) {
	return validator.PublicKeyFromHex(k.Pubkey)
}

// Decrypt unlocks the keystore and checks the secret matches the declared public key.
func (k *Keystore) Decrypt(password string) (bls.SecretKey, error) {
	declared, err := k.PublicKey()
	if err != nil {
		return nil, err
	}

	raw, err := keystorev4.New().Decrypt(k.Crypto, password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt keystore")
	}

	secret, err := bls.SecretKeyFromBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, "keystore holds an invalid BLS secret key")
	}

	derived, err := validator.PublicKeyFromBytes(secret.PublicKey().Marshal())
	if err != nil {
		return nil, err
	}

	if derived != declared {
		return nil, errors.Errorf("keystore public key %s does not match decrypted key %s", declared, derived)
	}

	return secret, nil
}
