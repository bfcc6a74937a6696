package validator

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	fieldparams "github.com/prysmaticlabs/prysm/v5/config/fieldparams"
)

// PublicKey is a compressed BLS12-381 validator public key.
type PublicKey [fieldparams.BLSPubkeyLength]byte

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey

	if len(b) != len(pk) {
		return pk, errors.Errorf("invalid public key length: expected %d, got %d", len(pk), len(b))
	}

	copy(pk[:], b)

	return pk, nil
}

// PublicKeyFromHex parses a hex encoded public key, with or without the 0x prefix.
func PublicKeyFromHex(s string) (PublicKey, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return PublicKey{}, errors.Wrapf(err, "invalid public key %q", s)
	}

	return PublicKeyFromBytes(b)
}

// String returns the 0x prefixed hex encoding.
func (pk PublicKey) String() string {
	return hexutil.Encode(pk[:])
}

// Unprefixed returns the hex encoding without the 0x prefix.
func (pk PublicKey) Unprefixed() string {
	return strings.TrimPrefix(pk.String(), "0x")
}

// MarshalText encodes the key as 0x-prefixed hex.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText accepts hex with or without the 0x prefix.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := PublicKeyFromHex(string(text))
	if err != nil {
		return err
	}

	*pk = parsed

	return nil
}
