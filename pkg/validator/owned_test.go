package validator

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/validator-keymanager/pkg/signer"
)

func testKey(b byte) PublicKey {
	var pk PublicKey
	for i := range pk {
		pk[i] = b
	}

	return pk
}

func TestPublicKeyFromHex(t *testing.T) {
	hex := strings.Repeat("a1", 48)

	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{
			name:  "prefixed",
			input: "0x" + hex,
		},
		{
			name:  "unprefixed",
			input: hex,
		},
		{
			name:        "too short",
			input:       "0x1234",
			expectError: true,
		},
		{
			name:        "not hex",
			input:       "0xzz",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pk, err := PublicKeyFromHex(tt.input)
			if tt.expectError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "0x"+hex, pk.String())
			assert.Equal(t, hex, pk.Unprefixed())
		})
	}
}

func TestPublicKeyText(t *testing.T) {
	pk := testKey(0x42)

	out, err := json.Marshal(map[string]PublicKey{"pubkey": pk})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pubkey":"`+pk.String()+`"}`, string(out))

	var decoded map[string]PublicKey
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, pk, decoded["pubkey"])
}

func TestOwnedValidators(t *testing.T) {
	first := New(testKey(1), signer.NoOp(), false)
	second := New(testKey(2), signer.NoOp(), true)
	third := New(testKey(3), signer.NoOp(), false)

	owned := NewOwnedValidators(first, second, third, New(testKey(1), signer.NoOp(), true))
	assert.Equal(t, 3, owned.Len())
	assert.Equal(t, []PublicKey{testKey(1), testKey(2), testKey(3)}, owned.PublicKeys())

	got, ok := owned.Get(testKey(1))
	require.True(t, ok)
	assert.Same(t, first, got)

	err := owned.Add(New(testKey(2), signer.NoOp(), false))
	assert.ErrorIs(t, err, ErrDuplicateValidator)

	second.SetActive(false)
	assert.Equal(t, []*Validator{first, third}, owned.ActiveValidators())

	snap := owned.Snapshot()

	removed, ok := owned.Remove(testKey(1))
	require.True(t, ok)
	assert.Same(t, first, removed)
	assert.False(t, owned.Has(testKey(1)))
	assert.True(t, snap.Has(testKey(1)))
	assert.Equal(t, 3, snap.Len())

	_, ok = owned.Remove(testKey(1))
	assert.False(t, ok)
}

func TestExternalValidator(t *testing.T) {
	endpoint, err := url.Parse("http://signer:9000")
	require.NoError(t, err)

	pk := testKey(7)
	remote := New(pk, signer.NewRemote(pk[:], endpoint, nil), true)

	ext, ok := NewExternalValidator(remote)
	require.True(t, ok)
	assert.Equal(t, testKey(7), ext.PublicKey)
	assert.Equal(t, "http://signer:9000", ext.URL.String())
	assert.True(t, ext.ReadOnly)

	out, err := json.Marshal(ext)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pubkey":"`+testKey(7).String()+`","url":"http://signer:9000","readonly":true}`, string(out))

	_, ok = NewExternalValidator(New(testKey(8), signer.NoOp(), false))
	assert.False(t, ok)
}
