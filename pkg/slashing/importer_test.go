package slashing

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interchangeJSON(root, pubkey string, slot, source, target uint64) string {
	return fmt.Sprintf(`{
  "metadata": {"interchange_format_version": "5", "genesis_validators_root": %q},
  "data": [{
    "pubkey": %q,
    "signed_blocks": [{"slot": "%d"}],
    "signed_attestations": [{"source_epoch": "%d", "target_epoch": "%d"}]
  }]
}`, root, pubkey, slot, source, target)
}

func TestParseInterchange(t *testing.T) {
	pk := testPublicKey(t, 0x0a)

	tests := []struct {
		name        string
		doc         string
		expectError string
	}{
		{
			name: "valid",
			doc:  interchangeJSON(testRoot, pk.String(), 10, 1, 2),
		},
		{
			name:        "wrong version",
			doc:         strings.Replace(interchangeJSON(testRoot, pk.String(), 10, 1, 2), `"5"`, `"4"`, 1),
			expectError: "unsupported interchange format version",
		},
		{
			name:        "invalid root",
			doc:         interchangeJSON("0x1234", pk.String(), 10, 1, 2),
			expectError: "invalid genesis validators root",
		},
		{
			name:        "invalid pubkey",
			doc:         interchangeJSON(testRoot, "0x1234", 10, 1, 2),
			expectError: "invalid public key length",
		},
		{
			name:        "source after target",
			doc:         interchangeJSON(testRoot, pk.String(), 10, 5, 2),
			expectError: "source epoch 5 is after target epoch 2",
		},
		{
			name:        "not json",
			doc:         "{",
			expectError: "failed to parse slashing protection interchange",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic, err := ParseInterchange([]byte(tt.doc))

			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, 1, ic.Len())

			record, ok := ic.Record(pk)
			require.True(t, ok)
			assert.Equal(t, uint64(10), *record.LastSignedBlockSlot)
			assert.Equal(t, testRoot, record.GenesisValidatorsRoot)
		})
	}
}

func TestParseInterchangeMergesDuplicates(t *testing.T) {
	pk := testPublicKey(t, 0x0b)

	doc := fmt.Sprintf(`{
  "metadata": {"interchange_format_version": "5", "genesis_validators_root": %q},
  "data": [
    {"pubkey": %q, "signed_blocks": [{"slot": "7"}, {"slot": "3"}], "signed_attestations": []},
    {"pubkey": %q, "signed_blocks": [{"slot": "5"}], "signed_attestations": [{"source_epoch": "1", "target_epoch": "4"}]}
  ]
}`, testRoot, pk.String(), pk.String())

	ic, err := ParseInterchange([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, ic.Len())

	record, ok := ic.Record(pk)
	require.True(t, ok)
	assert.Equal(t, uint64(7), *record.LastSignedBlockSlot)
	assert.Equal(t, uint64(4), *record.LastSignedAttestationTargetEpoch)
}

func TestImporter(t *testing.T) {
	pk := testPublicKey(t, 0x0c)
	other := testPublicKey(t, 0x0d)

	t.Run("nil interchange is a no-op", func(t *testing.T) {
		store := NewStore(t.TempDir())

		require.NoError(t, NewImporter(store).Import(pk, nil))
		assert.False(t, store.Has(pk))
	})

	t.Run("key absent from interchange", func(t *testing.T) {
		store := NewStore(t.TempDir())
		ic, err := ParseInterchange([]byte(interchangeJSON(testRoot, other.String(), 1, 1, 1)))
		require.NoError(t, err)

		require.NoError(t, NewImporter(store).Import(pk, ic))
		assert.False(t, store.Has(pk))
	})

	t.Run("merges keeping maximum watermarks", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "history"))
		require.NoError(t, store.Write(pk, &SigningRecord{
			GenesisValidatorsRoot:            testRoot,
			LastSignedBlockSlot:              uint64Ptr(500),
			LastSignedAttestationSourceEpoch: uint64Ptr(1),
			LastSignedAttestationTargetEpoch: uint64Ptr(2),
		}))

		ic, err := ParseInterchange([]byte(interchangeJSON(testRoot, pk.String(), 100, 8, 9)))
		require.NoError(t, err)

		require.NoError(t, NewImporter(store).Import(pk, ic))

		record, err := store.Read(pk)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), *record.LastSignedBlockSlot)
		assert.Equal(t, uint64(8), *record.LastSignedAttestationSourceEpoch)
		assert.Equal(t, uint64(9), *record.LastSignedAttestationTargetEpoch)
	})

	t.Run("rejects document for another network", func(t *testing.T) {
		store := NewStore(t.TempDir())
		ic, err := ParseInterchange([]byte(interchangeJSON(testRoot, pk.String(), 1, 1, 1)))
		require.NoError(t, err)

		importer := NewImporter(store, WithNetworkGenesisValidatorsRoot("0x"+strings.Repeat("ee", 32)))

		err = importer.Import(pk, ic)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match network root")
		assert.False(t, store.Has(pk))
	})

	t.Run("rejects mismatched existing record", func(t *testing.T) {
		store := NewStore(t.TempDir())
		require.NoError(t, store.Write(pk, &SigningRecord{
			GenesisValidatorsRoot: "0x" + strings.Repeat("ee", 32),
		}))

		ic, err := ParseInterchange([]byte(interchangeJSON(testRoot, pk.String(), 1, 1, 1)))
		require.NoError(t, err)

		err = NewImporter(store).Import(pk, ic)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match existing record root")
	})
}
