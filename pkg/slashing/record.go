package slashing

import (
	"strconv"
	"strings"

	"github.com/prysmaticlabs/prysm/v5/validator/slashing-protection-history/format"

	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// SigningRecord holds the highest slot and epochs a key has signed for.
type SigningRecord struct {
	GenesisValidatorsRoot            string  `yaml:"genesisValidatorsRoot,omitempty"`
	LastSignedBlockSlot              *uint64 `yaml:"lastSignedBlockSlot,omitempty"`
	LastSignedAttestationSourceEpoch *uint64 `yaml:"lastSignedAttestationSourceEpoch,omitempty"`
	LastSignedAttestationTargetEpoch *uint64 `yaml:"lastSignedAttestationTargetEpoch,omitempty"`
}

// Merge folds other into r, keeping the highest watermark of each kind.
func (r *SigningRecord) Merge(other *SigningRecord) {
	if other == nil {
		return
	}

	if r.GenesisValidatorsRoot == "" {
		r.GenesisValidatorsRoot = other.GenesisValidatorsRoot
	}

	r.LastSignedBlockSlot = maxOf(r.LastSignedBlockSlot, other.LastSignedBlockSlot)
	r.LastSignedAttestationSourceEpoch = maxOf(r.LastSignedAttestationSourceEpoch, other.LastSignedAttestationSourceEpoch)
	r.LastSignedAttestationTargetEpoch = maxOf(r.LastSignedAttestationTargetEpoch, other.LastSignedAttestationTargetEpoch)
}

func (r *SigningRecord) protectionData(pk validator.PublicKey) *format.ProtectionData {
	data := &format.ProtectionData{
		Pubkey:             pk.String(),
		SignedBlocks:       []*format.SignedBlock{},
		SignedAttestations: []*format.SignedAttestation{},
	}

	if r == nil {
		return data
	}

	if r.LastSignedBlockSlot != nil {
		data.SignedBlocks = append(data.SignedBlocks, &format.SignedBlock{
			Slot: strconv.FormatUint(*r.LastSignedBlockSlot, 10),
		})
	}

	if r.LastSignedAttestationSourceEpoch != nil && r.LastSignedAttestationTargetEpoch != nil {
		data.SignedAttestations = append(data.SignedAttestations, &format.SignedAttestation{
			SourceEpoch: strconv.FormatUint(*r.LastSignedAttestationSourceEpoch, 10),
			TargetEpoch: strconv.FormatUint(*r.LastSignedAttestationTargetEpoch, 10),
		})
	}

	return data
}

func maxOf(a, b *uint64) *uint64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil || *a >= *b:
		v := *a
		return &v
	default:
		v := *b
		return &v
	}
}

func sameRoot(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
