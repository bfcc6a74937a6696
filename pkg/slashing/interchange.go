package slashing

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/v5/validator/slashing-protection-history/format"

	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// Interchange is a parsed EIP-3076 document reduced to one watermark record per key.
type Interchange struct {
	GenesisValidatorsRoot string
	records               map[validator.PublicKey]*SigningRecord
}

// ReadInterchangeFile parses the interchange document at path.
func ReadInterchangeFile(path string) (*Interchange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read slashing protection file %s", path)
	}

	return ParseInterchange(data)
}

// ParseInterchange decodes and validates an interchange document.
func ParseInterchange(data []byte) (*Interchange, error) {
	var doc format.EIPSlashingProtectionFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse slashing protection interchange")
	}

	if doc.Metadata.InterchangeFormatVersion != format.InterchangeFormatVersion {
		return nil, errors.Errorf("unsupported interchange format version %q, expected %q",
			doc.Metadata.InterchangeFormatVersion, format.InterchangeFormatVersion)
	}

	root, err := hexutil.Decode(doc.Metadata.GenesisValidatorsRoot)
	if err != nil || len(root) != 32 {
		return nil, errors.Errorf("invalid genesis validators root %q", doc.Metadata.GenesisValidatorsRoot)
	}

	ic := &Interchange{
		GenesisValidatorsRoot: doc.Metadata.GenesisValidatorsRoot,
		records:               make(map[validator.PublicKey]*SigningRecord, len(doc.Data)),
	}

	for _, entry := range doc.Data {
		if entry == nil {
			continue
		}

		pk, err := validator.PublicKeyFromHex(entry.Pubkey)
		if err != nil {
			return nil, err
		}

		record, err := recordFromProtectionData(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid history for %s", pk)
		}

		record.GenesisValidatorsRoot = ic.GenesisValidatorsRoot

		if existing, ok := ic.records[pk]; ok {
			existing.Merge(record)

			continue
		}

		ic.records[pk] = record
	}

	return ic, nil
}

// Record returns the watermarks the document holds for pk.
func (i *Interchange) Record(pk validator.PublicKey) (*SigningRecord, bool) {
	record, ok := i.records[pk]

	return record, ok
}

// Len returns the number of distinct keys in the document.
func (i *Interchange) Len() int {
	return len(i.records)
}

func recordFromProtectionData(entry *format.ProtectionData) (*SigningRecord, error) {
	record := &SigningRecord{}

	for _, block := range entry.SignedBlocks {
		if block == nil {
			continue
		}

		slot, err := strconv.ParseUint(block.Slot, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid slot %q", block.Slot)
		}

		record.LastSignedBlockSlot = maxOf(record.LastSignedBlockSlot, &slot)
	}

	for _, att := range entry.SignedAttestations {
		if att == nil {
			continue
		}

		source, err := strconv.ParseUint(att.SourceEpoch, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid source epoch %q", att.SourceEpoch)
		}

		target, err := strconv.ParseUint(att.TargetEpoch, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid target epoch %q", att.TargetEpoch)
		}

		if source > target {
			return nil, errors.Errorf("source epoch %d is after target epoch %d", source, target)
		}

		record.LastSignedAttestationSourceEpoch = maxOf(record.LastSignedAttestationSourceEpoch, &source)
		record.LastSignedAttestationTargetEpoch = maxOf(record.LastSignedAttestationTargetEpoch, &target)
	}

	return record, nil
}
