package slashing

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/v5/validator/slashing-protection-history/format"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-keymanager/pkg/logging"
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// ErrExporterFinalized is returned when an exporter is used after Finalize.
var ErrExporterFinalized = errors.New("slashing protection exporter already finalized")

var zeroRoot = hexutil.Encode(make([]byte, 32))

// IncrementalExporter stages the signing history of one key at a time and
// finalizes everything staged into a single interchange document.
//
// It is not safe for concurrent use and must not be reused after Finalize.
type IncrementalExporter struct {
	store                 *Store
	genesisValidatorsRoot string
	data                  []*format.ProtectionData
	finalized             bool
	log                   *logrus.Entry
}

// ExporterOption configures an IncrementalExporter.
type ExporterOption func(*IncrementalExporter)

// WithGenesisValidatorsRoot pins the metadata root. Records for another network are rejected.
func WithGenesisValidatorsRoot(root string) ExporterOption {
	return func(e *IncrementalExporter) {
		e.genesisValidatorsRoot = root
	}
}

// NewIncrementalExporter reads signing records from dir.
func NewIncrementalExporter(dir string, opts ...ExporterOption) *IncrementalExporter {
	e := &IncrementalExporter{
		store: NewStore(dir),
		log:   logging.WithComponent("slashing-exporter").WithField("dir", dir),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// AddPublicKeyToExport stages the history of pk. A key without history is staged with an empty history.
func (e *IncrementalExporter) AddPublicKeyToExport(pk validator.PublicKey) error {
	if e.finalized {
		return ErrExporterFinalized
	}

	record, err := e.store.Read(pk)
	if err != nil {
		e.log.WithField("pubkey", pk.String()).Warnf("Unable to export slashing protection: %v", err)

		return err
	}

	if record != nil && record.GenesisValidatorsRoot != "" {
		switch {
		case e.genesisValidatorsRoot == "":
			e.genesisValidatorsRoot = record.GenesisValidatorsRoot
		case !sameRoot(e.genesisValidatorsRoot, record.GenesisValidatorsRoot):
			return errors.Errorf("genesis validators root mismatch for %s: export uses %s, record has %s",
				pk, e.genesisValidatorsRoot, record.GenesisValidatorsRoot)
		}
	}

	e.data = append(e.data, record.protectionData(pk))

	e.log.WithField("pubkey", pk.String()).Debug("Staged slashing protection for export")

	return nil
}

// HaveSlashingProtectionData reports whether any signing history exists for pk.
func (e *IncrementalExporter) HaveSlashingProtectionData(pk validator.PublicKey) bool {
	return e.store.Has(pk)
}

// Finalize serializes every staged key into one EIP-3076 interchange document.
func (e *IncrementalExporter) Finalize() (string, error) {
	if e.finalized {
		return "", ErrExporterFinalized
	}

	e.finalized = true

	bundle := &format.EIPSlashingProtectionFormat{}
	bundle.Metadata.InterchangeFormatVersion = format.InterchangeFormatVersion
	bundle.Metadata.GenesisValidatorsRoot = e.genesisValidatorsRoot

	if bundle.Metadata.GenesisValidatorsRoot == "" {
		bundle.Metadata.GenesisValidatorsRoot = zeroRoot
	}

	bundle.Data = e.data
	if bundle.Data == nil {
		bundle.Data = []*format.ProtectionData{}
	}

	out, err := json.Marshal(bundle)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal slashing protection export")
	}

	e.log.WithField("keys", len(e.data)).Info("Finalized slashing protection export")

	return string(out), nil
}
