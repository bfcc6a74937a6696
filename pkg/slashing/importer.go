package slashing

import (
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-keymanager/pkg/logging"
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// Importer seeds a key's signing record from an interchange document.
type Importer struct {
	store                 *Store
	genesisValidatorsRoot string
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithNetworkGenesisValidatorsRoot rejects documents produced for another network.
func WithNetworkGenesisValidatorsRoot(root string) ImporterOption {
	return func(i *Importer) {
		i.genesisValidatorsRoot = root
	}
}

// NewImporter returns an Importer writing records into store.
func NewImporter(store *Store, opts ...ImporterOption) *Importer {
	i := &Importer{store: store}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Import merges the history ic holds for pk into the stored record.
// Watermarks only ever move forward.
func (i *Importer) Import(pk validator.PublicKey, ic *Interchange) error {
	if ic == nil {
		return nil
	}

	if i.genesisValidatorsRoot != "" && !sameRoot(i.genesisValidatorsRoot, ic.GenesisValidatorsRoot) {
		return errors.Errorf("slashing protection genesis validators root %s does not match network root %s",
			ic.GenesisValidatorsRoot, i.genesisValidatorsRoot)
	}

	incoming, ok := ic.Record(pk)
	if !ok {
		return nil
	}

	existing, err := i.store.Read(pk)
	if err != nil {
		return err
	}

	if existing == nil {
		existing = &SigningRecord{}
	}

	if existing.GenesisValidatorsRoot != "" && !sameRoot(existing.GenesisValidatorsRoot, ic.GenesisValidatorsRoot) {
		return errors.Errorf("slashing protection genesis validators root %s does not match existing record root %s for %s",
			ic.GenesisValidatorsRoot, existing.GenesisValidatorsRoot, pk)
	}

	existing.Merge(incoming)

	if err := i.store.Write(pk, existing); err != nil {
		return err
	}

	logging.WithComponent("slashing-importer").WithField("pubkey", pk.String()).Info("Imported slashing protection history")

	return nil
}
