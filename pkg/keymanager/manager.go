package keymanager

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-keymanager/pkg/logging"
	"github.com/ethpandaops/validator-keymanager/pkg/signer"
	"github.com/ethpandaops/validator-keymanager/pkg/slashing"
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// ErrLengthMismatch is returned when keystores and passwords differ in length.
var ErrLengthMismatch = errors.New("keystores and passwords must have the same length")

// DeletePolicy decides what happens to a key whose slashing protection export failed.
type DeletePolicy int

const (
	// FailOpen releases and deletes the key even when its export failed.
	FailOpen DeletePolicy = iota
	// FailClosed keeps the key when its export failed.
	FailClosed
)

// String returns the flag value for p.
func (p DeletePolicy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}

	return "fail-open"
}

// ParseDeletePolicy parses "fail-open" or "fail-closed". Empty means fail-open.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-open":
		return FailOpen, nil
	case "fail-closed":
		return FailClosed, nil
	default:
		return FailOpen, errors.Errorf("unknown delete policy %q", s)
	}
}

// Manager imports and removes validator keys, pairing every removal with an
// export of the key's slashing protection history.
//
// Imports and deletions are serialised: a batch delete never interleaves with
// an import in the same process.
type Manager struct {
	mu sync.Mutex

	loader      Loader
	notifier    Notifier
	newExporter ExporterFactory
	policy      DeletePolicy
	registerer  prometheus.Registerer
	metrics     *metrics
	log         *logrus.Entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithDeletePolicy sets how a failed slashing protection export affects a delete.
func WithDeletePolicy(policy DeletePolicy) Option {
	return func(m *Manager) {
		m.policy = policy
	}
}

// WithExporterFactory replaces the factory used to build one Exporter per batch delete.
func WithExporterFactory(factory ExporterFactory) Option {
	return func(m *Manager) {
		m.newExporter = factory
	}
}

// WithRegisterer registers the manager's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.registerer = reg
	}
}

// New returns a Manager over loader. Deletions fail open unless
// WithDeletePolicy says otherwise.
func New(loader Loader, notifier Notifier, opts ...Option) *Manager {
	m := &Manager{
		loader:      loader,
		notifier:    notifier,
		newExporter: defaultExporterFactory,
		policy:      FailOpen,
		log:         logging.WithComponent("keymanager"),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registerer == nil {
		m.registerer = prometheus.NewRegistry()
	}

	m.metrics = newMetrics(m.registerer)

	return m
}

// ActiveValidatorKeys returns the validators the loader reports as active.
func (m *Manager) ActiveValidatorKeys() []*validator.Validator {
	return m.loader.OwnedValidators().ActiveValidators()
}

// ActiveRemoteValidatorKeys returns the active validators signed remotely, in order.
func (m *Manager) ActiveRemoteValidatorKeys() []validator.ExternalValidator {
	active := m.ActiveValidatorKeys()
	remote := make([]validator.ExternalValidator, 0, len(active))

	for _, v := range active {
		if ext, ok := validator.NewExternalValidator(v); ok {
			remote = append(remote, ext)
		}
	}

	return remote
}

// ImportValidators loads each keystore with its password, in order. One
// result is returned per keystore at the same position. Duty scheduling is
// notified once if at least one key was imported.
func (m *Manager) ImportValidators(keystores, passwords []string, slashingProtection *slashing.Interchange) ([]PostKeyResult, error) {
	if len(keystores) != len(passwords) {
		return nil, errors.Wrapf(ErrLengthMismatch, "got %d keystores and %d passwords", len(keystores), len(passwords))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]PostKeyResult, len(keystores))
	imported := 0

	for i := range keystores {
		result := m.loader.LoadLocalMutableValidator(keystores[i], passwords[i], slashingProtection)
		results[i] = result

		m.metrics.imports.WithLabelValues(string(result.Status)).Inc()

		switch result.Status {
		case ImportStatusImported:
			imported++
		case ImportStatusError:
			m.log.WithField("index", i).Warnf("Failed to import keystore: %s", result.Message)
		case ImportStatusDuplicate:
		}
	}

	m.log.WithFields(logrus.Fields{
		"requested": len(keystores),
		"imported":  imported,
	}).Info("Processed keystore import")

	m.notifyIfAdded(imported)

	return results, nil
}

// ImportExternalValidators registers remote-signed keys, in order.
func (m *Manager) ImportExternalValidators(keys []ExternalKey) []PostKeyResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]PostKeyResult, len(keys))
	imported := 0

	for i, key := range keys {
		u, err := parseSignerURL(key.URL)
		if err != nil {
			results[i] = ImportError(err.Error())
		} else {
			results[i] = m.loader.LoadExternalValidator(key.PublicKey, u)
		}

		m.metrics.imports.WithLabelValues(string(results[i].Status)).Inc()

		if results[i].Status == ImportStatusImported {
			imported++
		}
	}

	m.notifyIfAdded(imported)

	return results
}

// DeleteValidator removes one loaded validator, exporting its slashing
// protection history into exporter first.
func (m *Manager) DeleteValidator(v *validator.Validator, exporter Exporter) DeleteKeyResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteValidator(v, exporter)
}

// AttemptToGetSlashingDataForInactiveValidator classifies a key that is not
// loaded: not_active when slashing protection history exists, not_found otherwise.
func (m *Manager) AttemptToGetSlashingDataForInactiveValidator(pk validator.PublicKey, exporter Exporter) DeleteKeyResult {
	if exporter.HaveSlashingProtectionData(pk) {
		return DeleteNotActive()
	}

	return DeleteNotFound()
}

// DeleteValidators removes each key in order and returns one result per key
// together with a single slashing protection export covering the batch.
// The error is only set when the export could not be produced.
func (m *Manager) DeleteValidators(pks []validator.PublicKey, slashingProtectionDir string) (*DeleteKeysResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exporter := m.newExporter(slashingProtectionDir)
	owned := m.loader.OwnedValidators()

	resp := &DeleteKeysResponse{
		Data: make([]DeleteKeyResult, len(pks)),
	}

	for i, pk := range pks {
		v, ok := owned.Get(pk)
		if ok {
			resp.Data[i] = m.deleteValidator(v, exporter)
		} else {
			resp.Data[i] = m.AttemptToGetSlashingDataForInactiveValidator(pk, exporter)
		}

		m.metrics.deletions.WithLabelValues(string(resp.Data[i].Status)).Inc()
	}

	bundle, err := exporter.Finalize()
	if err != nil {
		m.log.Errorf("Failed to finalize slashing protection export: %v", err)

		return resp, errors.Wrap(err, "failed to finalize slashing protection export")
	}

	resp.SlashingProtection = bundle

	return resp, nil
}

// DeleteExternalValidators removes remote-signed keys, in order. The remote
// signer keeps their slashing protection history, so nothing is exported.
func (m *Manager) DeleteExternalValidators(pks []validator.PublicKey) []DeleteKeyResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := m.loader.OwnedValidators()
	results := make([]DeleteKeyResult, len(pks))

	for i, pk := range pks {
		v, ok := owned.Get(pk)

		switch {
		case !ok:
			results[i] = DeleteNotFound()
		case v.Signer().Kind() != signer.KindRemote:
			results[i] = DeleteError(fmt.Sprintf("Validator %s is not a remote validator", pk))
		case v.IsReadOnly():
			results[i] = DeleteError(fmt.Sprintf("Cannot delete read-only validator %s", pk))
		case !m.loader.IsMutableExternalValidator(pk):
			results[i] = DeleteError(fmt.Sprintf("Validator %s was not added at runtime and cannot be deleted", pk))
		default:
			v.Signer().Delete()
			results[i] = m.loader.DeleteExternalValidator(pk)
		}

		m.metrics.deletions.WithLabelValues(string(results[i].Status)).Inc()
	}

	return results
}

func (m *Manager) deleteValidator(v *validator.Validator, exporter Exporter) DeleteKeyResult {
	pk := v.PublicKey()
	log := m.log.WithField("pubkey", pk.String())

	if v.IsReadOnly() {
		log.Warn("Refusing to delete read-only validator")

		return DeleteError(fmt.Sprintf("Cannot delete read-only validator %s", pk))
	}

	if v.Signer().Kind() != signer.KindLocal {
		log.Warn("Refusing to delete validator without a local signer")

		return DeleteError(fmt.Sprintf("Validator %s is not a locally stored validator", pk))
	}

	exportErr := exporter.AddPublicKeyToExport(pk)
	if exportErr != nil {
		log.Warnf("Failed to export slashing protection: %v", exportErr)

		if m.policy == FailClosed {
			return DeleteError(exportErr.Error())
		}
	}

	v.Signer().Delete()

	result := m.loader.DeleteLocalMutableValidator(pk)
	if result.Status != DeletionStatusDeleted {
		log.Errorf("Failed to delete validator from storage: %s %s", result.Status, result.Message)

		return result
	}

	if exportErr != nil {
		return DeleteError(exportErr.Error())
	}

	log.Info("Deleted validator")

	return DeleteSuccess()
}

func (m *Manager) notifyIfAdded(imported int) {
	if imported == 0 {
		return
	}

	m.notifier.OnValidatorsAdded()
	m.metrics.notifications.Inc()
}

func parseSignerURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid signer url %q", raw)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Errorf("invalid signer url %q: expected http(s)://host", raw)
	}

	return u, nil
}
