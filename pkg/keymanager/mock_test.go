package keymanager

import (
	"net/url"

	"github.com/stretchr/testify/mock"

	"github.com/ethpandaops/validator-keymanager/pkg/slashing"
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) LoadLocalMutableValidator(keystore, password string, slashingProtection *slashing.Interchange) PostKeyResult {
	args := m.Called(keystore, password, slashingProtection)

	return args.Get(0).(PostKeyResult)
}

func (m *mockLoader) DeleteLocalMutableValidator(pk validator.PublicKey) DeleteKeyResult {
	args := m.Called(pk)

	return args.Get(0).(DeleteKeyResult)
}

func (m *mockLoader) LoadExternalValidator(pk validator.PublicKey, u *url.URL) PostKeyResult {
	args := m.Called(pk, u)

	return args.Get(0).(PostKeyResult)
}

func (m *mockLoader) DeleteExternalValidator(pk validator.PublicKey) DeleteKeyResult {
	args := m.Called(pk)

	return args.Get(0).(DeleteKeyResult)
}

func (m *mockLoader) IsMutableExternalValidator(pk validator.PublicKey) bool {
	args := m.Called(pk)

	return args.Bool(0)
}

func (m *mockLoader) OwnedValidators() *validator.OwnedValidators {
	args := m.Called()

	return args.Get(0).(*validator.OwnedValidators)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) OnValidatorsAdded() {
	m.Called()
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) AddPublicKeyToExport(pk validator.PublicKey) error {
	args := m.Called(pk)

	return args.Error(0)
}

func (m *mockExporter) HaveSlashingProtectionData(pk validator.PublicKey) bool {
	args := m.Called(pk)

	return args.Bool(0)
}

func (m *mockExporter) Finalize() (string, error) {
	args := m.Called()

	return args.String(0), args.Error(1)
}
