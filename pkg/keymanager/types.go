package keymanager

import (
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

// ImportStatus is the outcome of importing one key.
type ImportStatus string

const (
	ImportStatusImported  ImportStatus = "imported"
	ImportStatusDuplicate ImportStatus = "duplicate"
	ImportStatusError     ImportStatus = "error"
)

// PostKeyResult is the per-key result of an import.
type PostKeyResult struct {
	Status  ImportStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// ImportSuccess reports a key that was imported.
func ImportSuccess() PostKeyResult {
	return PostKeyResult{Status: ImportStatusImported}
}

// ImportDuplicate reports a key that was already loaded.
func ImportDuplicate() PostKeyResult {
	return PostKeyResult{Status: ImportStatusDuplicate}
}

// ImportError reports a key that could not be imported.
func ImportError(message string) PostKeyResult {
	return PostKeyResult{Status: ImportStatusError, Message: message}
}

// DeletionStatus is the outcome of deleting one key.
type DeletionStatus string

const (
	DeletionStatusDeleted   DeletionStatus = "deleted"
	DeletionStatusNotActive DeletionStatus = "not_active"
	DeletionStatusNotFound  DeletionStatus = "not_found"
	DeletionStatusError     DeletionStatus = "error"
)

// DeleteKeyResult is the per-key result of a deletion.
type DeleteKeyResult struct {
	Status  DeletionStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// DeleteSuccess reports a key that was deleted.
func DeleteSuccess() DeleteKeyResult {
	return DeleteKeyResult{Status: DeletionStatusDeleted}
}

// DeleteNotActive reports a key that is not loaded but has slashing protection history.
func DeleteNotActive() DeleteKeyResult {
	return DeleteKeyResult{Status: DeletionStatusNotActive}
}

// DeleteNotFound reports a key that is neither loaded nor known to slashing protection.
func DeleteNotFound() DeleteKeyResult {
	return DeleteKeyResult{Status: DeletionStatusNotFound}
}

// DeleteError reports a key that could not be deleted.
func DeleteError(message string) DeleteKeyResult {
	return DeleteKeyResult{Status: DeletionStatusError, Message: message}
}

// DeleteKeysResponse carries the per-key results of a batch delete, in
// request order, and the combined slashing protection export.
type DeleteKeysResponse struct {
	Data               []DeleteKeyResult `json:"data"`
	SlashingProtection string            `json:"slashing_protection"`
}

// ExternalKey asks for a remote-signed validator to be registered.
type ExternalKey struct {
	PublicKey validator.PublicKey `json:"pubkey"`
	URL       string              `json:"url"`
}
