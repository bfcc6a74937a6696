package validator

import (
	"encoding/json"
	"net/url"
	"sync/atomic"

	"github.com/ethpandaops/validator-keymanager/pkg/signer"
)

// Validator pairs a public key with the signer that holds (or references) its key material.
type Validator struct {
	publicKey PublicKey
	signer    *signer.Signer
	readOnly  bool
	active    atomic.Bool
}

// New creates an active validator record.
// Read-only validators use key material this process does not own and are never deleted through the key manager.
func New(publicKey PublicKey, s *signer.Signer, readOnly bool) *Validator {
	v := &Validator{
		publicKey: publicKey,
		signer:    s,
		readOnly:  readOnly,
	}

	v.active.Store(true)

	return v
}

// PublicKey returns the validator public key.
func (v *Validator) PublicKey() PublicKey {
	return v.publicKey
}

// Signer returns the signer that holds or reaches the secret key.
func (v *Validator) Signer() *signer.Signer {
	return v.signer
}

// IsReadOnly reports whether the validator was provisioned outside the key manager.
func (v *Validator) IsReadOnly() bool {
	return v.readOnly
}

// IsActive reports whether the validator currently takes part in duties.
func (v *Validator) IsActive() bool {
	return v.active.Load()
}

// SetActive toggles duty participation. It is the only mutation allowed on a loaded record.
func (v *Validator) SetActive(active bool) {
	v.active.Store(active)
}

// ExternalValidator is the read-only view of a validator backed by a remote signer.
type ExternalValidator struct {
	PublicKey PublicKey
	URL       *url.URL
	ReadOnly  bool
}

// NewExternalValidator returns the remote view of v, or false when v is not signed remotely.
func NewExternalValidator(v *Validator) (ExternalValidator, bool) {
	u, ok := v.signer.URL()
	if !ok {
		return ExternalValidator{}, false
	}

	return ExternalValidator{
		PublicKey: v.publicKey,
		URL:       u,
		ReadOnly:  v.readOnly,
	}, true
}

// MarshalJSON encodes the key manager API view of a remote key.
func (e ExternalValidator) MarshalJSON() ([]byte, error) {
	out := struct {
		PublicKey PublicKey `json:"pubkey"`
		URL       string    `json:"url,omitempty"`
		ReadOnly  bool      `json:"readonly"`
	}{
		PublicKey: e.PublicKey,
		ReadOnly:  e.ReadOnly,
	}

	if e.URL != nil {
		out.URL = e.URL.String()
	}

	return json.Marshal(out)
}
