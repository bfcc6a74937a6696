package validator

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrDuplicateValidator is returned when a public key is already registered.
var ErrDuplicateValidator = errors.New("validator already registered")

// OwnedValidators is the set of validators loaded by this process, keyed by public key.
type OwnedValidators struct {
	mu    sync.RWMutex
	byKey map[PublicKey]*Validator
	order []PublicKey
}

// NewOwnedValidators builds a registry from vals. Later duplicates are ignored.
func NewOwnedValidators(vals ...*Validator) *OwnedValidators {
	o := &OwnedValidators{
		byKey: make(map[PublicKey]*Validator, len(vals)),
		order: make([]PublicKey, 0, len(vals)),
	}

	for _, v := range vals {
		_ = o.Add(v)
	}

	return o
}

// Add registers v. A public key maps to exactly one record.
func (o *OwnedValidators) Add(v *Validator) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.byKey[v.publicKey]; exists {
		return errors.Wrapf(ErrDuplicateValidator, "public key %s", v.publicKey)
	}

	o.byKey[v.publicKey] = v
	o.order = append(o.order, v.publicKey)

	return nil
}

// Remove unregisters and returns the validator for pk.
func (o *OwnedValidators) Remove(pk PublicKey) (*Validator, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	v, ok := o.byKey[pk]
	if !ok {
		return nil, false
	}

	delete(o.byKey, pk)

	for i, key := range o.order {
		if key == pk {
			o.order = append(o.order[:i], o.order[i+1:]...)

			break
		}
	}

	return v, true
}

// Get returns the validator registered for pk.
func (o *OwnedValidators) Get(pk PublicKey) (*Validator, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	v, ok := o.byKey[pk]

	return v, ok
}

// Has reports whether pk is registered.
func (o *OwnedValidators) Has(pk PublicKey) bool {
	_, ok := o.Get(pk)

	return ok
}

// Len returns the number of registered validators.
func (o *OwnedValidators) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return len(o.order)
}

// PublicKeys returns every registered key in insertion order.
func (o *OwnedValidators) PublicKeys() []PublicKey {
	o.mu.RLock()
	defer o.mu.RUnlock()

	keys := make([]PublicKey, len(o.order))
	copy(keys, o.order)

	return keys
}

// ActiveValidators returns the validators currently taking part in duties, in insertion order.
func (o *OwnedValidators) ActiveValidators() []*Validator {
	o.mu.RLock()
	defer o.mu.RUnlock()

	active := make([]*Validator, 0, len(o.order))

	for _, pk := range o.order {
		if v := o.byKey[pk]; v.IsActive() {
			active = append(active, v)
		}
	}

	return active
}

// Snapshot returns a copy of the registry. Records are shared, membership is not.
func (o *OwnedValidators) Snapshot() *OwnedValidators {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := &OwnedValidators{
		byKey: make(map[PublicKey]*Validator, len(o.byKey)),
		order: make([]PublicKey, len(o.order)),
	}

	copy(snap.order, o.order)

	for pk, v := range o.byKey {
		snap.byKey[pk] = v
	}

	return snap
}
