package signer

import (
	"context"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/v5/crypto/bls"
)

var (
	// ErrSignerDeleted is returned when signing with a signer whose key material was released.
	ErrSignerDeleted = errors.New("signer has been deleted")
	// ErrUnknownKind is returned when dispatching on an unrecognised signer kind.
	ErrUnknownKind = errors.New("unknown signer kind")
)

// Kind tags the variant held by a Signer.
type Kind int

const (
	KindNoOp Kind = iota
	KindLocal
	KindRemote
)

// String returns the lower-case name of k.
func (k Kind) String() string {
	switch k {
	case KindNoOp:
		return "noop"
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Signer holds either local key material, a delegation to a remote signing
// service, or nothing at all. Each variant carries only its own state.
type Signer struct {
	kind Kind

	mu      sync.Mutex
	deleted bool

	// local
	secret bls.SecretKey

	// remote
	publicKey []byte
	endpoint  *url.URL
	client    *Web3Signer
}

// NewLocal returns a signer over an in-process secret key.
func NewLocal(secret bls.SecretKey) *Signer {
	return &Signer{
		kind:   KindLocal,
		secret: secret,
	}
}

// NewRemote returns a signer delegating to the web3signer at endpoint.
// A nil client is created from the endpoint.
func NewRemote(publicKey []byte, endpoint *url.URL, client *Web3Signer) *Signer {
	if client == nil {
		client = NewWeb3Signer(endpoint.String())
	}

	pk := make([]byte, len(publicKey))
	copy(pk, publicKey)

	return &Signer{
		kind:      KindRemote,
		publicKey: pk,
		endpoint:  endpoint,
		client:    client,
	}
}

// NoOp returns an inert signer.
func NoOp() *Signer {
	return &Signer{kind: KindNoOp}
}

// Kind reports which variant s is.
func (s *Signer) Kind() Kind {
	return s.kind
}

// URL returns the remote endpoint of a remote signer.
func (s *Signer) URL() (*url.URL, bool) {
	if s.kind != KindRemote || s.endpoint == nil {
		return nil, false
	}

	u := *s.endpoint

	return &u, true
}

// IsDeleted reports whether Delete has been called on a local or remote signer.
func (s *Signer) IsDeleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleted
}

// Sign produces a signature over req.SigningRoot.
func (s *Signer) Sign(ctx context.Context, req SignRequest) ([]byte, error) {
	switch s.kind {
	case KindNoOp:
		return []byte{}, nil
	case KindLocal:
		s.mu.Lock()
		secret, deleted := s.secret, s.deleted
		s.mu.Unlock()

		if deleted || secret == nil {
			return nil, ErrSignerDeleted
		}

		return secret.Sign(req.SigningRoot[:]).Marshal(), nil
	case KindRemote:
		if s.IsDeleted() {
			return nil, ErrSignerDeleted
		}

		return s.client.Sign(ctx, s.publicKey, req)
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "kind %d", s.kind)
	}
}

// Delete irreversibly releases the key material (local) or the delegation (remote).
// Calling it more than once has no further effect.
func (s *Signer) Delete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.kind {
	case KindLocal:
		s.secret = nil
		s.deleted = true
	case KindRemote:
		s.deleted = true
	case KindNoOp:
	}
}
