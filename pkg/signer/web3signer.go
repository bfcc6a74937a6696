package signer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	fieldparams "github.com/prysmaticlabs/prysm/v5/config/fieldparams"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-keymanager/pkg/logging"
)

// SignedObjectType names the object being signed, as understood by web3signer.
type SignedObjectType string

const (
	TypeAggregationSlot   SignedObjectType = "AGGREGATION_SLOT"
	TypeAggregateAndProof SignedObjectType = "AGGREGATE_AND_PROOF"
	TypeAttestation       SignedObjectType = "ATTESTATION"
	TypeBlockV2           SignedObjectType = "BLOCK_V2"
	TypeRandaoReveal      SignedObjectType = "RANDAO_REVEAL"
	TypeVoluntaryExit     SignedObjectType = "VOLUNTARY_EXIT"
)

// SignRequest asks for a signature over a precomputed signing root.
type SignRequest struct {
	Type        SignedObjectType `json:"type"`
	SigningRoot [32]byte         `json:"-"`
}

type signRequestBody struct {
	Type        SignedObjectType `json:"type"`
	SigningRoot string           `json:"signingRoot"`
}

// Web3Signer is a client for the web3signer eth2 signing API.
type Web3Signer struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// Option configures a Web3Signer client.
type Option func(*Web3Signer)

// WithRequestTimeout sets the timeout for HTTP requests.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(w *Web3Signer) {
		w.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Web3Signer) {
		w.httpClient = client
	}
}

// NewWeb3Signer returns a client for the Web3Signer at baseURL.
func NewWeb3Signer(baseURL string, opts ...Option) *Web3Signer {
	w := &Web3Signer{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logging.WithComponent("web3signer").WithField("url", strings.TrimRight(baseURL, "/")),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// BaseURL returns the endpoint the client talks to.
func (w *Web3Signer) BaseURL() string {
	return w.baseURL
}

// Upcheck reports whether the signer is reachable.
func (w *Web3Signer) Upcheck(ctx context.Context) error {
	var resp string

	err := requests.
		URL(w.baseURL).
		Client(w.httpClient).
		Path("/upcheck").
		ToString(&resp).
		Fetch(ctx)
	if err != nil {
		return errors.Wrap(err, "web3signer upcheck failed")
	}

	if strings.TrimSpace(resp) != "OK" {
		return errors.Errorf("web3signer upcheck returned %q", resp)
	}

	return nil
}

// ListKeys returns the public keys the signer holds.
func (w *Web3Signer) ListKeys(ctx context.Context) ([]string, error) {
	w.log.Debug("Listing keys")

	var keys []string

	err := requests.
		URL(w.baseURL).
		Client(w.httpClient).
		Path("/api/v1/eth2/publicKeys").
		ToJSON(&keys).
		Fetch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list web3signer keys")
	}

	w.log.WithField("count", len(keys)).Debug("Listed keys")

	return keys, nil
}

// Sign asks the remote signer for a signature by publicKey over req.
func (w *Web3Signer) Sign(ctx context.Context, publicKey []byte, req SignRequest) ([]byte, error) {
	pk := hexutil.Encode(publicKey)
	log := w.log.WithFields(logrus.Fields{
		"pubkey": pk,
		"type":   req.Type,
	})

	log.Debug("Signing")

	var resp string

	err := requests.
		URL(w.baseURL).
		Client(w.httpClient).
		Pathf("/api/v1/eth2/sign/%s", pk).
		BodyJSON(signRequestBody{
			Type:        req.Type,
			SigningRoot: hexutil.Encode(req.SigningRoot[:]),
		}).
		Post().
		ToString(&resp).
		Fetch(ctx)
	if err != nil {
		log.Errorf("Remote signing failed: %v", err)

		return nil, errors.Wrap(err, "web3signer sign request failed")
	}

	sig, err := hexutil.Decode(strings.TrimSpace(resp))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode signature %q", resp)
	}

	if len(sig) != fieldparams.BLSSignatureLength {
		return nil, errors.Errorf("unexpected signature length %d, expected %d", len(sig), fieldparams.BLSSignatureLength)
	}

	return sig, nil
}
