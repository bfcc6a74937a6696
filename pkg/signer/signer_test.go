package signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prysmaticlabs/prysm/v5/crypto/bls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigningRoot() [32]byte {
	var root [32]byte
	for i := range root {
		root[i] = byte(i)
	}

	return root
}

func TestLocalSigner(t *testing.T) {
	secret, err := bls.RandKey()
	require.NoError(t, err)

	s := NewLocal(secret)
	assert.Equal(t, KindLocal, s.Kind())

	_, ok := s.URL()
	assert.False(t, ok)

	root := testSigningRoot()

	raw, err := s.Sign(context.Background(), SignRequest{Type: TypeAttestation, SigningRoot: root})
	require.NoError(t, err)

	sig, err := bls.SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.True(t, sig.Verify(secret.PublicKey(), root[:]))

	s.Delete()
	assert.True(t, s.IsDeleted())

	_, err = s.Sign(context.Background(), SignRequest{Type: TypeAttestation, SigningRoot: root})
	assert.ErrorIs(t, err, ErrSignerDeleted)

	s.Delete()
	assert.True(t, s.IsDeleted())
}

func TestNoOpSigner(t *testing.T) {
	s := NoOp()
	assert.Equal(t, KindNoOp, s.Kind())

	sig, err := s.Sign(context.Background(), SignRequest{})
	require.NoError(t, err)
	assert.Empty(t, sig)

	s.Delete()
	assert.False(t, s.IsDeleted())
}

func TestRemoteSigner(t *testing.T) {
	secret, err := bls.RandKey()
	require.NoError(t, err)

	publicKey := secret.PublicKey().Marshal()
	root := testSigningRoot()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/eth2/sign/"+hexutil.Encode(publicKey), r.URL.Path)

		var body signRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, TypeBlockV2, body.Type)
		assert.Equal(t, hexutil.Encode(root[:]), body.SigningRoot)

		_, err := w.Write([]byte(hexutil.Encode(secret.Sign(root[:]).Marshal())))
		require.NoError(t, err)
	}))
	defer server.Close()

	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)

	s := NewRemote(publicKey, endpoint, nil)
	assert.Equal(t, KindRemote, s.Kind())

	u, ok := s.URL()
	require.True(t, ok)
	assert.Equal(t, server.URL, u.String())

	raw, err := s.Sign(context.Background(), SignRequest{Type: TypeBlockV2, SigningRoot: root})
	require.NoError(t, err)

	sig, err := bls.SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.True(t, sig.Verify(secret.PublicKey(), root[:]))

	s.Delete()

	_, err = s.Sign(context.Background(), SignRequest{Type: TypeBlockV2, SigningRoot: root})
	assert.ErrorIs(t, err, ErrSignerDeleted)

	u, ok = s.URL()
	require.True(t, ok)
	assert.Equal(t, server.URL, u.String())
}

func TestWeb3SignerErrors(t *testing.T) {
	tests := []struct {
		name           string
		responseStatus int
		responseBody   string
	}{
		{
			name:           "server error",
			responseStatus: http.StatusInternalServerError,
			responseBody:   "internal error",
		},
		{
			name:           "not hex",
			responseStatus: http.StatusOK,
			responseBody:   "signature",
		},
		{
			name:           "short signature",
			responseStatus: http.StatusOK,
			responseBody:   "0x1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.responseStatus)
				_, err := w.Write([]byte(tt.responseBody))
				require.NoError(t, err)
			}))
			defer server.Close()

			_, err := NewWeb3Signer(server.URL).Sign(context.Background(), make([]byte, 48), SignRequest{Type: TypeAttestation})
			assert.Error(t, err)
		})
	}
}

func TestWeb3SignerUpcheckAndListKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upcheck":
			_, _ = w.Write([]byte("OK"))
		case "/api/v1/eth2/publicKeys":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`["0xaa","0xbb"]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewWeb3Signer(server.URL + "/")
	assert.Equal(t, server.URL, client.BaseURL())

	require.NoError(t, client.Upcheck(context.Background()))

	keys, err := client.ListKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xbb"}, keys)
}
