package beacon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-keymanager/pkg/logging"
)

var log = logging.WithComponent("beacon")

// BeaconAPI handles interactions with the beacon node
type BeaconAPI struct {
	baseURL string
	client  *http.Client
}

// NewBeaconAPI creates a new BeaconAPI instance
func NewBeaconAPI(baseURL string) *BeaconAPI {
	return &BeaconAPI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// FetchGenesisValidatorsRoot returns the genesis validators root of the node's network.
func (b *BeaconAPI) FetchGenesisValidatorsRoot(ctx context.Context) (string, error) {
	endpoint := "/eth/v1/beacon/genesis"

	requestURL, err := url.Parse(b.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse base URL")
	}

	requestURL.Path += endpoint

	urlStr := requestURL.String()

	log.WithField("url", urlStr).Debug("Fetching genesis")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch genesis")
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return "", errors.Errorf("failed to fetch genesis: %s - %s", resp.Status, string(body))
	}

	var result struct {
		Data struct {
			GenesisTime           string `json:"genesis_time"`
			GenesisValidatorsRoot string `json:"genesis_validators_root"`
			GenesisForkVersion    string `json:"genesis_fork_version"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(err, "failed to decode genesis")
	}

	root, err := hexutil.Decode(result.Data.GenesisValidatorsRoot)
	if err != nil || len(root) != 32 {
		return "", errors.Errorf("invalid genesis validators root %q", result.Data.GenesisValidatorsRoot)
	}

	log.WithField("genesis_validators_root", result.Data.GenesisValidatorsRoot).Debug("Genesis fetched")

	return hexutil.Encode(root), nil
}
