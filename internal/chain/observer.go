// Package chain provides read access to the blockchain used for
// deposits. Lookups return untrusted data; all address and amount
// validation happens in the deposit verifier.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Observer errors.
var (
	// ErrTxNotFound means the transaction id is unknown to the chain.
	ErrTxNotFound = errors.New("transaction not found on chain")
	// ErrUnavailable means the chain API could not be reached or timed
	// out. Safe to retry: no platform state was mutated.
	ErrUnavailable = errors.New("chain lookup unavailable")
)

// Tx is the subset of an on-chain transaction the platform cares about.
type Tx struct {
	To       string
	From     string
	ValueWei *big.Int
}

// ValueEth converts the native wei amount to the platform's decimal
// unit (1 ETH = 10^18 wei).
func (t *Tx) ValueEth() decimal.Decimal {
	return decimal.NewFromBigInt(t.ValueWei, -18)
}

// Observer looks up a transaction by its id.
type Observer interface {
	Lookup(ctx context.Context, txid string) (*Tx, error)
}

// EtherscanClient implements Observer against the etherscan JSON-RPC
// proxy API. Every request is bounded by the client timeout so a slow
// upstream can never stall callers indefinitely.
type EtherscanClient struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewEtherscanClient creates a client for the given API endpoint.
func NewEtherscanClient(apiURL, apiKey string, timeout time.Duration) *EtherscanClient {
	return &EtherscanClient{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// proxyResponse is the etherscan eth_getTransactionByHash envelope.
type proxyResponse struct {
	Result *struct {
		To    string `json:"to"`
		From  string `json:"from"`
		Value string `json:"value"`
	} `json:"result"`
}

// Lookup fetches transaction details by hash.
func (c *EtherscanClient) Lookup(ctx context.Context, txid string) (*Tx, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionByHash")
	params.Set("txhash", txid)
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chain request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if body.Result == nil {
		return nil, ErrTxNotFound
	}

	value, err := parseHexWei(body.Result.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &Tx{
		To:       body.Result.To,
		From:     body.Result.From,
		ValueWei: value,
	}, nil
}

// parseHexWei parses a 0x-prefixed hex amount.
func parseHexWei(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty transaction value")
	}
	value, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("invalid transaction value %q", s)
	}
	return value, nil
}
