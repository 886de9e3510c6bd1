package ton

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/ratelimit"
)

// HTTPClient talks to a toncenter-style JSON API. Every call goes through
// the shared rate limiter so the relayer as a whole respects provider
// quotas.
type HTTPClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger
}

// NewHTTPClient creates a chain RPC client against the given API endpoint.
func NewHTTPClient(endpoint, apiKey string, limiter *ratelimit.Limiter, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{},
		limiter:  limiter,
		logger:   logger.With().Str("component", "ton_client").Logger(),
	}
}

type apiEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type getMethodResult struct {
	ExitCode int        `json:"exit_code"`
	Stack    [][]string `json:"stack"`
}

// Transactions implements Client.
func (c *HTTPClient) Transactions(ctx context.Context, address string, limit int) ([]APITransaction, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("archival", "true")

	var txs []APITransaction
	if err := c.get(ctx, "getTransactions", params, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Balance implements Client.
func (c *HTTPClient) Balance(ctx context.Context, address string) (*big.Int, error) {
	params := url.Values{}
	params.Set("address", address)

	var raw string
	if err := c.get(ctx, "getAddressBalance", params, &raw); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeParse, "malformed balance %q for %s", raw, address)
	}
	return balance, nil
}

// Seqno implements Client.
func (c *HTTPClient) Seqno(ctx context.Context, address string) (uint32, error) {
	stack, err := c.runGetMethod(ctx, address, "seqno", nil)
	if err != nil {
		return 0, err
	}
	n, err := stackNum(stack, 0)
	if err != nil {
		return 0, err
	}
	return uint32(n.Uint64()), nil
}

// TokenWalletAddress implements Client.
func (c *HTTPClient) TokenWalletAddress(ctx context.Context, owner, master string) (string, error) {
	stack, err := c.runGetMethod(ctx, master, "get_wallet_address", []string{owner})
	if err != nil {
		return "", err
	}
	return stackAddress(stack, 0)
}

// TokenBalance implements Client. It resolves the owner's jetton wallet via
// the master contract, then reads the wallet's balance.
func (c *HTTPClient) TokenBalance(ctx context.Context, owner, master string) (*big.Int, error) {
	walletAddr, err := c.TokenWalletAddress(ctx, owner, master)
	if err != nil {
		return nil, err
	}

	stack, err := c.runGetMethod(ctx, walletAddr, "get_wallet_data", nil)
	if err != nil {
		return nil, err
	}
	return stackNum(stack, 0)
}

// PoolReserves implements Client.
func (c *HTTPClient) PoolReserves(ctx context.Context, pool string) (*big.Int, *big.Int, error) {
	stack, err := c.runGetMethod(ctx, pool, "get_pool_data", nil)
	if err != nil {
		return nil, nil, err
	}
	reserve0, err := stackNum(stack, 0)
	if err != nil {
		return nil, nil, err
	}
	reserve1, err := stackNum(stack, 1)
	if err != nil {
		return nil, nil, err
	}
	return reserve0, reserve1, nil
}

// SendMessage implements Client.
func (c *HTTPClient) SendMessage(ctx context.Context, payload []byte) error {
	body := map[string]string{"boc": base64.StdEncoding.EncodeToString(payload)}
	return c.post(ctx, "sendBoc", body, nil)
}

// runGetMethod invokes a contract get-method and returns the raw stack.
func (c *HTTPClient) runGetMethod(ctx context.Context, address, method string, args []string) ([][]string, error) {
	stackArgs := make([][]string, 0, len(args))
	for _, a := range args {
		stackArgs = append(stackArgs, []string{"slice", a})
	}
	body := map[string]interface{}{
		"address": address,
		"method":  method,
		"stack":   stackArgs,
	}

	var result getMethodResult
	if err := c.post(ctx, "runGetMethod", body, &result); err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, errors.Newf(errors.ErrCodeRPC, "get-method %s on %s exited with code %d", method, address, result.ExitCode)
	}
	return result.Stack, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	return c.limiter.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+path+"?"+params.Encode(), nil)
		if err != nil {
			return errors.WrapRelay(err, errors.ErrCodeInternal, "build request")
		}
		return c.roundTrip(req, out)
	})
}

func (c *HTTPClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.limiter.Do(ctx, func() error {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.WrapRelay(err, errors.ErrCodeInternal, "encode request body")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+path, bytes.NewReader(encoded))
		if err != nil {
			return errors.WrapRelay(err, errors.ErrCodeInternal, "build request")
		}
		req.Header.Set("Content-Type", "application/json")
		return c.roundTrip(req, out)
	})
}

func (c *HTTPClient) roundTrip(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapRelay(err, errors.ErrCodeRPC, "chain RPC request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return errors.Newf(errors.ErrCodeRPC, "chain RPC returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCodeInternal, "chain RPC returned status %d", resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.WrapRelay(err, errors.ErrCodeParse, "decode RPC envelope")
	}
	if !envelope.OK {
		return errors.Newf(errors.ErrCodeRPC, "chain RPC error: %s", envelope.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return errors.WrapRelay(err, errors.ErrCodeParse, "decode RPC result")
	}
	return nil
}

func stackNum(stack [][]string, idx int) (*big.Int, error) {
	if idx >= len(stack) || len(stack[idx]) < 2 {
		return nil, errors.Newf(errors.ErrCodeParse, "get-method stack missing entry %d", idx)
	}
	kind, value := stack[idx][0], stack[idx][1]
	if kind != "num" {
		return nil, errors.Newf(errors.ErrCodeParse, "get-method stack entry %d is %s, want num", idx, kind)
	}
	n := new(big.Int)
	if _, ok := n.SetString(value, 0); !ok {
		return nil, errors.Newf(errors.ErrCodeParse, "malformed stack number %q", value)
	}
	return n, nil
}

func stackAddress(stack [][]string, idx int) (string, error) {
	if idx >= len(stack) || len(stack[idx]) < 2 {
		return "", errors.Newf(errors.ErrCodeParse, "get-method stack missing entry %d", idx)
	}
	kind, value := stack[idx][0], stack[idx][1]
	if kind != "slice" && kind != "cell" {
		return "", errors.Newf(errors.ErrCodeParse, "get-method stack entry %d is %s, want slice", idx, kind)
	}
	if value == "" {
		return "", errors.New(errors.ErrCodeParse, "empty address slice in stack")
	}
	return value, nil
}

var _ Client = (*HTTPClient)(nil)

// String renders the client target for logs without leaking the API key.
func (c *HTTPClient) String() string {
	return fmt.Sprintf("ton-rpc(%s)", c.endpoint)
}
