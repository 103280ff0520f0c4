// Package chain provides EVM JSON-RPC access for juicescan.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/R3E-Network/juicescan/internal/metrics"
)

// Client is a JSON-RPC client for one EVM network.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	chainID    uint64
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	nextID     atomic.Uint64
}

// Config holds client configuration.
type Config struct {
	RPCURL  string
	ChainID uint64 // Sepolia: 11155111, OP Sepolia: 11155420
	Timeout time.Duration

	// RateLimit caps outgoing calls per second. Zero disables limiting.
	RateLimit float64
	Burst     int

	Metrics *metrics.Metrics
}

// NewClient creates a new EVM client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		chainID: cfg.ChainID,
		limiter: limiter,
		metrics: cfg.Metrics,
	}, nil
}

// ConfiguredChainID returns the chain id the client was created for.
func (c *Client) ConfiguredChainID() uint64 {
	return c.chainID
}

// =============================================================================
// Core RPC Methods
// =============================================================================

// Call makes an RPC call to the node and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRPCCall(method, time.Since(start), err)
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	if params == nil {
		params = []interface{}{}
	}
	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("rpc http status %d", resp.StatusCode)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "eth_chainId", nil)
	if err != nil {
		return 0, err
	}
	return parseQuantityUint(result)
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	return parseQuantityUint(result)
}

// GasPrice returns the node's suggested legacy gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_gasPrice", nil)
	if err != nil {
		return nil, err
	}
	return parseQuantity(result)
}

// PendingNonce returns the next nonce for account, including pending txs.
func (c *Client) PendingNonce(ctx context.Context, account string) (uint64, error) {
	result, err := c.Call(ctx, "eth_getTransactionCount", []interface{}{account, "pending"})
	if err != nil {
		return 0, err
	}
	return parseQuantityUint(result)
}

// TransactionReceipt returns the receipt for txHash, or nil while the
// transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash})
	if err != nil {
		return nil, err
	}
	if isNull(result) {
		return nil, nil
	}

	var receipt Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &receipt, nil
}
