package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// =============================================================================
// Contract Invocation Methods
// =============================================================================

// CallContract executes a read-only call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := CallMsg{To: to.Hex(), Data: hexutil.Encode(data)}
	result, err := c.Call(ctx, "eth_call", []interface{}{msg, "latest"})
	if err != nil {
		return nil, err
	}
	return ParseData(result)
}

// EstimateGas estimates the gas a transaction will use.
func (c *Client) EstimateGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (uint64, error) {
	msg := CallMsg{From: from.Hex(), To: to.Hex(), Data: hexutil.Encode(data)}
	if value != nil && value.Sign() > 0 {
		msg.Value = hexutil.EncodeBig(value)
	}
	result, err := c.Call(ctx, "eth_estimateGas", []interface{}{msg})
	if err != nil {
		return 0, err
	}
	return parseQuantityUint(result)
}

// SendRawTransaction broadcasts a signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx []byte) (string, error) {
	result, err := c.Call(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(rawTx)})
	if err != nil {
		return "", err
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("unmarshal tx hash: %w", err)
	}
	return hash, nil
}

// ErrTxReverted is returned by WaitForReceipt when the receipt status is 0.
var ErrTxReverted = errors.New("transaction reverted")

// DefaultTxWaitTimeout is the default timeout for waiting for a receipt.
const DefaultTxWaitTimeout = 2 * time.Minute

// DefaultPollInterval is the default interval for polling receipts.
const DefaultPollInterval = 2 * time.Second

// WaitForReceipt polls for the receipt of txHash until it is mined or ctx is
// done. A missing receipt means the transaction is still pending.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string, pollInterval time.Duration) (*Receipt, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			if !receipt.Succeeded() {
				return receipt, ErrTxReverted
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SendRawTransactionAndWait broadcasts a signed transaction and waits for
// its receipt. If waitTimeout is 0, DefaultTxWaitTimeout is used.
func (c *Client) SendRawTransactionAndWait(ctx context.Context, rawTx []byte, pollInterval, waitTimeout time.Duration) (string, *Receipt, error) {
	txHash, err := c.SendRawTransaction(ctx, rawTx)
	if err != nil {
		return "", nil, err
	}

	if waitTimeout <= 0 {
		waitTimeout = DefaultTxWaitTimeout
	}

	wctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	receipt, err := c.WaitForReceipt(wctx, txHash, pollInterval)
	return txHash, receipt, err
}
