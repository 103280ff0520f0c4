package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds a local account key used by the CLI and by servers running
// with SIGNER_PRIVATE_KEY. Browser users sign in their own wallet instead.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex-encoded secp256k1 private key.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the signer's account.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTx signs tx for chainID.
func (s *Signer) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// gasHeadroomPercent is added on top of eth_estimateGas.
const gasHeadroomPercent = 20

// SendTransaction fills nonce, gas price and gas limit, signs with signer and
// broadcasts. It returns the transaction hash without waiting for inclusion.
func (c *Client) SendTransaction(ctx context.Context, signer *Signer, to common.Address, value *big.Int, data []byte) (string, error) {
	if value == nil {
		value = new(big.Int)
	}
	from := signer.Address()

	nonce, err := c.PendingNonce(ctx, from.Hex())
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("get gas price: %w", err)
	}
	gas, err := c.EstimateGas(ctx, from, to, value, data)
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasHeadroomPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signed, err := signer.SignTx(new(big.Int).SetUint64(c.chainID), tx)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	return c.SendRawTransaction(ctx, raw)
}
