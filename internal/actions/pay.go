// Package actions builds the dashboard's write transactions and submits them
// with a local signer.
package actions

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/juicescan/internal/amount"
	"github.com/R3E-Network/juicescan/internal/juicebox"
)

// PayMemo is attached to every payment made from the dashboard.
const PayMemo = "paid on juicescan.io"

// PayMetadata is the metadata payload of a payment: the single byte 0x00.
var PayMetadata = []byte{0x00}

var (
	// ErrNoAccount is returned when a write needs a connected account.
	ErrNoAccount = errors.New("no connected account")
	// ErrNotConfigured is returned when the network lacks a contract the
	// action needs.
	ErrNotConfigured = errors.New("not configured")
)

// PayArgs are the arguments of a terminal.pay call plus the value sent with
// it.
type PayArgs struct {
	Params juicebox.PayParams
	Value  *big.Int
}

// BuildPayArgs converts a decimal ether amount into pay arguments for account.
// It returns nil without error when no account is connected.
func BuildPayArgs(projectID *big.Int, amountText string, account *common.Address) (*PayArgs, error) {
	if account == nil {
		return nil, nil
	}
	if projectID == nil || projectID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid project id")
	}
	wei, err := amount.Parse(amountText, juicebox.EtherDecimals)
	if err != nil {
		return nil, err
	}
	return &PayArgs{
		Params: juicebox.PayParams{
			ProjectID:         new(big.Int).Set(projectID),
			Token:             juicebox.NativeToken,
			Amount:            wei,
			Beneficiary:       *account,
			MinReturnedTokens: new(big.Int),
			Memo:              PayMemo,
			Metadata:          append([]byte(nil), PayMetadata...),
		},
		Value: new(big.Int).Set(wei),
	}, nil
}

// Tx encodes the payment as a transaction to terminal.
func (p *PayArgs) Tx(terminal common.Address) (TxRequest, error) {
	data, err := juicebox.EncodePay(p.Params)
	if err != nil {
		return TxRequest{}, err
	}
	return newTxRequest(p.Params.Beneficiary, terminal, p.Value, data), nil
}
