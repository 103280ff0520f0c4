package actions

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxRequest is an unsigned transaction in the shape browser wallets accept
// for eth_sendTransaction.
type TxRequest struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

func newTxRequest(from, to common.Address, value *big.Int, data []byte) TxRequest {
	if value == nil {
		value = new(big.Int)
	}
	return TxRequest{From: from, To: to, Value: (*hexutil.Big)(new(big.Int).Set(value)), Data: data}
}

// ValueInt returns the value as a big.Int.
func (r TxRequest) ValueInt() *big.Int {
	if r.Value == nil {
		return new(big.Int)
	}
	return r.Value.ToInt()
}
