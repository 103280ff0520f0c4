package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/pkg/logger"
)

// nonceNode is a JSON-RPC node whose pending nonce is the number of raw
// transactions it has accepted. The nonce read is slow so unordered sends
// would observe the same value.
type nonceNode struct {
	mu     sync.Mutex
	nonces []uint64
}

func (n *nonceNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := "null"
	switch req.Method {
	case "eth_getTransactionCount":
		n.mu.Lock()
		count := uint64(len(n.nonces))
		n.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		result = fmt.Sprintf("%q", hexutil.EncodeUint64(count))
	case "eth_gasPrice":
		result = `"0x64"`
	case "eth_estimateGas":
		result = `"0x5208"`
	case "eth_sendRawTransaction":
		var raw string
		if len(req.Params) != 1 || json.Unmarshal(req.Params[0], &raw) != nil {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}
		data, err := hexutil.Decode(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var tx types.Transaction
		if err := tx.UnmarshalBinary(data); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n.mu.Lock()
		n.nonces = append(n.nonces, tx.Nonce())
		n.mu.Unlock()
		result = fmt.Sprintf("%q", tx.Hash().Hex())
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
}

func (n *nonceNode) sent() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.nonces...)
}

func TestSubmitterConcurrentSendsUseDistinctNonces(t *testing.T) {
	node := &nonceNode{}
	srv := httptest.NewServer(node)
	defer srv.Close()

	client, err := chain.NewClient(chain.Config{RPCURL: srv.URL, ChainID: 11155111, Timeout: 5 * time.Second})
	require.NoError(t, err)
	signer, err := chain.NewSigner(devKey)
	require.NoError(t, err)
	s, err := NewSubmitter(client, signer, SubmitterConfig{PollInterval: 10 * time.Millisecond, Logger: logger.NewNop()})
	require.NoError(t, err)

	const sends = 4
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	var wg sync.WaitGroup
	hashes := make([]string, sends)
	errs := make([]error, sends)
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, err := s.Submit(context.Background(), "pay", TxRequest{To: to, Value: (*hexutil.Big)(big.NewInt(int64(i + 1)))})
			hashes[i], errs[i] = status.Hash, err
		}(i)
	}
	wg.Wait()
	s.Close()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []uint64{0, 1, 2, 3}, node.sent())
	for _, hash := range hashes {
		_, err := s.Status(hash)
		assert.NoError(t, err)
	}
}

// hashBackend hands out a fresh hash per send and never mines anything.
type hashBackend struct {
	mu sync.Mutex
	n  int
}

func (b *hashBackend) SendTransaction(context.Context, *chain.Signer, common.Address, *big.Int, []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	return fmt.Sprintf("0x%064x", b.n), nil
}

func (b *hashBackend) WaitForReceipt(ctx context.Context, _ string, _ time.Duration) (*chain.Receipt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSubmitterForgetsOldestBeyondCap(t *testing.T) {
	signer, err := chain.NewSigner(devKey)
	require.NoError(t, err)
	s, err := NewSubmitter(&hashBackend{}, signer, SubmitterConfig{MaxTracked: 2, Logger: logger.NewNop()})
	require.NoError(t, err)
	defer s.Close()

	var hashes []string
	for i := 0; i < 3; i++ {
		status, err := s.Submit(context.Background(), "pay", TxRequest{})
		require.NoError(t, err)
		hashes = append(hashes, status.Hash)
	}

	_, err = s.Status(hashes[0])
	assert.ErrorIs(t, err, ErrUnknownTx)
	for _, hash := range hashes[1:] {
		status, err := s.Status(hash)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, status.Status)
	}
}
