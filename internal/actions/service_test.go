package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/juicescan/internal/amount"
	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/juicebox"
	"github.com/R3E-Network/juicescan/internal/project"
)

const serviceNetworksYAML = `
networks:
  - id: 11155111
    name: Sepolia
    slug: sepolia
    rpc_url: https://sepolia.infura.io/v3/{infura_id}
    explorer: https://sepolia.etherscan.io
    native_symbol: SepoliaETH
    contracts:
      projects: "0x0000000000000000000000000000000000000001"
      directory: "0x0000000000000000000000000000000000000002"
      splits: "0x0000000000000000000000000000000000000003"
      tokens: "0x0000000000000000000000000000000000000004"
      launch_controller: "0x0000000000000000000000000000000000000005"
  - id: 11155420
    name: OP Sepolia
    slug: opsepolia
    rpc_url: https://optimism-sepolia.infura.io/v3/{infura_id}
    contracts:
      projects: "0x0000000000000000000000000000000000000011"
      directory: "0x0000000000000000000000000000000000000012"
      splits: "0x0000000000000000000000000000000000000013"
      tokens: "0x0000000000000000000000000000000000000014"
`

var primaryTerminal = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type directoryCaller struct {
	terminal common.Address
}

func (c directoryCaller) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return juicebox.DirectoryABI.Methods["primaryTerminalOf"].Outputs.Pack(c.terminal)
}

type stubResolver struct {
	networks *chain.Networks
	terminal common.Address
}

func (r stubResolver) Resolve(chainID uint64) (*juicebox.Reader, chain.Network, error) {
	if chainID == 0 {
		chainID = r.networks.Networks[0].ID
	}
	n, ok := r.networks.Find(chainID)
	if !ok {
		return nil, chain.Network{}, chain.ErrUnknownNetwork
	}
	return juicebox.NewReader(directoryCaller{r.terminal}, project.ContractsOf(n)), n, nil
}

type stubSender struct {
	account common.Address
	sent    []TxRequest
}

func (s *stubSender) Account() common.Address { return s.account }

func (s *stubSender) Submit(ctx context.Context, action string, req TxRequest) (TxStatus, error) {
	s.sent = append(s.sent, req)
	return TxStatus{Hash: "0xfeed", Action: action, Status: StatusPending}, nil
}

func newTestService(t *testing.T, terminal common.Address, sender Sender) *Service {
	t.Helper()
	return newTestServiceYAML(t, serviceNetworksYAML, terminal, sender)
}

func newTestServiceYAML(t *testing.T, yaml string, terminal common.Address, sender Sender) *Service {
	t.Helper()
	networks, err := chain.ParseNetworks([]byte(yaml))
	require.NoError(t, err)
	chains, err := chain.NewContext(chain.ContextConfig{Networks: networks, InfuraID: "test"})
	require.NoError(t, err)
	t.Cleanup(chains.Close)

	svc, err := NewService(chains, stubResolver{networks: networks, terminal: terminal}, sender)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, stubResolver{}, nil)
	assert.Error(t, err)
}

func TestServicePayUnsigned(t *testing.T) {
	svc := newTestService(t, primaryTerminal, nil)
	assert.False(t, svc.Signer())

	res, err := svc.Pay(context.Background(), big.NewInt(3), "0.5", account.Hex(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(11155111), res.ChainID)
	assert.Nil(t, res.Submitted)
	require.NotNil(t, res.Request)
	assert.Equal(t, account, res.Request.From)
	assert.Equal(t, primaryTerminal, res.Request.To)
	assert.Equal(t, "500000000000000000", res.Request.ValueInt().String())
}

func TestServicePayErrors(t *testing.T) {
	tests := []struct {
		name     string
		terminal common.Address
		amount   string
		account  string
		chainID  uint64
		want     error
	}{
		{"no account", primaryTerminal, "1", "", 0, ErrNoAccount},
		{"bad account", primaryTerminal, "1", "0x12", 0, ErrInvalidAccount},
		{"bad amount", primaryTerminal, "1.2.3", account.Hex(), 0, amount.ErrInvalidAmount},
		{"unknown chain", primaryTerminal, "1", account.Hex(), 1, chain.ErrUnknownNetwork},
		{"no terminal", common.Address{}, "1", account.Hex(), 0, project.ErrNoPrimaryTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.terminal, nil)
			_, err := svc.Pay(context.Background(), big.NewInt(3), tt.amount, tt.account, tt.chainID)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestServiceIgnoresSignerUnlessLocal(t *testing.T) {
	sender := &stubSender{account: account}
	svc := newTestService(t, primaryTerminal, sender)
	assert.True(t, svc.Signer())

	_, err := svc.Pay(context.Background(), big.NewInt(3), "1", "", 0)
	assert.ErrorIs(t, err, ErrNoAccount)
	_, err = svc.Launch(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrNoAccount)

	// The signer's own account still comes back unsigned.
	res, err := svc.Pay(context.Background(), big.NewInt(3), "1", account.Hex(), 0)
	require.NoError(t, err)
	assert.NotNil(t, res.Request)
	assert.Nil(t, res.Submitted)
	assert.Empty(t, sender.sent)
}

func TestServicePaySubmitsWithLocalSigner(t *testing.T) {
	sender := &stubSender{account: account}
	svc := newTestService(t, primaryTerminal, sender).Local()

	res, err := svc.Pay(context.Background(), big.NewInt(3), "1", "", 0)
	require.NoError(t, err)
	require.NotNil(t, res.Submitted)
	assert.Nil(t, res.Request)
	assert.Equal(t, "0xfeed", res.Submitted.Hash)
	assert.Equal(t, "pay", res.Submitted.Action)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xfeed", res.Explorer)
	require.Len(t, sender.sent, 1)
}

func TestServiceDispatchOnlySignsOwnActiveTx(t *testing.T) {
	sender := &stubSender{account: account}
	svc := newTestService(t, primaryTerminal, sender).Local()
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	// Another payer gets an unsigned request.
	res, err := svc.Pay(context.Background(), big.NewInt(3), "1", other.Hex(), 0)
	require.NoError(t, err)
	assert.NotNil(t, res.Request)

	// The signer's own tx on an inactive network is not sent either.
	res, err = svc.Pay(context.Background(), big.NewInt(3), "1", "", 11155420)
	require.NoError(t, err)
	assert.NotNil(t, res.Request)
	assert.Equal(t, uint64(11155420), res.ChainID)
	assert.Empty(t, sender.sent)
}

func TestServiceLaunch(t *testing.T) {
	svc := newTestService(t, primaryTerminal, nil)

	res, err := svc.Launch(context.Background(), account.Hex(), 0)
	require.NoError(t, err)
	require.NotNil(t, res.Request)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000005"), res.Request.To)

	_, err = svc.Launch(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrNoAccount)

	_, err = svc.Launch(context.Background(), account.Hex(), 11155420)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

const txHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

func TestServiceTxStatus(t *testing.T) {
	reverted := "0x" + strings.Repeat("ab", 32)
	receipts := map[string]string{
		txHash:   `{"transactionHash":"` + txHash + `","blockNumber":"0x10","status":"0x1","gasUsed":"0x5208"}`,
		reverted: `{"transactionHash":"` + reverted + `","blockNumber":"0x11","status":"0x0","gasUsed":"0x5208"}`,
	}
	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64        `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result := "null"
		if req.Method == "eth_getTransactionReceipt" && len(req.Params) == 1 {
			if raw, ok := receipts[req.Params[0].(string)]; ok {
				result = raw
			}
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
	}))
	defer rpc.Close()

	yaml := strings.Replace(serviceNetworksYAML, "https://sepolia.infura.io/v3/{infura_id}", rpc.URL, 1)
	svc := newTestServiceYAML(t, yaml, primaryTerminal, nil)

	status, err := svc.TxStatus(context.Background(), 0, txHash)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status.Status)
	assert.Equal(t, "0x10", status.BlockNumber)

	status, err = svc.TxStatus(context.Background(), 11155111, reverted)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)
	assert.NotEmpty(t, status.Error)

	status, err = svc.TxStatus(context.Background(), 0, "0x"+strings.Repeat("cd", 32))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status)

	_, err = svc.TxStatus(context.Background(), 0, "0xabc")
	assert.ErrorIs(t, err, ErrInvalidTxHash)
	_, err = svc.TxStatus(context.Background(), 1, txHash)
	assert.ErrorIs(t, err, chain.ErrUnknownNetwork)
}
