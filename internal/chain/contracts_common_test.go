package chain

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validNetworksYAML = `
networks:
  - id: 11155420
    name: OP Sepolia
    slug: opsepolia
    rpc_url: https://optimism-sepolia.infura.io/v3/{infura_id}
    contracts:
      projects: "0x0000000000000000000000000000000000000011"
      directory: "0x0000000000000000000000000000000000000012"
      splits: "0x0000000000000000000000000000000000000013"
      tokens: "0x0000000000000000000000000000000000000014"
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
      launch_terminal: "0xa731EE2C4A8B513a481b6a916209aC8Ac64cab8F"
`

func TestParseNetworks(t *testing.T) {
	nets, err := ParseNetworks([]byte(validNetworksYAML))
	require.NoError(t, err)
	require.Len(t, nets.Networks, 2)

	// sorted by id
	assert.Equal(t, uint64(11155111), nets.Networks[0].ID)
	assert.Equal(t, uint64(11155420), nets.Networks[1].ID)

	op, ok := nets.Find(11155420)
	require.True(t, ok)
	assert.Equal(t, "ETH", op.NativeSymbol)
	_, ok = op.Contracts.LaunchControllerAddress()
	assert.False(t, ok)

	sep, ok := nets.Find(11155111)
	require.True(t, ok)
	assert.Equal(t, "https://sepolia.infura.io/v3/abc", sep.RPCEndpoint("abc"))
	terminal, ok := sep.Contracts.LaunchTerminalAddress()
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xa731EE2C4A8B513a481b6a916209aC8Ac64cab8F"), terminal)
	assert.Equal(t, common.HexToAddress("0x02"), sep.Contracts.DirectoryAddress())

	_, ok = nets.Find(1)
	assert.False(t, ok)
}

func TestParseNetworksRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "unset contract",
			mutate:  func(s string) string { return strings.Replace(s, "0x0000000000000000000000000000000000000002", "0x0000000000000000000000000000000000000000", 1) },
			wantErr: "contracts.directory is unset",
		},
		{
			name:    "malformed contract",
			mutate:  func(s string) string { return strings.Replace(s, "0x0000000000000000000000000000000000000013", "splits", 1) },
			wantErr: "contracts.splits",
		},
		{
			name:    "duplicate id",
			mutate:  func(s string) string { return strings.Replace(s, "id: 11155420", "id: 11155111", 1) },
			wantErr: "duplicate id",
		},
		{
			name:    "missing rpc",
			mutate:  func(s string) string { return strings.Replace(s, "rpc_url: https://sepolia.infura.io/v3/{infura_id}", "rpc_url: \"\"", 1) },
			wantErr: "rpc_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNetworks([]byte(tt.mutate(validNetworksYAML)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := ParseNetworks([]byte("networks: []"))
	assert.Error(t, err)
}

func TestLoadNetworksFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validNetworksYAML), 0o600))

	nets, err := LoadNetworks(path)
	require.NoError(t, err)
	assert.Len(t, nets.Networks, 2)

	_, err = LoadNetworks(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEmbeddedNetworksNeedAddresses(t *testing.T) {
	// The shipped registry carries placeholders and must be overridden.
	_, err := LoadNetworks("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is unset")
}

func testNetworks(t *testing.T) *Networks {
	t.Helper()
	nets, err := ParseNetworks([]byte(validNetworksYAML))
	require.NoError(t, err)
	return nets
}

func TestContextLifecycle(t *testing.T) {
	cctx, err := NewContext(ContextConfig{Networks: testNetworks(t), InfuraID: "abc"})
	require.NoError(t, err)

	snap := cctx.Snapshot()
	assert.Equal(t, uint64(11155111), snap.Network.ID)
	assert.False(t, snap.Connected())
	assert.Equal(t, uint64(11155111), snap.Client.ConfiguredChainID())

	owner := common.HexToAddress("0x0028C35095D34C9C8a3bc84cB8542cB182fcfa8e")
	require.NoError(t, cctx.Connect(owner))
	snap = cctx.Snapshot()
	require.True(t, snap.Connected())
	assert.Equal(t, owner, *snap.Account)

	// snapshots are detached from later mutation
	cctx.Disconnect()
	assert.Equal(t, owner, *snap.Account)
	assert.False(t, cctx.Snapshot().Connected())

	require.NoError(t, cctx.SwitchChain(11155420))
	assert.Equal(t, "OP Sepolia", cctx.Snapshot().Network.Name)
	assert.True(t, errors.Is(cctx.SwitchChain(1), ErrUnknownNetwork))

	other, err := cctx.ForChain(11155111)
	require.NoError(t, err)
	assert.Equal(t, "Sepolia", other.Network.Name)
	assert.Equal(t, "OP Sepolia", cctx.Snapshot().Network.Name)

	cctx.Close()
	assert.ErrorIs(t, cctx.Connect(owner), ErrContextClosed)
	assert.ErrorIs(t, cctx.SwitchChain(11155111), ErrContextClosed)
	_, err = cctx.ForChain(11155111)
	assert.ErrorIs(t, err, ErrContextClosed)
	cctx.Close()
}

func TestNewContextUnknownDefault(t *testing.T) {
	_, err := NewContext(ContextConfig{Networks: testNetworks(t), DefaultChainID: 1})
	assert.ErrorIs(t, err, ErrUnknownNetwork)

	_, err = NewContext(ContextConfig{})
	assert.Error(t, err)
}
