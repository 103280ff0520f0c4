package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/juicescan/internal/actions"
	"github.com/R3E-Network/juicescan/internal/config"
)

const testNetworksYAML = `
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
      launch_terminal: "0x0000000000000000000000000000000000000006"
`

func useConfig(t *testing.T) {
	t.Helper()
	chains := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(chains, []byte(testNetworksYAML), 0o600))

	subgraph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"projects":[{"projectId":"3"}]}}`))
	}))
	t.Cleanup(subgraph.Close)

	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{
		WalletConnectProjectID: "wc-test",
		InfuraID:               "infura-test",
		SubgraphURL:            subgraph.URL,
		ListenAddr:             "127.0.0.1:0",
		ChainsFile:             chains,
		IPFSGatewayHost:        "ipfs.example.org",
		MetadataCacheSize:      16,
		IndexRefreshSchedule:   "@every 1h",
		RPCRateLimit:           10,
		HTTPRateLimit:          10,
		LogLevel:               "error",
		LogFormat:              "text",
		LogOutput:              "stderr",
		ReadTimeout:            5 * time.Second,
	}
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	return cmd, &out
}

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		rulesetFlag, chainFlag = "current", 0
		amountFlag, accountFlag, ownerFlag = "", "", ""
		waitFlag = false
	})
}

func TestParseProjectID(t *testing.T) {
	id, err := parseProjectID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.Int64())

	for _, bad := range []string{"", "0", "-1", "abc", "0x10"} {
		_, err := parseProjectID(bad)
		assert.Error(t, err, bad)
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestPreRunLoadsConfig(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	t.Setenv("WALLETCONNECT_PROJECT_ID", "wc")
	t.Setenv("INFURA_ID", "infura")
	t.Setenv("SUBGRAPH_URL", "https://subgraph.example.org/graphql")

	require.NoError(t, rootCmd.PersistentPreRunE(projectsCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "infura", cfg.InfuraID)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestPreRunRejectsMissingEnvFile(t *testing.T) {
	prev := envFile
	t.Cleanup(func() { envFile = prev })
	envFile = filepath.Join(t.TempDir(), "missing.env")

	assert.Error(t, rootCmd.PersistentPreRunE(projectsCmd, nil))
}

func TestRunNetworks(t *testing.T) {
	useConfig(t)
	cmd, out := testCommand()

	require.NoError(t, runNetworks(cmd, nil))
	var networks []struct {
		ID           uint64 `json:"id"`
		Name         string `json:"name"`
		NativeSymbol string `json:"nativeSymbol"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &networks))
	require.Len(t, networks, 1)
	assert.Equal(t, uint64(11155111), networks[0].ID)
	assert.Equal(t, "SepoliaETH", networks[0].NativeSymbol)
}

func TestRunProjects(t *testing.T) {
	useConfig(t)
	cmd, out := testCommand()

	require.NoError(t, runProjects(cmd, nil))
	var snap struct {
		Projects []struct {
			ID int64 `json:"projectId"`
		} `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	require.Len(t, snap.Projects, 1)
	assert.Equal(t, int64(3), snap.Projects[0].ID)
}

func TestRunPayNeedsAccount(t *testing.T) {
	useConfig(t)
	resetFlags(t)
	amountFlag = "1"
	cmd, _ := testCommand()

	err := runPay(cmd, []string{"3"})
	assert.ErrorIs(t, err, actions.ErrNoAccount)

	err = runPay(cmd, []string{"three"})
	assert.Error(t, err)
}

func TestRunPayRejectsAccount(t *testing.T) {
	useConfig(t)
	resetFlags(t)
	amountFlag, accountFlag = "1", "0x1234"
	cmd, _ := testCommand()

	assert.ErrorIs(t, runPay(cmd, []string{"3"}), actions.ErrInvalidAccount)
}

func TestRunLaunchUnsigned(t *testing.T) {
	useConfig(t)
	resetFlags(t)
	ownerFlag = "0x0028C35095D34C9C8a3bc84cB8542cB182fcfa8e"
	cmd, out := testCommand()

	require.NoError(t, runLaunch(cmd, nil))
	var res actions.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, uint64(11155111), res.ChainID)
	require.NotNil(t, res.Request)
	assert.Nil(t, res.Submitted)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000005"), res.Request.To)
	assert.Equal(t, common.HexToAddress(ownerFlag), res.Request.From)
	assert.NotEmpty(t, res.Request.Data)
}
