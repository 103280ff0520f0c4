package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	chains := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(chains, []byte(testNetworksYAML), 0o600))

	subgraph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"projects":[{"projectId":"1"},{"projectId":"7"}]}}`))
	}))
	t.Cleanup(subgraph.Close)

	return &config.Config{
		WalletConnectProjectID: "wc-test",
		InfuraID:               "infura-test",
		SubgraphURL:            subgraph.URL,
		ListenAddr:             "127.0.0.1:0",
		ChainsFile:             chains,
		IPFSGatewayHost:        "ipfs.example.org",
		MetadataCacheSize:      16,
		IndexRefreshSchedule:   "@every 1h",
		RPCRateLimit:           10,
		HTTPRateLimit:          100,
		CORSOrigins:            "*",
		LogLevel:               "error",
		LogFormat:              "text",
		LogOutput:              "stderr",
		ReadTimeout:            5 * time.Second,
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, "test")
	assert.Error(t, err)
}

func TestNewRejectsBadSigner(t *testing.T) {
	cfg := testConfig(t)
	cfg.SignerPrivateKey = "not-a-key"
	_, err := New(cfg, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signer")
}

func TestNewWiresComponents(t *testing.T) {
	app, err := New(testConfig(t), "test")
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Chains)
	assert.NotNil(t, app.Metadata)
	assert.NotNil(t, app.Index)
	assert.NotNil(t, app.Aggregator)
	assert.NotNil(t, app.Actions)
	assert.Nil(t, app.Submitter)
	assert.False(t, app.Actions.Signer())

	handler, err := app.Handler()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewWithSigner(t *testing.T) {
	cfg := testConfig(t)
	cfg.SignerPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	app, err := New(cfg, "test")
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Submitter)
	assert.True(t, app.Actions.Signer())
	assert.True(t, app.Chains.Snapshot().Connected())
}

func TestRunServesUntilCancelled(t *testing.T) {
	app, err := New(testConfig(t), "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case <-app.Listening():
	case err := <-done:
		t.Fatalf("run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + app.Addr() + "/api/projects")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Projects []struct {
			ID int64 `json:"projectId"`
		} `json:"projects"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Projects, 2)
	assert.ElementsMatch(t, []int64{1, 7}, []int64{body.Projects[0].ID, body.Projects[1].ID})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
