package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configVars = []string{
	"WALLETCONNECT_PROJECT_ID", "INFURA_ID", "SUBGRAPH_URL", "LISTEN_ADDR",
	"CHAINS_FILE", "DEFAULT_CHAIN_ID", "IPFS_GATEWAY_HOST", "REDIS_URL",
	"METADATA_CACHE_SIZE", "INDEX_REFRESH_SCHEDULE", "RPC_RATE_LIMIT",
	"HTTP_RATE_LIMIT", "CORS_ORIGINS", "SIGNER_PRIVATE_KEY", "LOG_LEVEL",
	"LOG_FORMAT", "LOG_OUTPUT", "READ_TIMEOUT",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range configVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

// chdir moves into dir so no stray .env is picked up.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func setRequired(t *testing.T) {
	t.Setenv("WALLETCONNECT_PROJECT_ID", "wc-123")
	t.Setenv("INFURA_ID", "infura-abc")
	t.Setenv("SUBGRAPH_URL", "https://subgraph.example/v4")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	setRequired(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "infura-abc", cfg.InfuraID)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "jbm.infura-ipfs.io", cfg.IPFSGatewayHost)
	assert.Equal(t, 1024, cfg.MetadataCacheSize)
	assert.Equal(t, "@every 5m", cfg.IndexRefreshSchedule)
	assert.Equal(t, 20*time.Second, cfg.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
	assert.Equal(t, "info", cfg.Logging().Level)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	setRequired(t)
	t.Setenv("DEFAULT_CHAIN_ID", "11155420")
	t.Setenv("READ_TIMEOUT", "5s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint64(11155420), cfg.DefaultChainID)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
	assert.Equal(t, "json", cfg.Logging().Format)
}

func TestLoadMissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"wallet connect", "WALLETCONNECT_PROJECT_ID"},
		{"infura", "INFURA_ID"},
		{"subgraph", "SUBGRAPH_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			chdir(t, t.TempDir())
			setRequired(t)
			os.Unsetenv(tt.unset)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.unset)
		})
	}
}

func TestLoadNothingSet(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "juicescan.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"WALLETCONNECT_PROJECT_ID=wc\nINFURA_ID=from-file\nSUBGRAPH_URL=http://localhost:8000/subgraphs/name/juicebox\n",
	), 0o600))
	t.Cleanup(func() {
		for _, name := range []string{"WALLETCONNECT_PROJECT_ID", "INFURA_ID", "SUBGRAPH_URL"} {
			os.Unsetenv(name)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.InfuraID)

	_, err = Load(filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			WalletConnectProjectID: "wc",
			InfuraID:               "id",
			SubgraphURL:            "https://subgraph.example",
			ListenAddr:             ":8080",
			MetadataCacheSize:      1,
			RPCRateLimit:           1,
			HTTPRateLimit:          1,
			ReadTimeout:            time.Second,
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"subgraph scheme", func(c *Config) { c.SubgraphURL = "ftp://subgraph.example" }},
		{"subgraph host", func(c *Config) { c.SubgraphURL = "https://" }},
		{"cache size", func(c *Config) { c.MetadataCacheSize = 0 }},
		{"rate limit", func(c *Config) { c.HTTPRateLimit = 0 }},
		{"timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"blank infura", func(c *Config) { c.InfuraID = "  " }},
	}
	ok := base()
	require.NoError(t, ok.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateReportsFirstMissingInOrder(t *testing.T) {
	c := Config{ListenAddr: ":8080", MetadataCacheSize: 1, RPCRateLimit: 1, HTTPRateLimit: 1, ReadTimeout: time.Second}
	for i := 0; i < 20; i++ {
		assert.EqualError(t, c.Validate(), "config: WALLETCONNECT_PROJECT_ID is required")
	}

	c.WalletConnectProjectID = "wc"
	for i := 0; i < 20; i++ {
		assert.EqualError(t, c.Validate(), "config: INFURA_ID is required")
	}
}
