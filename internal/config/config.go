// Package config loads juicescan configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/R3E-Network/juicescan/pkg/logger"
)

// DefaultEnvFile is loaded when present.
const DefaultEnvFile = ".env"

// Config is the process configuration.
type Config struct {
	WalletConnectProjectID string `env:"WALLETCONNECT_PROJECT_ID,required"`
	InfuraID               string `env:"INFURA_ID,required"`
	SubgraphURL            string `env:"SUBGRAPH_URL,required"`

	ListenAddr     string `env:"LISTEN_ADDR,default=:8080"`
	ChainsFile     string `env:"CHAINS_FILE"`
	DefaultChainID uint64 `env:"DEFAULT_CHAIN_ID"`

	IPFSGatewayHost      string `env:"IPFS_GATEWAY_HOST,default=jbm.infura-ipfs.io"`
	RedisURL             string `env:"REDIS_URL"`
	MetadataCacheSize    int    `env:"METADATA_CACHE_SIZE,default=1024"`
	IndexRefreshSchedule string `env:"INDEX_REFRESH_SCHEDULE,default=@every 5m"`

	RPCRateLimit  float64 `env:"RPC_RATE_LIMIT,default=10"`
	HTTPRateLimit float64 `env:"HTTP_RATE_LIMIT,default=20"`
	// CORSOrigins is a comma separated list; "*" allows any origin.
	CORSOrigins string `env:"CORS_ORIGINS,default=*"`

	SignerPrivateKey string `env:"SIGNER_PRIVATE_KEY"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
	LogOutput string `env:"LOG_OUTPUT,default=stderr"`

	ReadTimeout time.Duration `env:"READ_TIMEOUT,default=20s"`
}

// Load reads envFile (DefaultEnvFile when empty, where a missing file is not
// an error) into the process environment and decodes Config from it.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil, fmt.Errorf("config: WALLETCONNECT_PROJECT_ID, INFURA_ID and SUBGRAPH_URL are required")
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks values envdecode cannot.
func (c *Config) Validate() error {
	for _, req := range []struct{ name, value string }{
		{"WALLETCONNECT_PROJECT_ID", c.WalletConnectProjectID},
		{"INFURA_ID", c.InfuraID},
		{"SUBGRAPH_URL", c.SubgraphURL},
	} {
		if strings.TrimSpace(req.value) == "" {
			return fmt.Errorf("config: %s is required", req.name)
		}
	}
	u, err := url.Parse(c.SubgraphURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: SUBGRAPH_URL %q is not an http(s) URL", c.SubgraphURL)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: LISTEN_ADDR is required")
	}
	if c.MetadataCacheSize <= 0 {
		return fmt.Errorf("config: METADATA_CACHE_SIZE must be positive")
	}
	if c.RPCRateLimit <= 0 || c.HTTPRateLimit <= 0 {
		return fmt.Errorf("config: rate limits must be positive")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("config: READ_TIMEOUT must be positive")
	}
	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logger.LoggingConfig {
	return logger.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: c.LogOutput}
}

// AllowedOrigins splits CORSOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
