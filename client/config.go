package client

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
)

// AppConfig is the consolidated configuration for the flip client. Values are
// loaded from the environment, then CLI overrides are applied on top.
type AppConfig struct {
	// DataDir is where logs live.
	DataDir string `env:"FLIPIT_DATADIR"`

	// RPCURL is the primary chain endpoint; FallbackRPCURL is tried when the
	// primary fails.
	RPCURL         string `env:"FLIPIT_RPC_URL"`
	FallbackRPCURL string `env:"FLIPIT_FALLBACK_RPC_URL"`

	ChainID      int64  `env:"FLIPIT_CHAIN_ID" envDefault:"8453"`
	ContractAddr string `env:"FLIPIT_CONTRACT"`
	SubgraphURL  string `env:"FLIPIT_SUBGRAPH_URL"`

	// PrivKeyHex connects the wallet. Empty means read-only: reads work,
	// every write fails validation with a not-connected error.
	PrivKeyHex string `env:"FLIPIT_PRIVKEY"`

	// PollInterval drives the fulfillment watcher and listing refresh.
	PollInterval time.Duration `env:"FLIPIT_POLL_INTERVAL" envDefault:"5s"`

	// ResolveTimeout bounds how long a wager attempt waits for randomness
	// fulfillment before erroring out. Zero or negative waits forever.
	ResolveTimeout time.Duration `env:"FLIPIT_RESOLVE_TIMEOUT" envDefault:"10m"`

	// PageSize is the listing window size.
	PageSize int `env:"FLIPIT_PAGE_SIZE" envDefault:"5"`
}

// ConfigOverrides carries optional CLI/runtime overrides for config values.
type ConfigOverrides struct {
	DataDir        string
	RPCURL         string
	FallbackRPCURL string
	ContractAddr   string
	SubgraphURL    string
	PrivKeyHex     string
}

// LoadAppConfig reads configuration from the environment, applies overrides,
// and validates the result.
func LoadAppConfig(ov ConfigOverrides) (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if ov.DataDir != "" {
		cfg.DataDir = ov.DataDir
	}
	if ov.RPCURL != "" {
		cfg.RPCURL = ov.RPCURL
	}
	if ov.FallbackRPCURL != "" {
		cfg.FallbackRPCURL = ov.FallbackRPCURL
	}
	if ov.ContractAddr != "" {
		cfg.ContractAddr = ov.ContractAddr
	}
	if ov.SubgraphURL != "" {
		cfg.SubgraphURL = ov.SubgraphURL
	}
	if ov.PrivKeyHex != "" {
		cfg.PrivKeyHex = ov.PrivKeyHex
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.ContractAddr == "" {
		return nil, fmt.Errorf("contract address is required")
	}
	if !common.IsHexAddress(cfg.ContractAddr) {
		return nil, fmt.Errorf("bad contract address %q", cfg.ContractAddr)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	return &cfg, nil
}

// Contract returns the parsed game contract address.
func (c *AppConfig) Contract() common.Address {
	return common.HexToAddress(c.ContractAddr)
}
