package client

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/vctt94/bisonbotkit/utils"
)

// Config is the consolidated client configuration, parsed from the
// environment and then adjusted by explicit overrides.
type Config struct {
	// DataDir is where the key file, client db, and logs live.
	DataDir string `env:"CUBEATHON_DATADIR"`
	// RPCURL is the ledger JSON-RPC endpoint.
	RPCURL string `env:"CUBEATHON_RPC_URL"`
	// RPCRequestsPerSec bounds the outbound request rate to the endpoint.
	RPCRequestsPerSec float64 `env:"CUBEATHON_RPC_RPS"`
	// NetworkPassphrase domain-separates signatures and hashes per network.
	NetworkPassphrase string `env:"CUBEATHON_NETWORK" envDefault:"Cubeathon Test Network ; 2026"`
	// ContractID is the hex id of the deployed game contract.
	ContractID string `env:"CUBEATHON_CONTRACT"`
	// FragmentTTL is the signed-fragment expiration horizon in ledgers.
	FragmentTTL uint32 `env:"CUBEATHON_FRAGMENT_TTL"`
	// SingleSigner permits one keyring to sign for both players.
	SingleSigner bool `env:"CUBEATHON_SINGLE_SIGNER"`
	// PollInterval and PollAttempts bound the finality poller.
	PollInterval time.Duration `env:"CUBEATHON_POLL_INTERVAL"`
	PollAttempts int           `env:"CUBEATHON_POLL_ATTEMPTS"`
	// Debug is the log level (trace, debug, info, warn, error).
	Debug string `env:"CUBEATHON_DEBUG" envDefault:"info"`
}

// ConfigOverrides carries optional CLI/runtime overrides for config values.
type ConfigOverrides struct {
	DataDir           string
	RPCURL            string
	NetworkPassphrase string
	ContractID        string
	FragmentTTL       uint32
	SingleSigner      bool
	Debug             string
}

// LoadConfig reads configuration from the environment, applies overrides,
// and fills defaults. If no datadir is configured it uses the default
// application data dir for "cubeathon".
func LoadConfig(ov ConfigOverrides) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if ov.DataDir != "" {
		cfg.DataDir = ov.DataDir
	}
	if ov.RPCURL != "" {
		cfg.RPCURL = ov.RPCURL
	}
	if ov.NetworkPassphrase != "" {
		cfg.NetworkPassphrase = ov.NetworkPassphrase
	}
	if ov.ContractID != "" {
		cfg.ContractID = ov.ContractID
	}
	if ov.FragmentTTL != 0 {
		cfg.FragmentTTL = ov.FragmentTTL
	}
	if ov.SingleSigner {
		cfg.SingleSigner = true
	}
	if ov.Debug != "" {
		cfg.Debug = ov.Debug
	}

	if cfg.DataDir == "" {
		cfg.DataDir = utils.AppDataDir("cubeathon", false)
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("ledger RPC URL is required (CUBEATHON_RPC_URL)")
	}
	if cfg.ContractID == "" {
		return nil, fmt.Errorf("contract id is required (CUBEATHON_CONTRACT)")
	}
	return &cfg, nil
}
