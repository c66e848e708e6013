package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if len(cfg.Bridge.Operators) == 0 {
		return nil, fmt.Errorf("bridge: at least one operator endpoint is required")
	}
	seen := make(map[string]bool, len(cfg.Bridge.Operators))
	for _, op := range cfg.Bridge.Operators {
		if op.Key == "" || op.URL == "" {
			return nil, fmt.Errorf("bridge: operator entries need both key and url")
		}
		if seen[op.Key] {
			return nil, fmt.Errorf("bridge: duplicate operator key %q", op.Key)
		}
		seen[op.Key] = true
	}

	// Deterministic probe order regardless of file order.
	sort.Slice(cfg.Bridge.Operators, func(i, j int) bool {
		return cfg.Bridge.Operators[i].Key < cfg.Bridge.Operators[j].Key
	})

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Bridge.MaxTxConfirmations == 0 {
		cfg.Bridge.MaxTxConfirmations = 6
	}
	if cfg.Bridge.RefetchInterval == 0 {
		cfg.Bridge.RefetchInterval = Duration(120 * time.Second)
	}
	if cfg.Bridge.RPCTimeout == 0 {
		cfg.Bridge.RPCTimeout = Duration(30 * time.Second)
	}

	if cfg.Network.RefetchInterval == 0 {
		cfg.Network.RefetchInterval = Duration(10 * time.Second)
	}
	if cfg.Network.MaxRetries == 0 {
		cfg.Network.MaxRetries = 5
	}
	if cfg.Network.TotalRetryTime == 0 {
		cfg.Network.TotalRetryTime = Duration(60 * time.Second)
	}

	if cfg.Wallets.RefetchInterval == 0 {
		cfg.Wallets.RefetchInterval = Duration(10 * time.Second)
	}

	if cfg.Activity.PageSize == 0 {
		cfg.Activity.PageSize = 100
	}
	if cfg.Activity.RefetchInterval == 0 {
		cfg.Activity.RefetchInterval = Duration(60 * time.Second)
	}
	if cfg.Activity.CacheTTL == 0 {
		cfg.Activity.CacheTTL = Duration(10 * time.Minute)
	}

	if cfg.Indexer.BridgeOutAddress == "" {
		cfg.Indexer.BridgeOutAddress = "0x5400000000000000000000000000000000000001"
	}
	if cfg.Indexer.BlockBatch == 0 {
		cfg.Indexer.BlockBatch = 512
	}
	if cfg.Indexer.ScanInterval == 0 {
		cfg.Indexer.ScanInterval = Duration(10 * time.Second)
	}
}
