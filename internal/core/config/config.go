package config

import (
	"fmt"
	"time"

	redisclient "github.com/vietddude/bridgewatch/internal/infra/redis"
	"github.com/vietddude/bridgewatch/internal/infra/storage/postgres"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "120s" or bare integers, taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var n int64
		if err2 := unmarshal(&n); err2 == nil {
			*d = Duration(time.Duration(n) * time.Second)
			return nil
		}
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Bridge   BridgeConfig       `yaml:"bridge"`
	Network  NetworkConfig      `yaml:"network"`
	Wallets  WalletsConfig      `yaml:"wallets"`
	Activity ActivityConfig     `yaml:"activity"`
	Indexer  IndexerConfig      `yaml:"indexer"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// OperatorEndpoint is one bridge operator's RPC endpoint. Key is the
// operator's stable identity (public key); endpoints are probed in
// ascending key order.
type OperatorEndpoint struct {
	Key string `yaml:"key"`
	URL string `yaml:"url"`
}

// BridgeConfig holds settings for the bridge status monitor.
type BridgeConfig struct {
	Operators          []OperatorEndpoint `yaml:"operators"`
	EsploraURL         string             `yaml:"esplora_url"`
	MaxTxConfirmations uint64             `yaml:"max_tx_confirmations"`
	RefetchInterval    Duration           `yaml:"refetch_interval"`
	RPCTimeout         Duration           `yaml:"rpc_timeout"`
}

// NetworkConfig holds settings for the network status checker.
type NetworkConfig struct {
	SequencerURL    string   `yaml:"sequencer_url"`
	RPCURL          string   `yaml:"rpc_url"`
	BundlerURL      string   `yaml:"bundler_url"`
	RefetchInterval Duration `yaml:"refetch_interval"`
	MaxRetries      uint64   `yaml:"max_retries"`
	TotalRetryTime  Duration `yaml:"total_retry_time"`
}

// WalletsConfig holds settings for the paymaster balance fetcher.
type WalletsConfig struct {
	RethURL           string   `yaml:"reth_url"`
	DepositAddress    string   `yaml:"deposit_address"`
	ValidatingAddress string   `yaml:"validating_address"`
	RefetchInterval   Duration `yaml:"refetch_interval"`
}

// ActivityConfig holds settings for the activity stats aggregator.
type ActivityConfig struct {
	UserOpsURL      string   `yaml:"user_ops_url"`
	AccountsURL     string   `yaml:"accounts_url"`
	PageSize        int      `yaml:"page_size"`
	RefetchInterval Duration `yaml:"refetch_interval"`
	CacheTTL        Duration `yaml:"cache_ttl"`
}

// IndexerConfig holds settings for the withdrawal-request indexer.
type IndexerConfig struct {
	Enabled          bool     `yaml:"enabled"`
	RethURL          string   `yaml:"reth_url"`
	BridgeOutAddress string   `yaml:"bridgeout_address"`
	StartBlock       uint64   `yaml:"start_block"`
	BlockBatch       uint64   `yaml:"block_batch"`
	ScanInterval     Duration `yaml:"scan_interval"`
}
