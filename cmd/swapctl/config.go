package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the process configuration for swapctl. Values are read from the
// environment, an optional config file and command line flags, in increasing
// order of precedence.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Cluster is a cluster moniker (devnet, mainnet-beta, ...) or an RPC URL.
	Cluster string `mapstructure:"cluster"`
	// RPCRate caps outgoing RPC requests per second, per method. Zero
	// disables limiting.
	RPCRate float64 `mapstructure:"rpc_rate"`

	ProgramID string `mapstructure:"program_id"`

	// Keypair is the path of a solana-keygen JSON keypair. PrivateKey, a
	// base58 encoded secret key, takes precedence when set.
	Keypair    string `mapstructure:"keypair"`
	PrivateKey string `mapstructure:"private_key"`

	// Retries is the number of times an operation is reassembled and
	// resubmitted after a retryable ledger rejection.
	Retries uint `mapstructure:"retries"`

	AutoApprove bool `mapstructure:"yes"`
}

var defaultConfig = Config{
	LogLevel:  "warn",
	LogFormat: "text",

	Cluster: "devnet",
	RPCRate: 5,

	Keypair: "~/.config/solana/id.json",

	Retries: 2,
}

func init() {
	_ = viper.BindEnv("log_level", "LOG_LEVEL")
	_ = viper.BindEnv("log_format", "LOG_FORMAT")

	_ = viper.BindEnv("cluster", "SOLANA_CLUSTER")
	_ = viper.BindEnv("rpc_rate", "SOLANA_RPC_RATE")

	_ = viper.BindEnv("program_id", "SWAP_PROGRAM_ID")

	_ = viper.BindEnv("keypair", "SOLANA_KEYPAIR")
	_ = viper.BindEnv("private_key", "SOLANA_PRIVATE_KEY")

	_ = viper.BindEnv("retries", "SWAP_RETRIES")
}

// loadConfig reads the config file at path, if it exists, and merges it with
// the environment and any bound flags.
func loadConfig(path string) (*Config, error) {
	if len(path) > 0 {
		if _, err := os.Stat(path); err == nil {
			viper.SetConfigFile(path)
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to check if config exists")
		}
	}

	err := viper.ReadInConfig()
	_, isConfigNotFound := err.(viper.ConfigFileNotFoundError)
	if err != nil && !isConfigNotFound {
		return nil, errors.Wrap(err, "failed to load config")
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// YAML reads an unquoted all digit id as a number, which comes back
	// rounded.
	if len(config.ProgramID) > 0 {
		if _, err := parseKey(config.ProgramID); err != nil {
			return nil, errors.Wrapf(err, "invalid program_id %q (quote ids in YAML config files)", config.ProgramID)
		}
	}

	config.Keypair = expandHome(config.Keypair)
	return &config, nil
}

func configureLogger(config *Config) {
	switch strings.ToLower(config.LogFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stderr)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
