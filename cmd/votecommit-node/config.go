package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/votecommit/config"
	"github.com/vocdoni/votecommit/db"
)

const (
	defaultAPIHost         = "0.0.0.0"
	defaultAPIPort         = 9095
	defaultDBType          = db.TypePebble
	defaultLedger          = config.LedgerMemory
	defaultWeb3Network     = "sep"
	defaultWeb3Timeout     = 2 * time.Minute
	defaultMonitorInterval = 30 * time.Second
	defaultLogLevel        = "info"
	defaultLogOutput       = "stdout"
	defaultDatadir         = ".votecommit" // Will be prefixed with user's home directory
)

// Version is the build version, set at build time with -ldflags
var Version = config.Version

// Config holds the application configuration
type Config struct {
	API     APIConfig
	DB      DBConfig
	Secret  SecretConfig
	Ledger  LedgerConfig
	Web3    Web3Config
	Monitor MonitorConfig
	Log     LogConfig
	Datadir string
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DBConfig holds the database configuration
type DBConfig struct {
	Type string `mapstructure:"type"`
}

// SecretConfig holds the source of the voter tag salt. File takes
// precedence over Salt.
type SecretConfig struct {
	Salt string `mapstructure:"salt"`
	File string `mapstructure:"file"`
}

// LedgerConfig selects where commitments are anchored
type LedgerConfig struct {
	Type string `mapstructure:"type"`
}

// Web3Config holds Ethereum-related configuration
type Web3Config struct {
	PrivKey string        `mapstructure:"privkey"`
	Network string        `mapstructure:"network"`
	RPC     string        `mapstructure:"rpc"`
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxFeeCap is in gwei, zero means unbounded
	MaxFeeCap uint64 `mapstructure:"maxfeecap"`
}

// MonitorConfig holds the election monitor configuration
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("db.type", defaultDBType)
	v.SetDefault("ledger.type", defaultLedger)
	v.SetDefault("web3.network", defaultWeb3Network)
	v.SetDefault("web3.timeout", defaultWeb3Timeout)
	v.SetDefault("monitor.interval", defaultMonitorInterval)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)

	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.String("db.type", defaultDBType, fmt.Sprintf("database type (%s, %s or %s)", db.TypePebble, db.TypeInMem, db.TypeMongo))
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database files (database name for mongodb)")
	flag.StringP("secret.salt", "s", "", "secret salt of the voter tags (required unless secret.file is set)")
	flag.String("secret.file", "", "file holding the secret salt of the voter tags")
	flag.String("ledger.type", defaultLedger, fmt.Sprintf("ledger to anchor commitments on %v", config.AvailableLedgers))
	flag.StringP("web3.privkey", "k", "", "private key of the anchoring account (web3 ledger)")
	flag.StringP("web3.network", "n", defaultWeb3Network, "network shortname, checked against the endpoint chain id when known")
	flag.StringP("web3.rpc", "w", "", "web3 rpc endpoint (web3 ledger)")
	flag.Duration("web3.timeout", defaultWeb3Timeout, "timeout of each anchoring transaction")
	flag.Uint64("web3.maxfeecap", 0, "maximum fee per gas in gwei for anchoring transactions, 0 for no limit")
	flag.Duration("monitor.interval", defaultMonitorInterval, "interval to close expired elections, 0 disables it")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "votecommit-node v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: votecommit-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, VOTECOMMIT_SECRET_SALT or VOTECOMMIT_API_HOST\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with an in-memory ledger\n")
		fmt.Fprintf(os.Stderr, "  votecommit-node --secret.salt=...\n\n")
		fmt.Fprintf(os.Stderr, "  # Anchor on an EVM chain\n")
		fmt.Fprintf(os.Stderr, "  votecommit-node --secret.file=/run/secrets/salt --ledger.type=web3 --web3.rpc=https://rpc.example --web3.privkey=0x123...\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix("VOTECOMMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Secret.Salt == "" && cfg.Secret.File == "" {
		return fmt.Errorf("secret salt is required (use --secret.salt or --secret.file, or VOTECOMMIT_SECRET_SALT)")
	}
	if !slices.Contains([]string{db.TypePebble, db.TypeInMem, db.TypeMongo}, cfg.DB.Type) {
		return fmt.Errorf("invalid db type %q", cfg.DB.Type)
	}
	if !slices.Contains(config.AvailableLedgers, cfg.Ledger.Type) {
		return fmt.Errorf("invalid ledger type %q, available ledgers: %v", cfg.Ledger.Type, config.AvailableLedgers)
	}
	if cfg.Ledger.Type == config.LedgerWeb3 {
		if cfg.Web3.RPC == "" {
			return fmt.Errorf("web3 ledger requires an rpc endpoint (--web3.rpc)")
		}
		if cfg.Web3.PrivKey == "" {
			return fmt.Errorf("web3 ledger requires a private key (--web3.privkey)")
		}
	}
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	if cfg.Monitor.Interval < 0 {
		return fmt.Errorf("invalid monitor interval %s", cfg.Monitor.Interval)
	}
	return nil
}
