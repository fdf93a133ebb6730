package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Secret hides its value when printed or logged.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "****"
}

func (s Secret) Value() string {
	return string(s)
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	BasePath        string        `mapstructure:"base_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// MintRateLimit is in requests per second; zero disables throttling.
	MintRateLimit float64 `mapstructure:"mint_rate_limit"`
	MintBurst     int     `mapstructure:"mint_burst"`
}

func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

type LedgerConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ContractAddress string        `mapstructure:"contract_address"`
	PrivateKey      Secret        `mapstructure:"private_key"`
	ExplorerURL     string        `mapstructure:"explorer_url"`
	ABIPath         string        `mapstructure:"abi_path"`
	GasMargin       uint64        `mapstructure:"gas_margin"`
	MaxFeeGwei      int64         `mapstructure:"max_fee_gwei"`
	PriorityFeeGwei int64         `mapstructure:"priority_fee_gwei"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:4002",
	"http://localhost:5000",
	"http://192.168.100.14:5000",
	"http://127.0.0.1:4002",
	"http://127.0.0.1:5000",
	"http://127.0.0.1:7000",
	"http://localhost:7000",
	"http://127.0.0.1:7001",
	"http://localhost:7001",
	"http://127.0.0.1:7002",
	"http://localhost:7002",
	"http://127.0.0.1:7003",
	"http://localhost:7003",
	"http://127.0.0.1:7004",
	"http://localhost:7004",
	"http://127.0.0.1:7005",
	"http://localhost:7005",
}

// env names kept from existing deployments
var envBindings = map[string]string{
	"ledger.rpc_url":          "BB_RPC_URL",
	"ledger.contract_address": "CONTRACT_ADDRESS",
	"ledger.private_key":      "ADMIN_PRIVATE_KEY",
	"ledger.explorer_url":     "EXPLORER_URL",
	"ledger.abi_path":         "CONTRACT_ABI_PATH",
	"database.driver":         "DB_DRIVER",
	"database.dsn":            "DATABASE_URL",
	"server.host":             "SERVER_HOST",
	"server.port":             "SERVER_PORT",
	"server.mint_rate_limit":  "MINT_RATE_LIMIT",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
}

// shutdownGrace is added to the confirmation timeout to bound server shutdown.
const shutdownGrace = 10 * time.Second

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "7006")
	v.SetDefault("server.base_path", "/blockchain")
	v.SetDefault("server.shutdown_timeout", 130*time.Second)
	v.SetDefault("server.cors_origins", defaultCORSOrigins)
	v.SetDefault("server.mint_rate_limit", 0)
	v.SetDefault("server.mint_burst", 1)

	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.private_key", "")
	v.SetDefault("ledger.explorer_url", "")
	v.SetDefault("ledger.abi_path", "")
	v.SetDefault("ledger.gas_margin", 50_000)
	v.SetDefault("ledger.max_fee_gwei", 50)
	v.SetDefault("ledger.priority_fee_gwei", 2)
	v.SetDefault("ledger.confirm_timeout", 120*time.Second)
	v.SetDefault("ledger.poll_interval", time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "report-ledger.db")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads the optional config file at path and overlays the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Server.BasePath = "/" + strings.Trim(cfg.Server.BasePath, "/")
	// In-flight mints must be able to finish waiting for their receipt.
	if minShutdown := cfg.Ledger.ConfirmTimeout + shutdownGrace; cfg.Server.ShutdownTimeout < minShutdown {
		cfg.Server.ShutdownTimeout = minShutdown
	}
	return &cfg, nil
}

// Validate reports the first setting that prevents the service from starting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Ledger.RPCURL) == "" {
		return fmt.Errorf("ledger.rpc_url (BB_RPC_URL) is required")
	}
	if !common.IsHexAddress(c.Ledger.ContractAddress) {
		return fmt.Errorf("ledger.contract_address (CONTRACT_ADDRESS) must be a hex address, got %q", c.Ledger.ContractAddress)
	}
	if c.Ledger.PrivateKey == "" {
		return fmt.Errorf("ledger.private_key (ADMIN_PRIVATE_KEY) is required")
	}
	if c.Ledger.ConfirmTimeout <= 0 || c.Ledger.PollInterval <= 0 {
		return fmt.Errorf("ledger.confirm_timeout and ledger.poll_interval must be positive")
	}
	if c.Ledger.PriorityFeeGwei > c.Ledger.MaxFeeGwei {
		return fmt.Errorf("ledger.priority_fee_gwei (%d) exceeds ledger.max_fee_gwei (%d)",
			c.Ledger.PriorityFeeGwei, c.Ledger.MaxFeeGwei)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn (DATABASE_URL) is required")
	}
	if c.Server.MintRateLimit < 0 || c.Server.MintBurst < 1 {
		return fmt.Errorf("server.mint_rate_limit must be >= 0 and server.mint_burst >= 1")
	}
	return nil
}
