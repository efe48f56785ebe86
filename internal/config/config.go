package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	App          AppConfig          `yaml:"app"`
	Log          LogConfig          `yaml:"log"`
	Server       ServerConfig       `yaml:"server"`
	Aggregator   AggregatorConfig   `yaml:"aggregator"`
	Tokens       TokensConfig       `yaml:"tokens"`
	Redis        RedisConfig        `yaml:"redis"`
	GasReference GasReferenceConfig `yaml:"gasReference"`
	Simulation   SimulationConfig   `yaml:"simulation"`
	Sources      []SourceConfig     `yaml:"sources"`
	Feed         FeedConfig         `yaml:"feed"`
}

// AppConfig application basic configuration
type AppConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"logLevel"` // debug, info, warn, error
}

// LogConfig log file rotation; an empty file logs to stdout only
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// ServerConfig HTTP listener
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// AggregatorConfig request pipeline settings
type AggregatorConfig struct {
	Timeout      time.Duration `yaml:"timeout"`      // whole-request budget
	TakerAddress string        `yaml:"takerAddress"` // enables transaction building and simulation
	SlippageBps  uint32        `yaml:"slippageBps"`
}

// TokensConfig token list source
type TokensConfig struct {
	ListURL    string        `yaml:"listUrl"` // empty = built-in table only
	ChainID    uint64        `yaml:"chainId"`
	TTL        time.Duration `yaml:"ttl"`
	Timeout    time.Duration `yaml:"timeout"`
	FailureTTL time.Duration `yaml:"failureTtl"` // static table served this long after a failed fetch
}

// RedisConfig optional shared token-list store
type RedisConfig struct {
	Addr        string `yaml:"addr"` // empty disables redis
	DB          int    `yaml:"db"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"passwordEnv"`
	Key         string `yaml:"key"`
}

// Gas reference modes
const (
	GasModeOracle = "oracle"
	GasModeFixed  = "fixed"
)

// GasReferenceConfig source of the gas price in tokenIn units
type GasReferenceConfig struct {
	Mode          string        `yaml:"mode"` // oracle | fixed
	RPCURL        string        `yaml:"rpcUrl"`
	RPCURLEnv     string        `yaml:"rpcUrlEnv"`
	Contract      string        `yaml:"contract"`      // gasPriceX96(address) oracle
	WrappedNative string        `yaml:"wrappedNative"` // priced from the node's gas price
	FixedX96      string        `yaml:"fixedX96"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
}

// SimulationConfig fork-simulation service; an empty URL disables simulation
type SimulationConfig struct {
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"apiKey"`
	APIKeyEnv string        `yaml:"apiKeyEnv"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SourceConfig one upstream aggregator
type SourceConfig struct {
	Name            string            `yaml:"name"` // defaults to kind
	Kind            string            `yaml:"kind"`
	BaseURL         string            `yaml:"baseUrl"`
	APIKey          string            `yaml:"apiKey"`
	APIKeyEnv       string            `yaml:"apiKeyEnv"`
	ChainID         uint64            `yaml:"chainId"`
	Timeout         time.Duration     `yaml:"timeout"`
	ClientID        string            `yaml:"clientId"`
	ClientSecret    string            `yaml:"clientSecret"`
	ClientSecretEnv string            `yaml:"clientSecretEnv"`
	Params          map[string]string `yaml:"params"`
}

// FeedConfig websocket result feed
type FeedConfig struct {
	Enabled              bool          `yaml:"enabled"`
	URL                  string        `yaml:"url"`
	Token                string        `yaml:"token"`
	TokenEnv             string        `yaml:"tokenEnv"`
	ReconnectInterval    time.Duration `yaml:"reconnectInterval"`
	MaxReconnectAttempts int           `yaml:"maxReconnectAttempts"` // 0 = unlimited
	HeartbeatInterval    time.Duration `yaml:"heartbeatInterval"`
	ReadTimeout          time.Duration `yaml:"readTimeout"`
	WriteTimeout         time.Duration `yaml:"writeTimeout"`
	QueueSize            int           `yaml:"queueSize"`
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "swap-quote-aggregator"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 14
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Aggregator.Timeout == 0 {
		c.Aggregator.Timeout = 100 * time.Second
	}
	// a response may take the whole aggregation budget
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = c.Aggregator.Timeout + 5*time.Second
	}
	if c.Tokens.ChainID == 0 {
		c.Tokens.ChainID = 1
	}
	if c.Tokens.TTL == 0 {
		c.Tokens.TTL = time.Hour
	}
	if c.Redis.Key == "" {
		c.Redis.Key = "swap-quote-aggregator:tokens"
	}
	if c.GasReference.Mode == "" {
		c.GasReference.Mode = GasModeOracle
	}
	if c.GasReference.DialTimeout == 0 {
		c.GasReference.DialTimeout = 10 * time.Second
	}
	for i := range c.Sources {
		if c.Sources[i].Name == "" {
			c.Sources[i].Name = c.Sources[i].Kind
		}
		if c.Sources[i].ChainID == 0 {
			c.Sources[i].ChainID = c.Tokens.ChainID
		}
	}
	if c.Feed.QueueSize == 0 {
		c.Feed.QueueSize = 256
	}
}

// resolveSecrets fills secrets given by environment variable name
func (c *Config) resolveSecrets() error {
	var err error
	if c.Redis.Password, err = secret(c.Redis.Password, c.Redis.PasswordEnv); err != nil {
		return fmt.Errorf("redis.password: %w", err)
	}
	if c.GasReference.RPCURL, err = secret(c.GasReference.RPCURL, c.GasReference.RPCURLEnv); err != nil {
		return fmt.Errorf("gasReference.rpcUrl: %w", err)
	}
	if c.Simulation.APIKey, err = secret(c.Simulation.APIKey, c.Simulation.APIKeyEnv); err != nil {
		return fmt.Errorf("simulation.apiKey: %w", err)
	}
	if c.Feed.Token, err = secret(c.Feed.Token, c.Feed.TokenEnv); err != nil {
		return fmt.Errorf("feed.token: %w", err)
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.APIKey, err = secret(s.APIKey, s.APIKeyEnv); err != nil {
			return fmt.Errorf("sources[%d].apiKey: %w", i, err)
		}
		if s.ClientSecret, err = secret(s.ClientSecret, s.ClientSecretEnv); err != nil {
			return fmt.Errorf("sources[%d].clientSecret: %w", i, err)
		}
	}
	return nil
}

// secret prefers the inline value and falls back to the environment variable
func secret(value, env string) (string, error) {
	if value != "" {
		return strings.TrimSpace(value), nil
	}
	if env == "" {
		return "", nil
	}
	v := os.Getenv(env)
	if v == "" {
		return "", fmt.Errorf("environment variable %s is not set", env)
	}
	return strings.TrimSpace(v), nil
}

// Validate validates configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.logLevel %q is not one of debug, info, warn, error", c.App.LogLevel)
	}

	switch c.GasReference.Mode {
	case GasModeOracle:
		if c.GasReference.RPCURL == "" {
			return fmt.Errorf("gasReference.rpcUrl is required in oracle mode")
		}
		if c.GasReference.Contract == "" && c.GasReference.WrappedNative == "" {
			return fmt.Errorf("gasReference needs a contract or a wrappedNative token")
		}
	case GasModeFixed:
		if c.GasReference.FixedX96 == "" {
			return fmt.Errorf("gasReference.fixedX96 is required in fixed mode")
		}
	default:
		return fmt.Errorf("gasReference.mode %q is not one of oracle, fixed", c.GasReference.Mode)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	names := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Kind == "" {
			return fmt.Errorf("sources[%d].kind is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, s.Name)
		}
		names[s.Name] = true
	}

	if c.Feed.Enabled && c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required when the feed is enabled")
	}
	return nil
}

// SourceNames returns the configured aggregator identities in order
func (c *Config) SourceNames() []string {
	names := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = s.Name
	}
	return names
}
