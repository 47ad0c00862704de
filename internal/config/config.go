package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"ist_tvl/internal/domain/entity"
	"ist_tvl/internal/pkg/utils"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Collection enumeration strategies.
const (
	StrategyChildren = "children"
	StrategyProbe    = "probe"
	StrategyAuto     = "auto"
	StrategyStatic   = "static"
)

// Stream cell policies.
const (
	CellPolicyLatest = "latest"
	CellPolicyAll    = "all"
)

// vstorage transports.
const (
	TransportHTTP = "http"
	TransportRPC  = "rpc"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	VStorage   VStorageConfig   `yaml:"vstorage"`
	CoinGecko  CoinGeckoConfig  `yaml:"coinGecko"`
	Supply     SupplyConfig     `yaml:"supply"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Reserve    ReserveConfig    `yaml:"reserve"`
	PSM        PSMConfig        `yaml:"psm"`
	Vaults     VaultsConfig     `yaml:"vaults"`
	Collateral CollateralConfig `yaml:"collateral"`
}

// ServerConfig holds the server-specific configuration.
type ServerConfig struct {
	Port             string   `yaml:"port"`
	ReadTimeout      int      `yaml:"readTimeout"`
	WriteTimeout     int      `yaml:"writeTimeout"`
	IdleTimeout      int      `yaml:"idleTimeout"`
	ResultTTLSeconds int      `yaml:"resultTTLSeconds"`
	AllowedOrigins   []string `yaml:"allowedOrigins"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	Bridge string `yaml:"bridge"` // slogzap or zapslog
}

// VStorageConfig configures the abci_query client.
type VStorageConfig struct {
	RPCURL               string `yaml:"rpcURL"`
	Transport            string `yaml:"transport"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	MinCallDelayMillis   int64  `yaml:"minCallDelayMillis"`
	MaxRetries           int    `yaml:"maxRetries"`
	RetryBaseDelayMillis int64  `yaml:"retryBaseDelayMillis"`
	RetryMaxDelayMillis  int64  `yaml:"retryMaxDelayMillis"`
}

// CoinGeckoConfig holds the configuration for the CoinGecko client.
type CoinGeckoConfig struct {
	BaseURL              string            `yaml:"baseURL"`
	APIKey               string            `yaml:"apiKey"`
	RequestTimeoutMillis int64             `yaml:"requestTimeoutMillis"`
	MinCallDelayMillis   int64             `yaml:"minCallDelayMillis"`
	VsCurrency           string            `yaml:"vsCurrency"`
	SymbolMapping        map[string]string `yaml:"symbolMapping"`
	MappingDir           string            `yaml:"mappingDir"` // optional directory of feed mapping files
}

// SupplyConfig configures the bank supply lookup.
type SupplyConfig struct {
	RESTURL              string `yaml:"restURL"`
	Denom                string `yaml:"denom"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// PipelineConfig controls what a run computes and how hard it pushes the node.
type PipelineConfig struct {
	CoinID                string   `yaml:"coinID"`
	NativeDecimals        int      `yaml:"nativeDecimals"`
	Categories            []string `yaml:"categories"`
	RunTimeoutSeconds     int      `yaml:"runTimeoutSeconds"`
	MaxConcurrentRequests int      `yaml:"maxConcurrentRequests"`
	ProbeBatchSize        int      `yaml:"probeBatchSize"`
	MaxProbeIndex         int      `yaml:"maxProbeIndex"`
	CellPolicy            string   `yaml:"cellPolicy"`
}

// ReserveConfig locates the reserve metrics.
type ReserveConfig struct {
	Path           string   `yaml:"path"`
	AllocationKeys []string `yaml:"allocationKeys"`
}

// PSMConfig locates the PSM instruments.
type PSMConfig struct {
	Path         string   `yaml:"path"`
	Strategy     string   `yaml:"strategy"`
	Instruments  []string `yaml:"instruments"`
	BalanceField string   `yaml:"balanceField"`
}

// VaultsConfig locates vault managers and their vaults.
type VaultsConfig struct {
	ManagersPath       string `yaml:"managersPath"`
	ManagerStrategy    string `yaml:"managerStrategy"`
	ManagerPrefix      string `yaml:"managerPrefix"`
	ManagerProbeSuffix string `yaml:"managerProbeSuffix"`
	VaultsSegment      string `yaml:"vaultsSegment"`
	VaultStrategy      string `yaml:"vaultStrategy"`
	VaultPrefix        string `yaml:"vaultPrefix"`
}

// CollateralConfig supplies collateral decimal metadata.
type CollateralConfig struct {
	Decimals       map[string]int `yaml:"decimals"`
	VbankAssetPath string         `yaml:"vbankAssetPath"`
	UseVbankAsset  bool           `yaml:"useVbankAsset"`
}

// DefaultPSMInstruments is the instrument list used with the static PSM strategy.
var DefaultPSMInstruments = []string{"DAI_axl", "DAI_grv", "USDC_axl", "USDC_grv", "USDT_axl", "USDT_grv"}

// DefaultSymbolMapping maps on-chain alleged names to CoinGecko ids where they differ.
var DefaultSymbolMapping = map[string]string{
	"atom":   "cosmos",
	"statom": "stride-staked-atom",
	"stosmo": "stride-staked-osmo",
	"sttia":  "stride-staked-tia",
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TVL_RPC_URL"); v != "" {
		cfg.VStorage.RPCURL = v
		logrus.Infof("VStorage.RPCURL overridden from TVL_RPC_URL")
	}
	if v := os.Getenv("TVL_REST_URL"); v != "" {
		cfg.Supply.RESTURL = v
		logrus.Infof("Supply.RESTURL overridden from TVL_REST_URL")
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.CoinGecko.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 300
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Server.ResultTTLSeconds <= 0 {
		cfg.Server.ResultTTLSeconds = 600
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.VStorage.RPCURL == "" {
		cfg.VStorage.RPCURL = "https://main.rpc.agoric.net:443"
		logrus.Infof("VStorage.RPCURL not set, defaulting to %s", cfg.VStorage.RPCURL)
	}
	if cfg.VStorage.Transport == "" {
		cfg.VStorage.Transport = TransportHTTP
	}
	if cfg.VStorage.RequestTimeoutMillis <= 0 {
		cfg.VStorage.RequestTimeoutMillis = 15000
	}
	// A negative delay disables spacing.
	switch {
	case cfg.VStorage.MinCallDelayMillis == 0:
		cfg.VStorage.MinCallDelayMillis = 5000
	case cfg.VStorage.MinCallDelayMillis < 0:
		cfg.VStorage.MinCallDelayMillis = 0
	}
	switch {
	case cfg.VStorage.MaxRetries == 0:
		cfg.VStorage.MaxRetries = 3
	case cfg.VStorage.MaxRetries < 0:
		cfg.VStorage.MaxRetries = 0
	}
	if cfg.VStorage.RetryBaseDelayMillis <= 0 {
		cfg.VStorage.RetryBaseDelayMillis = 500
	}
	if cfg.VStorage.RetryMaxDelayMillis <= 0 {
		cfg.VStorage.RetryMaxDelayMillis = 10000
	}

	if cfg.CoinGecko.BaseURL == "" {
		cfg.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
		logrus.Infof("CoinGecko.BaseURL not set, defaulting to %s", cfg.CoinGecko.BaseURL)
	}
	if cfg.CoinGecko.RequestTimeoutMillis <= 0 {
		cfg.CoinGecko.RequestTimeoutMillis = 10000
	}
	switch {
	case cfg.CoinGecko.MinCallDelayMillis == 0:
		cfg.CoinGecko.MinCallDelayMillis = 3000
	case cfg.CoinGecko.MinCallDelayMillis < 0:
		cfg.CoinGecko.MinCallDelayMillis = 0
	}
	if cfg.CoinGecko.VsCurrency == "" {
		cfg.CoinGecko.VsCurrency = "usd"
	}
	mapping := make(map[string]string, len(DefaultSymbolMapping)+len(cfg.CoinGecko.SymbolMapping))
	for k, v := range DefaultSymbolMapping {
		mapping[k] = v
	}
	for k, v := range cfg.CoinGecko.SymbolMapping {
		mapping[k] = v
	}
	cfg.CoinGecko.SymbolMapping = mapping

	if cfg.Supply.RESTURL == "" {
		cfg.Supply.RESTURL = "https://rest.cosmos.directory/agoric"
	}
	if cfg.Supply.Denom == "" {
		cfg.Supply.Denom = "uist"
	}
	if cfg.Supply.RequestTimeoutMillis <= 0 {
		cfg.Supply.RequestTimeoutMillis = 10000
	}

	if cfg.Pipeline.CoinID == "" {
		cfg.Pipeline.CoinID = "agoric"
	}
	if cfg.Pipeline.NativeDecimals <= 0 {
		cfg.Pipeline.NativeDecimals = 6
	}
	if len(cfg.Pipeline.Categories) == 0 {
		cfg.Pipeline.Categories = []string{string(entity.CategoryReserve), string(entity.CategoryPSM), string(entity.CategoryVault)}
		logrus.Infof("Pipeline.Categories not set, defaulting to %v", cfg.Pipeline.Categories)
	}
	if cfg.Pipeline.RunTimeoutSeconds <= 0 {
		cfg.Pipeline.RunTimeoutSeconds = 600
	}
	if cfg.Pipeline.MaxConcurrentRequests <= 0 {
		cfg.Pipeline.MaxConcurrentRequests = 8
	}
	if cfg.Pipeline.ProbeBatchSize <= 0 {
		cfg.Pipeline.ProbeBatchSize = 4
	}
	if cfg.Pipeline.MaxProbeIndex <= 0 {
		cfg.Pipeline.MaxProbeIndex = 5000
	}
	if cfg.Pipeline.CellPolicy == "" {
		cfg.Pipeline.CellPolicy = CellPolicyLatest
	}

	if cfg.Reserve.Path == "" {
		cfg.Reserve.Path = "published.reserve.metrics"
	}
	if len(cfg.Reserve.AllocationKeys) == 0 {
		cfg.Reserve.AllocationKeys = []string{"Fee"}
	}

	if cfg.PSM.Path == "" {
		cfg.PSM.Path = "published.psm.IST"
	}
	if cfg.PSM.Strategy == "" {
		cfg.PSM.Strategy = StrategyChildren
	}
	if len(cfg.PSM.Instruments) == 0 {
		cfg.PSM.Instruments = append([]string(nil), DefaultPSMInstruments...)
	}
	if cfg.PSM.BalanceField == "" {
		cfg.PSM.BalanceField = "anchorPoolBalance"
	}

	if cfg.Vaults.ManagersPath == "" {
		cfg.Vaults.ManagersPath = "published.vaultFactory.managers"
	}
	if cfg.Vaults.ManagerStrategy == "" {
		cfg.Vaults.ManagerStrategy = StrategyAuto
	}
	if cfg.Vaults.ManagerPrefix == "" {
		cfg.Vaults.ManagerPrefix = "manager"
	}
	if cfg.Vaults.ManagerProbeSuffix == "" {
		cfg.Vaults.ManagerProbeSuffix = "metrics"
	}
	if cfg.Vaults.VaultsSegment == "" {
		cfg.Vaults.VaultsSegment = "vaults"
	}
	if cfg.Vaults.VaultStrategy == "" {
		cfg.Vaults.VaultStrategy = StrategyAuto
	}
	if cfg.Vaults.VaultPrefix == "" {
		cfg.Vaults.VaultPrefix = "vault"
	}

	if cfg.Collateral.VbankAssetPath == "" {
		cfg.Collateral.VbankAssetPath = "published.agoricNames.vbankAsset"
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.TVLCategories(); err != nil {
		errs = append(errs, err)
	}
	switch c.VStorage.Transport {
	case TransportHTTP, TransportRPC:
	default:
		errs = append(errs, fmt.Errorf("vstorage.transport %q must be %q or %q", c.VStorage.Transport, TransportHTTP, TransportRPC))
	}
	switch c.Pipeline.CellPolicy {
	case CellPolicyLatest, CellPolicyAll:
	default:
		errs = append(errs, fmt.Errorf("pipeline.cellPolicy %q must be %q or %q", c.Pipeline.CellPolicy, CellPolicyLatest, CellPolicyAll))
	}
	switch c.PSM.Strategy {
	case StrategyChildren, StrategyAuto, StrategyStatic:
	default:
		errs = append(errs, fmt.Errorf("psm.strategy %q is unknown", c.PSM.Strategy))
	}
	for name, s := range map[string]string{"vaults.managerStrategy": c.Vaults.ManagerStrategy, "vaults.vaultStrategy": c.Vaults.VaultStrategy} {
		switch s {
		case StrategyChildren, StrategyProbe, StrategyAuto:
		default:
			errs = append(errs, fmt.Errorf("%s %q is unknown", name, s))
		}
	}
	for symbol, places := range c.Collateral.Decimals {
		if places < 0 || places > 36 {
			errs = append(errs, fmt.Errorf("collateral.decimals[%s] = %d is out of range", symbol, places))
		}
	}
	return errors.Join(errs...)
}

// TVLCategories parses the configured category subset.
func (c *Config) TVLCategories() ([]entity.Category, error) {
	out := make([]entity.Category, 0, len(c.Pipeline.Categories))
	for _, s := range c.Pipeline.Categories {
		cat, err := entity.ParseCategory(s)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	out = utils.Dedupe(out)
	if len(out) == 0 {
		return nil, errors.New("pipeline.categories is empty")
	}
	return out, nil
}

// RunTimeout is the overall deadline of one pipeline run.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Pipeline.RunTimeoutSeconds) * time.Second
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// RequestTimeout is the per-call vstorage timeout.
func (c VStorageConfig) RequestTimeout() time.Duration { return millis(c.RequestTimeoutMillis) }

// MinCallDelay is the minimum spacing between vstorage network calls.
func (c VStorageConfig) MinCallDelay() time.Duration { return millis(c.MinCallDelayMillis) }

// RequestTimeout is the per-call oracle timeout.
func (c CoinGeckoConfig) RequestTimeout() time.Duration { return millis(c.RequestTimeoutMillis) }

// MinCallDelay is the minimum spacing between oracle calls.
func (c CoinGeckoConfig) MinCallDelay() time.Duration { return millis(c.MinCallDelayMillis) }

// RequestTimeout is the per-call supply lookup timeout.
func (c SupplyConfig) RequestTimeout() time.Duration { return millis(c.RequestTimeoutMillis) }

// RetryBaseDelay is the first retry backoff.
func (c VStorageConfig) RetryBaseDelay() time.Duration { return millis(c.RetryBaseDelayMillis) }

// RetryMaxDelay caps the retry backoff.
func (c VStorageConfig) RetryMaxDelay() time.Duration { return millis(c.RetryMaxDelayMillis) }
