package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is sent by outbound pollers and downloaders
	DefaultUserAgent = "token-swap/1.0 (+https://github.com/token-swap)"
)

// Storage drivers.
const (
	DriverSQLite  = "sqlite"
	DriverLevelDB = "leveldb"
	DriverMemory  = "memory"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// RateSeed is an exchange rate applied by the owner at startup.
type RateSeed struct {
	From string          `yaml:"from"`
	To   string          `yaml:"to"`
	Rate decimal.Decimal `yaml:"rate"`
}

// BalanceSeed is a paper bank balance minted at startup.
type BalanceSeed struct {
	Holder string          `yaml:"holder"`
	Asset  string          `yaml:"asset"`
	Amount decimal.Decimal `yaml:"amount"`
}

// APIKey maps an HMAC key pair to the principal it authenticates.
type APIKey struct {
	Key       string `yaml:"key"`
	Secret    string `yaml:"secret"`
	Principal string `yaml:"principal"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Ledger struct {
		Owner        string     `yaml:"owner"`
		Contract     string     `yaml:"contract"`
		InitialState string     `yaml:"initial_state"`
		Rates        []RateSeed `yaml:"rates"`
	} `yaml:"ledger"`

	Engine struct {
		InboxSize int    `yaml:"inbox_size"`
		DumpPath  string `yaml:"dump_path"`
	} `yaml:"engine"`

	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`

	HTTP struct {
		Listen         string   `yaml:"listen"`
		ReadTimeout    Duration `yaml:"read_timeout"`
		WriteTimeout   Duration `yaml:"write_timeout"`
		RateLimitRPS   float64  `yaml:"rate_limit_rps"`
		RateLimitBurst int      `yaml:"rate_limit_burst"`
		MaxClockSkew   Duration `yaml:"max_clock_skew"`
		APIKeys        []APIKey `yaml:"api_keys"`
	} `yaml:"http"`

	Bank struct {
		MaxFills int           `yaml:"max_fills"`
		Balances []BalanceSeed `yaml:"balances"`
	} `yaml:"bank"`

	Assets struct {
		IconURL string   `yaml:"icon_url"`
		IconDir string   `yaml:"icon_dir"`
		Catalog []string `yaml:"catalog"`
	} `yaml:"assets"`

	RateFeed struct {
		URL          string   `yaml:"url"`
		PollInterval Duration `yaml:"poll_interval"`
	} `yaml:"rate_feed"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.ConfigError{Field: "path", Err: fmt.Errorf("%s: %w", path, domain.ErrConfigNotFound)}
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig는 YAML 문서를 파싱하고 기본값, 환경 변수, 유효성 검사를 적용합니다.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	// 4원칙: 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	// 5원칙: 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "token-swap"
	}
	if c.Ledger.InitialState == "" {
		c.Ledger.InitialState = domain.StateInactive.String()
	}
	if c.Engine.InboxSize == 0 {
		c.Engine.InboxSize = 1024
	}
	if c.Engine.DumpPath == "" {
		c.Engine.DumpPath = "panic_dump.json"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.HTTP.ReadTimeout.Duration == 0 {
		c.HTTP.ReadTimeout.Duration = 10 * time.Second
	}
	if c.HTTP.WriteTimeout.Duration == 0 {
		c.HTTP.WriteTimeout.Duration = 10 * time.Second
	}
	if c.HTTP.MaxClockSkew.Duration == 0 {
		c.HTTP.MaxClockSkew.Duration = 30 * time.Second
	}
	if c.Bank.MaxFills == 0 {
		c.Bank.MaxFills = 10000
	}
	if c.Assets.IconDir == "" {
		c.Assets.IconDir = "assets/icons"
	}
	if c.RateFeed.PollInterval.Duration == 0 {
		c.RateFeed.PollInterval.Duration = time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	// Ledger
	if c.Ledger.Owner == "" {
		return configErr("ledger.owner", "owner address is required")
	}
	if c.Ledger.Contract == "" {
		return configErr("ledger.contract", "contract address is required")
	}
	if c.Ledger.Owner == c.Ledger.Contract {
		return configErr("ledger.contract", "contract address must differ from owner")
	}
	if _, err := domain.ParseOperationalState(c.Ledger.InitialState); err != nil {
		return configErr("ledger.initial_state", err.Error())
	}
	for i, r := range c.Ledger.Rates {
		if !domain.IsValidAssetID(domain.AssetID(r.From)) || !domain.IsValidAssetID(domain.AssetID(r.To)) {
			return configErr(fmt.Sprintf("ledger.rates[%d]", i), fmt.Sprintf("invalid asset pair %s -> %s", r.From, r.To))
		}
		if !domain.IsPositiveInteger(r.Rate) {
			return configErr(fmt.Sprintf("ledger.rates[%d].rate", i), "rate must be a positive integer")
		}
	}

	// Engine
	if c.Engine.InboxSize < 0 {
		return configErr("engine.inbox_size", "must not be negative")
	}

	// Storage
	switch c.Storage.Driver {
	case DriverSQLite, DriverLevelDB:
		if c.Storage.Path == "" {
			return configErr("storage.path", fmt.Sprintf("path is required for %s", c.Storage.Driver))
		}
	case DriverMemory:
	default:
		return configErr("storage.driver", fmt.Sprintf("unknown driver %q", c.Storage.Driver))
	}

	// HTTP
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return configErr("http.rate_limit", "rate limit must not be negative")
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst == 0 {
		return configErr("http.rate_limit_burst", "burst is required when rate limiting")
	}
	seen := make(map[string]bool, len(c.HTTP.APIKeys))
	for i, k := range c.HTTP.APIKeys {
		if k.Key == "" || k.Secret == "" || k.Principal == "" {
			return configErr(fmt.Sprintf("http.api_keys[%d]", i), "key, secret and principal are required")
		}
		if seen[k.Key] {
			return configErr(fmt.Sprintf("http.api_keys[%d]", i), fmt.Sprintf("duplicate key %s", k.Key))
		}
		seen[k.Key] = true
	}

	// Bank
	for i, b := range c.Bank.Balances {
		if b.Holder == "" || !domain.IsValidAssetID(domain.AssetID(b.Asset)) {
			return configErr(fmt.Sprintf("bank.balances[%d]", i), "holder and a valid asset are required")
		}
		if !domain.IsPositiveInteger(b.Amount) {
			return configErr(fmt.Sprintf("bank.balances[%d].amount", i), "amount must be a positive integer")
		}
	}

	// Assets
	for i, a := range c.Assets.Catalog {
		if !domain.IsValidAssetID(domain.AssetID(a)) {
			return configErr(fmt.Sprintf("assets.catalog[%d]", i), fmt.Sprintf("invalid asset %q", a))
		}
	}
	if c.Assets.IconURL != "" && !isHTTPURL(c.Assets.IconURL) {
		return configErr("assets.icon_url", "must be an http(s) URL")
	}

	// Rate feed
	if c.RateFeed.URL != "" && !isHTTPURL(c.RateFeed.URL) {
		return configErr("rate_feed.url", "must be an http(s) URL")
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return configErr("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}

	return nil
}

// OwnerAddress returns the configured owner principal.
func (c *Config) OwnerAddress() domain.Address {
	return domain.Address(c.Ledger.Owner)
}

// ContractAddress returns the configured contract principal.
func (c *Config) ContractAddress() domain.Address {
	return domain.Address(c.Ledger.Contract)
}

func configErr(field, msg string) error {
	return &domain.ConfigError{Field: field, Err: errors.New(msg)}
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if owner := os.Getenv("TOKEN_SWAP_OWNER"); owner != "" {
		cfg.Ledger.Owner = owner
	}
	if contract := os.Getenv("TOKEN_SWAP_CONTRACT"); contract != "" {
		cfg.Ledger.Contract = contract
	}
	if path := os.Getenv("TOKEN_SWAP_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if listen := os.Getenv("TOKEN_SWAP_LISTEN"); listen != "" {
		cfg.HTTP.Listen = listen
	}
	if level := os.Getenv("TOKEN_SWAP_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
}
