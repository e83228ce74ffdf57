package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fix-market-maker/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string          `yaml:"env"`
	Product   ProductConfig   `yaml:"product"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Book      BookConfig      `yaml:"book"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Balance   BalanceConfig   `yaml:"balance"`
	Log       logger.Config   `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Alert     AlertConfig     `yaml:"alert"`
}

// ProductConfig 交易对及其最小下单量。
type ProductConfig struct {
	ID            string  `yaml:"id"`
	BaseCurrency  string  `yaml:"baseCurrency"`
	QuoteCurrency string  `yaml:"quoteCurrency"`
	MinTradeSize  float64 `yaml:"minTradeSize"`
}

type GatewayConfig struct {
	FIXAddr         string  `yaml:"fixAddr"` // 通常是本机 stunnel
	FIXTLS          bool    `yaml:"fixTLS"`
	RESTBaseURL     string  `yaml:"restBaseURL"`
	FeedURL         string  `yaml:"feedURL"`
	APIKey          string  `yaml:"apiKey"`
	APISecret       string  `yaml:"apiSecret"` // base64
	APIPassphrase   string  `yaml:"apiPassphrase"`
	RESTRatePerSec  float64 `yaml:"restRatePerSec"`
	RESTBurst       int     `yaml:"restBurst"`
	DialTimeoutMs   int     `yaml:"dialTimeoutMs"`
	WriteTimeoutMs  int     `yaml:"writeTimeoutMs"`
	FeedReconnectMs int     `yaml:"feedReconnectMs"`
}

type BookConfig struct {
	Depth   int     `yaml:"depth"`
	BandPct float64 `yaml:"bandPct"`
}

type StrategyConfig struct {
	Margin float64 `yaml:"margin"`
	IdleMs int     `yaml:"idleMs"` // 0 表示纯自旋
}

type HeartbeatConfig struct {
	CheckIntervalMs int `yaml:"checkIntervalMs"`
	IdleThresholdMs int `yaml:"idleThresholdMs"`
}

type BalanceConfig struct {
	RetryDelayMs int `yaml:"retryDelayMs"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AlertConfig 告警通道；WebhookURL 为空时只写日志。
type AlertConfig struct {
	WebhookURL string `yaml:"webhookURL"`
	ThrottleMs int    `yaml:"throttleMs"`
}

const heartBtIntMs = 30_000

// Default 返回所有可选项已填好的配置；凭证留空。
func Default() AppConfig {
	return AppConfig{
		Env: "prod",
		Product: ProductConfig{
			ID:            "BTC-USD",
			BaseCurrency:  "BTC",
			QuoteCurrency: "USD",
			MinTradeSize:  0.001,
		},
		Gateway: GatewayConfig{
			FIXAddr:         "127.0.0.1:4197",
			RESTBaseURL:     "https://api.exchange.coinbase.com",
			FeedURL:         "wss://ws-feed.exchange.coinbase.com",
			RESTRatePerSec:  5,
			RESTBurst:       5,
			DialTimeoutMs:   10_000,
			WriteTimeoutMs:  10_000,
			FeedReconnectMs: 1000,
		},
		Book:      BookConfig{Depth: 50, BandPct: 0.01},
		Strategy:  StrategyConfig{Margin: 0.995},
		Heartbeat: HeartbeatConfig{CheckIntervalMs: 1000, IdleThresholdMs: 20_000},
		Balance:   BalanceConfig{RetryDelayMs: 1000},
		Log:       logger.DefaultConfig(),
		Metrics:   MetricsConfig{Addr: ":9100"},
		Alert:     AlertConfig{ThrottleMs: 60_000},
	}
}

// Load reads YAML config from path on top of Default() and applies validation.
func Load(path string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parse(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv 加载 .env 文件到进程环境；文件不存在不算错误，已有的环境变量不覆盖。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
// 凭证可以只出现在环境变量或 .env 中。
func LoadWithEnvOverrides(path string, dotenv ...string) (AppConfig, error) {
	if err := LoadDotEnv(dotenv...); err != nil {
		return AppConfig{}, err
	}
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	overrides := map[string]*string{
		"FIXMM_API_KEY":        &cfg.Gateway.APIKey,
		"FIXMM_API_SECRET":     &cfg.Gateway.APISecret,
		"FIXMM_API_PASSPHRASE": &cfg.Gateway.APIPassphrase,
		"FIXMM_FIX_ADDR":       &cfg.Gateway.FIXAddr,
		"FIXMM_LOG_LEVEL":      &cfg.Log.Level,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
	return cfg, Validate(cfg)
}

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if cfg.Product.ID == "" || cfg.Product.BaseCurrency == "" || cfg.Product.QuoteCurrency == "" {
		return ErrInvalid("product.id/baseCurrency/quoteCurrency is required")
	}
	if cfg.Product.MinTradeSize <= 0 {
		return ErrInvalid("product.minTradeSize must be > 0")
	}
	if cfg.Gateway.FIXAddr == "" {
		return ErrInvalid("gateway.fixAddr is required")
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" || cfg.Gateway.APIPassphrase == "" {
		return ErrInvalid("gateway.apiKey/apiSecret/apiPassphrase is required (or env overrides)")
	}
	if _, err := base64.StdEncoding.DecodeString(cfg.Gateway.APISecret); err != nil {
		return ErrInvalid("gateway.apiSecret must be base64")
	}
	if cfg.Gateway.RESTRatePerSec < 0 || cfg.Gateway.RESTBurst < 0 {
		return ErrInvalid("gateway rest rate limits must be >= 0")
	}
	if cfg.Book.Depth < 0 {
		return ErrInvalid("book.depth must be >= 0")
	}
	if cfg.Book.BandPct < 0 || cfg.Book.BandPct >= 1 {
		return ErrInvalid("book.bandPct must be in [0, 1)")
	}
	if cfg.Strategy.Margin <= 0 || cfg.Strategy.Margin > 1 {
		return ErrInvalid("strategy.margin must be in (0, 1]")
	}
	if cfg.Strategy.IdleMs < 0 {
		return ErrInvalid("strategy.idleMs must be >= 0")
	}
	if cfg.Heartbeat.CheckIntervalMs <= 0 {
		return ErrInvalid("heartbeat.checkIntervalMs must be > 0")
	}
	if cfg.Heartbeat.IdleThresholdMs <= 0 || cfg.Heartbeat.IdleThresholdMs >= heartBtIntMs {
		return fmt.Errorf("heartbeat.idleThresholdMs must be in (0, %d): %w", heartBtIntMs, ErrInvalid("heartbeat threshold"))
	}
	if cfg.Balance.RetryDelayMs <= 0 {
		return ErrInvalid("balance.retryDelayMs must be > 0")
	}
	return nil
}

// Ms 把毫秒配置转换为 time.Duration。
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
