package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"ladder_bot/pkg/retry"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs"
	defaultConfigFile = "values_local.yaml"
	envPrefix         = "LADDER"
)

// TPLevel: ступень лестницы тейков.
type TPLevel struct {
	Pct           float64 `yaml:"pct"`            // 0.01 => 1% от входа
	CloseFraction float64 `yaml:"close_fraction"` // доля от исходного объёма
}

type TradingConfig struct {
	Instruments           []string      `yaml:"instruments"`
	TradeNotional         float64       `yaml:"trade_notional"` // в котируемой валюте
	Confirmations         int           `yaml:"confirmations"`
	PollInterval          time.Duration `yaml:"poll_interval"`
	Cooldown              time.Duration `yaml:"cooldown"`
	CandleIntervalMinutes int           `yaml:"candle_interval_minutes"`
	CandleCount           int           `yaml:"candle_count"`
	Simulation            bool          `yaml:"simulation"`
	FeePct                float64       `yaml:"fee_pct"` // комиссия на каждую сторону, 0.001 => 0.1%
}

type TrailingConfig struct {
	ActivationPct float64 `yaml:"activation_pct"`
	DistancePct   float64 `yaml:"distance_pct"`
}

type StopConfig struct {
	TrendEMAPeriod int     `yaml:"trend_ema_period"`
	ATRPeriod      int     `yaml:"atr_period"`
	ATRMultiplier  float64 `yaml:"atr_multiplier"`
	MaxPct         float64 `yaml:"max_pct"`
	FallbackPct    float64 `yaml:"fallback_pct"`
}

type StrategyConfig struct {
	EMAFast   int     `yaml:"ema_fast"`
	EMASlow   int     `yaml:"ema_slow"`
	EMATrend  int     `yaml:"ema_trend"`
	RSIPeriod int     `yaml:"rsi_period"`
	RSILong   float64 `yaml:"rsi_long"`
	RSIShort  float64 `yaml:"rsi_short"`
	ADXPeriod int     `yaml:"adx_period"`
	ADXMin    float64 `yaml:"adx_min"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

type MarketConfig struct {
	RestURL      string        `yaml:"rest_url"`
	WSURL        string        `yaml:"ws_url"`
	Offline      bool          `yaml:"offline"`
	StreamMaxAge time.Duration `yaml:"stream_max_age"`
}

// Config ...
type Config struct {
	Service struct {
		Name       string `yaml:"name"`
		StatusAddr string `yaml:"status_addr"`
	} `yaml:"service"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Trading    TradingConfig `yaml:"trading"`
	TakeProfit struct {
		Levels []TPLevel `yaml:"levels"`
	} `yaml:"take_profit"`
	Trailing TrailingConfig `yaml:"trailing"`
	Stop     StopConfig     `yaml:"stop"`
	Strategy StrategyConfig `yaml:"strategy"`
	Retry    RetryConfig    `yaml:"retry"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Ledger struct {
		CSVPath string `yaml:"csv_path"`
		DSN     string `yaml:"db_dsn"`
	} `yaml:"ledger"`

	Market   MarketConfig `yaml:"market"`
	Exchange struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"exchange"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`
}

// Default: значения по умолчанию, поверх них ложится yaml и env.
func Default() Config {
	var c Config
	c.Service.Name = "ladder_bot"
	c.Service.StatusAddr = ":8080"
	c.Log.Level = "info"
	c.Log.Format = "json"

	c.Trading = TradingConfig{
		Instruments:           []string{"SOLUSDT", "BNBUSDT", "BTCUSDT", "ETHUSDT"},
		TradeNotional:         500,
		Confirmations:         4,
		PollInterval:          30 * time.Second,
		Cooldown:              time.Hour,
		CandleIntervalMinutes: 15,
		CandleCount:           100,
		Simulation:            true,
	}
	c.TakeProfit.Levels = []TPLevel{
		{Pct: 0.01, CloseFraction: 0.30},
		{Pct: 0.02, CloseFraction: 0.25},
		{Pct: 0.03, CloseFraction: 0.25},
	}
	c.Trailing = TrailingConfig{ActivationPct: 0.03, DistancePct: 0.01}
	c.Stop = StopConfig{
		TrendEMAPeriod: 50,
		ATRPeriod:      14,
		ATRMultiplier:  2.0,
		MaxPct:         0.05,
		FallbackPct:    0.02,
	}
	c.Strategy = StrategyConfig{
		EMAFast:   9,
		EMASlow:   21,
		EMATrend:  50,
		RSIPeriod: 14,
		RSILong:   55,
		RSIShort:  45,
		ADXPeriod: 14,
		ADXMin:    20,
	}
	c.Retry = RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		CallTimeout: 10 * time.Second,
	}
	c.Store.Path = "data/state.json"
	c.Ledger.CSVPath = "data/trades.csv"
	c.Market = MarketConfig{
		RestURL:      "https://api.binance.com",
		WSURL:        "wss://stream.binance.com:9443",
		StreamMaxAge: 10 * time.Second,
	}
	c.Jaeger.Port = 6831
	return c
}

// NewConfig: configs/$CONFIG_FILE + .env + переменные LADDER_*.
func NewConfig() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = defaultConfigFile
	}
	return Load(filepath.Join(configDir, name))
}

// Load читает файл (если он есть), применяет env и валидирует.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// работаем на дефолтах
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg, newEnv())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// старые имена переменных
	_ = v.BindEnv("telegram.token", envPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")
	_ = v.BindEnv("ledger.db_dsn", envPrefix+"_LEDGER_DB_DSN", "DATABASE_DSN")
	_ = v.BindEnv("exchange.api_key", envPrefix+"_EXCHANGE_API_KEY", "BINANCE_API_KEY")
	_ = v.BindEnv("exchange.api_secret", envPrefix+"_EXCHANGE_API_SECRET", "BINANCE_API_SECRET")
	return v
}

func applyEnv(c *Config, v *viper.Viper) {
	setString(v, "log.level", &c.Log.Level)
	setString(v, "log.format", &c.Log.Format)
	setString(v, "service.status_addr", &c.Service.StatusAddr)

	if v.IsSet("trading.instruments") {
		c.Trading.Instruments = splitList(v.GetString("trading.instruments"))
	}
	setFloat(v, "trading.trade_notional", &c.Trading.TradeNotional)
	setInt(v, "trading.confirmations", &c.Trading.Confirmations)
	setDuration(v, "trading.poll_interval", &c.Trading.PollInterval)
	setDuration(v, "trading.cooldown", &c.Trading.Cooldown)
	setBool(v, "trading.simulation", &c.Trading.Simulation)
	setFloat(v, "trading.fee_pct", &c.Trading.FeePct)

	setFloat(v, "trailing.activation_pct", &c.Trailing.ActivationPct)
	setFloat(v, "trailing.distance_pct", &c.Trailing.DistancePct)

	setString(v, "store.path", &c.Store.Path)
	setString(v, "ledger.csv_path", &c.Ledger.CSVPath)
	setString(v, "ledger.db_dsn", &c.Ledger.DSN)

	setBool(v, "market.offline", &c.Market.Offline)
	setString(v, "market.rest_url", &c.Market.RestURL)
	setString(v, "market.ws_url", &c.Market.WSURL)

	setString(v, "exchange.api_key", &c.Exchange.APIKey)
	setString(v, "exchange.api_secret", &c.Exchange.APISecret)

	setString(v, "telegram.token", &c.Telegram.Token)
	if v.IsSet("telegram.chat_id") {
		c.Telegram.ChatID = v.GetInt64("telegram.chat_id")
	}
	setString(v, "jaeger.host", &c.Jaeger.Host)
	setInt(v, "jaeger.port", &c.Jaeger.Port)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setFloat(v *viper.Viper, key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if len(c.Trading.Instruments) == 0 {
		add("trading.instruments is empty")
	}
	if c.Trading.TradeNotional <= 0 {
		add("trading.trade_notional must be > 0")
	}
	if c.Trading.Confirmations < 1 {
		add("trading.confirmations must be >= 1")
	}
	if c.Trading.PollInterval <= 0 {
		add("trading.poll_interval must be > 0")
	}
	if c.Trading.Cooldown < 0 {
		add("trading.cooldown must be >= 0")
	}
	if c.Trading.CandleIntervalMinutes <= 0 || c.Trading.CandleCount <= 0 {
		add("trading.candle_interval_minutes and candle_count must be > 0")
	}
	if c.Trading.FeePct < 0 || c.Trading.FeePct >= 0.1 {
		add("trading.fee_pct out of range: %v", c.Trading.FeePct)
	}

	if len(c.TakeProfit.Levels) == 0 {
		add("take_profit.levels is empty")
	}
	var sum, prev float64
	for i, l := range c.TakeProfit.Levels {
		if l.Pct <= prev {
			add("take_profit.levels[%d].pct must be > %v", i, prev)
		}
		if l.CloseFraction <= 0 {
			add("take_profit.levels[%d].close_fraction must be > 0", i)
		}
		prev = l.Pct
		sum += l.CloseFraction
	}
	if sum >= 1 {
		add("take_profit close fractions sum to %.2f, a trailing remainder is required", sum)
	}

	if c.Trailing.DistancePct <= 0 || c.Trailing.DistancePct >= 1 {
		add("trailing.distance_pct must be in (0,1)")
	}
	if c.Trailing.ActivationPct < 0 {
		add("trailing.activation_pct must be >= 0")
	}

	if c.Stop.MaxPct <= 0 || c.Stop.MaxPct >= 1 {
		add("stop.max_pct must be in (0,1)")
	}
	if c.Stop.FallbackPct <= 0 || c.Stop.FallbackPct > c.Stop.MaxPct {
		add("stop.fallback_pct must be in (0, stop.max_pct]")
	}
	if c.Stop.TrendEMAPeriod <= 0 || c.Stop.ATRPeriod <= 0 {
		add("stop periods must be > 0")
	}

	if c.Retry.MaxAttempts < 1 {
		add("retry.max_attempts must be >= 1")
	}
	if c.Retry.CallTimeout <= 0 {
		add("retry.call_timeout must be > 0")
	}

	if !c.Trading.Simulation && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		add("exchange credentials are required when trading.simulation is false")
	}

	return errors.Join(errs...)
}

// RetryPolicy: политика для внешних вызовов.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		Multiplier:  c.Retry.Multiplier,
		MaxDelay:    c.Retry.CallTimeout,
	}
}

// Summary: строка для стартового лога.
func (c *Config) Summary() string {
	mode := "LIVE"
	if c.Trading.Simulation {
		mode = "SIMULATION"
	}
	levels := make([]string, 0, len(c.TakeProfit.Levels))
	for i, l := range c.TakeProfit.Levels {
		levels = append(levels, fmt.Sprintf("TP%d %.2f%%/%.0f%%", i+1, l.Pct*100, l.CloseFraction*100))
	}
	return fmt.Sprintf("mode=%s instruments=%s notional=%.2f confirmations=%d poll=%s cooldown=%s ladder=[%s] trailing=%.2f%%",
		mode, strings.Join(c.Trading.Instruments, ","), c.Trading.TradeNotional, c.Trading.Confirmations,
		c.Trading.PollInterval, c.Trading.Cooldown, strings.Join(levels, " "), c.Trailing.DistancePct*100)
}
