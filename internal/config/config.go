// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string `yaml:"token" env:"BOT_TOKEN"`
	Username string `yaml:"username"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                // json|console
	Sampling bool   `yaml:"sampling"`              // enable sampling in prod
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ClickConfig holds the merchant credentials issued by Click.uz.
type ClickConfig struct {
	SecretKey      string `yaml:"secret_key" env:"CLICK_SECRET_KEY"`
	ServiceID      string `yaml:"service_id" env:"CLICK_SERVICE_ID"`
	MerchantID     string `yaml:"merchant_id" env:"CLICK_MERCHANT_ID"`
	MerchantUserID string `yaml:"merchant_user_id" env:"CLICK_MERCHANT_USER_ID"`
	// Amounts must be strictly greater than this (UZS).
	MinAmount int64 `yaml:"min_amount" env:"CLICK_MIN_AMOUNT"`
	// Diagnostics only. Mismatched signatures are accepted and logged at WARN.
	SkipSignatureCheck bool   `yaml:"skip_signature_check" env:"CLICK_SKIP_SIGNATURE"`
	PayURL             string `yaml:"pay_url"`
	ReturnURL          string `yaml:"return_url" env:"CLICK_RETURN_URL"`
}

type PackageConfig struct {
	Code       string `yaml:"code"`
	Title      string `yaml:"title"`
	TextLimit  int    `yaml:"text_limit"`
	VoiceLimit int    `yaml:"voice_limit"`
	Price      int64  `yaml:"price"`
}

type BillingConfig struct {
	MonthlyPrices map[string]int64 `yaml:"monthly_prices"` // plan code -> UZS per month
	Packages      []PackageConfig  `yaml:"packages"`
	AllowedMonths []int            `yaml:"allowed_months"`

	PendingTTL time.Duration `yaml:"pending_ttl"`
	SweepCron  string        `yaml:"sweep_cron"`
	SweepBatch int           `yaml:"sweep_batch"`

	CriticalRetries int           `yaml:"critical_retries"`
	CriticalBackoff time.Duration `yaml:"critical_backoff"`

	CheckoutRateLimit  int           `yaml:"checkout_rate_limit"`
	CheckoutRateWindow time.Duration `yaml:"checkout_rate_window"`
	PromoCacheTTL      time.Duration `yaml:"promo_cache_ttl"`
}

type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET"`
	APIKey    string        `yaml:"api_key" env:"ADMIN_API_KEY"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type WorkersConfig struct {
	Notifications int `yaml:"notifications"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Click    ClickConfig    `yaml:"click"`
	Billing  BillingConfig  `yaml:"billing"`
	Admin    AdminConfig    `yaml:"admin"`
	Workers  WorkersConfig  `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

// ParseFlags reads -config and -dev from the command line.
func ParseFlags() (path string, dev bool) {
	flag.StringVar(&path, "config", "configs/config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return path, dev
}

// LoadConfig reads the YAML file, then lets environment variables (and a
// local .env, if present) override the env-tagged fields.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Click.PayURL == "" {
		cfg.Click.PayURL = "https://my.click.uz/services/pay"
	}

	b := &cfg.Billing
	if len(b.MonthlyPrices) == 0 {
		b.MonthlyPrices = map[string]int64{"PLUS": 29990, "PRO": 59990}
	}
	if len(b.Packages) == 0 {
		b.Packages = DefaultPackages()
	}
	if len(b.AllowedMonths) == 0 {
		b.AllowedMonths = []int{1, 3, 6, 12}
	}
	if b.PendingTTL <= 0 {
		b.PendingTTL = 2 * time.Hour
	}
	if b.SweepCron == "" {
		b.SweepCron = "@every 10m"
	}
	if b.SweepBatch <= 0 {
		b.SweepBatch = 200
	}
	if b.CriticalRetries <= 0 {
		b.CriticalRetries = 3
	}
	if b.CriticalBackoff <= 0 {
		b.CriticalBackoff = 100 * time.Millisecond
	}
	if b.CheckoutRateLimit <= 0 {
		b.CheckoutRateLimit = 10
	}
	if b.CheckoutRateWindow <= 0 {
		b.CheckoutRateWindow = time.Minute
	}
	if b.PromoCacheTTL <= 0 {
		b.PromoCacheTTL = 5 * time.Minute
	}

	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = time.Hour
	}
	if cfg.Workers.Notifications <= 0 {
		cfg.Workers.Notifications = 4
	}
}

// DefaultPackages is the PLUS add-on catalog sold at launch.
func DefaultPackages() []PackageConfig {
	return []PackageConfig{
		{Code: "T300V100", Title: "Mini", TextLimit: 300, VoiceLimit: 100, Price: 9900},
		{Code: "T750V250", Title: "Optimal", TextLimit: 750, VoiceLimit: 250, Price: 19990},
		{Code: "T1750V600", Title: "Pro", TextLimit: 1750, VoiceLimit: 600, Price: 39990},
	}
}

// Validate is the minimal check needed to serve Click traffic safely.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Click.SecretKey == "" && !c.Click.SkipSignatureCheck {
		return errors.New("click.secret_key is required")
	}
	if c.Click.ServiceID == "" {
		return errors.New("click.service_id is required")
	}
	if c.Click.MinAmount < 0 {
		return errors.New("click.min_amount must not be negative")
	}
	for plan, price := range c.Billing.MonthlyPrices {
		if p := strings.ToUpper(plan); p != "PLUS" && p != "PRO" {
			return fmt.Errorf("billing.monthly_prices: unknown plan %q", plan)
		}
		if price <= 0 {
			return fmt.Errorf("billing.monthly_prices.%s must be positive", plan)
		}
	}
	seen := map[string]bool{}
	for _, p := range c.Billing.Packages {
		code := strings.ToUpper(p.Code)
		if code == "" || strings.Contains(code, "_") {
			return fmt.Errorf("billing.packages: invalid code %q", p.Code)
		}
		if seen[code] {
			return fmt.Errorf("billing.packages: duplicate code %q", p.Code)
		}
		seen[code] = true
		if p.Price <= 0 || p.TextLimit < 0 || p.VoiceLimit < 0 {
			return fmt.Errorf("billing.packages.%s: price and limits must be positive", p.Code)
		}
	}
	if c.Admin.APIKey != "" && c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required when admin.api_key is set")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
