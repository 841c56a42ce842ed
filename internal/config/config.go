package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/currency"
)

const envPrefix = "STOREFRONT"

type Config struct {
	DatabaseURL     string        `mapstructure:"database_url"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	StripeSecretKey string        `mapstructure:"stripe_secret_key"`
	StripeAPIURL    string        `mapstructure:"stripe_api_url"`
	HTTPAddr        string        `mapstructure:"http_addr"`
	CartTTL         time.Duration `mapstructure:"cart_ttl"`
	Currency        string        `mapstructure:"currency"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

func defaults() map[string]any {
	return map[string]any{
		"database_url":      "",
		"redis_addr":        "localhost:6379",
		"webhook_secret":    "",
		"stripe_secret_key": "",
		"stripe_api_url":    "",
		"http_addr":         ":8080",
		"cart_ttl":          30 * 24 * time.Hour,
		"currency":          "USD",
		"shutdown_timeout":  10 * time.Second,
		"log_level":         "info",
	}
}

// Load reads defaults, then the optional YAML file at path, then STOREFRONT_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("v.ReadInConfig: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("v.Unmarshal: %w", err)
	}

	return cfg, nil
}

// Validate reports every missing or malformed setting the server needs.
func (c Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is empty"))
	}

	if c.WebhookSecret == "" {
		errs = append(errs, errors.New("webhook_secret is empty"))
	}

	if c.StripeSecretKey == "" {
		errs = append(errs, errors.New("stripe_secret_key is empty"))
	}

	if c.RedisAddr == "" {
		errs = append(errs, errors.New("redis_addr is empty"))
	}

	if c.CartTTL <= 0 {
		errs = append(errs, errors.New("cart_ttl is not positive"))
	}

	if _, err := c.CurrencyUnit(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c Config) CurrencyUnit() (currency.Unit, error) {
	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("currency[%s] is not valid: %w", c.Currency, err)
	}

	return unit, nil
}
