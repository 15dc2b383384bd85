/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	StripeSecretKey           string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret       string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	WebhookToleranceSeconds   int    `mapstructure:"STRIPE_WEBHOOK_TOLERANCE_SECONDS"`
	WebhookEventCachePrefix   string `mapstructure:"WEBHOOK_EVENT_CACHE_PREFIX"`
	WebhookEventCacheTTLMin   int    `mapstructure:"WEBHOOK_EVENT_CACHE_TTL_MINUTES"`
	AuthJWTSecret             string `mapstructure:"AUTH_JWT_SECRET"`
	WalletCurrency            string `mapstructure:"WALLET_CURRENCY"`
	TopUpProductName          string `mapstructure:"TOPUP_PRODUCT_NAME"`
	CheckoutDefaultSuccessURL string `mapstructure:"CHECKOUT_DEFAULT_SUCCESS_URL"`
	CheckoutDefaultCancelURL  string `mapstructure:"CHECKOUT_DEFAULT_CANCEL_URL"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300)
	viper.SetDefault("WEBHOOK_EVENT_CACHE_PREFIX", "cloudblinker:webhook_events")
	viper.SetDefault("WEBHOOK_EVENT_CACHE_TTL_MINUTES", 60)
	viper.SetDefault("WALLET_CURRENCY", "JPY")
	viper.SetDefault("TOPUP_PRODUCT_NAME", "CloudBlinker wallet top-up")
	viper.SetDefault("CHECKOUT_DEFAULT_SUCCESS_URL", "https://cloudblinker.site/client/topup-success.html")
	viper.SetDefault("CHECKOUT_DEFAULT_CANCEL_URL", "https://cloudblinker.site/client/topup-cancel.html")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("STRIPE_WEBHOOK_TOLERANCE_SECONDS")
	_ = viper.BindEnv("WEBHOOK_EVENT_CACHE_PREFIX")
	_ = viper.BindEnv("WEBHOOK_EVENT_CACHE_TTL_MINUTES")
	_ = viper.BindEnv("AUTH_JWT_SECRET", "AUTH_JWT_SECRET", "SUPABASE_JWT_SECRET")
	_ = viper.BindEnv("WALLET_CURRENCY")
	_ = viper.BindEnv("TOPUP_PRODUCT_NAME")
	_ = viper.BindEnv("CHECKOUT_DEFAULT_SUCCESS_URL")
	_ = viper.BindEnv("CHECKOUT_DEFAULT_CANCEL_URL")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.AuthJWTSecret) == "" {
		config.AuthJWTSecret = strings.TrimSpace(os.Getenv("SUPABASE_JWT_SECRET"))
	}
	config.StripeSecretKey = strings.TrimSpace(config.StripeSecretKey)
	config.StripeWebhookSecret = strings.TrimSpace(config.StripeWebhookSecret)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.WebhookEventCachePrefix = strings.TrimSpace(config.WebhookEventCachePrefix)
	if config.WebhookEventCachePrefix == "" {
		config.WebhookEventCachePrefix = "cloudblinker:webhook_events"
	}

	if config.WebhookToleranceSeconds <= 0 {
		config.WebhookToleranceSeconds = 300
	}
	if config.WebhookEventCacheTTLMin <= 0 {
		config.WebhookEventCacheTTLMin = 60
	}
	if strings.TrimSpace(config.WalletCurrency) == "" {
		config.WalletCurrency = "JPY"
	}

	return
}
