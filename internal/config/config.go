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
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`

	PaystackBaseURL   string `mapstructure:"PAYSTACK_BASE_URL"`
	PaystackSecretKey string `mapstructure:"PAYSTACK_SECRET_KEY"`

	MonnifyBaseURL      string `mapstructure:"MONNIFY_BASE_URL"`
	MonnifyAPIKey       string `mapstructure:"MONNIFY_API_KEY"`
	MonnifyClientSecret string `mapstructure:"MONNIFY_CLIENT_SECRET"`
	MonnifyContractCode string `mapstructure:"MONNIFY_CONTRACT_CODE"`

	AmountToleranceKobo      int64 `mapstructure:"AMOUNT_TOLERANCE_KOBO"`
	CreditRetryMaxAttempts   int   `mapstructure:"CREDIT_RETRY_MAX_ATTEMPTS"`
	CreditRetryBaseSeconds   int   `mapstructure:"CREDIT_RETRY_BASE_SECONDS"`
	ReconcileIntervalSeconds int   `mapstructure:"RECONCILE_INTERVAL_SECONDS"`
	ReconcileWindowHours     int   `mapstructure:"RECONCILE_WINDOW_HOURS"`

	WebhookRateLimitPerMinute int `mapstructure:"WEBHOOK_RATE_LIMIT_PER_MINUTE"`
	VerifyRateLimitPerMinute  int `mapstructure:"VERIFY_RATE_LIMIT_PER_MINUTE"`
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
	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "padipay:rate_limit")
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("MONNIFY_BASE_URL", "https://api.monnify.com")
	viper.SetDefault("AMOUNT_TOLERANCE_KOBO", 100)
	viper.SetDefault("CREDIT_RETRY_MAX_ATTEMPTS", 8)
	viper.SetDefault("CREDIT_RETRY_BASE_SECONDS", 30)
	viper.SetDefault("RECONCILE_INTERVAL_SECONDS", 300)
	viper.SetDefault("RECONCILE_WINDOW_HOURS", 24)
	viper.SetDefault("WEBHOOK_RATE_LIMIT_PER_MINUTE", 300)
	viper.SetDefault("VERIFY_RATE_LIMIT_PER_MINUTE", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "WALLET_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("PAYSTACK_BASE_URL")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("MONNIFY_BASE_URL")
	_ = viper.BindEnv("MONNIFY_API_KEY")
	_ = viper.BindEnv("MONNIFY_CLIENT_SECRET")
	_ = viper.BindEnv("MONNIFY_CONTRACT_CODE")
	_ = viper.BindEnv("AMOUNT_TOLERANCE_KOBO")
	_ = viper.BindEnv("CREDIT_RETRY_MAX_ATTEMPTS")
	_ = viper.BindEnv("CREDIT_RETRY_BASE_SECONDS")
	_ = viper.BindEnv("RECONCILE_INTERVAL_SECONDS")
	_ = viper.BindEnv("RECONCILE_WINDOW_HOURS")
	_ = viper.BindEnv("WEBHOOK_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("VERIFY_RATE_LIMIT_PER_MINUTE")

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
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("WALLET_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "padipay:rate_limit"
	}

	if config.AmountToleranceKobo < 0 {
		log.Printf("level=warn component=config msg=\"negative amount tolerance configured; coercing to zero\" tolerance_kobo=%d", config.AmountToleranceKobo)
		config.AmountToleranceKobo = 0
	}
	if config.CreditRetryMaxAttempts <= 0 {
		config.CreditRetryMaxAttempts = 8
	}
	if config.CreditRetryBaseSeconds <= 0 {
		config.CreditRetryBaseSeconds = 30
	}
	if config.ReconcileIntervalSeconds <= 0 {
		config.ReconcileIntervalSeconds = 300
	}
	if config.ReconcileWindowHours <= 0 {
		config.ReconcileWindowHours = 24
	}

	return
}
