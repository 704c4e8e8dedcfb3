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

// Config holds all the configuration variables for the payment-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`

	MomoBaseURL                     string `mapstructure:"MOMO_BASE_URL"`
	MomoTargetEnvironment           string `mapstructure:"MOMO_TARGET_ENVIRONMENT"`
	MomoCallbackHost                string `mapstructure:"MOMO_CALLBACK_HOST"`
	MomoCollectionSubscriptionKey   string `mapstructure:"MOMO_COLLECTION_SUBSCRIPTION_KEY"`
	MomoCollectionUserID            string `mapstructure:"MOMO_COLLECTION_USER_ID"`
	MomoCollectionAPIKey            string `mapstructure:"MOMO_COLLECTION_API_KEY"`
	MomoDisbursementSubscriptionKey string `mapstructure:"MOMO_DISBURSEMENT_SUBSCRIPTION_KEY"`
	MomoDisbursementUserID          string `mapstructure:"MOMO_DISBURSEMENT_USER_ID"`
	MomoDisbursementAPIKey          string `mapstructure:"MOMO_DISBURSEMENT_API_KEY"`

	ReconcileSchedule          string `mapstructure:"RECONCILE_SCHEDULE"`
	ReconcilePendingAgeSeconds int    `mapstructure:"RECONCILE_PENDING_AGE_SECONDS"`
	ReconcileBatchSize         int    `mapstructure:"RECONCILE_BATCH_SIZE"`
	PurchaseRateLimitPerMinute int    `mapstructure:"PURCHASE_RATE_LIMIT_PER_MINUTE"`
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "careernest:rate_limit")
	viper.SetDefault("MOMO_BASE_URL", "https://sandbox.momodeveloper.mtn.com")
	viper.SetDefault("MOMO_TARGET_ENVIRONMENT", "sandbox")
	viper.SetDefault("RECONCILE_SCHEDULE", "@every 1m")
	viper.SetDefault("RECONCILE_PENDING_AGE_SECONDS", 30)
	viper.SetDefault("RECONCILE_BATCH_SIZE", 50)
	viper.SetDefault("PURCHASE_RATE_LIMIT_PER_MINUTE", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYMENT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "PAYMENT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("MOMO_BASE_URL")
	_ = viper.BindEnv("MOMO_TARGET_ENVIRONMENT")
	_ = viper.BindEnv("MOMO_CALLBACK_HOST")
	_ = viper.BindEnv("MOMO_COLLECTION_SUBSCRIPTION_KEY")
	_ = viper.BindEnv("MOMO_COLLECTION_USER_ID")
	_ = viper.BindEnv("MOMO_COLLECTION_API_KEY")
	_ = viper.BindEnv("MOMO_DISBURSEMENT_SUBSCRIPTION_KEY")
	_ = viper.BindEnv("MOMO_DISBURSEMENT_USER_ID")
	_ = viper.BindEnv("MOMO_DISBURSEMENT_API_KEY")
	_ = viper.BindEnv("RECONCILE_SCHEDULE")
	_ = viper.BindEnv("RECONCILE_PENDING_AGE_SECONDS")
	_ = viper.BindEnv("RECONCILE_BATCH_SIZE")
	_ = viper.BindEnv("PURCHASE_RATE_LIMIT_PER_MINUTE")

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
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("PAYMENT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "careernest:rate_limit"
	}
	config.MomoBaseURL = strings.TrimSuffix(strings.TrimSpace(config.MomoBaseURL), "/")
	config.MomoCallbackHost = strings.TrimSuffix(strings.TrimSpace(config.MomoCallbackHost), "/")

	config.MomoTargetEnvironment = strings.ToLower(strings.TrimSpace(config.MomoTargetEnvironment))
	if config.MomoTargetEnvironment == "" {
		config.MomoTargetEnvironment = "sandbox"
	}

	if strings.TrimSpace(config.ReconcileSchedule) == "" {
		config.ReconcileSchedule = "@every 1m"
	}
	if config.ReconcilePendingAgeSeconds <= 0 {
		config.ReconcilePendingAgeSeconds = 30
	}
	if config.ReconcileBatchSize <= 0 {
		config.ReconcileBatchSize = 50
	}
	if config.PurchaseRateLimitPerMinute <= 0 {
		config.PurchaseRateLimitPerMinute = 10
	}

	return
}
