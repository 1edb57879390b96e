package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Mobile-money gateway configuration.
	GatewayBaseURL        string `mapstructure:"GATEWAY_BASE_URL"`
	GatewayConsumerKey    string `mapstructure:"GATEWAY_CONSUMER_KEY"`
	GatewayConsumerSecret string `mapstructure:"GATEWAY_CONSUMER_SECRET"`
	GatewayShortCode      string `mapstructure:"GATEWAY_SHORT_CODE"`
	GatewayPasskey        string `mapstructure:"GATEWAY_PASSKEY"`
	GatewayCallbackURL    string `mapstructure:"GATEWAY_CALLBACK_URL"`
	GatewayTimeoutSecs    int    `mapstructure:"GATEWAY_TIMEOUT_SECS"`
	GatewayPollDelaySecs  int    `mapstructure:"GATEWAY_POLL_DELAY_SECS"`

	// Referral commission rate applied when an earning is created.
	ReferralCommissionRate float64 `mapstructure:"REFERRAL_COMMISSION_RATE"`

	// Firebase service account file for FCM pushes.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
}

// GatewayConfig is the explicit configuration handed to the payment gateway
// client and settlement coordinator at construction. Nothing in the payment
// path reads AppConfig directly.
type GatewayConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
	PollDelay      time.Duration
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "soko")
	viper.SetDefault("GATEWAY_BASE_URL", "https://sandbox.safaricom.co.ke")
	viper.SetDefault("GATEWAY_TIMEOUT_SECS", 30)
	viper.SetDefault("GATEWAY_POLL_DELAY_SECS", 120)
	viper.SetDefault("REFERRAL_COMMISSION_RATE", 0.30)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

// Gateway assembles the explicit gateway configuration from the loaded app config.
func Gateway() GatewayConfig {
	return GatewayConfig{
		BaseURL:        AppConfig.GatewayBaseURL,
		ConsumerKey:    AppConfig.GatewayConsumerKey,
		ConsumerSecret: AppConfig.GatewayConsumerSecret,
		ShortCode:      AppConfig.GatewayShortCode,
		Passkey:        AppConfig.GatewayPasskey,
		CallbackURL:    AppConfig.GatewayCallbackURL,
		Timeout:        time.Duration(AppConfig.GatewayTimeoutSecs) * time.Second,
		PollDelay:      time.Duration(AppConfig.GatewayPollDelaySecs) * time.Second,
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
