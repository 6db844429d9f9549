// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server          ServerConfig
	Auth            AuthConfig
	Storage         StorageConfig
	DB              DBConfig
	Stripe          StripeConfig
	Market          MarketConfig
	Telegram        TelegramConfig
	Log             LogConfig
	ShutdownTimeout time.Duration
}

type ServerConfig struct {
	Port      string
	LoginPath string
	PublicURL string
}

// AuthConfig selects the identity backend. Mode is "demo" or "firebase".
type AuthConfig struct {
	Mode            string
	FirebaseAPIKey  string
	FirebaseBaseURL string
	LanguageCode    string
}

func (a AuthConfig) Demo() bool {
	return !strings.EqualFold(a.Mode, "firebase")
}

// StorageConfig selects the slot store. Driver is "memory" or "postgres".
type StorageConfig struct {
	Driver string
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

type StripeConfig struct {
	SecretKey   string
	WebhookKey  string
	PriceID     string
	PaymentLink string
}

type MarketConfig struct {
	OutputPath string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

type LogConfig struct {
	Development bool
}

// env names for every key; the config file may override them with ${VAR} placeholders.
var envBindings = map[string]string{
	"Server.Port":          "SERVER_PORT",
	"Server.LoginPath":     "LOGIN_PATH",
	"Server.PublicURL":     "PUBLIC_URL",
	"Auth.Mode":            "AUTH_MODE",
	"Auth.FirebaseAPIKey":  "FIREBASE_API_KEY",
	"Auth.FirebaseBaseURL": "FIREBASE_BASE_URL",
	"Auth.LanguageCode":    "AUTH_LANGUAGE",
	"Storage.Driver":       "STORAGE_DRIVER",
	"DB.Host":              "DB_HOST",
	"DB.Port":              "DB_PORT",
	"DB.User":              "DB_USER",
	"DB.Password":          "DB_PASSWORD",
	"DB.DBName":            "DB_NAME",
	"DB.SSLMode":           "DB_SSL_MODE",
	"Stripe.SecretKey":     "STRIPE_SECRET_KEY",
	"Stripe.WebhookKey":    "STRIPE_WEBHOOK_KEY",
	"Stripe.PriceID":       "STRIPE_PRICE_ID",
	"Stripe.PaymentLink":   "STRIPE_PAYMENT_LINK",
	"Market.OutputPath":    "MARKET_OUTPUT_PATH",
	"Market.BaseURL":       "MARKET_BASE_URL",
	"Market.UserAgent":     "MARKET_USER_AGENT",
	"Market.Timeout":       "MARKET_TIMEOUT",
	"Telegram.Token":       "TELEGRAM_TOKEN",
	"Telegram.ChatID":      "TELEGRAM_CHAT_ID",
	"Log.Development":      "LOG_DEVELOPMENT",
	"ShutdownTimeout":      "SHUTDOWN_TIMEOUT",
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("$HOME/.tamj")

	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.LoginPath", "/login.html")
	v.SetDefault("Auth.Mode", "demo")
	v.SetDefault("Auth.FirebaseBaseURL", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("Auth.LanguageCode", "ja")
	v.SetDefault("Storage.Driver", "memory")
	v.SetDefault("DB.Host", "localhost")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.User", "postgres")
	v.SetDefault("DB.DBName", "tamj")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("Market.OutputPath", "data/latest.json")
	v.SetDefault("Market.BaseURL", "https://query1.finance.yahoo.com")
	v.SetDefault("Market.UserAgent", "Mozilla/5.0 (compatible; MCI-Bot/1.0)")
	v.SetDefault("Market.Timeout", 15*time.Second)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			v.Set(key, os.Getenv(envVar))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
