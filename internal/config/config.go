package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitURL  string
	AuthURL    string
	ProfileURL string

	// Pricing knobs. GSTRate is the tax rate baked into catalog prices,
	// CoinRate is currency units per Angel Coin.
	GSTRate      float64
	CoinRate     float64
	ShippingFlat float64

	// Quiet period before a cart mutation is pushed to the order store.
	SyncDebounceMS int

	// Tier discount percentages exist but are feature-flagged off.
	TierDiscountEnabled bool
}

func Load() *Config {
	// Missing .env is fine, env vars may come from the environment itself.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://host.docker.internal:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "storefront_orders"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitURL:  getEnv("RABBIT_URL", "amqp://host.docker.internal"),
		AuthURL:    getEnv("AUTH_URL", "http://host.docker.internal:3000"),
		ProfileURL: getEnv("PROFILE_URL", "http://host.docker.internal:3001"),

		GSTRate:      getEnvFloat("GST_RATE", 0.18),
		CoinRate:     getEnvFloat("COIN_RATE", 0.05),
		ShippingFlat: getEnvFloat("SHIPPING_FLAT", 0),

		SyncDebounceMS: getEnvInt("SYNC_DEBOUNCE_MS", 800),

		TierDiscountEnabled: getEnvBool("TIER_DISCOUNT_ENABLED", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
