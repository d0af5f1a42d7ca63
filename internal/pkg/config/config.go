// Package config loads process configuration from the environment, with an optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Service names accepted in SERVICES.
const (
	ServiceOrder        = "order"
	ServicePayment      = "payment"
	ServiceStore        = "store"
	ServiceNotification = "notification"
)

// Bus kinds accepted in BUS.
const (
	BusMemory = "memory"
	BusKafka  = "kafka"
)

type Config struct {
	ServiceName string
	Env         string
	LogFile     string
	HTTPAddr    string
	Services    map[string]bool

	Bus              string
	KafkaBrokers     []string
	KafkaGroupPrefix string

	DatabaseURL string
	RedisAddr   string
	ProductTTL  time.Duration

	OutboxPollInterval time.Duration

	JWTKey           string
	PaymentAPIKey    string
	WebhookToken     string
	WebhookRateLimit float64

	GatewayBaseURL string
	GatewayAPIKey  string

	StoreURL    string
	PaymentURL  string
	PeerTimeout time.Duration

	RequestTimeout time.Duration
	SeedCatalog    bool
}

// Enabled reports whether the named service runs in this process.
func (c Config) Enabled(service string) bool {
	return c.Services[service]
}

// Load reads the .env file at envFile when it exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		ServiceName:      getenvDefault("SERVICE_NAME", "minishop"),
		Env:              getenvDefault("ENV", "dev"),
		LogFile:          getenvDefault("LOG_FILE", ""),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		Bus:              strings.ToLower(getenvDefault("BUS", BusMemory)),
		KafkaBrokers:     splitList(getenvDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupPrefix: getenvDefault("KAFKA_GROUP_PREFIX", "minishop"),
		DatabaseURL:      getenvDefault("DATABASE_URL", ""),
		RedisAddr:        getenvDefault("REDIS_ADDR", ""),
		JWTKey:           getenvDefault("JWT_KEY", ""),
		PaymentAPIKey:    getenvDefault("PAYMENT_API_KEY", ""),
		WebhookToken:     getenvDefault("WEBHOOK_TOKEN", ""),
		GatewayBaseURL:   strings.TrimRight(getenvDefault("GATEWAY_BASE_URL", ""), "/"),
		GatewayAPIKey:    getenvDefault("GATEWAY_API_KEY", ""),
		StoreURL:         strings.TrimRight(getenvDefault("STORE_URL", "http://localhost:8080"), "/"),
		PaymentURL:       strings.TrimRight(getenvDefault("PAYMENT_URL", "http://localhost:8080"), "/"),
	}

	cfg.Services = make(map[string]bool)
	for _, s := range splitList(getenvDefault("SERVICES", "order,payment,store,notification")) {
		switch s {
		case ServiceOrder, ServicePayment, ServiceStore, ServiceNotification:
			cfg.Services[s] = true
		default:
			return Config{}, fmt.Errorf("config: unknown service %q in SERVICES", s)
		}
	}

	switch cfg.Bus {
	case BusMemory, BusKafka:
	default:
		return Config{}, fmt.Errorf("config: unknown BUS %q", cfg.Bus)
	}

	var err error
	if cfg.WebhookRateLimit, err = getenvFloat("WEBHOOK_RATE_LIMIT", 50); err != nil {
		return Config{}, err
	}
	if cfg.PeerTimeout, err = getenvDuration("PEER_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = getenvDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ProductTTL, err = getenvDuration("PRODUCT_CACHE_TTL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = getenvDuration("OUTBOX_POLL_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SeedCatalog, err = getenvBool("SEED_CATALOG", cfg.Env == "dev"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
