package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	AppPort     string
	DatabaseURL string
	RedisAddr   string
	JWTSecret   string

	// battle timing
	TurnTimeout     time.Duration
	DefenderTimeout time.Duration
	DisconnectGrace time.Duration

	// external collaborators
	ProverURL         string
	CircuitKeysDir    string
	TonWalletMnemonic string
	TonNetwork        string
	AnchorAddress     string

	AdminBotToken    string
	AdminTelegramIDs []int64
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),

		TurnTimeout:     getEnvMs("TURN_TIMEOUT_MS", 30_000),
		DefenderTimeout: getEnvMs("DEFENDER_RESPONSE_TIMEOUT_MS", 15_000),
		DisconnectGrace: getEnvMs("DISCONNECT_GRACE_MS", 60_000),

		ProverURL:         getEnv("PROVER_URL", "http://localhost:9090"),
		CircuitKeysDir:    getEnv("CIRCUIT_KEYS_DIR", "./keys"),
		TonWalletMnemonic: os.Getenv("TON_WALLET_MNEMONIC"),
		TonNetwork:        getEnv("TON_NETWORK", "mainnet"),
		AnchorAddress:     os.Getenv("ANCHOR_ADDRESS"),

		AdminBotToken: os.Getenv("ADMIN_BOT_TOKEN"),
	}

	if ids := os.Getenv("ADMIN_TELEGRAM_IDS"); ids != "" {
		for _, part := range strings.Split(ids, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				cfg.AdminTelegramIDs = append(cfg.AdminTelegramIDs, id)
			}
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvMs(key string, fallback int64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}
