package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type StoreKind string

const (
	StoreFile     StoreKind = "file"
	StoreSQLite   StoreKind = "sqlite"
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

type Config struct {
	Addr         string
	Store        StoreKind
	StorePath    string
	DatabaseURL  string
	DocumentName string

	MarketTickEvery      time.Duration
	InvestmentSweepEvery time.Duration
	RetentionSweepEvery  time.Duration

	MaxTransactions int
	TxRetention     time.Duration
	BalanceCacheTTL time.Duration
	SliceCacheTTL   time.Duration
	MaxPrizePool    int64

	AdminToken  string
	CORSOrigins []string
	LogLevel    slog.Level
	RunOnce     bool
}

type CLIConfig struct {
	APIBaseURL string
	AccountID  string
	AdminToken string
}

func LoadFromEnv() (Config, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("LEDGER_ADDR", ":8080")
	}

	cfg := Config{
		Addr:                 addr,
		Store:                envStoreDefault(),
		StorePath:            envDefault("LEDGER_STORE_PATH", "data/economy.json"),
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DocumentName:         envDefault("LEDGER_DOCUMENT", "economy"),
		MarketTickEvery:      envDurationDefault("LEDGER_MARKET_TICK_EVERY", 5*time.Minute),
		InvestmentSweepEvery: envDurationDefault("LEDGER_INVESTMENT_SWEEP_EVERY", time.Minute),
		RetentionSweepEvery:  envDurationDefault("LEDGER_RETENTION_SWEEP_EVERY", time.Hour),
		MaxTransactions:      envIntDefault("LEDGER_TX_MAX_ENTRIES", 10_000),
		TxRetention:          envDurationDefault("LEDGER_TX_RETENTION", 30*24*time.Hour),
		BalanceCacheTTL:      envDurationDefault("LEDGER_BALANCE_CACHE_TTL", 60*time.Second),
		SliceCacheTTL:        envDurationDefault("LEDGER_SLICE_CACHE_TTL", 30*time.Second),
		MaxPrizePool:         int64(envIntDefault("LEDGER_LOTTERY_MAX_POOL", 1_000_000)),
		AdminToken:           strings.TrimSpace(os.Getenv("LEDGER_ADMIN_TOKEN")),
		CORSOrigins:          envListDefault("LEDGER_CORS_ORIGINS", []string{"*"}),
		LogLevel:             envLevelDefault("LEDGER_LOG_LEVEL", slog.LevelInfo),
		RunOnce:              envBoolDefault("LEDGER_RUN_ONCE", false),
	}
	if cfg.Store == StoreSQLite && strings.TrimSpace(os.Getenv("LEDGER_STORE_PATH")) == "" {
		cfg.StorePath = "data/economy.db"
	}
	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required when LEDGER_STORE=postgres")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("LEDGERCTL_API", "http://localhost:8080"), "/"),
		AccountID:  strings.TrimSpace(os.Getenv("LEDGERCTL_ACCOUNT")),
		AdminToken: strings.TrimSpace(os.Getenv("LEDGERCTL_ADMIN_TOKEN")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// envDurationDefault also rejects non-positive durations; a zero period
// would make a ticker panic.
func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envListDefault(key string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envLevelDefault(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return lvl
}

func envStoreDefault() StoreKind {
	switch k := StoreKind(strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_STORE")))); k {
	case StoreFile, StoreSQLite, StorePostgres, StoreMemory:
		return k
	default:
		return StoreFile
	}
}
