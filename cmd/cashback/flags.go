package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Address            string        `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"INFO"`
	DatabaseConnection string        `env:"DATABASE_URI"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"dontexposethis"`
	JWTTTL             time.Duration `env:"JWT_TTL" envDefault:"24h"`
	AdminLogin         string        `env:"ADMIN_LOGIN"`
	AdminPassword      string        `env:"ADMIN_PASSWORD"`
	AffiliateAddress   string        `env:"AFFILIATE_ADDRESS"`
	AffiliateRPS       float64       `env:"AFFILIATE_RPS" envDefault:"5"`
	ConversionWorkers  int           `env:"CONVERSION_WORKERS" envDefault:"4"`
	ConversionInterval time.Duration `env:"CONVERSION_INTERVAL" envDefault:"30s"`
	PublicBaseURL      string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitMax       int           `env:"RATE_LIMIT_MAX" envDefault:"10"`
}

// NewConfig reads an optional .env file, then the environment, then flags.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("ENV JWT_SECRET must be set")
	}

	address := flag.String("a", cfg.Address, "{Host:port} for server")
	loglevel := flag.String("l", cfg.LogLevel, "Log level for server")
	databaseConnection := flag.String("d", cfg.DatabaseConnection, "Database connection string, empty for in-memory storage")
	redisAddr := flag.String("redis", cfg.RedisAddr, "Redis address for rate limit counters, empty for in-memory")
	affiliateAddress := flag.String("r", cfg.AffiliateAddress, "Affiliate network address, empty for the built-in stub")
	conversionWorkers := flag.Int("w", cfg.ConversionWorkers, "Size of conversion worker pool")
	conversionInterval := flag.Duration("i", cfg.ConversionInterval, "Conversion poll interval")
	jwtTTL := flag.Duration("t", cfg.JWTTTL, "TTL for JWT token(e.g. 24h; 30m )")

	flag.Parse()

	cfg.Address = *address
	cfg.LogLevel = *loglevel
	cfg.DatabaseConnection = *databaseConnection
	cfg.RedisAddr = *redisAddr
	cfg.AffiliateAddress = *affiliateAddress
	cfg.ConversionWorkers = *conversionWorkers
	cfg.ConversionInterval = *conversionInterval
	cfg.JWTTTL = *jwtTTL

	if (cfg.AdminLogin == "") != (cfg.AdminPassword == "") {
		return nil, fmt.Errorf("ADMIN_LOGIN and ADMIN_PASSWORD must be set together")
	}
	return cfg, nil
}
