// Package config loads service configuration from yaml with environment
// fallbacks.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CurveConfig defines the pack bonding curve.
type CurveConfig struct {
	FloorPrice    string `yaml:"floor_price"`
	Slope         string `yaml:"slope"`
	GenesisSupply string `yaml:"genesis_supply"`
}

// ExchangeConfig defines exchange parameters.
type ExchangeConfig struct {
	FeeBps        int64 `yaml:"fee_bps"`
	MinPremiumBps int64 `yaml:"min_premium_bps"`
}

// LendingConfig defines lending risk parameters.
type LendingConfig struct {
	MinCreditScore          int   `yaml:"min_credit_score"`
	MinRateBps              int64 `yaml:"min_rate_bps"`
	MaxRateBps              int64 `yaml:"max_rate_bps"`
	SafetyThresholdBps      int64 `yaml:"safety_threshold_bps"`
	LiquidationThresholdBps int64 `yaml:"liquidation_threshold_bps"`
}

// GovernanceConfig defines governance timing and quorum.
type GovernanceConfig struct {
	VotingDelay    time.Duration `yaml:"voting_delay"`
	VotingPeriod   time.Duration `yaml:"voting_period"`
	ExecutionDelay time.Duration `yaml:"execution_delay"`
	Cooldown       time.Duration `yaml:"cooldown"`
	QuorumBps      int64         `yaml:"quorum_bps"`
}

// Config defines service configuration.
type Config struct {
	HTTPAddr       string           `yaml:"http_addr"`
	JWTSecret      string           `yaml:"jwt_secret"`
	MeterSecret    string           `yaml:"meter_secret"`
	DatabaseURL    string           `yaml:"database_url"`
	AdminAccount   string           `yaml:"admin_account"`
	SinglePurchase bool             `yaml:"single_purchase"`
	Curve          CurveConfig      `yaml:"curve"`
	Exchange       ExchangeConfig   `yaml:"exchange"`
	Lending        LendingConfig    `yaml:"lending"`
	Governance     GovernanceConfig `yaml:"governance"`
}

// Load reads config from ENTO_CONFIG yaml (when set) over env defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		MeterSecret:    os.Getenv("METER_SECRET"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AdminAccount:   getenvDefault("ADMIN_ACCOUNT", "ops-admin"),
		SinglePurchase: getenvBoolDefault("SINGLE_PURCHASE", true),
		Curve: CurveConfig{
			FloorPrice:    getenvDefault("CURVE_FLOOR_PRICE", "1000000000000000000"),
			Slope:         getenvDefault("CURVE_SLOPE", "1000000000000000000"),
			GenesisSupply: getenvDefault("GENESIS_SUPPLY", "100000000000000000000000"),
		},
		Exchange: ExchangeConfig{
			FeeBps:        getenvInt64Default("EXCHANGE_FEE_BPS", 30),
			MinPremiumBps: getenvInt64Default("EXCHANGE_MIN_PREMIUM_BPS", 500),
		},
		Lending: LendingConfig{
			MinCreditScore:          int(getenvInt64Default("LENDING_MIN_SCORE", 50)),
			MinRateBps:              getenvInt64Default("LENDING_MIN_RATE_BPS", 300),
			MaxRateBps:              getenvInt64Default("LENDING_MAX_RATE_BPS", 1500),
			SafetyThresholdBps:      getenvInt64Default("LENDING_SAFETY_BPS", 15000),
			LiquidationThresholdBps: getenvInt64Default("LENDING_LIQUIDATION_BPS", 12000),
		},
		Governance: GovernanceConfig{
			VotingDelay:    getenvDurationDefault("GOV_VOTING_DELAY", time.Hour),
			VotingPeriod:   getenvDurationDefault("GOV_VOTING_PERIOD", 72*time.Hour),
			ExecutionDelay: getenvDurationDefault("GOV_EXECUTION_DELAY", 24*time.Hour),
			Cooldown:       getenvDurationDefault("GOV_COOLDOWN", 7*24*time.Hour),
			QuorumBps:      getenvInt64Default("GOV_QUORUM_BPS", 2000),
		},
	}

	if path := os.Getenv("ENTO_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: jwt secret required")
	}
	if cfg.MeterSecret == "" {
		return cfg, errors.New("config: meter secret required")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
