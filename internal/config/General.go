package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// TokenA is the symbol of the pair's first asset, e.g. "ATOM".
	TokenA string
	// TokenB is the symbol of the pair's second asset, e.g. "USDC".
	TokenB string

	// CheckpointIntervalSeconds is how often the oracle checkpoint loop runs.
	CheckpointIntervalSeconds uint64

	// GenesisAccount, when set, is seeded with the genesis amounts and used to
	// open the pool at startup. All three genesis variables travel together.
	GenesisAccount string
	// GenesisAmountA is the initial deposit of TokenA in base units.
	GenesisAmountA string
	// GenesisAmountB is the initial deposit of TokenB in base units.
	GenesisAmountB string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set, except the genesis
// block which may be omitted entirely.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	TokenA, err = getEnv("PAIR_TOKEN_A")
	if err != nil {
		return err
	}

	TokenB, err = getEnv("PAIR_TOKEN_B")
	if err != nil {
		return err
	}

	if TokenA == TokenB {
		return errors.New("PAIR_TOKEN_A and PAIR_TOKEN_B must name different assets")
	}

	CheckpointIntervalSeconds, err = getEnvAsUint64("CHECKPOINT_INTERVAL_SECONDS")
	if err != nil {
		return err
	}
	if CheckpointIntervalSeconds == 0 {
		return errors.New("CHECKPOINT_INTERVAL_SECONDS must be greater than zero")
	}

	// Load fee policy configuration
	if err := loadFeeConfig(); err != nil {
		return err
	}

	// Genesis seeding is optional: skip when GENESIS_ACCOUNT is unset.
	if account, exists := os.LookupEnv("GENESIS_ACCOUNT"); exists {
		GenesisAccount = account
		GenesisAmountA, err = getEnv("GENESIS_AMOUNT_A")
		if err != nil {
			return err
		}
		GenesisAmountB, err = getEnv("GENESIS_AMOUNT_B")
		if err != nil {
			return err
		}
	}

	log.Debug().
		Str("TokenA", TokenA).
		Str("TokenB", TokenB).
		Uint64("CheckpointIntervalSeconds", CheckpointIntervalSeconds).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsUint32 retrieves an environment variable as a uint32. Returns error if not set or invalid.
func getEnvAsUint32(key string) (uint32, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint32, got: " + valueStr)
	}
	return uint32(value), nil
}

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBool retrieves an environment variable as a bool. Returns error if not set or invalid.
func getEnvAsBool(key string) (bool, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}
