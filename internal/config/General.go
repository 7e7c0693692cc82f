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
	// MarketID is the identifier of the concentrated-liquidity market this
	// instance manages a position in.
	MarketID string

	// AccountingDenom is the asset deposits are made in and fees and
	// rewards are denominated in.
	AccountingDenom string
	// PairedDenom is the other leg of the managed market.
	PairedDenom string

	// VaultAccount is the custody account all vault funds are credited to.
	VaultAccount string
	// RewardPoolAccount is the account harvested revenue accumulates in.
	RewardPoolAccount string
	// FeeReceiver is the account deposit fees are paid to.
	FeeReceiver string

	// AdminAccount holds the admin capability (fee and tier changes).
	AdminAccount string
	// ManagerAccount holds the manager capability (position operations).
	ManagerAccount string

	// DepositFeeBps is the deposit fee in parts per million.
	DepositFeeBps uint32
	// MaxDepositFeeBps caps DepositFeeBps and later fee changes. Zero
	// selects the built-in default.
	MaxDepositFeeBps uint32
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	MarketID, err = getEnv("CLVM_MARKET_ID")
	if err != nil {
		return err
	}

	AccountingDenom, err = getEnv("CLVM_ACCOUNTING_DENOM")
	if err != nil {
		return err
	}

	PairedDenom, err = getEnv("CLVM_PAIRED_DENOM")
	if err != nil {
		return err
	}

	VaultAccount, err = getEnv("CLVM_VAULT_ACCOUNT")
	if err != nil {
		return err
	}

	RewardPoolAccount, err = getEnv("CLVM_REWARD_POOL_ACCOUNT")
	if err != nil {
		return err
	}

	FeeReceiver, err = getEnv("CLVM_FEE_RECEIVER")
	if err != nil {
		return err
	}

	AdminAccount, err = getEnv("CLVM_ADMIN_ACCOUNT")
	if err != nil {
		return err
	}

	ManagerAccount, err = getEnv("CLVM_MANAGER_ACCOUNT")
	if err != nil {
		return err
	}

	DepositFeeBps, err = getEnvAsUint32("CLVM_DEPOSIT_FEE_BPS")
	if err != nil {
		return err
	}

	MaxDepositFeeBps, err = getEnvAsUint32("CLVM_MAX_DEPOSIT_FEE_BPS")
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("MarketID", MarketID).
		Str("AccountingDenom", AccountingDenom).
		Str("PairedDenom", PairedDenom).
		Uint32("DepositFeeBps", DepositFeeBps).
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
