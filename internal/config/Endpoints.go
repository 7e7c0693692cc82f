package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// OracleAPI is the base URL of the price oracle service.
	OracleAPI string
	// OracleMaxReferenceAge is how stale the oracle's reference price may
	// be before quotes are rejected.
	OracleMaxReferenceAge time.Duration
	// OracleMaxDeviationBps is the tolerated TWAP-to-reference spread in
	// parts per million.
	OracleMaxDeviationBps uint32
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	OracleAPI, err = getEnv("ORACLE_API")
	if err != nil {
		return err
	}

	maxAgeSeconds, err := getEnvAsInt64("ORACLE_MAX_REFERENCE_AGE_SECONDS")
	if err != nil {
		return err
	}
	OracleMaxReferenceAge = time.Duration(maxAgeSeconds) * time.Second

	OracleMaxDeviationBps, err = getEnvAsUint32("ORACLE_MAX_DEVIATION_BPS")
	if err != nil {
		return err
	}

	log.Debug().
		Str("OracleAPI", OracleAPI).
		Dur("OracleMaxReferenceAge", OracleMaxReferenceAge).
		Uint32("OracleMaxDeviationBps", OracleMaxDeviationBps).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
