package main

import (
	"context"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clvm/internal/auth"
	"github.com/elys-network/clvm/internal/bank"
	"github.com/elys-network/clvm/internal/config"
	"github.com/elys-network/clvm/internal/logger"
	"github.com/elys-network/clvm/internal/market"
	"github.com/elys-network/clvm/internal/oracle"
	"github.com/elys-network/clvm/internal/rewards"
	"github.com/elys-network/clvm/internal/runner"
	"github.com/elys-network/clvm/internal/state"
	"github.com/elys-network/clvm/internal/types"
	"github.com/elys-network/clvm/internal/vault"
	"github.com/elys-network/clvm/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	SNAPSHOT_INTERVAL = 10 * time.Minute
)

// main is the entry point for the CLVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE"))
	log.Info().Msg("CLVM Core Logic Starting...")

	// Initialize Database Connection (operation journal)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}
	journal := state.NewJournal()

	// --- 2. Collaborator Initialization (with Safety Switch) ---
	var mkt market.Market
	var bankLayer bank.Bank
	clvmMode := os.Getenv("CLVM_MODE")

	if clvmMode == "sim" {
		log.Warn().Msg("Initializing CLVM in SIM mode. All market and bank activity is in-process.")
		memBank := bank.NewMemory()
		bankLayer = memBank
		mkt = market.NewSim(config.AccountingDenom, config.PairedDenom, 0)
	} else {
		log.Fatal().Msg("CLVM_MODE is not set to 'sim'. Halting to prevent accidental execution against a live venue. Set CLVM_MODE=sim to run.")
	}

	priceOracle, err := oracle.NewClient(config.OracleAPI, config.OracleMaxReferenceAge, config.OracleMaxDeviationBps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize oracle client")
	}

	authz := auth.NewStaticRegistry()
	authz.Grant(types.Account(config.AdminAccount), auth.CapabilityAdmin)
	authz.Grant(types.Account(config.ManagerAccount), auth.CapabilityManager)

	// --- 3. Core Instances with Dependency Injection ---
	log.Info().Msg("Creating vault and reward engine with dependency injection...")

	vaultInstance, err := vault.New(
		vault.Config{
			MarketID:         config.MarketID,
			Account:          types.Account(config.VaultAccount),
			AccountingDenom:  config.AccountingDenom,
			PairedDenom:      config.PairedDenom,
			DepositFeeBps:    config.DepositFeeBps,
			FeeReceiver:      types.Account(config.FeeReceiver),
			MaxDepositFeeBps: config.MaxDepositFeeBps,
		},
		vault.Deps{
			Market:     mkt,
			Oracle:     priceOracle,
			Authorizer: authz,
			Bank:       bankLayer,
			Sink:       journal,
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault instance")
	}

	converter, err := rewards.NewBankConverter(
		bankLayer,
		types.Account(os.Getenv("CLVM_CONVERTER_RESERVE_ACCOUNT")),
		sdkmath.LegacyOneDec(),
		config.PairedDenom,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create converter")
	}

	rewardEngine, err := rewards.New(
		rewards.Config{
			Account:         types.Account(config.RewardPoolAccount),
			AccountingDenom: config.AccountingDenom,
		},
		rewards.Deps{
			Bank:       bankLayer,
			Authorizer: authz,
			Shares:     vaultInstance.Shares(),
			Converter:  converter,
			Sink:       journal,
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reward engine")
	}

	log.Info().Msg("Vault and reward engine created successfully")

	// --- 4. Start Snapshot Loop ---
	snapshotRunner, err := runner.NewRunner(runner.Config{Vault: vaultInstance})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create snapshot runner")
	}
	go snapshotRunner.RunLoop(context.Background(), SNAPSHOT_INTERVAL)

	// --- 5. Serve the API ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, vaultInstance, rewardEngine)
	log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting CLVM API server")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
