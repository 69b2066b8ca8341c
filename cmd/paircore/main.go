package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/meridian-dex/paircore/internal/assets"
	"github.com/meridian-dex/paircore/internal/checkpoint"
	"github.com/meridian-dex/paircore/internal/config"
	"github.com/meridian-dex/paircore/internal/logger"
	"github.com/meridian-dex/paircore/internal/pair"
	"github.com/meridian-dex/paircore/internal/state"
	"github.com/meridian-dex/paircore/internal/types"
	"github.com/meridian-dex/paircore/internal/web"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// ledgerAdapter bridges the concrete in-memory ledger to the interface the
// pair engine consumes.
type ledgerAdapter struct{ ledger *assets.Ledger }

func (a ledgerAdapter) Begin(ctx context.Context) (pair.LedgerTx, error) {
	return a.ledger.Begin(ctx)
}

// main is the entry point for the exchange venue.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Paircore Exchange Starting...")

	// Initialize Database Connection (receipts, checkpoints, fee parameters)
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

	// Load Fee Parameters
	pairID := config.TokenA + "-" + config.TokenB
	feeParams, err := state.LoadActiveFeeParameters(pairID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active fee parameters, using configured values and saving.")
		configured := config.FeeParameters()
		if _, err := state.SaveFeeParameters(configured, pairID, 1, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial fee parameters.")
		}
		feeParams = &configured
	}
	log.Info().Msg("Fee parameters loaded successfully.")

	// --- 2. Venue Construction ---
	ledger := assets.NewLedger()
	tradingPair, err := pair.New(pair.Config{
		TokenA:    types.Token(config.TokenA),
		TokenB:    types.Token(config.TokenB),
		FeeParams: *feeParams,
		Ledger:    ledgerAdapter{ledger},
		Recorder:  state.Archive{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create trading pair")
	}
	log.Info().Str("pair", string(tradingPair.ID())).Msg("Trading pair created")

	if config.GenesisAccount != "" {
		seedGenesisLiquidity(ledger, tradingPair)
	}

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, ledger, tradingPair)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting exchange web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 3. Start Checkpoint Loop ---
	checkpointService, err := checkpoint.New(checkpoint.Config{
		Pairs: []*pair.Pair{tradingPair},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create checkpoint service")
	}

	interval := time.Duration(config.CheckpointIntervalSeconds) * time.Second
	log.Info().Str("interval", interval.String()).Msg("Starting checkpoint loop")

	// Stop checkpointing on SIGINT/SIGTERM so the database closes cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkpointService.RunLoop(ctx, interval)
}

// seedGenesisLiquidity funds the configured genesis account and performs the
// pool's first deposit so the venue boots seeded.
func seedGenesisLiquidity(ledger *assets.Ledger, tradingPair *pair.Pair) {
	amountA, ok := sdkmath.NewIntFromString(config.GenesisAmountA)
	if !ok {
		log.Fatal().Str("amount", config.GenesisAmountA).Msg("GENESIS_AMOUNT_A is not a base-unit integer")
	}
	amountB, ok := sdkmath.NewIntFromString(config.GenesisAmountB)
	if !ok {
		log.Fatal().Str("amount", config.GenesisAmountB).Msg("GENESIS_AMOUNT_B is not a base-unit integer")
	}

	if err := ledger.Seed(config.TokenA, config.GenesisAccount, amountA); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed genesis balances")
	}
	if err := ledger.Seed(config.TokenB, config.GenesisAccount, amountB); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed genesis balances")
	}

	receipt, err := tradingPair.AddLiquidity(context.Background(), pair.AddLiquidityParams{
		Provider:       config.GenesisAccount,
		AmountADesired: amountA,
		AmountBDesired: amountB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed genesis liquidity")
	}

	log.Info().
		Str("provider", config.GenesisAccount).
		Str("shares", receipt.Shares.String()).
		Msg("Genesis liquidity seeded")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
