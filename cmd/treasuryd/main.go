// Command treasuryd runs the multi-signature treasury vault as a standalone
// JSON/HTTP service: it loads configuration, opens the three storage tiers,
// wires the policy engine to the audit journal and websocket event stream,
// and serves spec.md §6's entry points over rpc.Server.
package main

import (
	"context"
	"encoding/hex"
	"log"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"treasuryvault/audit"
	"treasuryvault/config"
	"treasuryvault/crypto"
	"treasuryvault/native/treasury"
	"treasuryvault/observability/logging"
	telemetry "treasuryvault/observability/otel"
	"treasuryvault/rpc"
	"treasuryvault/storage"
)

func main() {
	env := strings.TrimSpace(os.Getenv("TREASURY_ENV"))

	configPath := envOr("TREASURY_CONFIG", "./treasuryd.toml")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.SetupFile("treasuryd", env, cfg.LogFilePath)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "treasuryd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		log.Fatalf("telemetry init: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	store, err := storage.NewCompositeStore(
		filepath.Join(cfg.DataDir, "treasury.bolt"),
		filepath.Join(cfg.DataDir, "treasury-ttl.leveldb"),
	)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	adminKeyBytes, err := hex.DecodeString(cfg.AdminKey)
	if err != nil {
		log.Fatalf("admin key: %v", err)
	}
	adminKey, err := crypto.PrivateKeyFromBytes(adminKeyBytes)
	if err != nil {
		log.Fatalf("admin key: %v", err)
	}
	admin := adminKey.PubKey().Address()

	token := newDevTokenAdapter()
	oracle := newDevPriceOracle()

	engine := treasury.NewEngine(store, token)
	engine.SetReputationDecay(cfg.Reputation.DecayPerDay)

	initialized, err := bootstrapIfNeeded(engine, admin, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	if initialized {
		log.Printf("treasury initialized, admin=%s", admin.String())
	}

	db, err := openAuditDB(cfg.Audit)
	if err != nil {
		log.Fatalf("audit db: %v", err)
	}
	journal, err := audit.NewJournal(db)
	if err != nil {
		log.Fatalf("audit journal: %v", err)
	}

	stream := rpc.NewEventStream()
	engine.SetEmitter(treasury.MultiEmitter{journal, stream, metricsEmitter{}})

	var authenticator *rpc.Authenticator
	if cfg.Auth.HMACSecret != "" {
		authenticator = rpc.NewAuthenticator([]byte(cfg.Auth.HMACSecret))
	}
	var limiter *rpc.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = rpc.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	server := rpc.NewServer(engine, oracle, authenticator, limiter, stream)

	log.Printf("treasuryd listening on %s", cfg.RPCAddress)
	if err := http.ListenAndServe(cfg.RPCAddress, server); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// bootstrapIfNeeded runs Initialize from the seed fixture on first launch.
// Subsequent launches against the same data directory are no-ops.
func bootstrapIfNeeded(engine *treasury.Engine, admin crypto.Address, cfg *config.Config) (bool, error) {
	if cfg.SeedFixturePath == "" {
		return false, nil
	}
	if _, err := os.Stat(cfg.SeedFixturePath); os.IsNotExist(err) {
		return false, nil
	}
	fixture, err := loadSeedFixture(cfg.SeedFixturePath)
	if err != nil {
		return false, err
	}
	signers, err := decodeAddresses(fixture.Signers)
	if err != nil {
		return false, err
	}
	if len(signers) == 0 {
		signers = []crypto.Address{admin}
	}

	engineCfg, err := buildEngineConfig(fixture, signers)
	if err != nil {
		return false, err
	}

	if err := engine.Initialize(admin, engineCfg); err != nil {
		if err == treasury.ErrAlreadyInitialized {
			return false, nil
		}
		return false, err
	}

	if err := engine.SetInsuranceConfig(admin, treasury.InsuranceConfig{
		Enabled:                 cfg.Insurance.Enabled,
		MinAmount:               mustBig(cfg.Insurance.MinAmount),
		MinInsuranceBps:         cfg.Insurance.MinInsuranceBps,
		SlashPercentage:         cfg.Insurance.SlashPercentage,
		ReputationDiscountScore: cfg.Insurance.ReputationDiscountScore,
	}); err != nil {
		return false, err
	}

	if mode := listModeFromName(fixture.ListMode); mode != treasury.ListModeDisabled {
		if err := engine.SetListMode(admin, mode); err != nil {
			return false, err
		}
	}
	for _, raw := range fixture.Whitelist {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return false, err
		}
		if err := engine.AddToWhitelist(admin, addr); err != nil {
			return false, err
		}
	}
	for _, raw := range fixture.Blacklist {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return false, err
		}
		if err := engine.AddToBlacklist(admin, addr); err != nil {
			return false, err
		}
	}

	return true, nil
}

func mustBig(s string) *big.Int {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return amount
}

func openAuditDB(cfg config.AuditConfig) (*gorm.DB, error) {
	if cfg.Driver == "postgres" {
		return audit.OpenProd(cfg.DSN)
	}
	return audit.OpenDev(cfg.DSN)
}
