package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"treasuryvault/crypto"

	"github.com/BurntSushi/toml"
)

// Config captures every operator-tunable knob for a running treasuryd
// instance: listen/storage locations, the admin signing key, and default
// policy, insurance and reputation values.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	RPCAddress    string `toml:"RPCAddress"`
	DataDir       string `toml:"DataDir"`
	AdminKey      string `toml:"AdminKey"`
	LogFilePath   string `toml:"LogFilePath"`

	// SeedFixturePath points at the YAML signer-set/policy/list-registry
	// bootstrap fixture consumed at init_config time.
	SeedFixturePath string `toml:"SeedFixturePath"`

	Policy      PolicyDefaults `toml:"Policy"`
	Insurance   InsuranceDefaults `toml:"Insurance"`
	Reputation  ReputationDefaults `toml:"Reputation"`
	Audit       AuditConfig    `toml:"Audit"`
	Telemetry   TelemetryConfig `toml:"Telemetry"`
	Auth        AuthConfig     `toml:"Auth"`
	RateLimit   RateLimitConfig `toml:"RateLimit"`
}

// PolicyDefaults mirrors the Config entity of the treasury engine (spec.md §3):
// signer threshold, amount ceilings, timelock, and velocity parameters.
// createDefault writes these values, but treasuryd does not read them: the
// engine Config passed to Initialize is built from the YAML seed fixture.
type PolicyDefaults struct {
	Threshold          int    `toml:"Threshold"`
	ThresholdStrategy  string `toml:"ThresholdStrategy"` // fixed|percentage|amount_based|time_based
	PerProposalLimit   string `toml:"PerProposalLimit"`  // decimal string, parsed into *big.Int
	DailyLimit         string `toml:"DailyLimit"`
	WeeklyLimit        string `toml:"WeeklyLimit"`
	TimelockThreshold  string `toml:"TimelockThreshold"`
	TimelockDelay      int64  `toml:"TimelockDelaySeconds"`
	VelocityWindow     int64  `toml:"VelocityWindowSeconds"`
	VelocityLimit      int    `toml:"VelocityLimit"`
	DayLengthSeconds   int64  `toml:"DayLengthSeconds"`
	MaxBatchSize       int    `toml:"MaxBatchSize"`
}

// InsuranceDefaults seeds the Insurance Config entity (spec.md §4.5).
type InsuranceDefaults struct {
	Enabled          bool   `toml:"Enabled"`
	MinAmount        string `toml:"MinAmount"`
	MinInsuranceBps  int64  `toml:"MinInsuranceBps"`
	SlashPercentage  int64  `toml:"SlashPercentage"`
	ReputationDiscountScore int64 `toml:"ReputationDiscountScore"`
}

// ReputationDefaults seeds the decay rate applied on every read-modify-write.
type ReputationDefaults struct {
	DecayPerDay int64 `toml:"DecayPerDay"`
}

// AuditConfig selects the gorm driver backing the append-only audit journal.
type AuditConfig struct {
	Driver string `toml:"Driver"` // sqlite|postgres
	DSN    string `toml:"DSN"`
}

// TelemetryConfig wires observability/otel.
type TelemetryConfig struct {
	Endpoint    string `toml:"Endpoint"`
	Insecure    bool   `toml:"Insecure"`
	Environment string `toml:"Environment"`
	Metrics     bool   `toml:"Metrics"`
	Traces      bool   `toml:"Traces"`
}

// AuthConfig configures the HS256 JWT caller-attestation layer (SPEC_FULL §3.2).
type AuthConfig struct {
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
}

// RateLimitConfig configures the golang.org/x/time/rate limiter fronting the
// RPC transport.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Load loads the configuration from the given path, generating a default file
// (and a fresh admin key) on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if cfg.AdminKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.AdminKey = hex.EncodeToString(key.Bytes())

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// createDefault writes a default configuration file tuned to the scenario
// values used throughout spec.md §8's end-to-end examples.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress:   ":6001",
		RPCAddress:      ":8080",
		DataDir:         "./treasury-data",
		AdminKey:        hex.EncodeToString(key.Bytes()),
		LogFilePath:     "./treasury-data/treasuryd.log",
		SeedFixturePath: "./seed.yaml",
		Policy: PolicyDefaults{
			Threshold:         2,
			ThresholdStrategy: "fixed",
			PerProposalLimit:  "1000",
			DailyLimit:        "5000",
			WeeklyLimit:       "10000",
			TimelockThreshold: "500",
			TimelockDelay:     100,
			VelocityWindow:    3600,
			VelocityLimit:     10,
			DayLengthSeconds:  5 * 17280, // 5-second ledger quantum, 17280 ledgers/day
			MaxBatchSize:      25,
		},
		Insurance: InsuranceDefaults{
			Enabled:                 true,
			MinAmount:               "100",
			MinInsuranceBps:         1000,
			SlashPercentage:         50,
			ReputationDiscountScore: 750,
		},
		Reputation: ReputationDefaults{
			DecayPerDay: 5,
		},
		Audit: AuditConfig{
			Driver: "sqlite",
			DSN:    "./treasury-data/audit.db",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			Insecure:    true,
			Environment: "development",
			Metrics:     true,
			Traces:      true,
		},
		Auth: AuthConfig{
			Issuer:   "treasuryd",
			Audience: "treasuryd-clients",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
