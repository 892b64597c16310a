package main

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"treasuryvault/crypto"
	"treasuryvault/native/treasury"
)

// seedFixture is the bootstrap signer-set, policy and list-registry document
// consumed on first Initialize (SPEC_FULL.md §3.3). It carries no role
// assignments: Initialize makes the admin the only role holder. It selects a
// threshold strategy by kind only, with no amount tiers. Operators
// hand-author it next to the TOML config; treasuryd never regenerates it.
type seedFixture struct {
	Signers           []string `yaml:"signers"`
	Threshold         int      `yaml:"threshold"`
	ThresholdStrategy string   `yaml:"thresholdStrategy"`
	PerProposalLimit  string   `yaml:"perProposalLimit"`
	DailyLimit        string   `yaml:"dailyLimit"`
	WeeklyLimit       string   `yaml:"weeklyLimit"`
	TimelockThreshold string   `yaml:"timelockThreshold"`
	TimelockDelay     uint64   `yaml:"timelockDelaySeconds"`
	VelocityWindow    uint64   `yaml:"velocityWindowSeconds"`
	VelocityLimit     int      `yaml:"velocityLimit"`
	DayLengthLedgers  uint64   `yaml:"dayLengthLedgers"`
	ProposalExpiry    uint64   `yaml:"proposalExpirySeconds"`
	MaxBatchSize      int      `yaml:"maxBatchSize"`

	Whitelist []string `yaml:"whitelist"`
	Blacklist []string `yaml:"blacklist"`
	ListMode  string   `yaml:"listMode"` // disabled|whitelist|blacklist
}

func loadSeedFixture(path string) (*seedFixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var fixture seedFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("seed: parse %s: %w", path, err)
	}
	return &fixture, nil
}

func parseBig(s, fallback string) (*big.Int, error) {
	if s == "" {
		s = fallback
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("seed: invalid decimal amount %q", s)
	}
	return amount, nil
}

func decodeAddresses(raw []string) ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(raw))
	for _, s := range raw {
		addr, err := crypto.DecodeAddress(s)
		if err != nil {
			return nil, fmt.Errorf("seed: invalid address %q: %w", s, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

func thresholdStrategyFromName(name string) treasury.ThresholdStrategy {
	switch name {
	case "percentage":
		return treasury.ThresholdStrategy{Kind: treasury.ThresholdStrategyPercentage, PercentageBps: 5000}
	case "amount_based":
		return treasury.ThresholdStrategy{Kind: treasury.ThresholdStrategyAmountBased}
	case "time_based":
		return treasury.ThresholdStrategy{Kind: treasury.ThresholdStrategyTimeBased}
	default:
		return treasury.ThresholdStrategy{Kind: treasury.ThresholdStrategyFixed}
	}
}

// buildEngineConfig translates the seed fixture into the engine's Config
// entity passed to Initialize. Unset fixture values fall back to fixed
// values (zero limits, a threshold equal to the signer count, an
// 86400-ledger day); the TOML Policy section is not consulted.
func buildEngineConfig(fixture *seedFixture, signers []crypto.Address) (treasury.Config, error) {
	perProposal, err := parseBig(fixture.PerProposalLimit, "0")
	if err != nil {
		return treasury.Config{}, err
	}
	daily, err := parseBig(fixture.DailyLimit, "0")
	if err != nil {
		return treasury.Config{}, err
	}
	weekly, err := parseBig(fixture.WeeklyLimit, "0")
	if err != nil {
		return treasury.Config{}, err
	}
	timelock, err := parseBig(fixture.TimelockThreshold, "0")
	if err != nil {
		return treasury.Config{}, err
	}

	threshold := fixture.Threshold
	if threshold == 0 {
		threshold = len(signers)
	}
	dayLength := fixture.DayLengthLedgers
	if dayLength == 0 {
		dayLength = 86400
	}
	strategy := thresholdStrategyFromName(fixture.ThresholdStrategy)
	if strategy.Kind == treasury.ThresholdStrategyTimeBased {
		strategy.TimeBased.InitialThreshold = threshold
	}

	return treasury.Config{
		Signers:           signers,
		Threshold:         threshold,
		ThresholdStrategy: strategy,
		PerProposalLimit:  perProposal,
		DailyLimit:        daily,
		WeeklyLimit:       weekly,
		TimelockThreshold: timelock,
		TimelockDelay:     fixture.TimelockDelay,
		VelocityWindow:    fixture.VelocityWindow,
		VelocityLimit:     fixture.VelocityLimit,
		DayLengthLedgers:  dayLength,
		MaxBatchSize:      fixture.MaxBatchSize,
		ProposalExpiry:    fixture.ProposalExpiry,
	}, nil
}

func listModeFromName(name string) treasury.ListMode {
	switch name {
	case "whitelist":
		return treasury.ListModeWhitelist
	case "blacklist":
		return treasury.ListModeBlacklist
	default:
		return treasury.ListModeDisabled
	}
}
