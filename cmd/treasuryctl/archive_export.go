package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"treasuryvault/archive"
	"treasuryvault/config"
	"treasuryvault/crypto"
	"treasuryvault/native/treasury"
	"treasuryvault/storage"
)

// readOnlyTokenAdapter satisfies treasury.TokenAdapter for a treasuryctl
// invocation that never mutates balances, since the engine constructor
// requires one but archive-export never calls Transfer/Balance.
type readOnlyTokenAdapter struct{}

func (readOnlyTokenAdapter) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	return fmt.Errorf("treasuryctl: archive-export does not perform transfers")
}

func (readOnlyTokenAdapter) Balance(token string, addr crypto.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func runArchiveExport(args []string) error {
	fs := flag.NewFlagSet("archive-export", flag.ExitOnError)
	configPath := fs.String("config", "./treasuryd.toml", "treasuryd TOML config to read DataDir from")
	outDir := fs.String("out", "./archive", "directory to write the parquet snapshots into")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, err := storage.NewCompositeStore(
		filepath.Join(cfg.DataDir, "treasury.bolt"),
		filepath.Join(cfg.DataDir, "treasury-ttl.leveldb"),
	)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	engine := treasury.NewEngine(store, readOnlyTokenAdapter{})

	proposals, err := engine.ListProposals()
	if err != nil {
		return fmt.Errorf("list proposals: %w", err)
	}
	reputations, err := engine.ListReputations()
	if err != nil {
		return fmt.Errorf("list reputations: %w", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("out dir: %w", err)
	}

	proposalsPath := filepath.Join(*outDir, "proposals.parquet")
	if err := archive.ExportProposals(proposalsPath, proposals); err != nil {
		return fmt.Errorf("export proposals: %w", err)
	}
	reputationsPath := filepath.Join(*outDir, "reputations.parquet")
	if err := archive.ExportReputations(reputationsPath, reputations); err != nil {
		return fmt.Errorf("export reputations: %w", err)
	}

	fmt.Printf("wrote %d proposals to %s\n", len(proposals), proposalsPath)
	fmt.Printf("wrote %d reputations to %s\n", len(reputations), reputationsPath)
	return nil
}
