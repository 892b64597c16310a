package treasury

import "math/big"

// InsuranceVault computes required stake, and resolves it to a payout
// outcome on proposal termination (spec.md §4.5).
type InsuranceVault struct{}

// NewInsuranceVault constructs a stateless insurance calculator; the locked
// stake itself is tracked on each Proposal's InsuranceAmount and in the
// engine's per-token vault-held record.
func NewInsuranceVault() *InsuranceVault {
	return &InsuranceVault{}
}

// RequiredStake computes the stake a proposer must supply for amount under
// cfg, applying the reputation discount when the proposer's score meets the
// configured threshold. A zero ReputationDiscountScore disables the discount.
func (v *InsuranceVault) RequiredStake(cfg *InsuranceConfig, amount *big.Int, reputationScore int64) *big.Int {
	if cfg == nil || !cfg.Enabled || amount == nil {
		return big.NewInt(0)
	}
	if cfg.MinAmount != nil && amount.Cmp(cfg.MinAmount) < 0 {
		return big.NewInt(0)
	}
	required := new(big.Int).Mul(amount, big.NewInt(cfg.MinInsuranceBps))
	required.Div(required, big.NewInt(10_000))
	if cfg.ReputationDiscountScore > 0 && reputationScore >= cfg.ReputationDiscountScore {
		required.Div(required, big.NewInt(2))
	}
	return required
}

// SlashOutcome is the result of resolving a Rejected proposal's held stake.
type SlashOutcome struct {
	Returned *big.Int
	Slashed  *big.Int
}

// Slash computes the reject-path payout split: slash percent of stake is
// retained by the vault, the remainder returns to the proposer.
func (v *InsuranceVault) Slash(cfg *InsuranceConfig, stake *big.Int) SlashOutcome {
	if stake == nil || stake.Sign() == 0 {
		return SlashOutcome{Returned: big.NewInt(0), Slashed: big.NewInt(0)}
	}
	pct := int64(0)
	if cfg != nil {
		pct = cfg.SlashPercentage
	}
	slashed := new(big.Int).Mul(stake, big.NewInt(pct))
	slashed.Div(slashed, big.NewInt(100))
	returned := new(big.Int).Sub(stake, slashed)
	return SlashOutcome{Returned: returned, Slashed: slashed}
}
