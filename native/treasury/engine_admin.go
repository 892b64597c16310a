package treasury

import (
	"math/big"

	"treasuryvault/crypto"
)

// SetRole assigns role to addr. Only Admin callers may do so.
func (e *Engine) SetRole(caller, addr crypto.Address, role Role) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	if err := e.setRole(addr, role); err != nil {
		return err
	}
	e.emit(newEvent(TopicRoleAssigned, map[string]string{"address": addr.String(), "role": role.String()}))
	return nil
}

// AddSigner appends addr to the signer set. Duplicate adds are a no-op.
func (e *Engine) AddSigner(caller, addr crypto.Address) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.IsSigner(addr) {
		return nil
	}
	cfg.Signers = append(cfg.Signers, addr)
	if err := e.saveConfig(cfg); err != nil {
		return err
	}
	e.emit(newEvent(TopicSignerAdded, map[string]string{"address": addr.String()}))
	return nil
}

// RemoveSigner removes addr from the signer set. The threshold is clamped
// down to the remaining signer count if it would otherwise exceed it.
func (e *Engine) RemoveSigner(caller, addr crypto.Address) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	filtered := cfg.Signers[:0]
	for _, signer := range cfg.Signers {
		if signer.String() != addr.String() {
			filtered = append(filtered, signer)
		}
	}
	cfg.Signers = filtered
	if cfg.Threshold > len(cfg.Signers) {
		cfg.Threshold = len(cfg.Signers)
	}
	if cfg.Threshold < 1 && len(cfg.Signers) > 0 {
		cfg.Threshold = 1
	}
	if err := e.saveConfig(cfg); err != nil {
		return err
	}
	e.emit(newEvent(TopicSignerRemoved, map[string]string{"address": addr.String()}))
	return nil
}

// UpdateLimits replaces the per-proposal, daily, and weekly ceilings. A nil
// argument leaves the corresponding existing limit untouched.
func (e *Engine) UpdateLimits(caller crypto.Address, perProposal, daily, weekly *big.Int) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if perProposal != nil {
		cfg.PerProposalLimit = perProposal
	}
	if daily != nil {
		cfg.DailyLimit = daily
	}
	if weekly != nil {
		cfg.WeeklyLimit = weekly
	}
	if err := e.saveConfig(cfg); err != nil {
		return err
	}
	e.emit(newEvent(TopicConfigUpdated, map[string]string{"field": "limits"}))
	return nil
}

// UpdateThreshold replaces the fixed threshold and/or strategy.
func (e *Engine) UpdateThreshold(caller crypto.Address, threshold int, strategy ThresholdStrategy) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if threshold < 1 || threshold > len(cfg.Signers) {
		return ErrConfigInvalid
	}
	cfg.Threshold = threshold
	cfg.ThresholdStrategy = strategy
	if err := e.saveConfig(cfg); err != nil {
		return err
	}
	e.emit(newEvent(TopicConfigUpdated, map[string]string{"field": "threshold"}))
	return nil
}

// SetListMode switches the active recipient-list gating mode.
func (e *Engine) SetListMode(caller crypto.Address, mode ListMode) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	list, err := e.loadList()
	if err != nil {
		return err
	}
	list.Mode = mode
	if err := e.saveList(list); err != nil {
		return err
	}
	e.emit(newEvent(TopicConfigUpdated, map[string]string{"field": "list_mode", "mode": mode.String()}))
	return nil
}

// AddToWhitelist adds addr to the whitelist membership set regardless of
// the currently active mode.
func (e *Engine) AddToWhitelist(caller, addr crypto.Address) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleTreasurer); err != nil {
		return err
	}
	list, err := e.loadList()
	if err != nil {
		return err
	}
	AddToWhitelist(list, addr)
	return e.saveList(list)
}

// RemoveFromWhitelist removes addr from the whitelist membership set.
func (e *Engine) RemoveFromWhitelist(caller, addr crypto.Address) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleTreasurer); err != nil {
		return err
	}
	list, err := e.loadList()
	if err != nil {
		return err
	}
	RemoveFromWhitelist(list, addr)
	return e.saveList(list)
}

// AddToBlacklist adds addr to the blacklist membership set.
func (e *Engine) AddToBlacklist(caller, addr crypto.Address) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleTreasurer); err != nil {
		return err
	}
	list, err := e.loadList()
	if err != nil {
		return err
	}
	AddToBlacklist(list, addr)
	return e.saveList(list)
}

// RemoveFromBlacklist removes addr from the blacklist membership set.
func (e *Engine) RemoveFromBlacklist(caller, addr crypto.Address) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleTreasurer); err != nil {
		return err
	}
	list, err := e.loadList()
	if err != nil {
		return err
	}
	RemoveFromBlacklist(list, addr)
	return e.saveList(list)
}

// SetInsuranceConfig replaces the insurance parameters wholesale.
func (e *Engine) SetInsuranceConfig(caller crypto.Address, cfg InsuranceConfig) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	if err := e.store.PersistentPut(insuranceConfigKey, cfg); err != nil {
		return err
	}
	e.emit(newEvent(TopicConfigUpdated, map[string]string{"field": "insurance"}))
	return nil
}
