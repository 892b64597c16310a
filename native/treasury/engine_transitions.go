package treasury

import (
	"math/big"

	"treasuryvault/crypto"
)

// ProposeTransfer runs the Policy Evaluator gate sequence (spec.md §4.1) and,
// if every gate passes, creates a new Pending proposal. No partial state is
// written when any gate fails.
func (e *Engine) ProposeTransfer(
	proposer crypto.Address,
	recipient crypto.Address,
	token string,
	amount *big.Int,
	memo string,
	priority Priority,
	conditions []Condition,
	logic ConditionLogic,
) (*Proposal, error) {
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsSigner(proposer) {
		return nil, ErrUnauthorized
	}
	if err := e.requireRole(proposer, RoleTreasurer); err != nil {
		return nil, err
	}
	list, err := e.loadList()
	if err != nil {
		return nil, err
	}
	if err := ValidateRecipient(list, recipient); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrAmountInvalid
	}

	now := e.now()
	day := DayNumber(now, cfg.DayLengthLedgers)
	week := WeekNumber(day)
	if err := e.budget.CheckCeilings(cfg, token, day, week, amount); err != nil {
		return nil, err
	}

	prunedVelocity, err := e.budget.CheckVelocity(proposer, cfg.VelocityWindow, cfg.VelocityLimit, now)
	if err != nil {
		return nil, err
	}

	reputation, err := e.reputation.Get(proposer, day, cfg.DayLengthLedgers)
	if err != nil {
		return nil, err
	}
	insuranceCfg, err := e.loadInsuranceConfig()
	if err != nil {
		return nil, err
	}
	requiredStake := e.insurance.RequiredStake(insuranceCfg, amount, reputation.Score)
	if requiredStake.Sign() > 0 {
		balance, err := e.token.Balance(token, proposer)
		if err != nil {
			return nil, ErrTransferFailed
		}
		if balance.Cmp(requiredStake) < 0 {
			return nil, ErrInsuranceInsufficient
		}
	}

	// All gates passed: commit side effects in order, then persist the
	// proposal and emit its event.
	if err := e.budget.Reserve(token, day, week, amount); err != nil {
		return nil, err
	}
	if err := e.budget.RecordVelocity(proposer, prunedVelocity, cfg.VelocityWindow, now); err != nil {
		return nil, err
	}
	if requiredStake.Sign() > 0 {
		if err := e.token.Transfer(token, proposer, cfg.VaultAddress, requiredStake); err != nil {
			return nil, ErrTransferFailed
		}
		held, err := e.vaultHeld(token)
		if err != nil {
			return nil, err
		}
		if err := e.setVaultHeld(token, new(big.Int).Add(held, requiredStake)); err != nil {
			return nil, err
		}
	}

	id, err := e.nextProposalID()
	if err != nil {
		return nil, err
	}
	var expires uint64
	if cfg.ProposalExpiry > 0 {
		expires = now + cfg.ProposalExpiry
	}
	p := &Proposal{
		ID:              id,
		Proposer:        proposer,
		Recipient:       recipient,
		Token:           token,
		Amount:          amount,
		Memo:            memo,
		Status:          ProposalStatusPending,
		Priority:        priority,
		Conditions:      conditions,
		ConditionLogic:  logic,
		CreatedLedger:   now,
		ExpiresLedger:   expires,
		InsuranceAmount: requiredStake,
	}
	p.rehydrateSets()
	if err := e.putProposal(p); err != nil {
		return nil, err
	}
	if err := e.addToPriorityIndex(priority, id); err != nil {
		return nil, err
	}
	if rec, changed, err := e.reputation.Adjust(proposer, 0, "proposals_created", now, cfg.DayLengthLedgers); err != nil {
		return nil, err
	} else if changed {
		e.emit(reputationEvent(rec))
	}
	e.emit(proposalEvent(TopicProposalCreated, p))
	if requiredStake.Sign() > 0 {
		e.emit(proposalEvent(TopicInsuranceLocked, p))
	}
	return p, nil
}

func (e *Engine) loadPendingOrApproved(caller crypto.Address, id uint64, cfg *Config) (*Proposal, error) {
	if !cfg.IsSigner(caller) {
		return nil, ErrUnauthorized
	}
	p, err := e.getProposal(id)
	if err != nil {
		return nil, err
	}
	if promoted, err := e.checkExpiry(p); err != nil {
		return nil, err
	} else if promoted {
		return nil, ErrProposalExpired
	}
	return p, nil
}

// ApproveProposal records caller's approval, promoting the proposal to
// Approved once the effective threshold (spec.md §4.3) is met.
func (e *Engine) ApproveProposal(caller crypto.Address, id uint64) (*Proposal, error) {
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := e.loadPendingOrApproved(caller, id, cfg)
	if err != nil {
		return nil, err
	}
	if p.Status != ProposalStatusPending {
		return nil, ErrInvalidStatus
	}
	if p.HasApproved(caller) {
		return nil, ErrAlreadyApproved
	}
	if p.HasAbstained(caller) {
		return nil, ErrExclusiveVote
	}
	p.addApprover(caller)

	required := EffectiveThreshold(cfg, p.Amount)
	if len(p.Approvers) >= required {
		p.Status = ProposalStatusApproved
		if cfg.TimelockThreshold != nil && p.Amount.Cmp(cfg.TimelockThreshold) >= 0 {
			p.UnlockLedger = e.now() + cfg.TimelockDelay
		} else {
			p.UnlockLedger = 0
		}
	}
	if err := e.putProposal(p); err != nil {
		return nil, err
	}
	if rec, changed, err := e.reputation.Adjust(caller, 2, "approvals_given", e.now(), cfg.DayLengthLedgers); err != nil {
		return nil, err
	} else if changed {
		e.emit(reputationEvent(rec))
	}
	e.emit(proposalEvent(TopicProposalApproved, p))
	if p.Status == ProposalStatusApproved {
		e.emit(proposalEvent(TopicProposalReady, p))
	}
	return p, nil
}

// AbstainFromProposal records caller's abstention. Abstentions never count
// toward the effective threshold.
func (e *Engine) AbstainFromProposal(caller crypto.Address, id uint64) (*Proposal, error) {
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := e.loadPendingOrApproved(caller, id, cfg)
	if err != nil {
		return nil, err
	}
	if p.Status != ProposalStatusPending {
		return nil, ErrInvalidStatus
	}
	if p.HasAbstained(caller) {
		return nil, ErrAlreadyAbstained
	}
	if p.HasApproved(caller) {
		return nil, ErrExclusiveVote
	}
	p.addAbstainer(caller)
	if err := e.putProposal(p); err != nil {
		return nil, err
	}
	e.emit(proposalEvent(TopicProposalAbstained, p))
	return p, nil
}

// RejectProposal transitions a Pending proposal to Rejected, slashing any
// held insurance stake per spec.md §4.5. Only the Admin or the proposal's
// original proposer may reject it (spec.md §4.2).
func (e *Engine) RejectProposal(caller crypto.Address, id uint64) (*Proposal, error) {
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := e.loadPendingOrApproved(caller, id, cfg)
	if err != nil {
		return nil, err
	}
	role, err := e.GetRole(caller)
	if err != nil {
		return nil, err
	}
	if !role.atLeast(RoleAdmin) && p.Proposer.String() != caller.String() {
		return nil, ErrUnauthorized
	}
	if p.Status != ProposalStatusPending {
		return nil, ErrInvalidStatus
	}
	p.Status = ProposalStatusRejected
	if err := e.removeFromPriorityIndex(p.Priority, p.ID); err != nil {
		return nil, err
	}

	outcome := SlashOutcome{Returned: big.NewInt(0), Slashed: big.NewInt(0)}
	if p.InsuranceAmount != nil && p.InsuranceAmount.Sign() > 0 {
		insuranceCfg, err := e.loadInsuranceConfig()
		if err != nil {
			return nil, err
		}
		outcome = e.insurance.Slash(insuranceCfg, p.InsuranceAmount)
	}
	if err := e.resolveInsuranceOnTerminal(p, outcome); err != nil {
		return nil, err
	}
	if err := e.putProposal(p); err != nil {
		return nil, err
	}
	if rec, changed, err := e.reputation.Adjust(p.Proposer, -20, "proposals_rejected", e.now(), cfg.DayLengthLedgers); err != nil {
		return nil, err
	} else if changed {
		e.emit(reputationEvent(rec))
	}
	e.emit(proposalEvent(TopicProposalRejected, p))
	if outcome.Slashed.Sign() > 0 {
		e.emit(proposalEvent(TopicInsuranceSlashed, p))
	}
	return p, nil
}

// ExecuteProposal performs the actual token transfer once a proposal is
// Approved, its timelock (if any) has elapsed, and its execution conditions
// (if any) evaluate true (spec.md §4.2, §4.7).
func (e *Engine) ExecuteProposal(caller crypto.Address, id uint64, priceOracle PriceOracle) (*Proposal, error) {
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := e.loadPendingOrApproved(caller, id, cfg)
	if err != nil {
		return nil, err
	}
	if p.Status != ProposalStatusApproved {
		return nil, ErrInvalidStatus
	}
	now := e.now()
	if p.UnlockLedger > 0 && now < p.UnlockLedger {
		return nil, ErrTimelockNotExpired
	}

	balance, err := e.token.Balance(p.Token, cfg.VaultAddress)
	if err != nil {
		return nil, ErrTransferFailed
	}
	held, err := e.vaultHeld(p.Token)
	if err != nil {
		return nil, err
	}
	required := new(big.Int).Add(p.Amount, held)
	if balance.Cmp(required) < 0 {
		return nil, ErrTransferFailed
	}

	ok, err := EvaluateConditions(p, ConditionContext{Balance: balance, NowLedger: now, Oracle: priceOracle})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConditionsNotMet
	}

	if err := e.token.Transfer(p.Token, cfg.VaultAddress, p.Recipient, p.Amount); err != nil {
		return nil, ErrTransferFailed
	}
	p.Status = ProposalStatusExecuted
	if err := e.removeFromPriorityIndex(p.Priority, p.ID); err != nil {
		return nil, err
	}
	if err := e.resolveInsuranceOnTerminal(p, SlashOutcome{Returned: p.InsuranceAmount, Slashed: big.NewInt(0)}); err != nil {
		return nil, err
	}
	if err := e.putProposal(p); err != nil {
		return nil, err
	}

	if rec, changed, err := e.reputation.Adjust(p.Proposer, 10, "proposals_executed", now, cfg.DayLengthLedgers); err != nil {
		return nil, err
	} else if changed {
		e.emit(reputationEvent(rec))
	}
	for _, approver := range p.Approvers {
		rec, changed, err := e.reputation.Adjust(approver, 5, "", now, cfg.DayLengthLedgers)
		if err != nil {
			return nil, err
		}
		if changed {
			e.emit(reputationEvent(rec))
		}
	}

	e.emit(proposalEvent(TopicProposalExecuted, p))
	if p.InsuranceAmount != nil && p.InsuranceAmount.Sign() > 0 {
		e.emit(proposalEvent(TopicInsuranceReturned, p))
	}
	return p, nil
}

// CancelProposal lets the original proposer withdraw a Pending proposal
// before any signer has approved it, returning the full insurance stake.
// This is a supplemented entry point not named by the original numbered
// gate list but consistent with the Pending state's reversibility.
func (e *Engine) CancelProposal(caller crypto.Address, id uint64) (*Proposal, error) {
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsSigner(caller) {
		return nil, ErrUnauthorized
	}
	p, err := e.getProposal(id)
	if err != nil {
		return nil, err
	}
	if promoted, err := e.checkExpiry(p); err != nil {
		return nil, err
	} else if promoted {
		return nil, ErrProposalExpired
	}
	if p.Status != ProposalStatusPending {
		return nil, ErrInvalidStatus
	}
	if p.Proposer.String() != caller.String() {
		return nil, ErrUnauthorized
	}
	if len(p.Approvers) > 0 {
		return nil, ErrCancelNotAllowed
	}
	p.Status = ProposalStatusCancelled
	if err := e.removeFromPriorityIndex(p.Priority, p.ID); err != nil {
		return nil, err
	}
	if err := e.resolveInsuranceOnTerminal(p, SlashOutcome{Returned: p.InsuranceAmount, Slashed: big.NewInt(0)}); err != nil {
		return nil, err
	}
	if err := e.putProposal(p); err != nil {
		return nil, err
	}
	e.emit(proposalEvent(TopicProposalCancelled, p))
	return p, nil
}

// ChangePriority re-buckets a non-terminal proposal's priority index entry.
func (e *Engine) ChangePriority(caller crypto.Address, id uint64, priority Priority) (*Proposal, error) {
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	if err := e.requireRole(caller, RoleTreasurer); err != nil {
		return nil, err
	}
	p, err := e.getProposal(id)
	if err != nil {
		return nil, err
	}
	if promoted, err := e.checkExpiry(p); err != nil {
		return nil, err
	} else if promoted {
		return nil, ErrProposalExpired
	}
	if p.Status.Terminal() {
		return nil, ErrInvalidStatus
	}
	if p.Priority == priority {
		return p, nil
	}
	if err := e.removeFromPriorityIndex(p.Priority, p.ID); err != nil {
		return nil, err
	}
	p.Priority = priority
	if err := e.addToPriorityIndex(priority, p.ID); err != nil {
		return nil, err
	}
	if err := e.putProposal(p); err != nil {
		return nil, err
	}
	return p, nil
}
