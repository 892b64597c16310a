package treasury

import (
	"fmt"
	"math/big"

	"treasuryvault/crypto"
)

var (
	initFlagKey        = []byte("treasury/initialized")
	configKey          = []byte("treasury/config")
	insuranceConfigKey = []byte("treasury/insurance_config")
	listKey            = []byte("treasury/list")
	nextIDKey          = []byte("treasury/next_id")
)

func proposalKey(id uint64) []byte {
	return []byte(fmt.Sprintf("treasury/proposal/%d", id))
}

func roleKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("treasury/role/%s", addr.String()))
}

func priorityKey(p Priority) []byte {
	return []byte(fmt.Sprintf("treasury/priority/%d", p))
}

func vaultHeldKey(token string) []byte {
	return []byte(fmt.Sprintf("treasury/vault_held/%s", token))
}

// Engine is the proposal lifecycle engine and policy surface described by
// spec.md §4: every mutating entry point gates through the Policy Evaluator
// before touching the Proposal Store, Budget Ledger, Insurance Vault, or
// Reputation Ledger, and emits its Events only after the mutation commits.
//
// Engine is not internally concurrent (SPEC_FULL.md §7): callers serialize
// access to a single instance themselves.
type Engine struct {
	store   Store
	token   TokenAdapter
	emitter Emitter
	nowFn   func() uint64

	budget     *BudgetLedger
	insurance  *InsuranceVault
	reputation *ReputationLedger
}

// NewEngine constructs an engine bound to store and token, with a no-op
// emitter and a zero-valued ledger clock until SetEmitter/SetNowFunc are
// called.
func NewEngine(store Store, token TokenAdapter) *Engine {
	return &Engine{
		store:      store,
		token:      token,
		emitter:    NoopEmitter{},
		nowFn:      func() uint64 { return 0 },
		budget:     NewBudgetLedger(store),
		insurance:  NewInsuranceVault(),
		reputation: NewReputationLedger(store, 5),
	}
}

// SetEmitter configures the event sink. Passing nil resets to NoopEmitter.
func (e *Engine) SetEmitter(emitter Emitter) {
	if emitter == nil {
		e.emitter = NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the ledger-time source. The returned value is treated
// as ledger-seconds, the sole clock the engine ever consults (spec.md §5).
func (e *Engine) SetNowFunc(fn func() uint64) {
	if fn == nil {
		e.nowFn = func() uint64 { return 0 }
		return
	}
	e.nowFn = fn
}

// SetReputationDecay overrides the default decay-per-day rate.
func (e *Engine) SetReputationDecay(decayPerDay int64) {
	e.reputation = NewReputationLedger(e.store, decayPerDay)
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return 0
	}
	return e.nowFn()
}

func (e *Engine) emit(ev Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// --- initialization & config plumbing ---

func (e *Engine) isInitialized() (bool, error) {
	var flag bool
	ok, err := e.store.PersistentGet(initFlagKey, &flag)
	if err != nil {
		return false, err
	}
	return ok && flag, nil
}

func (e *Engine) requireInitialized() error {
	ok, err := e.isInitialized()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	return nil
}

func (e *Engine) loadConfig() (*Config, error) {
	var cfg Config
	ok, err := e.store.PersistentGet(configKey, &cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return &cfg, nil
}

func (e *Engine) saveConfig(cfg *Config) error {
	return e.store.PersistentPut(configKey, cfg)
}

func (e *Engine) loadInsuranceConfig() (*InsuranceConfig, error) {
	var cfg InsuranceConfig
	ok, err := e.store.PersistentGet(insuranceConfigKey, &cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &InsuranceConfig{}, nil
	}
	return &cfg, nil
}

func (e *Engine) loadList() (*RecipientList, error) {
	var list RecipientList
	ok, err := e.store.PersistentGet(listKey, &list)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewRecipientList(), nil
	}
	if list.Whitelist == nil {
		list.Whitelist = make(map[string]struct{})
	}
	if list.Blacklist == nil {
		list.Blacklist = make(map[string]struct{})
	}
	return &list, nil
}

func (e *Engine) saveList(list *RecipientList) error {
	return e.store.PersistentPut(listKey, list)
}

// GetRole returns the role assigned to addr, defaulting to Member.
func (e *Engine) GetRole(addr crypto.Address) (Role, error) {
	var role Role
	ok, err := e.store.PersistentGet(roleKey(addr), &role)
	if err != nil {
		return RoleMember, err
	}
	if !ok {
		return RoleMember, nil
	}
	return role, nil
}

func (e *Engine) setRole(addr crypto.Address, role Role) error {
	return e.store.PersistentPut(roleKey(addr), role)
}

func (e *Engine) requireRole(caller crypto.Address, required Role) error {
	role, err := e.GetRole(caller)
	if err != nil {
		return err
	}
	if !role.atLeast(required) {
		return ErrInsufficientRole
	}
	return nil
}

// Initialize admits the vault's first configuration (spec.md §6). It may be
// called exactly once.
func (e *Engine) Initialize(admin crypto.Address, cfg Config) error {
	initialized, err := e.isInitialized()
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyInitialized
	}
	if len(cfg.Signers) == 0 {
		return ErrConfigInvalid
	}
	if cfg.Threshold < 1 || cfg.Threshold > len(cfg.Signers) {
		return ErrConfigInvalid
	}
	if cfg.DayLengthLedgers == 0 {
		return ErrConfigInvalid
	}
	cfg.VaultAddress = admin
	if err := e.saveConfig(&cfg); err != nil {
		return err
	}
	if err := e.setRole(admin, RoleAdmin); err != nil {
		return err
	}
	if err := e.store.PersistentPut(initFlagKey, true); err != nil {
		return err
	}
	e.emit(newEvent(TopicInitialized, map[string]string{"admin": admin.String()}))
	return nil
}

// --- proposal persistence & priority index ---

func (e *Engine) getProposal(id uint64) (*Proposal, error) {
	var p Proposal
	ok, err := e.store.PersistentGet(proposalKey(id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProposalNotFound
	}
	p.rehydrateSets()
	return &p, nil
}

func (e *Engine) putProposal(p *Proposal) error {
	return e.store.PersistentPut(proposalKey(p.ID), p)
}

type priorityIndex struct {
	IDs []uint64 `json:"ids"`
}

func (e *Engine) addToPriorityIndex(priority Priority, id uint64) error {
	var idx priorityIndex
	if _, err := e.store.PersistentGet(priorityKey(priority), &idx); err != nil {
		return err
	}
	idx.IDs = append(idx.IDs, id)
	return e.store.PersistentPut(priorityKey(priority), idx)
}

func (e *Engine) removeFromPriorityIndex(priority Priority, id uint64) error {
	var idx priorityIndex
	ok, err := e.store.PersistentGet(priorityKey(priority), &idx)
	if err != nil || !ok {
		return err
	}
	filtered := idx.IDs[:0]
	for _, existing := range idx.IDs {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	idx.IDs = filtered
	return e.store.PersistentPut(priorityKey(priority), idx)
}

// GetProposalsByPriority returns the IDs currently indexed under priority.
func (e *Engine) GetProposalsByPriority(priority Priority) ([]uint64, error) {
	var idx priorityIndex
	if _, err := e.store.PersistentGet(priorityKey(priority), &idx); err != nil {
		return nil, err
	}
	return idx.IDs, nil
}

func (e *Engine) nextProposalID() (uint64, error) {
	var next uint64
	if _, err := e.store.PersistentGet(nextIDKey, &next); err != nil {
		return 0, err
	}
	next++
	if err := e.store.PersistentPut(nextIDKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// checkExpiry promotes p to Expired in-place (write-back) if observed past
// its expiry ledger, matching the eager-expiry semantics of spec.md §4.2.
// Returns true if the promotion happened.
func (e *Engine) checkExpiry(p *Proposal) (bool, error) {
	if p.Status != ProposalStatusPending && p.Status != ProposalStatusApproved {
		return false, nil
	}
	if p.ExpiresLedger == 0 || e.now() <= p.ExpiresLedger {
		return false, nil
	}
	p.Status = ProposalStatusExpired
	if err := e.removeFromPriorityIndex(p.Priority, p.ID); err != nil {
		return false, err
	}
	if err := e.resolveInsuranceOnTerminal(p, SlashOutcome{Returned: p.InsuranceAmount, Slashed: big.NewInt(0)}); err != nil {
		return false, err
	}
	if err := e.putProposal(p); err != nil {
		return false, err
	}
	e.emit(proposalEvent(TopicProposalExpired, p))
	return true, nil
}

func (e *Engine) resolveInsuranceOnTerminal(p *Proposal, outcome SlashOutcome) error {
	if p.InsuranceAmount == nil || p.InsuranceAmount.Sign() == 0 {
		return nil
	}
	held, err := e.vaultHeld(p.Token)
	if err != nil {
		return err
	}
	held = new(big.Int).Sub(held, p.InsuranceAmount)
	if held.Sign() < 0 {
		held = big.NewInt(0)
	}
	if err := e.setVaultHeld(p.Token, held); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if outcome.Returned != nil && outcome.Returned.Sign() > 0 {
		if err := e.token.Transfer(p.Token, cfg.VaultAddress, p.Proposer, outcome.Returned); err != nil {
			return ErrTransferFailed
		}
	}
	return nil
}

func (e *Engine) vaultHeld(token string) (*big.Int, error) {
	var rec accumulatorRecord
	ok, err := e.store.PersistentGet(vaultHeldKey(token), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(rec.Amount, 10)
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (e *Engine) setVaultHeld(token string, amount *big.Int) error {
	return e.store.PersistentPut(vaultHeldKey(token), accumulatorRecord{Amount: amount.String()})
}

// GetVaultBalance backs invariant #6 of spec.md §8 with a queryable view
// (SPEC_FULL.md §5): the aggregate insurance currently locked for token.
func (e *Engine) GetVaultBalance(token string) (*big.Int, error) {
	return e.vaultHeld(token)
}

// GetProposal is the read-only view named in spec.md §6. It promotes expiry
// eagerly, matching the write-back semantics applied on every other touch.
func (e *Engine) GetProposal(id uint64) (*Proposal, error) {
	p, err := e.getProposal(id)
	if err != nil {
		return nil, err
	}
	if _, err := e.checkExpiry(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProposals returns every proposal ever created, in ID order, for
// cold-storage export (SPEC_FULL.md §4). It does not promote expiry.
func (e *Engine) ListProposals() ([]*Proposal, error) {
	var next uint64
	if _, err := e.store.PersistentGet(nextIDKey, &next); err != nil {
		return nil, err
	}
	proposals := make([]*Proposal, 0, next)
	for id := uint64(1); id <= next; id++ {
		p, err := e.getProposal(id)
		if err != nil {
			if err == ErrProposalNotFound {
				continue
			}
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// ListReputations returns the reputation record for every signer on the
// current config, for cold-storage export (SPEC_FULL.md §4). Records of
// addresses since removed from the signer set are not included.
func (e *Engine) ListReputations() ([]*Reputation, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	records := make([]*Reputation, 0, len(cfg.Signers))
	for _, signer := range cfg.Signers {
		rec, err := e.GetReputation(signer)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetDailySpent returns the daily accumulator for token/day.
func (e *Engine) GetDailySpent(token string, day uint64) (*big.Int, error) {
	return e.budget.DailySpent(token, day)
}

// GetTodaySpent returns the daily accumulator for the current ledger day.
func (e *Engine) GetTodaySpent(token string) (*big.Int, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	day := DayNumber(e.now(), cfg.DayLengthLedgers)
	return e.budget.DailySpent(token, day)
}

// IsSigner reports whether addr is configured as a signer.
func (e *Engine) IsSigner(addr crypto.Address) (bool, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return false, err
	}
	return cfg.IsSigner(addr), nil
}

// IsWhitelisted reports whitelist membership regardless of active mode.
func (e *Engine) IsWhitelisted(addr crypto.Address) (bool, error) {
	list, err := e.loadList()
	if err != nil {
		return false, err
	}
	return IsWhitelisted(list, addr), nil
}

// IsBlacklisted reports blacklist membership regardless of active mode.
func (e *Engine) IsBlacklisted(addr crypto.Address) (bool, error) {
	list, err := e.loadList()
	if err != nil {
		return false, err
	}
	return IsBlacklisted(list, addr), nil
}

// GetReputation returns the decay-adjusted (but not persisted) reputation
// record for addr.
func (e *Engine) GetReputation(addr crypto.Address) (*Reputation, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	nowDay := DayNumber(e.now(), cfg.DayLengthLedgers)
	return e.reputation.Get(addr, nowDay, cfg.DayLengthLedgers)
}

// GetInsuranceConfig returns the currently configured insurance parameters.
func (e *Engine) GetInsuranceConfig() (*InsuranceConfig, error) {
	return e.loadInsuranceConfig()
}
