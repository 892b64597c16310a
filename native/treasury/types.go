package treasury

import (
	"math/big"
	"time"

	"treasuryvault/crypto"
)

// ProposalStatus is a tagged variant over the lifecycle states a proposal may
// occupy. Terminal states (Executed, Rejected, Expired, Cancelled) are never
// left once entered.
type ProposalStatus uint8

const (
	ProposalStatusUnspecified ProposalStatus = iota
	ProposalStatusPending
	ProposalStatusApproved
	ProposalStatusExecuted
	ProposalStatusRejected
	ProposalStatusExpired
	ProposalStatusCancelled
)

// String renders the status using the stable lower-snake names used in
// events and audit records.
func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusPending:
		return "pending"
	case ProposalStatusApproved:
		return "approved"
	case ProposalStatusExecuted:
		return "executed"
	case ProposalStatusRejected:
		return "rejected"
	case ProposalStatusExpired:
		return "expired"
	case ProposalStatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// Terminal reports whether the status is one of the four irreversible
// end-states of the lifecycle graph.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalStatusExecuted, ProposalStatusRejected, ProposalStatusExpired, ProposalStatusCancelled:
		return true
	default:
		return false
	}
}

// Role is a tagged variant over the three authorization tiers a signer may
// hold. Unmapped addresses default to Member.
type Role uint8

const (
	RoleMember Role = iota
	RoleTreasurer
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleTreasurer:
		return "treasurer"
	case RoleAdmin:
		return "admin"
	default:
		return "member"
	}
}

// atLeast reports whether r meets or exceeds the required role in the
// Member < Treasurer < Admin ordering.
func (r Role) atLeast(required Role) bool {
	return r >= required
}

// Priority is a tagged variant used to bucket proposals in the secondary
// priority index.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// ListMode selects which membership set, if any, gates recipient validation.
type ListMode uint8

const (
	ListModeDisabled ListMode = iota
	ListModeWhitelist
	ListModeBlacklist
)

func (m ListMode) String() string {
	switch m {
	case ListModeWhitelist:
		return "whitelist"
	case ListModeBlacklist:
		return "blacklist"
	default:
		return "disabled"
	}
}

// ThresholdStrategyKind selects the formula the Threshold Engine uses to
// compute the effective approver count for a proposal.
type ThresholdStrategyKind uint8

const (
	ThresholdStrategyFixed ThresholdStrategyKind = iota
	ThresholdStrategyPercentage
	ThresholdStrategyAmountBased
	ThresholdStrategyTimeBased
)

// AmountTier is one rung of an AmountBased threshold ladder: at or above
// Amount, the required approver count becomes Approvals.
type AmountTier struct {
	Amount    *big.Int
	Approvals int
}

// TimeBasedThreshold captures the (partially implemented, see threshold.go)
// time-decaying threshold parameters.
type TimeBasedThreshold struct {
	InitialThreshold int
	DecayAfter       time.Duration
	ReducedThreshold int
}

// ThresholdStrategy is the tagged-variant payload selecting and parameterizing
// one formula from ThresholdStrategyKind.
type ThresholdStrategy struct {
	Kind           ThresholdStrategyKind
	PercentageBps  int64
	AmountTiers    []AmountTier
	TimeBased      TimeBasedThreshold
}

// ConditionKind is a tagged variant over the predicates a proposal's
// execution condition tree may contain.
type ConditionKind uint8

const (
	ConditionBalanceAbove ConditionKind = iota
	ConditionDateAfter
	ConditionDateBefore
	ConditionPriceAbove
	ConditionPriceBelow
)

// Condition is one leaf predicate in the AND/OR tree evaluated at execution
// time only (spec.md §4.7).
type Condition struct {
	Kind      ConditionKind
	Value     *big.Int  // BalanceAbove threshold, or price threshold
	Timestamp int64      // DateAfter/DateBefore ledger-seconds
	Token     string     // PriceAbove/PriceBelow token identity
}

// ConditionLogic selects how a proposal's condition list combines.
type ConditionLogic uint8

const (
	ConditionLogicAnd ConditionLogic = iota
	ConditionLogicOr
)

// Proposal is the central entity of the engine (spec.md §3).
type Proposal struct {
	ID         uint64
	Proposer   crypto.Address
	Recipient  crypto.Address
	Token      string
	Amount     *big.Int
	Memo       string
	Status     ProposalStatus
	Priority   Priority

	// Approvers/Abstainers preserve insertion order; membership is checked
	// via the accompanying set for O(1) lookups without reordering the slice.
	Approvers     []crypto.Address
	approverSet   map[string]struct{}
	Abstainers    []crypto.Address
	abstainerSet  map[string]struct{}

	Conditions     []Condition
	ConditionLogic ConditionLogic

	CreatedLedger    uint64
	ExpiresLedger    uint64
	UnlockLedger     uint64 // 0 = no timelock
	InsuranceAmount  *big.Int
}

func newProposalSets() (map[string]struct{}, map[string]struct{}) {
	return make(map[string]struct{}), make(map[string]struct{})
}

// HasApproved reports whether addr already recorded an approval.
func (p *Proposal) HasApproved(addr crypto.Address) bool {
	if p == nil || p.approverSet == nil {
		return false
	}
	_, ok := p.approverSet[addr.String()]
	return ok
}

// HasAbstained reports whether addr already recorded an abstention.
func (p *Proposal) HasAbstained(addr crypto.Address) bool {
	if p == nil || p.abstainerSet == nil {
		return false
	}
	_, ok := p.abstainerSet[addr.String()]
	return ok
}

func (p *Proposal) addApprover(addr crypto.Address) {
	if p.approverSet == nil {
		p.approverSet, p.abstainerSet = newProposalSets()
	}
	key := addr.String()
	if _, ok := p.approverSet[key]; ok {
		return
	}
	p.approverSet[key] = struct{}{}
	p.Approvers = append(p.Approvers, addr)
}

func (p *Proposal) addAbstainer(addr crypto.Address) {
	if p.abstainerSet == nil {
		p.approverSet, p.abstainerSet = newProposalSets()
	}
	key := addr.String()
	if _, ok := p.abstainerSet[key]; ok {
		return
	}
	p.abstainerSet[key] = struct{}{}
	p.Abstainers = append(p.Abstainers, addr)
}

// rehydrateSets rebuilds the membership indexes after a proposal is decoded
// from persistence, where only the slices are serialized.
func (p *Proposal) rehydrateSets() {
	approverSet, abstainerSet := newProposalSets()
	for _, addr := range p.Approvers {
		approverSet[addr.String()] = struct{}{}
	}
	for _, addr := range p.Abstainers {
		abstainerSet[addr.String()] = struct{}{}
	}
	p.approverSet = approverSet
	p.abstainerSet = abstainerSet
}

// Config is the vault-wide policy configuration (spec.md §3).
type Config struct {
	VaultAddress       crypto.Address
	Signers            []crypto.Address
	Threshold          int
	ThresholdStrategy  ThresholdStrategy
	PerProposalLimit   *big.Int
	DailyLimit         *big.Int
	WeeklyLimit        *big.Int
	TimelockThreshold  *big.Int
	TimelockDelay      uint64 // in ledger-seconds
	VelocityWindow     uint64 // in ledger-seconds
	VelocityLimit      int
	DayLengthLedgers   uint64
	MaxBatchSize       int
	ProposalExpiry     uint64 // in ledger-seconds
}

// IsSigner reports whether addr is a configured signer.
func (c *Config) IsSigner(addr crypto.Address) bool {
	if c == nil {
		return false
	}
	for _, signer := range c.Signers {
		if signer.String() == addr.String() {
			return true
		}
	}
	return false
}

// InsuranceConfig parameterizes the Insurance Vault (spec.md §4.5).
type InsuranceConfig struct {
	Enabled                 bool
	MinAmount               *big.Int
	MinInsuranceBps         int64
	SlashPercentage         int64
	ReputationDiscountScore int64
}

// Reputation is the per-address decaying score record (spec.md §4.6).
type Reputation struct {
	Address           crypto.Address
	Score             int64
	ProposalsCreated  uint64
	ProposalsExecuted uint64
	ProposalsRejected uint64
	ApprovalsGiven    uint64
	LastUpdateLedger  uint64
}

// clamp keeps Score within [0, 1000].
func (r *Reputation) clamp() {
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 1000 {
		r.Score = 1000
	}
}

// RecipientList holds the independent whitelist/blacklist membership sets
// consulted according to the configured ListMode (spec.md §4.9).
type RecipientList struct {
	Mode      ListMode
	Whitelist map[string]struct{}
	Blacklist map[string]struct{}
}

// NewRecipientList constructs an empty, disabled list registry.
func NewRecipientList() *RecipientList {
	return &RecipientList{
		Mode:      ListModeDisabled,
		Whitelist: make(map[string]struct{}),
		Blacklist: make(map[string]struct{}),
	}
}

// BatchResult is the return value of BatchExecuteProposals: the IDs that
// executed successfully, plus aggregate counts for the single summary event.
type BatchResult struct {
	Executed []uint64
	Failed   []uint64
}
