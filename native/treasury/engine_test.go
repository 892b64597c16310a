package treasury

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"treasuryvault/crypto"
)

type mockStore struct {
	persistent map[string][]byte
	temporary  map[string][]byte
	instance   map[string][]byte
}

func newMockStore() *mockStore {
	return &mockStore{
		persistent: make(map[string][]byte),
		temporary:  make(map[string][]byte),
		instance:   make(map[string][]byte),
	}
}

func (m *mockStore) PersistentPut(key []byte, value interface{}) error {
	return jsonPut(m.persistent, key, value)
}
func (m *mockStore) PersistentGet(key []byte, out interface{}) (bool, error) {
	return jsonGet(m.persistent, key, out)
}
func (m *mockStore) PersistentDelete(key []byte) error {
	delete(m.persistent, string(key))
	return nil
}
func (m *mockStore) TemporaryPut(key []byte, value interface{}, ttl time.Duration) error {
	return jsonPut(m.temporary, key, value)
}
func (m *mockStore) TemporaryGet(key []byte, out interface{}) (bool, error) {
	return jsonGet(m.temporary, key, out)
}
func (m *mockStore) InstancePut(key []byte, value interface{}) {
	_ = jsonPut(m.instance, key, value)
}
func (m *mockStore) InstanceGet(key []byte, out interface{}) bool {
	ok, _ := jsonGet(m.instance, key, out)
	return ok
}

type mockToken struct {
	balances map[string]*big.Int
}

func newMockToken() *mockToken {
	return &mockToken{balances: make(map[string]*big.Int)}
}

func (m *mockToken) key(token string, addr crypto.Address) string {
	return token + "/" + addr.String()
}

func (m *mockToken) fund(token string, addr crypto.Address, amount int64) {
	m.balances[m.key(token, addr)] = big.NewInt(amount)
}

func (m *mockToken) Balance(token string, addr crypto.Address) (*big.Int, error) {
	if bal, ok := m.balances[m.key(token, addr)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockToken) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	fromBal, err := m.Balance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrTransferFailed
	}
	toBal, err := m.Balance(token, to)
	if err != nil {
		return err
	}
	m.balances[m.key(token, from)] = new(big.Int).Sub(fromBal, amount)
	m.balances[m.key(token, to)] = new(big.Int).Add(toBal, amount)
	return nil
}

func testAddr(b byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = b
	return crypto.MustNewAddress(crypto.TestPrefix, buf)
}

func newTestEngine(t *testing.T) (*Engine, *mockToken, crypto.Address, []crypto.Address) {
	t.Helper()
	store := newMockStore()
	token := newMockToken()
	engine := NewEngine(store, token)
	clock := uint64(1_000_000)
	engine.SetNowFunc(func() uint64 { return clock })

	admin := testAddr(1)
	signers := []crypto.Address{admin, testAddr(2), testAddr(3)}
	cfg := Config{
		Signers:           signers,
		Threshold:         2,
		ThresholdStrategy: ThresholdStrategy{Kind: ThresholdStrategyFixed},
		DayLengthLedgers:  86400,
		ProposalExpiry:    7 * 86400,
	}
	if err := engine.Initialize(admin, cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	token.fund("znhb", vaultAddressOf(t, engine), 0)
	return engine, token, admin, signers
}

func vaultAddressOf(t *testing.T, e *Engine) crypto.Address {
	t.Helper()
	cfg, err := e.loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg.VaultAddress
}

func jsonPut(store map[string][]byte, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	store[string(key)] = data
	return nil
}

func jsonGet(store map[string][]byte, key []byte, out interface{}) (bool, error) {
	data, ok := store[string(key)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func TestInitializeRejectsSecondCall(t *testing.T) {
	engine, _, admin, _ := newTestEngine(t)
	err := engine.Initialize(admin, Config{Signers: []crypto.Address{admin}, Threshold: 1, DayLengthLedgers: 1})
	if err != ErrAlreadyInitialized {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestProposeTransferRequiresSigner(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	outsider := testAddr(99)
	_, err := engine.ProposeTransfer(outsider, testAddr(50), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestProposeTransferRejectsNonPositiveAmount(t *testing.T) {
	engine, _, admin, _ := newTestEngine(t)
	_, err := engine.ProposeTransfer(admin, testAddr(50), "znhb", big.NewInt(0), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != ErrAmountInvalid {
		t.Fatalf("expected ErrAmountInvalid, got %v", err)
	}
}

func TestFullLifecycleApproveAndExecute(t *testing.T) {
	engine, token, admin, signers := newTestEngine(t)
	vault := vaultAddressOf(t, engine)
	token.fund("znhb", vault, 1000)

	recipient := testAddr(50)
	p, err := engine.ProposeTransfer(admin, recipient, "znhb", big.NewInt(100), "payroll", PriorityNormal, nil, ConditionLogicAnd)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if p.Status != ProposalStatusPending {
		t.Fatalf("expected pending, got %s", p.Status)
	}

	if _, err := engine.ApproveProposal(signers[1], p.ID); err != nil {
		t.Fatalf("approve 1: %v", err)
	}
	approved, err := engine.ApproveProposal(signers[2], p.ID)
	if err != nil {
		t.Fatalf("approve 2: %v", err)
	}
	if approved.Status != ProposalStatusApproved {
		t.Fatalf("expected approved after reaching threshold, got %s", approved.Status)
	}

	executed, err := engine.ExecuteProposal(admin, p.ID, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if executed.Status != ProposalStatusExecuted {
		t.Fatalf("expected executed, got %s", executed.Status)
	}
	recipientBal, err := token.Balance("znhb", recipient)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if recipientBal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected recipient to receive 100, got %s", recipientBal.String())
	}
}

func TestApproveRejectsDoubleVote(t *testing.T) {
	engine, token, admin, signers := newTestEngine(t)
	token.fund("znhb", vaultAddressOf(t, engine), 1000)
	p, err := engine.ProposeTransfer(admin, testAddr(50), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := engine.ApproveProposal(signers[1], p.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := engine.ApproveProposal(signers[1], p.ID); err != ErrAlreadyApproved {
		t.Fatalf("expected ErrAlreadyApproved, got %v", err)
	}
}

func TestApproveAndAbstainAreMutuallyExclusive(t *testing.T) {
	engine, token, admin, signers := newTestEngine(t)
	token.fund("znhb", vaultAddressOf(t, engine), 1000)
	p, err := engine.ProposeTransfer(admin, testAddr(50), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := engine.AbstainFromProposal(signers[1], p.ID); err != nil {
		t.Fatalf("abstain: %v", err)
	}
	if _, err := engine.ApproveProposal(signers[1], p.ID); err != ErrExclusiveVote {
		t.Fatalf("expected ErrExclusiveVote, got %v", err)
	}
}

func TestRejectSlashesInsuranceStake(t *testing.T) {
	store := newMockStore()
	token := newMockToken()
	engine := NewEngine(store, token)
	clock := uint64(1_000_000)
	engine.SetNowFunc(func() uint64 { return clock })

	admin := testAddr(1)
	signers := []crypto.Address{admin, testAddr(2), testAddr(3)}
	cfg := Config{
		Signers:          signers,
		Threshold:        2,
		DayLengthLedgers: 86400,
	}
	if err := engine.Initialize(admin, cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.SetInsuranceConfig(admin, InsuranceConfig{
		Enabled:         true,
		MinAmount:       big.NewInt(0),
		MinInsuranceBps: 1000,
		SlashPercentage: 50,
	}); err != nil {
		t.Fatalf("set insurance: %v", err)
	}
	// The vault address is the admin, so the proposer is a separate Treasurer
	// to keep the proposer's and the vault's balances apart.
	proposer := signers[1]
	if err := engine.SetRole(admin, proposer, RoleTreasurer); err != nil {
		t.Fatalf("set role: %v", err)
	}
	token.fund("znhb", proposer, 1000)

	p, err := engine.ProposeTransfer(proposer, testAddr(50), "znhb", big.NewInt(1000), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if p.InsuranceAmount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100 insurance stake, got %s", p.InsuranceAmount.String())
	}

	vault := vaultAddressOf(t, engine)
	lockedBal, _ := token.Balance("znhb", vault)
	if lockedBal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected vault to hold 100 locked, got %s", lockedBal.String())
	}

	if _, err := engine.RejectProposal(signers[2], p.ID); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized rejecting someone else's proposal as a plain signer, got %v", err)
	}

	rejected, err := engine.RejectProposal(admin, p.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != ProposalStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	proposerBal, _ := token.Balance("znhb", proposer)
	// started with 1000, staked 100 (900 left), gets 50 back on slash (50% return).
	if proposerBal.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("expected proposer balance 950 after slash-return, got %s", proposerBal.String())
	}
}

func TestExpiredProposalCannotBeApproved(t *testing.T) {
	store := newMockStore()
	token := newMockToken()
	engine := NewEngine(store, token)
	clock := uint64(1_000_000)
	engine.SetNowFunc(func() uint64 { return clock })

	admin := testAddr(1)
	signers := []crypto.Address{admin, testAddr(2)}
	cfg := Config{
		Signers:          signers,
		Threshold:        2,
		DayLengthLedgers: 86400,
		ProposalExpiry:   10,
	}
	if err := engine.Initialize(admin, cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	token.fund("znhb", vaultAddressOf(t, engine), 1000)
	p, err := engine.ProposeTransfer(admin, testAddr(50), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	clock += 20
	if _, err := engine.ApproveProposal(signers[1], p.ID); err != ErrProposalExpired {
		t.Fatalf("expected ErrProposalExpired, got %v", err)
	}
	reloaded, err := engine.GetProposal(p.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if reloaded.Status != ProposalStatusExpired {
		t.Fatalf("expected expired, got %s", reloaded.Status)
	}
}

func TestCancelOnlyAllowedBeforeAnyApproval(t *testing.T) {
	engine, token, admin, signers := newTestEngine(t)
	token.fund("znhb", vaultAddressOf(t, engine), 1000)
	p, err := engine.ProposeTransfer(admin, testAddr(50), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := engine.ApproveProposal(signers[1], p.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := engine.CancelProposal(admin, p.ID); err != ErrCancelNotAllowed {
		t.Fatalf("expected ErrCancelNotAllowed, got %v", err)
	}
}

func TestDailyLimitEnforced(t *testing.T) {
	store := newMockStore()
	token := newMockToken()
	engine := NewEngine(store, token)
	clock := uint64(0)
	engine.SetNowFunc(func() uint64 { return clock })

	admin := testAddr(1)
	cfg := Config{
		Signers:          []crypto.Address{admin},
		Threshold:        1,
		DayLengthLedgers: 86400,
		DailyLimit:       big.NewInt(150),
	}
	if err := engine.Initialize(admin, cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	token.fund("znhb", vaultAddressOf(t, engine), 1000)

	if _, err := engine.ProposeTransfer(admin, testAddr(50), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd); err != nil {
		t.Fatalf("first propose: %v", err)
	}
	if _, err := engine.ProposeTransfer(admin, testAddr(50), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd); err != ErrDailyLimitExceeded {
		t.Fatalf("expected ErrDailyLimitExceeded, got %v", err)
	}
}

func TestBatchExecuteSkipsRecoverableFailures(t *testing.T) {
	engine, token, admin, signers := newTestEngine(t)
	token.fund("znhb", vaultAddressOf(t, engine), 1000)

	p1, err := engine.ProposeTransfer(admin, testAddr(50), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != nil {
		t.Fatalf("propose 1: %v", err)
	}
	p2, err := engine.ProposeTransfer(admin, testAddr(51), "znhb", big.NewInt(100), "", PriorityNormal, nil, ConditionLogicAnd)
	if err != nil {
		t.Fatalf("propose 2: %v", err)
	}
	if _, err := engine.ApproveProposal(signers[1], p1.ID); err != nil {
		t.Fatalf("approve p1: %v", err)
	}
	if _, err := engine.ApproveProposal(signers[2], p1.ID); err != nil {
		t.Fatalf("approve p1 second: %v", err)
	}
	// p2 never gets approved, so batch execution should skip it as recoverable.
	result, err := engine.BatchExecuteProposals(admin, []uint64{p1.ID, p2.ID}, nil)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(result.Executed) != 1 || result.Executed[0] != p1.ID {
		t.Fatalf("expected only p1 executed, got %+v", result.Executed)
	}
	if len(result.Failed) != 1 || result.Failed[0] != p2.ID {
		t.Fatalf("expected p2 to fail recoverably, got %+v", result.Failed)
	}
}
