package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"treasuryvault/crypto"
	"treasuryvault/native/treasury"
	"treasuryvault/storage"
)

type testToken struct {
	mu       sync.Mutex
	balances map[string]map[crypto.Address]*big.Int
}

func newTestToken() *testToken {
	return &testToken{balances: make(map[string]map[crypto.Address]*big.Int)}
}

func (t *testToken) fund(token string, addr crypto.Address, amount int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bucket, ok := t.balances[token]
	if !ok {
		bucket = make(map[crypto.Address]*big.Int)
		t.balances[token] = bucket
	}
	bucket[addr] = big.NewInt(amount)
}

func (t *testToken) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bucket := t.balances[token]
	bal, ok := bucket[from]
	if !ok || bal.Cmp(amount) < 0 {
		return treasury.ErrTransferFailed
	}
	bucket[from] = new(big.Int).Sub(bal, amount)
	dest, ok := bucket[to]
	if !ok {
		dest = big.NewInt(0)
	}
	bucket[to] = new(big.Int).Add(dest, amount)
	return nil
}

func (t *testToken) Balance(token string, addr crypto.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[token][addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func testAddr(t *testing.T, b byte) crypto.Address {
	t.Helper()
	bytes := make([]byte, 20)
	bytes[19] = b
	return crypto.MustNewAddress(crypto.TestPrefix, bytes)
}

func newTestServer(t *testing.T) (*Server, *testToken, crypto.Address, []crypto.Address, []byte) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewCompositeStore(filepath.Join(dir, "p.bolt"), filepath.Join(dir, "t.leveldb"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	token := newTestToken()
	engine := treasury.NewEngine(store, token)

	admin := testAddr(t, 1)
	signers := []crypto.Address{admin, testAddr(t, 2), testAddr(t, 3)}
	cfg := treasury.Config{
		Signers:           signers,
		Threshold:         2,
		ThresholdStrategy: treasury.ThresholdStrategy{Kind: treasury.ThresholdStrategyFixed},
		PerProposalLimit:  big.NewInt(1_000_000),
		DailyLimit:        big.NewInt(1_000_000),
		WeeklyLimit:       big.NewInt(1_000_000),
		DayLengthLedgers:  86400,
		MaxBatchSize:      10,
	}
	require.NoError(t, engine.Initialize(admin, cfg))
	token.fund("znhb", admin, 1_000_000)

	secret := []byte("test-secret")
	auth := NewAuthenticator(secret)
	server := NewServer(engine, nil, auth, nil, nil)
	return server, token, admin, signers, secret
}

func bearerFor(t *testing.T, secret []byte, addr crypto.Address) string {
	t.Helper()
	token, err := IssueToken(secret, addr, jwt.MapClaims{})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHandleProposeTransferRequiresAuth(t *testing.T) {
	server, _, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(server)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/propose_transfer", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleProposeTransferAndApproveLifecycle(t *testing.T) {
	server, _, admin, signers, secret := newTestServer(t)
	ts := httptest.NewServer(server)
	defer ts.Close()

	recipient := testAddr(t, 9)
	body, err := json.Marshal(map[string]interface{}{
		"recipient": recipient.String(),
		"token":     "znhb",
		"amount":    "100",
		"memo":      "test payout",
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/propose_transfer", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", bearerFor(t, secret, admin))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var proposal treasury.Proposal
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&proposal))
	require.Equal(t, treasury.ProposalStatusPending, proposal.Status)

	approveBody, err := json.Marshal(map[string]interface{}{"id": proposal.ID})
	require.NoError(t, err)
	approveReq, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/approve_proposal", bytes.NewReader(approveBody))
	require.NoError(t, err)
	approveReq.Header.Set("Authorization", bearerFor(t, secret, signers[1]))
	approveResp, err := http.DefaultClient.Do(approveReq)
	require.NoError(t, err)
	defer approveResp.Body.Close()
	require.Equal(t, http.StatusOK, approveResp.StatusCode)

	// Threshold is 2 and the proposer does not approve implicitly, so one
	// approval leaves the proposal Pending.
	var pending treasury.Proposal
	require.NoError(t, json.NewDecoder(approveResp.Body).Decode(&pending))
	require.Equal(t, treasury.ProposalStatusPending, pending.Status)

	secondReq, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/approve_proposal", bytes.NewReader(approveBody))
	require.NoError(t, err)
	secondReq.Header.Set("Authorization", bearerFor(t, secret, signers[2]))
	secondResp, err := http.DefaultClient.Do(secondReq)
	require.NoError(t, err)
	defer secondResp.Body.Close()
	require.Equal(t, http.StatusOK, secondResp.StatusCode)

	var approved treasury.Proposal
	require.NoError(t, json.NewDecoder(secondResp.Body).Decode(&approved))
	require.Equal(t, treasury.ProposalStatusApproved, approved.Status)
}

func TestHandleGetVaultBalance(t *testing.T) {
	server, _, admin, _, secret := newTestServer(t)
	ts := httptest.NewServer(server)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/get_vault_balance?token=znhb", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", bearerFor(t, secret, admin))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	// get_vault_balance reports insurance stake locked in the vault, not the
	// vault's token balance; no proposal has staked any here.
	require.Equal(t, "0", body.Balance)
}
