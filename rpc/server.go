// Package rpc exposes native/treasury.Engine over JSON HTTP, matching
// spec.md §6's entry points one-for-one. The transport layer owns the
// caller-attestation, rate-limiting, and concurrency concerns the engine
// itself stays free of (SPEC_FULL.md §7).
package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"treasuryvault/crypto"
	"treasuryvault/native/treasury"
	"treasuryvault/observability"
)

// Server wires the engine behind chi routes under a single mutex, matching
// the "one transaction at a time" host guarantee spec.md §5 assumes.
type Server struct {
	mu     sync.Mutex
	engine *treasury.Engine
	oracle treasury.PriceOracle
	router chi.Router
	traced http.Handler
}

// NewServer builds the route table. auth and limiter may be nil, in which
// case the corresponding middleware is skipped (useful for local dev).
func NewServer(engine *treasury.Engine, oracle treasury.PriceOracle, auth *Authenticator, limiter *RateLimiter, stream *EventStream) *Server {
	s := &Server{engine: engine, oracle: oracle}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	if stream != nil {
		r.Get("/events", stream.ServeHTTP)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if auth != nil {
			v1.Use(auth.Middleware)
		}
		if limiter != nil {
			v1.Use(limiter.Middleware)
		}
		v1.Post("/propose_transfer", s.handleProposeTransfer)
		v1.Post("/approve_proposal", s.handleApproveProposal)
		v1.Post("/abstain_from_proposal", s.handleAbstainFromProposal)
		v1.Post("/reject_proposal", s.handleRejectProposal)
		v1.Post("/execute_proposal", s.handleExecuteProposal)
		v1.Post("/cancel_proposal", s.handleCancelProposal)
		v1.Post("/change_priority", s.handleChangePriority)
		v1.Post("/batch_execute_proposals", s.handleBatchExecute)
		v1.Get("/get_proposal", s.handleGetProposal)
		v1.Get("/get_reputation", s.handleGetReputation)
		v1.Get("/get_vault_balance", s.handleGetVaultBalance)
		s.registerAdminRoutes(v1)
		s.registerViewRoutes(v1)
	})

	s.router = r
	s.traced = otelhttp.NewHandler(r, "treasuryd.rpc")
	return s
}

// ServeHTTP satisfies http.Handler. Every request is wrapped in an otel span
// so propose/approve/execute latencies are exported with the service's
// traces.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.traced.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if te, ok := err.(*treasury.Error); ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"code":    te.Code,
			"message": te.Message,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
}

func callerOrUnauthorized(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, treasury.ErrUnauthorized)
		return crypto.Address{}, false
	}
	return caller, true
}

// UnlockLedger is not caller-supplied: the engine computes it from the
// vault's timelock policy when a proposal crosses into Approved
// (spec.md:71).
type proposeTransferRequest struct {
	Recipient  string                  `json:"recipient"`
	Token      string                  `json:"token"`
	Amount     string                  `json:"amount"`
	Memo       string                  `json:"memo"`
	Priority   treasury.Priority       `json:"priority"`
	Conditions []treasury.Condition    `json:"conditions"`
	Logic      treasury.ConditionLogic `json:"logic"`
}

func (s *Server) handleProposeTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req proposeTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	recipient, err := crypto.DecodeAddress(req.Recipient)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid recipient"})
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid amount"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.engine.ProposeTransfer(caller, recipient, req.Token, amount, req.Memo, req.Priority, req.Conditions, req.Logic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func proposalIDFromRequest(r *http.Request) (uint64, bool) {
	var body struct {
		ID uint64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return 0, false
	}
	return body.ID, true
}

func (s *Server) handleApproveProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := proposalIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.engine.ApproveProposal(caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAbstainFromProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := proposalIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.engine.AbstainFromProposal(caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRejectProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := proposalIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.engine.RejectProposal(caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := proposalIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.engine.ExecuteProposal(caller, id, s.oracle)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCancelProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := proposalIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.engine.CancelProposal(caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleChangePriority(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var body struct {
		ID       uint64            `json:"id"`
		Priority treasury.Priority `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.engine.ChangePriority(caller, body.ID, body.Priority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleBatchExecute(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var body struct {
		IDs []uint64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := s.engine.BatchExecuteProposals(caller, body.IDs, s.oracle)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid id"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.engine.GetProposal(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(r.URL.Query().Get("address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid address"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, err := s.engine.GetReputation(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleGetVaultBalance(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, err := s.engine.GetVaultBalance(token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}
