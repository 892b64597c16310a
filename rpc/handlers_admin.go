package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"treasuryvault/crypto"
	"treasuryvault/native/treasury"
)

// registerAdminRoutes wires spec.md §6's Admin entry points onto v1. Every
// handler delegates its own role check to the Engine method it calls.
func (s *Server) registerAdminRoutes(v1 chi.Router) {
	v1.Post("/initialize", s.handleInitialize)
	v1.Post("/set_role", s.handleSetRole)
	v1.Post("/add_signer", s.handleAddSigner)
	v1.Post("/remove_signer", s.handleRemoveSigner)
	v1.Post("/update_limits", s.handleUpdateLimits)
	v1.Post("/update_threshold", s.handleUpdateThreshold)
	v1.Post("/set_list_mode", s.handleSetListMode)
	v1.Post("/add_to_whitelist", s.handleAddToWhitelist)
	v1.Post("/remove_from_whitelist", s.handleRemoveFromWhitelist)
	v1.Post("/add_to_blacklist", s.handleAddToBlacklist)
	v1.Post("/remove_from_blacklist", s.handleRemoveFromBlacklist)
	v1.Post("/set_insurance_config", s.handleSetInsuranceConfig)
}

type initializeRequest struct {
	Signers           []string `json:"signers"`
	Threshold         int      `json:"threshold"`
	PerProposalLimit  string   `json:"per_proposal_limit"`
	DailyLimit        string   `json:"daily_limit"`
	WeeklyLimit       string   `json:"weekly_limit"`
	TimelockThreshold string   `json:"timelock_threshold"`
	TimelockDelay     uint64   `json:"timelock_delay_ledgers"`
	VelocityWindow    uint64   `json:"velocity_window_ledgers"`
	VelocityLimit     int      `json:"velocity_limit"`
	DayLengthLedgers  uint64   `json:"day_length_ledgers"`
	MaxBatchSize      int      `json:"max_batch_size"`
	ProposalExpiry    uint64   `json:"proposal_expiry_ledgers"`
}

func decodeBigOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// handleInitialize admits the vault's first configuration. The caller
// becomes the vault's Admin; only a Fixed threshold strategy is reachable
// over this entry point (cmd/treasuryd's YAML fixture can pick another
// strategy kind at deploy time, but carries no amount tiers).
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	signers := make([]crypto.Address, 0, len(req.Signers))
	for _, raw := range req.Signers {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid signer address"})
			return
		}
		signers = append(signers, addr)
	}

	cfg := treasury.Config{
		VaultAddress:      caller,
		Signers:           signers,
		Threshold:         req.Threshold,
		ThresholdStrategy: treasury.ThresholdStrategy{Kind: treasury.ThresholdStrategyFixed},
		PerProposalLimit:  decodeBigOrZero(req.PerProposalLimit),
		DailyLimit:        decodeBigOrZero(req.DailyLimit),
		WeeklyLimit:       decodeBigOrZero(req.WeeklyLimit),
		TimelockThreshold: decodeBigOrZero(req.TimelockThreshold),
		TimelockDelay:     req.TimelockDelay,
		VelocityWindow:    req.VelocityWindow,
		VelocityLimit:     req.VelocityLimit,
		DayLengthLedgers:  req.DayLengthLedgers,
		MaxBatchSize:      req.MaxBatchSize,
		ProposalExpiry:    req.ProposalExpiry,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Initialize(caller, cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}

type addressRequest struct {
	Address string `json:"address"`
}

func decodeAddressOrBadRequest(w http.ResponseWriter, raw string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid address"})
		return crypto.Address{}, false
	}
	return addr, true
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var body struct {
		Address string        `json:"address"`
		Role    treasury.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	addr, ok := decodeAddressOrBadRequest(w, body.Address)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.SetRole(caller, addr, body.Role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAddSigner(w http.ResponseWriter, r *http.Request) {
	s.handleSignerMutation(w, r, func(caller, addr crypto.Address) error {
		return s.engine.AddSigner(caller, addr)
	})
}

func (s *Server) handleRemoveSigner(w http.ResponseWriter, r *http.Request) {
	s.handleSignerMutation(w, r, func(caller, addr crypto.Address) error {
		return s.engine.RemoveSigner(caller, addr)
	})
}

func (s *Server) handleSignerMutation(w http.ResponseWriter, r *http.Request, mutate func(caller, addr crypto.Address) error) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var body addressRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	addr, ok := decodeAddressOrBadRequest(w, body.Address)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mutate(caller, addr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdateLimits(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var body struct {
		PerProposalLimit string `json:"per_proposal_limit"`
		DailyLimit       string `json:"daily_limit"`
		WeeklyLimit      string `json:"weekly_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	parseOptional := func(s string) *big.Int {
		if s == "" {
			return nil
		}
		return decodeBigOrZero(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.UpdateLimits(caller, parseOptional(body.PerProposalLimit), parseOptional(body.DailyLimit), parseOptional(body.WeeklyLimit)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdateThreshold(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var body struct {
		Threshold int                        `json:"threshold"`
		Strategy  treasury.ThresholdStrategy `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.UpdateThreshold(caller, body.Threshold, body.Strategy); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetListMode(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var body struct {
		Mode treasury.ListMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.SetListMode(caller, body.Mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAddToWhitelist(w http.ResponseWriter, r *http.Request) {
	s.handleSignerMutation(w, r, func(caller, addr crypto.Address) error {
		return s.engine.AddToWhitelist(caller, addr)
	})
}

func (s *Server) handleRemoveFromWhitelist(w http.ResponseWriter, r *http.Request) {
	s.handleSignerMutation(w, r, func(caller, addr crypto.Address) error {
		return s.engine.RemoveFromWhitelist(caller, addr)
	})
}

func (s *Server) handleAddToBlacklist(w http.ResponseWriter, r *http.Request) {
	s.handleSignerMutation(w, r, func(caller, addr crypto.Address) error {
		return s.engine.AddToBlacklist(caller, addr)
	})
}

func (s *Server) handleRemoveFromBlacklist(w http.ResponseWriter, r *http.Request) {
	s.handleSignerMutation(w, r, func(caller, addr crypto.Address) error {
		return s.engine.RemoveFromBlacklist(caller, addr)
	})
}

func (s *Server) handleSetInsuranceConfig(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var body struct {
		Enabled                 bool   `json:"enabled"`
		MinAmount               string `json:"min_amount"`
		MinInsuranceBps         int64  `json:"min_insurance_bps"`
		SlashPercentage         int64  `json:"slash_percentage"`
		ReputationDiscountScore int64  `json:"reputation_discount_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	cfg := treasury.InsuranceConfig{
		Enabled:                 body.Enabled,
		MinAmount:               decodeBigOrZero(body.MinAmount),
		MinInsuranceBps:         body.MinInsuranceBps,
		SlashPercentage:         body.SlashPercentage,
		ReputationDiscountScore: body.ReputationDiscountScore,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.SetInsuranceConfig(caller, cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
