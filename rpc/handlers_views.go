package rpc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"treasuryvault/crypto"
	"treasuryvault/native/treasury"
)

// registerViewRoutes wires spec.md §6's read-only entry points onto v1.
func (s *Server) registerViewRoutes(v1 chi.Router) {
	v1.Get("/get_role", s.handleGetRole)
	v1.Get("/get_daily_spent", s.handleGetDailySpent)
	v1.Get("/get_today_spent", s.handleGetTodaySpent)
	v1.Get("/is_signer", s.handleIsSigner)
	v1.Get("/is_whitelisted", s.handleIsWhitelisted)
	v1.Get("/is_blacklisted", s.handleIsBlacklisted)
	v1.Get("/get_proposals_by_priority", s.handleGetProposalsByPriority)
	v1.Get("/get_insurance_config", s.handleGetInsuranceConfig)
}

func addressFromQuery(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(r.URL.Query().Get("address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid address"})
		return crypto.Address{}, false
	}
	return addr, true
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressFromQuery(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	role, err := s.engine.GetRole(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": role.String()})
}

func (s *Server) handleGetDailySpent(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	day, err := strconv.ParseUint(r.URL.Query().Get("day"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid day"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	spent, err := s.engine.GetDailySpent(token, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"spent": spent.String()})
}

func (s *Server) handleGetTodaySpent(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	s.mu.Lock()
	defer s.mu.Unlock()
	spent, err := s.engine.GetTodaySpent(token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"spent": spent.String()})
}

func (s *Server) handleIsSigner(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressFromQuery(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	isSigner, err := s.engine.IsSigner(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_signer": isSigner})
}

func (s *Server) handleIsWhitelisted(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressFromQuery(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	isWhitelisted, err := s.engine.IsWhitelisted(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_whitelisted": isWhitelisted})
}

func (s *Server) handleIsBlacklisted(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressFromQuery(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	isBlacklisted, err := s.engine.IsBlacklisted(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_blacklisted": isBlacklisted})
}

func (s *Server) handleGetProposalsByPriority(w http.ResponseWriter, r *http.Request) {
	priority, err := strconv.ParseUint(r.URL.Query().Get("priority"), 10, 8)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid priority"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.engine.GetProposalsByPriority(treasury.Priority(priority))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"ids": ids})
}

func (s *Server) handleGetInsuranceConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.engine.GetInsuranceConfig()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
