package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/benmercer/finboard/internal/auth"
	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/engine"
	"github.com/benmercer/finboard/internal/provider"
	"github.com/benmercer/finboard/internal/store"
)

// Routes registers the HTTP surface on mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/dashboard/networth", s.handleNetWorth)
	mux.HandleFunc("GET /api/dashboard/allocation", s.handleAllocation)
	mux.HandleFunc("GET /api/dashboard/summary", s.handleSummary)

	mux.HandleFunc("GET /api/reports/monthly", s.handleMonthlyMatrix)
	mux.HandleFunc("GET /api/reports/runway", s.handleRunway)

	mux.HandleFunc("GET /api/csp/score", s.handleCSPScore)
	mux.HandleFunc("POST /api/csp/score", s.handleCSPScore)
	mux.HandleFunc("GET /api/csp/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/csp/goals", s.handleSaveGoal)
	mux.HandleFunc("DELETE /api/csp/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("GET /api/csp/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /api/csp/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /api/manual-accounts", s.handleListManualAccounts)
	mux.HandleFunc("POST /api/manual-accounts", s.handleCreateManualAccount)
	mux.HandleFunc("DELETE /api/manual-accounts/{id}", s.handleDeleteManualAccount)
	mux.HandleFunc("GET /api/manual-accounts/{id}/holdings", s.handleGetHoldings)
	mux.HandleFunc("PUT /api/manual-accounts/{id}/holdings", s.handleSetHoldings)

	mux.HandleFunc("POST /api/provider/token", s.handleSetToken)
	mux.HandleFunc("DELETE /api/provider/token", s.handleDisconnect)
	mux.HandleFunc("POST /api/cache/invalidate", s.handleInvalidateCache)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	report, err := s.NetWorth(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleAllocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	report, err := s.Allocation(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	summary, err := s.Summary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Service) handleMonthlyMatrix(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	params := MatrixParams{Sort: engine.SortAmount}
	q := r.URL.Query()
	if v := q.Get("months"); v != "" && v != "all" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "months must be a positive integer or 'all'", http.StatusBadRequest)
			return
		}
		params.Months = n
	}
	params.ShowActiveOnly = q.Get("activeOnly") == "true"
	if v := q.Get("sort"); v != "" {
		params.Sort = engine.SortMode(v)
	}
	params.SelectedMonth = domain.MonthKey(q.Get("selectedMonth"))

	matrix, err := s.MonthlyMatrix(r.Context(), userID, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matrix)
}

func (s *Service) handleRunway(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	lookback := 0
	if v := r.URL.Query().Get("lookback"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "lookback must be a positive integer", http.StatusBadRequest)
			return
		}
		lookback = n
	}

	runway, err := s.Runway(r.Context(), userID, lookback)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runway)
}

func (s *Service) handleCSPScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var draft engine.Draft
	if r.Method == http.MethodPost && r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			http.Error(w, "invalid draft payload", http.StatusBadRequest)
			return
		}
	}

	comparison, err := s.CSPScore(r.Context(), userID, draft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

func (s *Service) handleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	goals, err := s.ListGoals(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Service) handleSaveGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var goal domain.RunwayGoal
	if err := json.NewDecoder(r.Body).Decode(&goal); err != nil {
		http.Error(w, "invalid goal payload", http.StatusBadRequest)
		return
	}
	saved, err := s.SaveGoal(r.Context(), userID, goal)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Service) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.DeleteGoal(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	settings, err := s.GetSettings(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var patch store.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid settings payload", http.StatusBadRequest)
		return
	}
	settings, err := s.UpdateSettings(r.Context(), userID, patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handleListManualAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accounts, err := s.ListManualAccounts(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Service) handleCreateManualAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in store.ManualAccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid account payload", http.StatusBadRequest)
		return
	}
	account, err := s.CreateManualAccount(r.Context(), userID, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Service) handleDeleteManualAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.DeleteManualAccount(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	holdings, err := s.GetHoldings(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (s *Service) handleSetHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var holdings []domain.Holding
	if err := json.NewDecoder(r.Body).Decode(&holdings); err != nil {
		http.Error(w, "invalid holdings payload", http.StatusBadRequest)
		return
	}
	if err := s.SetHoldings(r.Context(), userID, r.PathValue("id"), holdings); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleSetToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	s.SetProviderToken(payload.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	s.DisconnectProvider()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var payload struct {
		Prefix string `json:"prefix"`
	}
	// An empty body clears everything.
	_ = json.NewDecoder(r.Body).Decode(&payload)
	removed := s.InvalidateCache(payload.Prefix)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		http.Error(w, "user not authenticated", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses.
func (s *Service) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var pe *provider.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrValidation):
		status = http.StatusBadRequest
	case errors.As(err, &pe):
		switch pe.Kind {
		case provider.KindNotInitialized:
			status = http.StatusConflict
		case provider.KindAuthInvalid:
			status = http.StatusUnauthorized
		default:
			status = http.StatusBadGateway
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
