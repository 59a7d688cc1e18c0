package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentpay/backoffice/internal/services"
)

type BalanceHandler struct {
	ledger *services.LedgerService
}

func NewBalanceHandler(ledger *services.LedgerService) *BalanceHandler {
	return &BalanceHandler{ledger: ledger}
}

// Balances returns the caller's account balances
// @Summary List own balances
// @Description List every account of the caller with its derived balance
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {array} services.AccountBalance
// @Router /balances [get]
func (h *BalanceHandler) Balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.ledger.BalancesForOwner(r.Context(), callerID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balances)
}

// Entries returns an account's ledger entries
// @Summary List account entries
// @Description List an account's ledger entries, newest first
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param limit query int false "Max entries (default 200)"
// @Success 200 {array} models.LedgerEntry
// @Router /accounts/{id}/entries [get]
func (h *BalanceHandler) Entries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.ledger.EntriesForAccount(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
