package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/agentpay/backoffice/internal/services"
)

type DepositHandler struct {
	service   *services.DepositService
	validator *services.ValidationHelper
}

func NewDepositHandler(service *services.DepositService) *DepositHandler {
	return &DepositHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateDepositRequest is the create-order payload.
// @Description Deposit order creation request
type CreateDepositRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"required" example:"100.00"`
	Currency string          `json:"currency" example:"CNY"`
}

// Create opens a deposit order
// @Summary Create deposit order
// @Description Create a deposit order for the caller's agent
// @Tags deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateDepositRequest true "Deposit order request"
// @Success 201 {object} models.DepositOrder
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /deposits [post]
func (h *DepositHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDepositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	order, err := h.service.CreateForUser(r.Context(), callerID(r), req.Amount, req.Currency)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// List returns recent deposit orders
// @Summary List deposit orders
// @Description List deposit orders visible to the caller
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.DepositOrder
// @Router /deposits [get]
func (h *DepositHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListForUser(r.Context(), callerID(r), callerRole(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Credit posts the ledger entry for a paid order
// @Summary Credit a paid deposit order
// @Description Move a Paid order to Credited, posting the ledger entry. Idempotent.
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deposit order ID"
// @Success 200 {object} models.Outcome
// @Failure 409 {object} models.Outcome
// @Router /deposits/{id}/credit [post]
func (h *DepositHandler) Credit(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.CreditPaidOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, outcomeStatus(out), out)
}
