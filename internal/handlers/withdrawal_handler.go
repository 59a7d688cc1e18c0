package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/agentpay/backoffice/internal/models"
	"github.com/agentpay/backoffice/internal/services"
)

type WithdrawalHandler struct {
	service   *services.WithdrawalService
	validator *services.ValidationHelper
}

func NewWithdrawalHandler(service *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateWithdrawalRequest is the create payload.
// @Description Withdrawal request creation payload
type CreateWithdrawalRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"required" example:"50.00"`
	Currency string          `json:"currency" example:"CNY"`
	Memo     string          `json:"memo" example:"weekly settlement"`
}

// ReviewRequest is the payload for freeze/approve/reject/payout actions.
// @Description Review action payload
type ReviewRequest struct {
	Memo string `json:"memo" example:"checked against bank statement"`
}

// Create files a withdrawal request
// @Summary Create withdrawal request
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateWithdrawalRequest true "Withdrawal request"
// @Success 201 {object} models.WithdrawalRequest
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /withdrawals [post]
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWithdrawalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	out, err := h.service.CreateForUser(r.Context(), callerID(r), req.Amount, req.Currency, req.Memo)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

// List returns recent withdrawal requests
// @Summary List withdrawal requests
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.WithdrawalRequest
// @Router /withdrawals [get]
func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.service.ListForUser(r.Context(), callerID(r), callerRole(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}

// Freeze reserves funds for a requested withdrawal
// @Summary Freeze withdrawal
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal request ID"
// @Param request body ReviewRequest false "Review memo"
// @Success 200 {object} models.Outcome
// @Failure 409 {object} models.Outcome
// @Router /withdrawals/{id}/freeze [post]
func (h *WithdrawalHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Freeze)
}

// Approve approves a frozen withdrawal
// @Summary Approve withdrawal
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal request ID"
// @Param request body ReviewRequest false "Review memo"
// @Success 200 {object} models.Outcome
// @Failure 409 {object} models.Outcome
// @Router /withdrawals/{id}/approve [post]
func (h *WithdrawalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve)
}

// Reject rejects a requested or frozen withdrawal
// @Summary Reject withdrawal
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal request ID"
// @Param request body ReviewRequest false "Review memo"
// @Success 200 {object} models.Outcome
// @Failure 409 {object} models.Outcome
// @Router /withdrawals/{id}/reject [post]
func (h *WithdrawalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject)
}

// Payout settles an approved withdrawal
// @Summary Pay out withdrawal
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal request ID"
// @Param request body ReviewRequest false "Review memo"
// @Success 200 {object} models.Outcome
// @Failure 409 {object} models.Outcome
// @Router /withdrawals/{id}/payout [post]
func (h *WithdrawalHandler) Payout(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Payout)
}

func (h *WithdrawalHandler) review(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, id, reviewerUserID, memo string) (models.Outcome, error)) {

	var req ReviewRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
	}

	out, err := action(r.Context(), chi.URLParam(r, "id"), callerID(r), req.Memo)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, outcomeStatus(out), out)
}
