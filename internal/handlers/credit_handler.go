package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/agentpay/backoffice/internal/services"
)

type CreditHandler struct {
	service   *services.CreditService
	validator *services.ValidationHelper
}

func NewCreditHandler(service *services.CreditService) *CreditHandler {
	return &CreditHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// UpsertCreditLimitRequest sets an agent's credit limit.
// @Description Credit limit payload
type UpsertCreditLimitRequest struct {
	CreditLimitAmount decimal.Decimal `json:"credit_limit_amount" validate:"required" example:"10000.00"`
	FirstFeeAmount    decimal.Decimal `json:"first_fee_amount" example:"100.00"`
	Note              string          `json:"note" example:"negotiated rate"`
}

// CreateCreditRequestRequest files a raise-limit request.
// @Description Credit limit request payload
type CreateCreditRequestRequest struct {
	RequestedAmount decimal.Decimal `json:"requested_amount" validate:"required" example:"20000.00"`
	Note            string          `json:"note" example:"volume growth"`
}

// DecideCreditRequestRequest carries the reviewer's decision.
// @Description Credit limit decision payload
type DecideCreditRequestRequest struct {
	Approve bool   `json:"approve" example:"true"`
	Note    string `json:"note" example:"approved after review"`
}

// GetLimit returns an agent's credit limit
// @Summary Get credit limit
// @Tags credit
// @Produce json
// @Security BearerAuth
// @Param agentID path string true "Agent ID"
// @Success 200 {object} models.CreditLimit
// @Failure 404 {object} services.ErrorResponse
// @Router /agents/{agentID}/credit-limit [get]
func (h *CreditHandler) GetLimit(w http.ResponseWriter, r *http.Request) {
	cl, err := h.service.GetByAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cl)
}

// UpsertLimit sets an agent's credit limit
// @Summary Set credit limit
// @Tags credit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param agentID path string true "Agent ID"
// @Param request body UpsertCreditLimitRequest true "Credit limit"
// @Success 200 {object} models.CreditLimit
// @Failure 400 {object} services.ErrorResponse
// @Router /agents/{agentID}/credit-limit [put]
func (h *CreditHandler) UpsertLimit(w http.ResponseWriter, r *http.Request) {
	var req UpsertCreditLimitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	cl, err := h.service.Upsert(r.Context(), chi.URLParam(r, "agentID"),
		req.CreditLimitAmount, req.FirstFeeAmount, req.Note)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cl)
}

// CreateRequest files a raise-limit request
// @Summary Create credit limit request
// @Tags credit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCreditRequestRequest true "Credit limit request"
// @Success 201 {object} models.CreditLimitRequest
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /credit-requests [post]
func (h *CreditHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	cr, err := h.service.CreateRequest(r.Context(), callerID(r), req.RequestedAmount, req.Note)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cr)
}

// ListRequests returns credit limit requests
// @Summary List credit limit requests
// @Tags credit
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.CreditLimitRequest
// @Router /credit-requests [get]
func (h *CreditHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.service.ListRequests(r.Context(), callerID(r), callerRole(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}

// DecideRequest approves or rejects a pending request
// @Summary Decide credit limit request
// @Tags credit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Credit limit request ID"
// @Param request body DecideCreditRequestRequest true "Decision"
// @Success 200 {object} models.Outcome
// @Failure 409 {object} models.Outcome
// @Router /credit-requests/{id}/decision [post]
func (h *CreditHandler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	var req DecideCreditRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	out, err := h.service.Decide(r.Context(), chi.URLParam(r, "id"), callerID(r), req.Approve, req.Note)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, outcomeStatus(out), out)
}
