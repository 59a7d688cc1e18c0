package handlers

import (
	"net/http"

	"github.com/agentpay/backoffice/internal/models"
	"github.com/agentpay/backoffice/internal/services"
)

type AgentHandler struct {
	service   *services.AgentService
	validator *services.ValidationHelper
}

func NewAgentHandler(service *services.AgentService) *AgentHandler {
	return &AgentHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateAgentRequest is the agent creation payload.
// @Description Agent creation request
type CreateAgentRequest struct {
	Name string `json:"name" validate:"required,min=2" example:"Acme Trading"`
	Type string `json:"type" validate:"required,oneof=Normal Credit" example:"Normal"`
}

// List returns registered agents
// @Summary List agents
// @Tags agents
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Agent
// @Router /agents [get]
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agents)
}

// Create registers a new agent
// @Summary Create agent
// @Tags agents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAgentRequest true "Agent request"
// @Success 201 {object} models.Agent
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /agents [post]
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	agent, err := h.service.Create(r.Context(), req.Name, models.AgentType(req.Type))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, agent)
}
